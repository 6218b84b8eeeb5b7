package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"antrian_rapor/internal/localtime"
	"antrian_rapor/internal/models"
	"antrian_rapor/internal/queue"
	"antrian_rapor/internal/response"
	"antrian_rapor/internal/storage"
	"antrian_rapor/internal/wa"
	"antrian_rapor/internal/ws"
)

// QueueItem is a queue entry flattened with its student fields, the shape
// every list/mutation endpoint returns.
type QueueItem struct {
	ID           uint       `json:"id"`
	StudentID    uint       `json:"student_id"`
	NIS          string     `json:"nis"`
	Name         string     `json:"name"`
	Class        string     `json:"class"`
	ParentName   string     `json:"parent_name"`
	ParentPhone  string     `json:"parent_phone"`
	Status       string     `json:"status"`
	Date         string     `json:"date"`
	QueueNumber  int        `json:"queue_number"`
	CheckInTime  time.Time  `json:"check_in_time"`
	CalledTime   *time.Time `json:"called_time"`
	FinishedTime *time.Time `json:"finished_time"`
	CalledBy     *uint      `json:"called_by"`
}

func toQueueItem(entry models.QueueEntry) QueueItem {
	return QueueItem{
		ID:           entry.ID,
		StudentID:    entry.StudentID,
		NIS:          entry.Student.NIS,
		Name:         entry.Student.Name,
		Class:        entry.Student.Class,
		ParentName:   entry.Student.ParentName,
		ParentPhone:  entry.ParentPhone,
		Status:       entry.Status,
		Date:         entry.Date,
		QueueNumber:  entry.QueueNumber,
		CheckInTime:  entry.CheckInTime,
		CalledTime:   entry.CalledTime,
		FinishedTime: entry.FinishedTime,
		CalledBy:     entry.CalledBy,
	}
}

func actorFrom(c *gin.Context) queue.Actor {
	return queue.Actor{
		ID:            c.GetUint("userID"),
		Role:          c.GetString("role"),
		AssignedClass: c.GetString("class"),
	}
}

// authorizeEntry resolves the :id parameter, loads the entry with its student
// and runs the access guard. On failure it writes the error response and
// returns ok=false.
func authorizeEntry(c *gin.Context, action string) (models.QueueEntry, queue.Actor, bool) {
	actor := actorFrom(c)

	entryID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_QUEUE_ID",
			Message: "invalid queue entry id",
		})
		return models.QueueEntry{}, actor, false
	}

	var entry models.QueueEntry
	if err := storage.DB.Preload("Student").First(&entry, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{
				Code:    "QUEUE_NOT_FOUND",
				Message: "queue entry not found",
			})
		} else {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "DB_ERROR",
				Message: "failed to load queue entry",
				Details: err.Error(),
			})
		}
		return models.QueueEntry{}, actor, false
	}

	if err := queue.CanAct(actor, entry.Student.Class, action); err != nil {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: err.Error(),
		})
		return models.QueueEntry{}, actor, false
	}

	return entry, actor, true
}

// updateEntry applies the field changes and refreshes the local copy so the
// response reflects what was written.
func updateEntry(c *gin.Context, entry *models.QueueEntry, fields map[string]interface{}) bool {
	err := storage.DB.Model(&models.QueueEntry{}).
		Where("id = ?", entry.ID).
		Updates(fields).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to update queue entry",
			Details: err.Error(),
		})
		return false
	}
	return true
}

type CheckInRequest struct {
	StudentID   uint   `json:"student_id"`
	NIS         string `json:"nis"`
	ParentPhone string `json:"parent_phone"`
}

// CheckInHandler creates today's queue entry for a student.
// @Summary		Check a student into today's queue
// @Description	Allocates the next per-class queue number and creates a waiting entry
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			checkin	body		CheckInRequest	true	"Student reference (id or nis) and optional parent phone"
// @Security		BearerAuth
// @Success		201	{object}	QueueItem	"Created entry"
// @Failure		400	{object}	response.ErrorResponse	"Missing student reference (MISSING_STUDENT)"
// @Failure		404	{object}	response.ErrorResponse	"Unknown student (STUDENT_NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Already checked in today (ALREADY_CHECKED_IN)"
// @Failure		500	{object}	response.ErrorResponse	"Server error (DB_ERROR)"
// @Router			/api/queue/checkin [post]
func CheckInHandler(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "invalid check-in payload",
			Details: err.Error(),
		})
		return
	}
	if req.StudentID == 0 && req.NIS == "" {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "MISSING_STUDENT",
			Message: "student_id or nis is required",
		})
		return
	}

	var student models.Student
	var err error
	if req.StudentID != 0 {
		err = storage.DB.First(&student, req.StudentID).Error
	} else {
		err = storage.DB.Where("nis = ?", req.NIS).First(&student).Error
	}
	if err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "STUDENT_NOT_FOUND",
			Message: "student not found",
		})
		return
	}

	today := localtime.Today()
	var entry models.QueueEntry

	// Duplicate probe, numbering and insert share one transaction. The
	// advisory lock serializes numbering per (class, date); the unique
	// (student_id, date) index backstops a race between two concurrent
	// check-ins for the same student.
	txErr := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := queue.LockClassDay(tx, student.Class, today); err != nil {
			return err
		}

		var existing models.QueueEntry
		err := tx.Where("student_id = ? AND date = ?", student.ID, today).
			First(&existing).Error
		if err == nil {
			return queue.ErrDuplicate
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		number, err := queue.NextNumber(tx, student.Class, today)
		if err != nil {
			return err
		}

		entry = models.QueueEntry{
			StudentID:   student.ID,
			ParentPhone: wa.NormalizePhone(req.ParentPhone),
			Status:      models.StatusWaiting,
			Date:        today,
			QueueNumber: number,
			CheckInTime: localtime.Now(),
		}
		return tx.Create(&entry).Error
	})
	if txErr != nil {
		if errors.Is(txErr, queue.ErrDuplicate) || errors.Is(txErr, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, response.ErrorResponse{
				Code:    "ALREADY_CHECKED_IN",
				Message: "student already checked in today",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to create queue entry",
			Details: txErr.Error(),
		})
		return
	}
	entry.Student = student

	if entry.ParentPhone != "" {
		cfg := wa.LoadConfig(storage.DB)
		wa.Dispatch(cfg, entry.ParentPhone, wa.Render(cfg.CheckinTemplate, notifyFields(entry)))
	}
	ws.HubInstance.BroadcastEvent(ws.EventQueueUpdated, nil)

	c.JSON(http.StatusCreated, toQueueItem(entry))
}

// CallHandler marks the student as currently summoned. Re-calling an already
// called entry is allowed and simply re-stamps called_time, so a teacher can
// repeat the announcement.
// @Summary		Call a student
// @Tags			queue
// @Produce		json
// @Param			id	path		string	true	"Queue entry ID"
// @Security		BearerAuth
// @Success		200	{object}	map[string]interface{}	"Updated entry plus broadcast payload"
// @Failure		403	{object}	response.ErrorResponse	"Access denied (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Entry not found (QUEUE_NOT_FOUND)"
// @Router			/api/queue/{id}/call [post]
func CallHandler(c *gin.Context) {
	entry, actor, ok := authorizeEntry(c, queue.ActionCall)
	if !ok {
		return
	}

	now := localtime.Now()
	if !updateEntry(c, &entry, map[string]interface{}{
		"status":      models.StatusCalled,
		"called_time": now,
		"called_by":   actor.ID,
	}) {
		return
	}
	entry.Status = models.StatusCalled
	entry.CalledTime = &now
	entry.CalledBy = &actor.ID

	cfg := wa.LoadConfig(storage.DB)
	wa.Dispatch(cfg, entry.ParentPhone, wa.Render(cfg.CallTemplate, notifyFields(entry)))

	ws.HubInstance.BroadcastEvent(ws.EventQueueUpdated, nil)
	ws.HubInstance.BroadcastEvent(ws.EventStudentCalled, map[string]interface{}{
		"studentName": entry.Student.Name,
		"className":   entry.Student.Class,
	})

	c.JSON(http.StatusOK, gin.H{
		"queue": toQueueItem(entry),
		"broadcast": gin.H{
			"type":        "CALL",
			"studentName": entry.Student.Name,
			"className":   entry.Student.Class,
		},
	})
}

// CancelCallHandler is the undo path back to waiting. It clears finished_time
// too, so a mis-click sequence call → finish → cancel fully resets the entry.
// @Summary		Cancel a call
// @Tags			queue
// @Produce		json
// @Param			id	path		string	true	"Queue entry ID"
// @Security		BearerAuth
// @Success		200	{object}	QueueItem
// @Failure		403	{object}	response.ErrorResponse	"Access denied (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Entry not found (QUEUE_NOT_FOUND)"
// @Router			/api/queue/{id}/cancel [post]
func CancelCallHandler(c *gin.Context) {
	entry, _, ok := authorizeEntry(c, queue.ActionCancel)
	if !ok {
		return
	}

	if !updateEntry(c, &entry, map[string]interface{}{
		"status":        models.StatusWaiting,
		"called_time":   nil,
		"called_by":     nil,
		"finished_time": nil,
	}) {
		return
	}
	entry.Status = models.StatusWaiting
	entry.CalledTime = nil
	entry.CalledBy = nil
	entry.FinishedTime = nil

	ws.HubInstance.BroadcastEvent(ws.EventQueueUpdated, nil)
	c.JSON(http.StatusOK, toQueueItem(entry))
}

// FinishHandler marks the pickup as complete. The prior status is not
// checked: finishing straight from waiting is allowed, matching how the desk
// actually works when a parent shows up while the teacher forgot to call.
// @Summary		Finish a student's pickup
// @Tags			queue
// @Produce		json
// @Param			id	path		string	true	"Queue entry ID"
// @Security		BearerAuth
// @Success		200	{object}	map[string]interface{}	"Updated entry plus broadcast payload"
// @Failure		403	{object}	response.ErrorResponse	"Access denied (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Entry not found (QUEUE_NOT_FOUND)"
// @Router			/api/queue/{id}/finish [post]
func FinishHandler(c *gin.Context) {
	entry, _, ok := authorizeEntry(c, queue.ActionFinish)
	if !ok {
		return
	}

	now := localtime.Now()
	if !updateEntry(c, &entry, map[string]interface{}{
		"status":        models.StatusFinished,
		"finished_time": now,
	}) {
		return
	}
	entry.Status = models.StatusFinished
	entry.FinishedTime = &now

	ws.HubInstance.BroadcastEvent(ws.EventQueueUpdated, nil)
	ws.HubInstance.BroadcastEvent(ws.EventStudentFinished, map[string]interface{}{
		"studentName": entry.Student.Name,
		"className":   entry.Student.Class,
	})

	c.JSON(http.StatusOK, gin.H{
		"queue": toQueueItem(entry),
		"broadcast": gin.H{
			"type":        "FINISH",
			"studentName": entry.Student.Name,
			"className":   entry.Student.Class,
		},
	})
}

// SkipHandler marks the entry skipped without touching its timestamps.
// @Summary		Skip a student
// @Tags			queue
// @Produce		json
// @Param			id	path		string	true	"Queue entry ID"
// @Security		BearerAuth
// @Success		200	{object}	QueueItem
// @Failure		403	{object}	response.ErrorResponse	"Access denied (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Entry not found (QUEUE_NOT_FOUND)"
// @Router			/api/queue/{id}/skip [post]
func SkipHandler(c *gin.Context) {
	entry, _, ok := authorizeEntry(c, queue.ActionSkip)
	if !ok {
		return
	}

	if !updateEntry(c, &entry, map[string]interface{}{
		"status": models.StatusSkipped,
	}) {
		return
	}
	entry.Status = models.StatusSkipped

	ws.HubInstance.BroadcastEvent(ws.EventQueueUpdated, nil)
	c.JSON(http.StatusOK, toQueueItem(entry))
}

// RevertFinishHandler undoes a finish, back to called. Admin only.
// @Summary		Revert a finished entry to called
// @Tags			queue
// @Produce		json
// @Param			id	path		string	true	"Queue entry ID"
// @Security		BearerAuth
// @Success		200	{object}	QueueItem
// @Failure		400	{object}	response.ErrorResponse	"Entry is not finished (NOT_FINISHED)"
// @Failure		403	{object}	response.ErrorResponse	"Admin only (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Entry not found (QUEUE_NOT_FOUND)"
// @Router			/api/queue/{id}/revert [post]
func RevertFinishHandler(c *gin.Context) {
	entry, _, ok := authorizeEntry(c, queue.ActionRevert)
	if !ok {
		return
	}
	if entry.Status != models.StatusFinished {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "NOT_FINISHED",
			Message: "entry is not in finished status",
		})
		return
	}

	if !updateEntry(c, &entry, map[string]interface{}{
		"status":        models.StatusCalled,
		"finished_time": nil,
	}) {
		return
	}
	entry.Status = models.StatusCalled
	entry.FinishedTime = nil

	ws.HubInstance.BroadcastEvent(ws.EventQueueUpdated, nil)
	c.JSON(http.StatusOK, toQueueItem(entry))
}

// DeleteQueueHandler removes the entry, freeing the (student, date) slot for
// a fresh check-in.
// @Summary		Delete a queue entry
// @Tags			queue
// @Produce		json
// @Param			id	path		string	true	"Queue entry ID"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		403	{object}	response.ErrorResponse	"Access denied (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Entry not found (QUEUE_NOT_FOUND)"
// @Router			/api/queue/{id} [delete]
func DeleteQueueHandler(c *gin.Context) {
	entry, _, ok := authorizeEntry(c, queue.ActionDelete)
	if !ok {
		return
	}

	if err := storage.DB.Unscoped().Delete(&models.QueueEntry{}, entry.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to delete queue entry",
			Details: err.Error(),
		})
		return
	}

	ws.HubInstance.BroadcastEvent(ws.EventQueueUpdated, nil)
	c.JSON(http.StatusOK, response.SuccessResponse{Success: true, Message: "queue entry deleted"})
}

// ResetQueueHandler wipes every entry for the current civil day.
// @Summary		Reset today's queue
// @Tags			queue
// @Produce		json
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		500	{object}	response.ErrorResponse	"Server error (DB_ERROR)"
// @Router			/api/queue [delete]
func ResetQueueHandler(c *gin.Context) {
	today := localtime.Today()
	if err := storage.DB.Unscoped().Where("date = ?", today).Delete(&models.QueueEntry{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to reset today's queue",
			Details: err.Error(),
		})
		return
	}

	ws.HubInstance.BroadcastEvent(ws.EventQueueUpdated, nil)
	c.JSON(http.StatusOK, response.SuccessResponse{Success: true, Message: "queue reset for " + today})
}

// notifyFields collects the placeholder values for message templates.
func notifyFields(entry models.QueueEntry) map[string]string {
	return map[string]string{
		"name":         entry.Student.Name,
		"class":        entry.Student.Class,
		"nis":          entry.Student.NIS,
		"parent_name":  entry.Student.ParentName,
		"queue_number": strconv.Itoa(entry.QueueNumber),
		"date":         localtime.Now().Format("02/01/2006"),
		"time":         localtime.Now().Format("15:04"),
	}
}
