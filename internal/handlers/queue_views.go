package handlers

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"antrian_rapor/internal/localtime"
	"antrian_rapor/internal/models"
	"antrian_rapor/internal/queue"
	"antrian_rapor/internal/response"
	"antrian_rapor/internal/storage"
	"antrian_rapor/internal/wa"
)

// ListQueueHandler returns the queue for a day, ordered by check-in time.
// @Summary		List the queue
// @Description	Entries for the given date (default today), optionally filtered by class
// @Tags			queue
// @Produce		json
// @Param			date	query		string	false	"Civil date YYYY-MM-DD, default today"
// @Param			class	query		string	false	"Class filter"
// @Success		200	{array}		QueueItem
// @Failure		500	{object}	response.ErrorResponse	"Server error (DB_ERROR)"
// @Router			/api/queue [get]
func ListQueueHandler(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = localtime.Today()
	}

	query := storage.DB.Preload("Student").
		Joins("JOIN students ON students.id = queue_entries.student_id").
		Where("queue_entries.date = ?", date)
	if class := c.Query("class"); class != "" {
		query = query.Where("students.class = ?", class)
	}

	var entries []models.QueueEntry
	if err := query.Order("queue_entries.check_in_time ASC").Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to load queue",
			Details: err.Error(),
		})
		return
	}

	items := make([]QueueItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toQueueItem(entry))
	}
	c.JSON(http.StatusOK, items)
}

// HistoryHandler lists finished entries across days, newest first.
// @Summary		Pickup history
// @Tags			queue
// @Produce		json
// @Param			class	query		string	false	"Class filter"
// @Param			limit	query		int		false	"Page size, default 20"
// @Param			offset	query		int		false	"Page offset"
// @Success		200	{object}	map[string]interface{}	"{data, total}"
// @Failure		500	{object}	response.ErrorResponse	"Server error (DB_ERROR)"
// @Router			/api/queue/history [get]
func HistoryHandler(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	base := storage.DB.Model(&models.QueueEntry{}).
		Joins("JOIN students ON students.id = queue_entries.student_id").
		Where("queue_entries.status = ?", models.StatusFinished)
	if class := c.Query("class"); class != "" {
		base = base.Where("students.class = ?", class)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to count history",
			Details: err.Error(),
		})
		return
	}

	var entries []models.QueueEntry
	if err := base.Session(&gorm.Session{}).Preload("Student").
		Order("queue_entries.check_in_time DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to load history",
			Details: err.Error(),
		})
		return
	}

	items := make([]QueueItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toQueueItem(entry))
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "total": total})
}

// ClassStats is the per-class slice of today's totals.
type ClassStats struct {
	Class    string `json:"class"`
	Waiting  int    `json:"waiting"`
	Called   int    `json:"called"`
	Finished int    `json:"finished"`
	Skipped  int    `json:"skipped"`
}

// StatsHandler aggregates today's queue per class, plus the set of students
// currently being called (for the TV overlay).
// @Summary		Today's queue statistics
// @Tags			queue
// @Produce		json
// @Success		200	{object}	map[string]interface{}	"{byClass, totals, activeCalls}"
// @Failure		500	{object}	response.ErrorResponse	"Server error (DB_ERROR)"
// @Router			/api/queue/stats [get]
func StatsHandler(c *gin.Context) {
	var entries []models.QueueEntry
	if err := storage.DB.Preload("Student").
		Where("date = ?", localtime.Today()).
		Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to load today's entries",
			Details: err.Error(),
		})
		return
	}

	byClass := make(map[string]*ClassStats)
	totals := ClassStats{Class: "all"}
	for _, entry := range entries {
		class := entry.Student.Class
		stats, ok := byClass[class]
		if !ok {
			stats = &ClassStats{Class: class}
			byClass[class] = stats
		}
		switch entry.Status {
		case models.StatusWaiting:
			stats.Waiting++
			totals.Waiting++
		case models.StatusCalled:
			stats.Called++
			totals.Called++
		case models.StatusFinished:
			stats.Finished++
			totals.Finished++
		case models.StatusSkipped:
			stats.Skipped++
			totals.Skipped++
		}
	}

	classes := make([]string, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	statsList := make([]ClassStats, 0, len(classes))
	for _, class := range classes {
		statsList = append(statsList, *byClass[class])
	}

	// Active call per class. Iterating in ascending called_time order and
	// overwriting leaves the most recent call winning, so a recall (which
	// re-stamps called_time) replaces an older call on the display.
	called := make([]models.QueueEntry, 0)
	for _, entry := range entries {
		if entry.Status == models.StatusCalled && entry.CalledTime != nil {
			called = append(called, entry)
		}
	}
	sort.Slice(called, func(i, j int) bool {
		return called[i].CalledTime.Before(*called[j].CalledTime)
	})
	activeCalls := make(map[string]string)
	for _, entry := range called {
		activeCalls[entry.Student.Class] = entry.Student.Name
	}

	c.JSON(http.StatusOK, gin.H{
		"byClass":     statsList,
		"totals":      totals,
		"activeCalls": activeCalls,
	})
}

type NotifyRequest struct {
	Type    string `json:"type" binding:"required,oneof=checkin call"`
	Message string `json:"message"`
}

// NotifyHandler re-sends a parent notification on demand. For checkin-type
// notifications the {queue_number} placeholder is recomputed as the current
// class count so the message reflects the latest position, not the stored
// number.
// @Summary		Manually send a parent notification
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id		path		string			true	"Queue entry ID"
// @Param			notify	body		NotifyRequest	true	"Notification type and optional custom message"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		400	{object}	response.ErrorResponse	"Validation error (VALIDATION_ERROR)"
// @Failure		403	{object}	response.ErrorResponse	"Access denied (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Entry not found (QUEUE_NOT_FOUND)"
// @Router			/api/queue/{id}/notify [post]
func NotifyHandler(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "invalid notify payload",
			Details: err.Error(),
		})
		return
	}

	entry, _, ok := authorizeEntry(c, queue.ActionNotify)
	if !ok {
		return
	}

	cfg := wa.LoadConfig(storage.DB)
	fields := notifyFields(entry)

	template := cfg.CallTemplate
	if req.Type == "checkin" {
		template = cfg.CheckinTemplate
		if count, err := queue.CountByClassAndDate(storage.DB, entry.Student.Class, entry.Date); err == nil {
			fields["queue_number"] = strconv.FormatInt(count, 10)
		}
	}
	if req.Message != "" {
		template = req.Message
	}

	if !wa.Dispatch(cfg, entry.ParentPhone, wa.Render(template, fields)) {
		c.JSON(http.StatusOK, response.SuccessResponse{
			Success: false,
			Message: "notification skipped: gateway disabled or no phone number",
		})
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Success: true, Message: "notification queued"})
}
