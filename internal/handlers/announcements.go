package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"antrian_rapor/internal/models"
	"antrian_rapor/internal/response"
	"antrian_rapor/internal/storage"
	"antrian_rapor/internal/ws"
)

type AnnouncementRequest struct {
	Text   string `json:"text" binding:"required"`
	Active *bool  `json:"active"`
}

// @Summary		List announcements
// @Tags			announcements
// @Produce		json
// @Success		200	{array}	models.Announcement
// @Router			/api/announcements [get]
func ListAnnouncementsHandler(c *gin.Context) {
	var announcements []models.Announcement
	if err := storage.DB.Order("created_at DESC").Find(&announcements).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to load announcements",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, announcements)
}

// @Summary		Create an announcement
// @Tags			announcements
// @Accept			json
// @Produce		json
// @Param			announcement	body	AnnouncementRequest	true	"Announcement text"
// @Security		BearerAuth
// @Success		201	{object}	models.Announcement
// @Router			/api/announcements [post]
func CreateAnnouncementHandler(c *gin.Context) {
	var req AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "invalid announcement payload",
			Details: err.Error(),
		})
		return
	}

	announcement := models.Announcement{Text: req.Text, Active: true}
	if req.Active != nil {
		announcement.Active = *req.Active
	}
	if err := storage.DB.Create(&announcement).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to create announcement",
			Details: err.Error(),
		})
		return
	}

	ws.HubInstance.BroadcastEvent(ws.EventAnnouncementUpdated, nil)
	c.JSON(http.StatusCreated, announcement)
}

// @Summary		Update an announcement
// @Tags			announcements
// @Accept			json
// @Produce		json
// @Param			id				path	string				true	"Announcement ID"
// @Param			announcement	body	AnnouncementRequest	true	"Announcement text"
// @Security		BearerAuth
// @Success		200	{object}	models.Announcement
// @Router			/api/announcements/{id} [put]
func UpdateAnnouncementHandler(c *gin.Context) {
	announcementID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ANNOUNCEMENT_ID",
			Message: "invalid announcement id",
		})
		return
	}

	var req AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "invalid announcement payload",
			Details: err.Error(),
		})
		return
	}

	var announcement models.Announcement
	if err := storage.DB.First(&announcement, announcementID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ANNOUNCEMENT_NOT_FOUND",
			Message: "announcement not found",
		})
		return
	}

	announcement.Text = req.Text
	if req.Active != nil {
		announcement.Active = *req.Active
	}
	if err := storage.DB.Save(&announcement).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to update announcement",
			Details: err.Error(),
		})
		return
	}

	ws.HubInstance.BroadcastEvent(ws.EventAnnouncementUpdated, nil)
	c.JSON(http.StatusOK, announcement)
}

// @Summary		Delete an announcement
// @Tags			announcements
// @Produce		json
// @Param			id	path	string	true	"Announcement ID"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Router			/api/announcements/{id} [delete]
func DeleteAnnouncementHandler(c *gin.Context) {
	announcementID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ANNOUNCEMENT_ID",
			Message: "invalid announcement id",
		})
		return
	}

	if err := storage.DB.Delete(&models.Announcement{}, announcementID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to delete announcement",
			Details: err.Error(),
		})
		return
	}

	ws.HubInstance.BroadcastEvent(ws.EventAnnouncementUpdated, nil)
	c.JSON(http.StatusOK, response.SuccessResponse{Success: true, Message: "announcement deleted"})
}

// @Summary		Broadcast an announcement to all connected displays
// @Tags			announcements
// @Produce		json
// @Param			id	path	string	true	"Announcement ID"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Router			/api/announcements/{id}/broadcast [post]
func BroadcastAnnouncementHandler(c *gin.Context) {
	announcementID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ANNOUNCEMENT_ID",
			Message: "invalid announcement id",
		})
		return
	}

	var announcement models.Announcement
	if err := storage.DB.First(&announcement, announcementID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ANNOUNCEMENT_NOT_FOUND",
			Message: "announcement not found",
		})
		return
	}

	ws.HubInstance.BroadcastEvent(ws.EventAnnouncement, map[string]interface{}{
		"text": announcement.Text,
	})
	c.JSON(http.StatusOK, response.SuccessResponse{Success: true, Message: "announcement broadcast"})
}
