package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"antrian_rapor/internal/response"
	"antrian_rapor/internal/settings"
	"antrian_rapor/internal/storage"
)

// @Summary		Get all settings
// @Tags			settings
// @Produce		json
// @Security		BearerAuth
// @Success		200	{object}	map[string]string
// @Failure		500	{object}	response.ErrorResponse	"Server error (DB_ERROR)"
// @Router			/api/settings [get]
func GetSettingsHandler(c *gin.Context) {
	all, err := settings.All(storage.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to load settings",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, all)
}

// @Summary		Update settings
// @Description	Upserts the supplied keys and invalidates the cache
// @Tags			settings
// @Accept			json
// @Produce		json
// @Param			settings	body		map[string]string	true	"Key/value pairs"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		400	{object}	response.ErrorResponse	"Validation error (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Server error (DB_ERROR)"
// @Router			/api/settings [put]
func UpdateSettingsHandler(c *gin.Context) {
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "invalid settings payload",
			Details: err.Error(),
		})
		return
	}

	if err := settings.SetAll(storage.DB, values); err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to save settings",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Success: true, Message: "settings saved"})
}

// @Summary		List configured classes
// @Tags			settings
// @Produce		json
// @Success		200	{array}	string
// @Router			/api/classes [get]
func ListClassesHandler(c *gin.Context) {
	classes := settings.ClassList(storage.DB)
	if classes == nil {
		classes = []string{}
	}
	c.JSON(http.StatusOK, classes)
}
