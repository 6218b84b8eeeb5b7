package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"antrian_rapor/internal/models"
	"antrian_rapor/internal/response"
	"antrian_rapor/internal/storage"
)

type StudentRequest struct {
	NIS        string `json:"nis" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Class      string `json:"class" binding:"required"`
	ParentName string `json:"parent_name"`
}

// @Summary		List students
// @Tags			students
// @Produce		json
// @Param			class	query		string	false	"Class filter"
// @Param			search	query		string	false	"Name or NIS substring"
// @Success		200	{array}		models.Student
// @Failure		500	{object}	response.ErrorResponse	"Server error (DB_ERROR)"
// @Router			/api/students [get]
func ListStudentsHandler(c *gin.Context) {
	query := storage.DB.Model(&models.Student{})
	if class := c.Query("class"); class != "" {
		query = query.Where("class = ?", class)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name ILIKE ? OR nis LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var students []models.Student
	if err := query.Order("class ASC, name ASC").Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to load students",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, students)
}

// @Summary		Create a student
// @Tags			students
// @Accept			json
// @Produce		json
// @Param			student	body		StudentRequest	true	"Student data"
// @Security		BearerAuth
// @Success		201	{object}	models.Student
// @Failure		400	{object}	response.ErrorResponse	"Validation error (VALIDATION_ERROR)"
// @Failure		409	{object}	response.ErrorResponse	"NIS already registered (NIS_EXISTS)"
// @Router			/api/students [post]
func CreateStudentHandler(c *gin.Context) {
	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "invalid student payload",
			Details: err.Error(),
		})
		return
	}

	student := models.Student{
		NIS:        req.NIS,
		Name:       req.Name,
		Class:      req.Class,
		ParentName: req.ParentName,
	}
	if err := storage.DB.Create(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, response.ErrorResponse{
				Code:    "NIS_EXISTS",
				Message: "a student with this NIS already exists",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to create student",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, student)
}

// @Summary		Update a student
// @Tags			students
// @Accept			json
// @Produce		json
// @Param			id		path		string			true	"Student ID"
// @Param			student	body		StudentRequest	true	"Student data"
// @Security		BearerAuth
// @Success		200	{object}	models.Student
// @Failure		404	{object}	response.ErrorResponse	"Student not found (STUDENT_NOT_FOUND)"
// @Router			/api/students/{id} [put]
func UpdateStudentHandler(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_STUDENT_ID",
			Message: "invalid student id",
		})
		return
	}

	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "invalid student payload",
			Details: err.Error(),
		})
		return
	}

	var student models.Student
	if err := storage.DB.First(&student, studentID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "STUDENT_NOT_FOUND",
			Message: "student not found",
		})
		return
	}

	student.NIS = req.NIS
	student.Name = req.Name
	student.Class = req.Class
	student.ParentName = req.ParentName
	if err := storage.DB.Save(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, response.ErrorResponse{
				Code:    "NIS_EXISTS",
				Message: "a student with this NIS already exists",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to update student",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, student)
}

// @Summary		Delete a student
// @Tags			students
// @Produce		json
// @Param			id	path		string	true	"Student ID"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		404	{object}	response.ErrorResponse	"Student not found (STUDENT_NOT_FOUND)"
// @Router			/api/students/{id} [delete]
func DeleteStudentHandler(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_STUDENT_ID",
			Message: "invalid student id",
		})
		return
	}

	var student models.Student
	if err := storage.DB.First(&student, studentID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "STUDENT_NOT_FOUND",
			Message: "student not found",
		})
		return
	}

	if err := storage.DB.Delete(&student).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to delete student",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Success: true, Message: "student deleted"})
}
