package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"antrian_rapor/internal/models"
	"antrian_rapor/internal/response"
	"antrian_rapor/internal/storage"
)

type UserRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password"`
	Role          string `json:"role" binding:"required"`
	AssignedClass string `json:"assigned_class"`
}

// @Summary		List users
// @Tags			users
// @Produce		json
// @Security		BearerAuth
// @Success		200	{array}		models.User
// @Failure		500	{object}	response.ErrorResponse	"Server error (DB_ERROR)"
// @Router			/api/users [get]
func ListUsersHandler(c *gin.Context) {
	var users []models.User
	if err := storage.DB.Order("username ASC").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to load users",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Summary		Create a user
// @Tags			users
// @Accept			json
// @Produce		json
// @Param			user	body		UserRequest	true	"User data; password required on create"
// @Security		BearerAuth
// @Success		201	{object}	models.User
// @Failure		400	{object}	response.ErrorResponse	"Validation error (VALIDATION_ERROR, INVALID_ROLE, MISSING_PASSWORD)"
// @Failure		409	{object}	response.ErrorResponse	"Username taken (USERNAME_EXISTS)"
// @Router			/api/users [post]
func CreateUserHandler(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "invalid user payload",
			Details: err.Error(),
		})
		return
	}
	if !models.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ROLE",
			Message: "role must be one of admin, teacher, satpam, tv",
		})
		return
	}
	if req.Password == "" {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "MISSING_PASSWORD",
			Message: "password is required",
		})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "PASSWORD_HASH_ERROR",
			Message: "failed to hash password",
		})
		return
	}

	user := models.User{
		Username:      req.Username,
		PasswordHash:  string(hashed),
		Role:          req.Role,
		AssignedClass: req.AssignedClass,
	}
	if err := storage.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, response.ErrorResponse{
				Code:    "USERNAME_EXISTS",
				Message: "username already taken",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to create user",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, user)
}

// @Summary		Update a user
// @Description	Password is only changed when a new one is supplied
// @Tags			users
// @Accept			json
// @Produce		json
// @Param			id		path		string		true	"User ID"
// @Param			user	body		UserRequest	true	"User data"
// @Security		BearerAuth
// @Success		200	{object}	models.User
// @Failure		404	{object}	response.ErrorResponse	"User not found (USER_NOT_FOUND)"
// @Router			/api/users/{id} [put]
func UpdateUserHandler(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_USER_ID",
			Message: "invalid user id",
		})
		return
	}

	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "invalid user payload",
			Details: err.Error(),
		})
		return
	}
	if !models.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ROLE",
			Message: "role must be one of admin, teacher, satpam, tv",
		})
		return
	}

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "USER_NOT_FOUND",
			Message: "user not found",
		})
		return
	}

	user.Username = req.Username
	user.Role = req.Role
	user.AssignedClass = req.AssignedClass
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "PASSWORD_HASH_ERROR",
				Message: "failed to hash password",
			})
			return
		}
		user.PasswordHash = string(hashed)
	}

	if err := storage.DB.Save(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, response.ErrorResponse{
				Code:    "USERNAME_EXISTS",
				Message: "username already taken",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to update user",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary		Delete a user
// @Tags			users
// @Produce		json
// @Param			id	path		string	true	"User ID"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		404	{object}	response.ErrorResponse	"User not found (USER_NOT_FOUND)"
// @Router			/api/users/{id} [delete]
func DeleteUserHandler(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_USER_ID",
			Message: "invalid user id",
		})
		return
	}

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "USER_NOT_FOUND",
			Message: "user not found",
		})
		return
	}

	if err := storage.DB.Delete(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "failed to delete user",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Success: true, Message: "user deleted"})
}
