package main

import (
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"antrian_rapor/internal/auth"
	"antrian_rapor/internal/handlers"
	"antrian_rapor/internal/models"
	"antrian_rapor/internal/storage"
	"antrian_rapor/internal/tasks"
	"antrian_rapor/internal/ws"
)

// @Title						Report-card pickup queue
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	if os.Getenv("ENV_CHECK") == "" {
		if err := godotenv.Load(); err != nil {
			log.Fatal("failed to load .env")
		}
	}

	storage.ConnectDatabase()

	if err := storage.DB.AutoMigrate(
		&models.User{},
		&models.Student{},
		&models.QueueEntry{},
		&models.Setting{},
		&models.Announcement{},
	); err != nil {
		log.Fatal("migration failed: ", err)
	}

	storage.InitRedis()
	tasks.InitScheduler()

	go ws.HubInstance.Run()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", handlers.Login)
		authGroup.POST("/refresh", handlers.RefreshToken)
	}

	// Read endpoints are open so the TV display works without a session.
	api := r.Group("/api")
	{
		api.GET("/queue", handlers.ListQueueHandler)
		api.GET("/queue/history", handlers.HistoryHandler)
		api.GET("/queue/stats", handlers.StatsHandler)
		api.GET("/announcements", handlers.ListAnnouncementsHandler)
		api.GET("/classes", handlers.ListClassesHandler)
	}

	authed := api.Group("", auth.AuthMiddleware())
	{
		authed.POST("/queue/checkin", auth.RequireRoles(models.RoleAdmin, models.RoleSatpam), handlers.CheckInHandler)
		authed.POST("/queue/:id/call", handlers.CallHandler)
		authed.POST("/queue/:id/cancel", handlers.CancelCallHandler)
		authed.POST("/queue/:id/finish", handlers.FinishHandler)
		authed.POST("/queue/:id/skip", handlers.SkipHandler)
		authed.POST("/queue/:id/revert", handlers.RevertFinishHandler)
		authed.POST("/queue/:id/notify", handlers.NotifyHandler)
		authed.DELETE("/queue/:id", handlers.DeleteQueueHandler)
		authed.DELETE("/queue", auth.RequireRoles(models.RoleAdmin, models.RoleSatpam), handlers.ResetQueueHandler)
	}

	admin := authed.Group("", auth.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/students", handlers.ListStudentsHandler)
		admin.POST("/students", handlers.CreateStudentHandler)
		admin.PUT("/students/:id", handlers.UpdateStudentHandler)
		admin.DELETE("/students/:id", handlers.DeleteStudentHandler)

		admin.GET("/users", handlers.ListUsersHandler)
		admin.POST("/users", handlers.CreateUserHandler)
		admin.PUT("/users/:id", handlers.UpdateUserHandler)
		admin.DELETE("/users/:id", handlers.DeleteUserHandler)

		admin.GET("/settings", handlers.GetSettingsHandler)
		admin.PUT("/settings", handlers.UpdateSettingsHandler)

		admin.POST("/announcements", handlers.CreateAnnouncementHandler)
		admin.PUT("/announcements/:id", handlers.UpdateAnnouncementHandler)
		admin.DELETE("/announcements/:id", handlers.DeleteAnnouncementHandler)
		admin.POST("/announcements/:id/broadcast", handlers.BroadcastAnnouncementHandler)
	}

	r.GET("/ws", ws.ServeWS)

	if err := r.Run(":8080"); err != nil {
		log.Fatal("server failed to start: ", err)
	}
}
