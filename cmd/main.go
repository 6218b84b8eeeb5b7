// Seed entrypoint: creates the initial admin account and default settings.
// Run once after the first deploy.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"antrian_rapor/internal/models"
	"antrian_rapor/internal/settings"
	"antrian_rapor/internal/storage"
)

var defaultSettings = map[string]string{
	settings.KeyWAEnabled:  "false",
	settings.KeyWAApiURL:   "",
	settings.KeyWAApiToken: "",
	settings.KeyWACheckinTemplate: "Halo {parent_name}, {name} (kelas {class}) sudah check-in " +
		"dengan nomor antrian {queue_number} pada {date} pukul {time}.",
	settings.KeyWACallTemplate: "Halo {parent_name}, {name} dipanggil. " +
		"Silakan menuju ruang kelas {class} untuk pengambilan rapor.",
	settings.KeyClassList: "[]",
}

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

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("ADMIN_PASSWORD is required")
	}

	var existing models.User
	if err := storage.DB.Where("username = ?", username).First(&existing).Error; err == nil {
		log.Printf("admin user %q already exists, skipping", username)
	} else {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("failed to hash admin password: ", err)
		}
		admin := models.User{
			Username:     username,
			PasswordHash: string(hashed),
			Role:         models.RoleAdmin,
		}
		if err := storage.DB.Create(&admin).Error; err != nil {
			log.Fatal("failed to create admin user: ", err)
		}
		log.Printf("admin user %q created", username)
	}

	// Seed only the settings that are not present yet.
	current, err := settings.All(storage.DB)
	if err != nil {
		log.Fatal("failed to read settings: ", err)
	}
	missing := make(map[string]string)
	for key, value := range defaultSettings {
		if _, ok := current[key]; !ok {
			missing[key] = value
		}
	}
	if len(missing) > 0 {
		if err := settings.SetAll(storage.DB, missing); err != nil {
			log.Fatal("failed to seed settings: ", err)
		}
		log.Printf("seeded %d default settings", len(missing))
	}

	log.Println("seed complete")
}
