package tasks

import (
	"log"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"

	"antrian_rapor/internal/localtime"
	"antrian_rapor/internal/models"
	"antrian_rapor/internal/storage"
	"antrian_rapor/internal/ws"
)

// PurgeOldEntries hard-deletes queue rows older than the retention window
// (QUEUE_RETENTION_DAYS, default 30). History older than that is gone for
// good, which is the intended policy for pickup records.
func PurgeOldEntries() {
	days := 30
	if raw := os.Getenv("QUEUE_RETENTION_DAYS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	cutoff := localtime.Now().AddDate(0, 0, -days).Format(localtime.DateLayout)
	result := storage.DB.Unscoped().Where("date < ?", cutoff).Delete(&models.QueueEntry{})
	if result.Error != nil {
		log.Println("failed to purge old queue entries:", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("purged %d queue entries older than %s", result.RowsAffected, cutoff)
	}
}

// AnnounceRollover nudges every connected display at local midnight so they
// re-fetch and show the fresh empty queue for the new day.
func AnnounceRollover() {
	ws.HubInstance.BroadcastEvent(ws.EventQueueUpdated, nil)
	log.Println("queue day rollover broadcast sent")
}

// InitScheduler starts the cron jobs in the institution's timezone.
func InitScheduler() *cron.Cron {
	c := cron.New(cron.WithSeconds(), cron.WithLocation(localtime.Location()))

	// Retention purge every day at 03:00.
	if _, err := c.AddFunc("0 0 3 * * *", PurgeOldEntries); err != nil {
		log.Println("failed to schedule PurgeOldEntries:", err)
	}

	// Day rollover broadcast at local midnight.
	if _, err := c.AddFunc("0 0 0 * * *", AnnounceRollover); err != nil {
		log.Println("failed to schedule AnnounceRollover:", err)
	}

	c.Start()
	log.Println("cron scheduler started")
	return c
}
