// Package settings reads and writes the flat key/value settings table,
// with a redis read-through cache in front of it.
package settings

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"antrian_rapor/internal/models"
	"antrian_rapor/internal/storage"
)

const (
	KeyWAEnabled         = "waEnabled"
	KeyWAApiURL          = "waApiUrl"
	KeyWAApiToken        = "waApiToken"
	KeyWACheckinTemplate = "waCheckinTemplate"
	KeyWACallTemplate    = "waCallTemplate"
	KeyClassList         = "classList" // JSON array of class names
)

const cacheKey = "settings_all"

var ctx = context.Background()

// All returns every setting as a map. Redis is consulted first; any cache
// error falls through to the database so a missing redis never breaks reads.
func All(db *gorm.DB) (map[string]string, error) {
	if storage.RedisClient != nil {
		cached, err := storage.RedisClient.Get(ctx, cacheKey).Result()
		if err == nil && cached != "" {
			var out map[string]string
			if err := json.Unmarshal([]byte(cached), &out); err == nil {
				return out, nil
			}
		}
	}

	var rows []models.Setting
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}

	if storage.RedisClient != nil {
		if encoded, err := json.Marshal(out); err == nil {
			storage.RedisClient.Set(ctx, cacheKey, string(encoded), 10*time.Minute)
		}
	}
	return out, nil
}

// Get returns a single setting value, or "" when unset.
func Get(db *gorm.DB, key string) string {
	all, err := All(db)
	if err != nil {
		return ""
	}
	return all[key]
}

// SetAll upserts the given keys and invalidates the cache.
func SetAll(db *gorm.DB, values map[string]string) error {
	for key, value := range values {
		row := models.Setting{Key: key, Value: value}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
	}
	Invalidate()
	return nil
}

func Invalidate() {
	if storage.RedisClient != nil {
		storage.RedisClient.Del(ctx, cacheKey)
	}
}

// ClassList decodes the configured class names; empty when unset or invalid.
func ClassList(db *gorm.DB) []string {
	raw := Get(db, KeyClassList)
	if raw == "" {
		return nil
	}
	var classes []string
	if err := json.Unmarshal([]byte(raw), &classes); err != nil {
		return nil
	}
	return classes
}
