package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusWaiting  = "waiting"
	StatusCalled   = "called"
	StatusFinished = "finished"
	StatusSkipped  = "skipped"
)

// QueueEntry is one student's place in the pickup queue for a single civil
// day. Date is the institution-local calendar day as "2006-01-02"; the unique
// index guarantees at most one entry per student per day even if two check-in
// requests race. Queue entries are hard-deleted so a deleted entry frees the
// (student, date) slot for a fresh check-in.
type QueueEntry struct {
	gorm.Model
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_queue_student_date" json:"student_id"`
	Student      Student    `gorm:"foreignKey:StudentID" json:"student"`
	ParentPhone  string     `json:"parent_phone"`
	Status       string     `gorm:"index;not null;default:waiting" json:"status"`
	Date         string     `gorm:"index;not null;uniqueIndex:idx_queue_student_date" json:"date"`
	QueueNumber  int        `gorm:"not null" json:"queue_number"` // per (class, date), assigned once
	CheckInTime  time.Time  `gorm:"not null" json:"check_in_time"`
	CalledTime   *time.Time `json:"called_time"`
	FinishedTime *time.Time `json:"finished_time"`
	CalledBy     *uint      `json:"called_by"`
}
