package queue

import (
	"gorm.io/gorm"

	"antrian_rapor/internal/models"
)

// LockClassDay takes a transaction-scoped advisory lock on (class, date).
// A plain count+1 under READ COMMITTED lets two concurrent check-ins for the
// same class observe the same count and commit the same number, and no unique
// index can cover (class, date, queue_number) while class lives on students.
// The lock serializes check-ins per class per day; it releases on commit or
// rollback.
func LockClassDay(tx *gorm.DB, class, date string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(? || ':' || ?))", class, date).Error
}

// CountByClassAndDate counts today's entries for a class regardless of status.
func CountByClassAndDate(tx *gorm.DB, class, date string) (int64, error) {
	var n int64
	err := tx.Model(&models.QueueEntry{}).
		Joins("JOIN students ON students.id = queue_entries.student_id").
		Where("queue_entries.date = ? AND students.class = ?", date, class).
		Count(&n).Error
	return n, err
}

// NextNumber computes the next display number for (class, date) as
// count + 1. Numbers are assigned once and never reshuffled; deleting an
// entry leaves a gap. Callers must hold the LockClassDay lock in the same
// transaction, otherwise two concurrent check-ins can observe the same count.
func NextNumber(tx *gorm.DB, class, date string) (int, error) {
	n, err := CountByClassAndDate(tx, class, date)
	if err != nil {
		return 0, err
	}
	return int(n) + 1, nil
}
