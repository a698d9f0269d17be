package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
)

// ReminderSent is the per-(run, slot) at-most-once marker. A row is written
// only after the notification was durably enqueued, so a failed dispatch is
// retried on the next tick without re-marking.
type ReminderSent struct {
	ID        int       `gorm:"primary_key" json:"id"`
	RunId     int       `gorm:"not null;index:uniq_run_slot,unique" json:"run_id"`
	Slot      string    `gorm:"size:16;not null;index:uniq_run_slot,unique" json:"slot"` // "HH:MM" shop-local
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SentSlotsForRun returns the slots already marked sent, as a set.
func SentSlotsForRun(ctx context.Context, runId int) (map[string]bool, error) {
	db := config.GetDB()
	var rows []*ReminderSent
	if err := db.WithContext(ctx).Where("run_id = ?", runId).Find(&rows).Error; err != nil {
		return nil, err
	}
	sent := make(map[string]bool, len(rows))
	for _, r := range rows {
		sent[r.Slot] = true
	}
	return sent, nil
}
