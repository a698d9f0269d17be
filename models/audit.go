package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditEntry is append-only. Rows are never updated or deleted; the Run and
// RunStep models derive current state, audit is how it got there.
type AuditEntry struct {
	ID            int       `gorm:"primary_key" json:"id"`
	UserId        *int      `gorm:"index" json:"user_id"`
	Action        string    `gorm:"size:64;not null;index" json:"action"`
	Entity        string    `gorm:"size:32;not null" json:"entity"`
	EntityId      int       `gorm:"not null;index" json:"entity_id"`
	Details       []byte    `gorm:"type:json" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// AppendAudit writes one audit row inside the caller's transaction so the
// entry commits or rolls back with the mutation it records.
func AppendAudit(ctx context.Context, tx *gorm.DB, userId *int, action string, entity string, entityId int, details any) error {
	var detailsJSON []byte
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		detailsJSON = b
	}

	entry := AuditEntry{
		UserId:        userId,
		Action:        action,
		Entity:        entity,
		EntityId:      entityId,
		Details:       detailsJSON,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.WithContext(ctx).Create(&entry).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
