package models

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Outbox publish statuses for NotificationRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// NotificationRecord is the transactional outbox row for one outbound
// notification. The deciding mutation writes it inside its own DB
// transaction; the dispatcher publishes to Pub/Sub after commit.
type NotificationRecord struct {
	ID         int          `gorm:"primary_key;index:idx_notify_dispatch,priority:3" json:"id"`
	Kind       string       `gorm:"size:20;not null;index" json:"kind"`
	Target     NotifyTarget `gorm:"size:20;not null" json:"target"`
	ShopId     int          `gorm:"not null;index" json:"shop_id"`
	RunId      int          `gorm:"not null;index" json:"run_id"`
	Recipients string       `gorm:"type:text;not null" json:"recipients"` // comma separated chat ids
	Payload    []byte       `gorm:"type:json" json:"payload"`
	Body       string       `gorm:"type:text" json:"body"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_notify_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_notify_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`

	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (n *NotificationRecord) RecipientList() []string {
	if strings.TrimSpace(n.Recipients) == "" {
		return nil
	}
	parts := strings.Split(n.Recipients, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EnqueueNotification writes the outbox row inside the caller's transaction
// but does NOT publish. Publishing is performed asynchronously by the
// dispatcher after commit.
func EnqueueNotification(ctx context.Context, tx *gorm.DB, kind string, target NotifyTarget, shopId int, runId int, recipients []string, body string, payload any) error {
	var payloadJSON []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		payloadJSON = b
	}

	record := NotificationRecord{
		Kind:          kind,
		Target:        target,
		ShopId:        shopId,
		RunId:         runId,
		Recipients:    strings.Join(recipients, ","),
		Payload:       payloadJSON,
		Body:          body,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.WithContext(ctx).Create(&record).Error
}
