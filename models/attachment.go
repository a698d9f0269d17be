package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
)

// Attachment is an opaque chat-platform file reference bound to a run step.
// The service never touches file bytes; FileRef is resolved by the gateway.
type Attachment struct {
	ID       int            `gorm:"primary_key" json:"id"`
	RunId    int            `gorm:"not null;index:idx_att_run_step" json:"run_id"`
	StepCode string         `gorm:"size:64;not null;index:idx_att_run_step" json:"step_code"`
	FileRef  string         `gorm:"size:255;not null" json:"file_ref"`
	Kind     AttachmentKind `gorm:"size:20;not null;default:'photo';index" json:"kind"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func ListAttachments(ctx context.Context, runId int) ([]*Attachment, error) {
	db := config.GetDB()
	var atts []*Attachment
	if err := db.WithContext(ctx).
		Where("run_id = ?", runId).
		Order("id").
		Find(&atts).Error; err != nil {
		return nil, err
	}
	return atts, nil
}

func CountAttachments(ctx context.Context, runId int, stepCode string) (int64, error) {
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Attachment{}).
		Where("run_id = ? AND step_code = ?", runId, stepCode).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// HasAttachmentOfKind reports whether the run carries at least one attachment
// of the given kind. Close guard uses this for z_report.
func HasAttachmentOfKind(ctx context.Context, runId int, kind AttachmentKind) (bool, error) {
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Attachment{}).
		Where("run_id = ? AND kind = ?", runId, kind).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
