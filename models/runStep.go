package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RunStep is one answered/pending checklist item within a run's phase.
// Unique per (run_id, phase, step_code); re-submissions update in place.
type RunStep struct {
	ID        int     `gorm:"primary_key" json:"id"`
	RunId     int     `gorm:"not null;index;index:uniq_run_step,unique" json:"run_id"`
	Phase     string  `gorm:"size:32;not null;index:uniq_run_step,unique" json:"phase"`
	StepCode  string  `gorm:"size:64;not null;index:uniq_run_step,unique" json:"step_code"`
	OwnerRole RunRole `gorm:"size:10;not null;default:'shared'" json:"owner_role"`

	ValueNumber *decimal.Decimal `gorm:"type:decimal(14,2)" json:"value_number"`
	ValueText   *string          `gorm:"type:text" json:"value_text"`
	ValueCheck  *bool            `json:"value_check"`
	Delta       decimal.Decimal  `gorm:"type:decimal(14,2);not null;default:0" json:"delta"`
	Comment     string           `gorm:"type:text" json:"comment"`

	Status          StepStatus `gorm:"size:10;not null;default:'pending';index" json:"status"`
	PerformerUserId *int       `json:"performer_user_id"`

	// IdempotencyKey is the caller token of the last applied write; a repeat
	// with the same token is a no-op success.
	IdempotencyKey string `gorm:"size:128;index" json:"idempotency_key"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetRunStep(ctx context.Context, runId int, phase string, stepCode string) (*RunStep, error) {
	db := config.GetDB()
	var step RunStep
	if err := db.WithContext(ctx).
		Where("run_id = ? AND phase = ? AND step_code = ?", runId, phase, stepCode).
		First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &step, nil
}

func ListRunSteps(ctx context.Context, runId int) ([]*RunStep, error) {
	db := config.GetDB()
	var steps []*RunStep
	if err := db.WithContext(ctx).
		Where("run_id = ?", runId).
		Order("phase, step_code").
		Find(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}

func ListRunStepsForRuns(ctx context.Context, runIds []int) ([]*RunStep, error) {
	if len(runIds) == 0 {
		return nil, nil
	}
	db := config.GetDB()
	var steps []*RunStep
	if err := db.WithContext(ctx).
		Where("run_id IN ?", runIds).
		Order("run_id, phase, step_code").
		Find(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}
