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

// Template is an immutable step-set definition for one phase. Edits never
// mutate a referenced template: the importer bumps Version and inserts a new
// row, so runs stay bound to the snapshot they were created with.
type Template struct {
	ID       int    `gorm:"primary_key" json:"id"`
	Name     string `gorm:"size:255;not null;index:idx_tpl_name_phase" json:"name"`
	Phase    string `gorm:"size:32;not null;index:idx_tpl_name_phase" json:"phase"`
	Version  int    `gorm:"not null;default:1" json:"version"`
	IsActive bool   `gorm:"not null;default:true;index" json:"is_active"`

	Steps []TemplateStep `gorm:"foreignKey:TemplateId" json:"steps"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TemplateStep defines one checklist item: its type tag, validator rules and
// which role owns it.
type TemplateStep struct {
	ID         int      `gorm:"primary_key" json:"id"`
	TemplateId int      `gorm:"not null;index;index:uniq_tpl_step,unique" json:"template_id"`
	StepOrder  int      `gorm:"not null" json:"step_order"`
	Code       string   `gorm:"size:64;not null;index:uniq_tpl_step,unique" json:"code"`
	Title      string   `gorm:"size:255;not null" json:"title"`
	Type       StepType `gorm:"size:10;not null" json:"type"`
	Required   bool     `gorm:"not null;default:true" json:"required"`
	OwnerRole  RunRole  `gorm:"size:10;not null;default:'shared'" json:"owner_role"`

	// Validator rules; all optional per type.
	MinValue       *decimal.Decimal `gorm:"type:decimal(14,2)" json:"min_value"`
	MaxValue       *decimal.Decimal `gorm:"type:decimal(14,2)" json:"max_value"`
	Norm           *decimal.Decimal `gorm:"type:decimal(14,2)" json:"norm"`
	DeltaThreshold *decimal.Decimal `gorm:"type:decimal(14,2)" json:"delta_threshold"`
	Regex          *string          `gorm:"size:255" json:"regex"`
	Hint           string           `gorm:"size:500" json:"hint"`
}

// GetTemplateWithSteps loads a template snapshot with its steps ordered.
func GetTemplateWithSteps(ctx context.Context, templateId int) (*Template, error) {
	db := config.GetDB()
	var tpl Template
	if err := db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order")
		}).
		Where("id = ?", templateId).
		First(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

// GetLatestTemplateForPhase resolves the current active template for a phase,
// used only at run creation when the phase map is frozen.
func GetLatestTemplateForPhase(ctx context.Context, phase string) (*Template, error) {
	db := config.GetDB()
	var tpl Template
	if err := db.WithContext(ctx).
		Where("phase = ? AND is_active = ?", phase, true).
		Order("version DESC").
		First(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &tpl, nil
}
