package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Run is one shift-checklist instance for a (shop, date) slot.
//
// Slot invariant: at most one Run with an active status per (shop_id, date).
// SlotKey is "{shop_id}:{date}:active" while the run is active and is cleared
// (set NULL) on transition to closed/returned, so the unique index on it
// enforces the invariant at the DB level while keeping full history.
type Run struct {
	ID     int       `gorm:"primary_key" json:"id"`
	ShopId int       `gorm:"not null;index:idx_run_shop_date" json:"shop_id"`
	Date   string    `gorm:"size:10;not null;index:idx_run_shop_date" json:"date"` // YYYY-MM-DD, shop-local
	Status RunStatus `gorm:"size:20;not null;index" json:"status"`

	// NULL once the run is terminal; unique while active.
	SlotKey *string `gorm:"size:32;uniqueIndex" json:"-"`

	OpenerUserId *int       `json:"opener_user_id"`
	OpenerAt     *time.Time `json:"opener_at"`
	CloserUserId *int       `json:"closer_user_id"`
	CloserAt     *time.Time `json:"closer_at"`

	// CurrentActiveUserId is non-nil only while status is opened/in_progress;
	// cleared on terminal transition and on handover.
	CurrentActiveUserId *int `json:"current_active_user_id"`

	// TemplatePhaseMap freezes phase -> template id at run creation. Later
	// template edits never change an in-flight run's required steps.
	TemplatePhaseMap []byte `gorm:"type:json" json:"template_phase_map"`

	DeltaTotal decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"delta_total"`
	Comment    string          `gorm:"type:text" json:"comment"` // return reason

	// Version increments on every persisted mutation; saves carry the
	// expected value and abort on mismatch.
	Version int `gorm:"not null;default:1" json:"version"`

	FinishedAt *time.Time `json:"finished_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ActiveSlotKey(shopId int, date string) string {
	return utils.SlotKey(shopId, date)
}

func (r *Run) PhaseMap() (map[string]int, error) {
	m := make(map[string]int)
	if len(r.TemplatePhaseMap) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(r.TemplatePhaseMap, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Run) SetPhaseMap(m map[string]int) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	r.TemplatePhaseMap = b
	return nil
}

// GetActiveRun returns the single active run for the slot, or
// ErrorRecordNotFound when the slot is free.
func GetActiveRun(ctx context.Context, shopId int, date string) (*Run, error) {
	db := config.GetDB()
	var run Run
	key := ActiveSlotKey(shopId, date)
	if err := db.WithContext(ctx).Where("slot_key = ?", key).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &run, nil
}

func GetRunById(ctx context.Context, runId int) (*Run, error) {
	db := config.GetDB()
	var run Run
	if err := db.WithContext(ctx).Where("id = ?", runId).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &run, nil
}

// SaveRunOptimistic persists the run guarded by the version it was loaded
// with. On success the in-memory Version is already the incremented one.
// Returns ErrConcurrencyConflict when another writer got there first.
func SaveRunOptimistic(ctx context.Context, tx *gorm.DB, run *Run, expectedVersion int) error {
	run.Version = expectedVersion + 1
	result := tx.WithContext(ctx).Model(&Run{}).
		Where("id = ? AND version = ?", run.ID, expectedVersion).
		Select("*").Omit("id", "created_at").
		Updates(run)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		run.Version = expectedVersion
		return utils.ErrConcurrencyConflict
	}
	return nil
}

// ListActiveRunsForDate returns every active run for the given shop-local
// date, joined load for the tick loops.
func ListActiveRunsForDate(ctx context.Context, date string) ([]*Run, error) {
	db := config.GetDB()
	var runs []*Run
	if err := db.WithContext(ctx).
		Where("date = ? AND status IN ?", date,
			[]RunStatus{RunStatusOpened, RunStatusInProgress, RunStatusReadyToClose}).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// ListRunsForRange returns closed and returned runs for export, oldest first.
// shopId 0 means all shops.
func ListRunsForRange(ctx context.Context, shopId int, dateFrom string, dateTo string) ([]*Run, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("date >= ? AND date <= ?", dateFrom, dateTo)
	if shopId != 0 {
		dbCtx = dbCtx.Where("shop_id = ?", shopId)
	}
	var runs []*Run
	if err := dbCtx.Order("shop_id, date, id").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
