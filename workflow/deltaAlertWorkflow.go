package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const moduleDeltaAlert = "deltaAlertWorkflow"

// CheckDeltaAlert runs after every step write with a nonzero delta. An alert
// fires when |delta| reaches the threshold and no alert fired for this run
// within the cooldown window. Cooldown is per run, not per step: rapid large
// deltas across steps of one run produce exactly one alert per window.
func CheckDeltaAlert(ctx context.Context, shop *models.Shop, run *models.Run, step *models.RunStep) error {
	threshold := config.DeltaThreshold()

	if step.Delta.Abs().LessThan(threshold) {
		// Below threshold; if the run total also dropped back under, clear
		// the suppression flag so the next breach alerts immediately.
		if run.DeltaTotal.Abs().LessThan(threshold) {
			ResetDeltaAlertCooldown(run.ID)
		}
		return nil
	}

	_, err := claimDeltaAlertWindow(run.ID, func() error {
		return enqueueDeltaAlert(ctx, shop, run, step)
	})
	return err
}

// claimDeltaAlertWindow takes the per-run cooldown via SETNX and runs send
// while holding it. A failed send releases the claim so the alert is not
// silently suppressed for the whole window; a lost claim is a silent skip.
func claimDeltaAlertWindow(runId int, send func() error) (bool, error) {
	won, err := config.SetRedisValueNX(
		utils.DeltaAlertCooldownKey(runId),
		time.Now().UTC().Format(time.RFC3339),
		config.DeltaAlertCooldown(),
	)
	if err != nil {
		return false, utils.NewDependencyError("redis", err)
	}
	if !won {
		// Suppressed: a prior alert for this run is inside the cooldown.
		return false, nil
	}
	if err := send(); err != nil {
		ResetDeltaAlertCooldown(runId)
		return true, err
	}
	return true, nil
}

func enqueueDeltaAlert(ctx context.Context, shop *models.Shop, run *models.Run, step *models.RunStep) error {
	body := fmt.Sprintf("Delta alert: shop %s, step %s, delta %s (total %s)",
		shop.Name, step.StepCode, step.Delta.StringFixed(2), run.DeltaTotal.StringFixed(2))

	payload := map[string]any{
		"shop_id":     shop.ID,
		"run_id":      run.ID,
		"step_code":   step.StepCode,
		"delta":       step.Delta,
		"delta_total": run.DeltaTotal,
	}
	if shop.DualCashMode {
		role, err := dominantDeltaRole(ctx, run.ID)
		if err != nil {
			config.LogError(config.GetLogger(), moduleDeltaAlert, "enqueueDeltaAlert", "dominant role", run.ID, err)
		} else if role != "" {
			payload["contributing_role"] = role
			body += fmt.Sprintf(", contributed by %s", role)
		}
	}

	recipients, err := managerRecipients(ctx, shop)
	if err != nil {
		return err
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return models.EnqueueNotification(ctx, tx, models.NotifyKindDeltaAlert,
			models.NotifyTargetManagers, shop.ID, run.ID, recipients, body, payload)
	})
}

// TickDeltaAlerts sweeps active runs whose accumulated delta breached the
// threshold without a step-write trigger (e.g. after a replayed import).
func TickDeltaAlerts(ctx context.Context, now time.Time) error {
	threshold := config.DeltaThreshold()
	logger := config.GetLogger()

	shops, err := listActiveShops(ctx)
	if err != nil {
		return err
	}
	var errCount int
	for _, s := range shops {
		date := now.In(s.Location()).Format("2006-01-02")
		run, err := models.GetActiveRun(ctx, s.ID, date)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				continue
			}
			config.LogError(logger, moduleDeltaAlert, "TickDeltaAlerts", "load run", s.ID, err)
			errCount++
			continue
		}
		if run.DeltaTotal.Abs().LessThan(threshold) {
			continue
		}

		steps, err := models.ListRunSteps(ctx, run.ID)
		if err != nil {
			config.LogError(logger, moduleDeltaAlert, "TickDeltaAlerts", "load steps", run.ID, err)
			errCount++
			continue
		}
		trigger := largestDeltaStep(steps)
		if trigger == nil {
			continue
		}
		if err := CheckDeltaAlert(ctx, s, run, trigger); err != nil {
			config.LogError(logger, moduleDeltaAlert, "TickDeltaAlerts", "alert", run.ID, err)
			errCount++
		}
	}
	if errCount > 0 {
		return fmt.Errorf("delta alert tick finished with %d errors", errCount)
	}
	return nil
}

// ResetDeltaAlertCooldown clears the suppression flag; called on run close,
// return, and when the run total drops back under the threshold.
func ResetDeltaAlertCooldown(runId int) {
	if err := config.RemoveRedisKey(utils.DeltaAlertCooldownKey(runId)); err != nil {
		config.LogError(config.GetLogger(), moduleDeltaAlert, "ResetDeltaAlertCooldown", "del", runId, err)
	}
}

// dominantDeltaRole picks the role with the larger absolute delta sum, for
// dual-cash stores where opener and closer fill disjoint step sets.
func dominantDeltaRole(ctx context.Context, runId int) (models.RunRole, error) {
	steps, err := models.ListRunSteps(ctx, runId)
	if err != nil {
		return "", err
	}
	sums := map[models.RunRole]decimal.Decimal{}
	for _, s := range steps {
		sums[s.OwnerRole] = sums[s.OwnerRole].Add(s.Delta.Abs())
	}
	if sums[models.RunRoleOpener].GreaterThanOrEqual(sums[models.RunRoleCloser]) {
		if sums[models.RunRoleOpener].IsZero() {
			return "", nil
		}
		return models.RunRoleOpener, nil
	}
	return models.RunRoleCloser, nil
}

func largestDeltaStep(steps []*models.RunStep) *models.RunStep {
	var best *models.RunStep
	for _, s := range steps {
		if s.Delta.IsZero() {
			continue
		}
		if best == nil || s.Delta.Abs().GreaterThan(best.Delta.Abs()) {
			best = s
		}
	}
	return best
}

// managerRecipients resolves the alert audience: shop managers' chat ids
// plus the global manager channel list.
func managerRecipients(ctx context.Context, shop *models.Shop) ([]string, error) {
	users, err := models.ListUsersByUsernames(ctx, shop.ManagerList())
	if err != nil {
		return nil, err
	}
	var recipients []string
	seen := map[string]bool{}
	for _, u := range users {
		if u.ChatId != "" && !seen[u.ChatId] {
			recipients = append(recipients, u.ChatId)
			seen[u.ChatId] = true
		}
	}
	for _, id := range config.ManagerChatIds() {
		if !seen[id] {
			recipients = append(recipients, id)
			seen[id] = true
		}
	}
	return recipients, nil
}

func listActiveShops(ctx context.Context) ([]*models.Shop, error) {
	db := config.GetDB()
	var shops []*models.Shop
	if err := db.WithContext(ctx).Where("is_active = ?", true).Find(&shops).Error; err != nil {
		return nil, err
	}
	return shops, nil
}
