package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const moduleRunWorkflow = "runWorkflow"

// Role-assignment outcomes. Re-entry by the current holder is a no-op
// success, reported distinctly so the UI can phrase it.
const (
	AssignStatusAssigned      = "assigned"
	AssignStatusAlreadyHolder = "already_holder"
)

// RunStateMachine owns run status transitions, role assignment and step
// bookkeeping. Every mutation acquires the slot lock, validates before any
// persisted write, saves the run with its expected version, and releases the
// lock on every exit path.
type RunStateMachine struct {
	Locks *LockCoordinator
}

func NewRunStateMachine() *RunStateMachine {
	return &RunStateMachine{Locks: NewLockCoordinator()}
}

type StartRunResult struct {
	Run     *models.Run `json:"run"`
	Created bool        `json:"created"`
}

// StartRun creates the run for (shop, today-in-shop-tz) when the slot is
// free, or returns the existing active run. The caller must be whitelisted.
func (m *RunStateMachine) StartRun(ctx context.Context, shopId int, date string, username string) (*StartRunResult, error) {
	shop, err := loadShop(ctx, shopId)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = time.Now().In(shop.Location()).Format("2006-01-02")
	}
	if !shop.IsWhitelisted(username) {
		return nil, utils.NewValidationError("not-whitelisted", "user %s is not allowed in shop %d", username, shopId)
	}

	lock, err := m.Locks.Acquire(ctx, shopId, date)
	if err != nil {
		return nil, err
	}
	defer m.releaseLock(ctx, lock)

	if run, err := models.GetActiveRun(ctx, shopId, date); err == nil {
		return &StartRunResult{Run: run, Created: false}, nil
	} else if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	phaseMap, err := FreezePhaseMap(ctx, config.DefaultPhaseOrder)
	if err != nil {
		return nil, err
	}

	user, err := models.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	run := &models.Run{
		ShopId:  shopId,
		Date:    date,
		Status:  models.RunStatusOpened,
		SlotKey: utils.NewPtr(models.ActiveSlotKey(shopId, date)),
	}
	if err := run.SetPhaseMap(phaseMap); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			if isDuplicateKeyErr(err) {
				// Raced another starter despite the lock (stale lock takeover).
				return utils.ErrLockBusy
			}
			return err
		}
		return models.AppendAudit(ctx, tx, userIdOrNil(user), "run.start", "run", run.ID, map[string]any{
			"shop_id": shopId, "date": date, "username": username,
		})
	})
	if err != nil {
		return nil, err
	}
	return &StartRunResult{Run: run, Created: true}, nil
}

type AssignRoleResult struct {
	Run    *models.Run `json:"run"`
	Status string      `json:"status"`
}

// AssignRole claims opener or closer for the active run of (shop, date).
// Exactly one of two concurrent claimants wins; the loser gets ErrLockBusy
// from the slot lock or a role-taken validation error.
func (m *RunStateMachine) AssignRole(ctx context.Context, shopId int, date string, role models.RunRole, username string) (*AssignRoleResult, error) {
	if !models.IsAssignableRole(role) {
		return nil, utils.NewValidationError("invalid-role", "role must be opener or closer")
	}

	user, err := models.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewValidationError("unknown-user", "user %s is not registered", username)
		}
		return nil, err
	}

	lock, err := m.Locks.Acquire(ctx, shopId, date)
	if err != nil {
		return nil, err
	}
	defer m.releaseLock(ctx, lock)

	run, err := models.GetActiveRun(ctx, shopId, date)
	if err != nil {
		return nil, err
	}

	expected := run.Version
	status, err := applyAssignRole(run, role, user.ID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if status == AssignStatusAlreadyHolder {
		return &AssignRoleResult{Run: run, Status: status}, nil
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.SaveRunOptimistic(ctx, tx, run, expected); err != nil {
			return err
		}
		return models.AppendAudit(ctx, tx, &user.ID, "run.assign_role", "run", run.ID, map[string]any{
			"role": role, "username": username,
		})
	})
	if err != nil {
		return nil, err
	}
	return &AssignRoleResult{Run: run, Status: status}, nil
}

// HandoverRole atomically reassigns a held role to another user under the
// same slot lock. The outgoing holder's recorded steps remain untouched.
func (m *RunStateMachine) HandoverRole(ctx context.Context, shopId int, date string, role models.RunRole, newUsername string) (*models.Run, error) {
	if !models.IsAssignableRole(role) {
		return nil, utils.NewValidationError("invalid-role", "role must be opener or closer")
	}

	newUser, err := models.GetUserByUsername(ctx, newUsername)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewValidationError("unknown-user", "user %s is not registered", newUsername)
		}
		return nil, err
	}

	lock, err := m.Locks.Acquire(ctx, shopId, date)
	if err != nil {
		return nil, err
	}
	defer m.releaseLock(ctx, lock)

	run, err := models.GetActiveRun(ctx, shopId, date)
	if err != nil {
		return nil, err
	}

	expected := run.Version
	oldHolder, err := applyHandover(run, role, newUser.ID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.SaveRunOptimistic(ctx, tx, run, expected); err != nil {
			return err
		}
		return models.AppendAudit(ctx, tx, &newUser.ID, "run.handover", "run", run.ID, map[string]any{
			"role": role, "from_user_id": oldHolder, "to_username": newUsername,
		})
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

type SubmitStepInput struct {
	RunId          int
	Phase          string
	StepCode       string
	RawValue       string
	Comment        string
	Attachments    []AttachmentInput
	IdempotencyKey string
	Username       string
	Skip           bool
}

type AttachmentInput struct {
	FileRef string
	Kind    models.AttachmentKind
}

type SubmitStepResult struct {
	Step      *models.RunStep `json:"step"`
	Run       *models.Run     `json:"run"`
	Duplicate bool            `json:"duplicate"`
}

// SubmitStep applies one step write: slot lock, role-partitioned ownership
// check, pure validation, durable idempotency, version-checked run save.
// A repeat of the same idempotency key for the same run+step is a no-op
// success returning the persisted state.
func (m *RunStateMachine) SubmitStep(ctx context.Context, in SubmitStepInput) (*SubmitStepResult, error) {
	if in.IdempotencyKey == "" {
		return nil, utils.NewValidationError("missing-idempotency-key", "idempotency_key is required")
	}

	run, err := models.GetRunById(ctx, in.RunId)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return nil, utils.NewValidationError("run-not-active", "run %d is %s", run.ID, run.Status)
	}
	shop, err := loadShop(ctx, run.ShopId)
	if err != nil {
		return nil, err
	}

	user, err := models.GetUserByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewValidationError("unknown-user", "user %s is not registered", in.Username)
		}
		return nil, err
	}

	lock, err := m.Locks.Acquire(ctx, run.ShopId, run.Date)
	if err != nil {
		return nil, err
	}
	defer m.releaseLock(ctx, lock)

	// Reload under the lock; the pre-lock read may be stale.
	run, err = models.GetRunById(ctx, in.RunId)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return nil, utils.NewValidationError("run-not-active", "run %d is %s", run.ID, run.Status)
	}

	def, err := FindTemplateStep(ctx, run, in.Phase, in.StepCode)
	if err != nil {
		return nil, err
	}

	submitRole := submitterRole(run, user.ID)
	if def.OwnerRole != models.RunRoleShared && def.OwnerRole != submitRole {
		// Role partition: in dual-cash mode opener and closer own disjoint
		// step sets; a cross-role write is rejected before any mutation.
		return nil, utils.NewValidationError("wrong-role", "step %s belongs to %s", in.StepCode, def.OwnerRole)
	}

	var result *StepResult
	if in.Skip {
		if def.Required {
			return nil, utils.NewValidationError("step-required", "step %s cannot be skipped", in.StepCode)
		}
	} else {
		existingAtts, err := models.CountAttachments(ctx, run.ID, in.StepCode)
		if err != nil {
			return nil, err
		}
		result, err = ValidateStep(def, in.RawValue, in.Comment, int(existingAtts)+len(in.Attachments))
		if err != nil {
			return nil, err
		}
	}

	idemMessageId := fmt.Sprintf("%d:%s:%s:%s", run.ID, in.Phase, in.StepCode, in.IdempotencyKey)

	out := &SubmitStepResult{}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skip, err := BeginIdempotency(tx, "submit-step", idemMessageId)
		if err != nil {
			return err
		}
		if skip {
			out.Duplicate = true
			return nil
		}

		step, err := upsertStep(ctx, tx, run, def, in, result, user.ID, submitRole)
		if err != nil {
			return err
		}
		out.Step = step

		for _, att := range in.Attachments {
			kind := att.Kind
			if kind == "" {
				kind = models.AttachmentKindPhoto
			}
			if err := tx.Create(&models.Attachment{
				RunId:    run.ID,
				StepCode: in.StepCode,
				FileRef:  att.FileRef,
				Kind:     kind,
			}).Error; err != nil {
				return err
			}
		}

		if err := advanceRun(ctx, tx, run); err != nil {
			return err
		}

		if err := models.AppendAudit(ctx, tx, &user.ID, "run.submit_step", "run_step", step.ID, map[string]any{
			"run_id": run.ID, "phase": in.Phase, "step_code": in.StepCode,
			"status": step.Status, "delta": step.Delta,
		}); err != nil {
			return err
		}
		return MarkIdempotencySucceeded(tx, "submit-step", idemMessageId)
	})
	if err != nil {
		return nil, err
	}
	out.Run = run

	if out.Duplicate {
		// Return the persisted state for the duplicate ack.
		step, err := models.GetRunStep(ctx, run.ID, in.Phase, in.StepCode)
		if err == nil {
			out.Step = step
		}
		return out, nil
	}

	// Delta alerting is best-effort after commit; a failed alert never undoes
	// the step write.
	if out.Step != nil && !out.Step.Delta.IsZero() {
		if err := CheckDeltaAlert(ctx, shop, run, out.Step); err != nil {
			config.LogError(config.GetLogger(), moduleRunWorkflow, "SubmitStep", "delta alert", run.ID, err)
		}
	}
	return out, nil
}

// CloseRun finishes a ready run. Guards: the caller holds an assigned role,
// every mandatory step across all phases is ok or legitimately skipped, and
// at least one z_report attachment exists.
func (m *RunStateMachine) CloseRun(ctx context.Context, runId int, username string) (*models.Run, error) {
	run, err := models.GetRunById(ctx, runId)
	if err != nil {
		return nil, err
	}
	user, err := models.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewValidationError("unknown-user", "user %s is not registered", username)
		}
		return nil, err
	}

	lock, err := m.Locks.Acquire(ctx, run.ShopId, run.Date)
	if err != nil {
		return nil, err
	}
	defer m.releaseLock(ctx, lock)

	run, err = models.GetRunById(ctx, runId)
	if err != nil {
		return nil, err
	}

	_, missing, err := mandatoryStepsComplete(ctx, run)
	if err != nil {
		return nil, err
	}
	hasZ, err := models.HasAttachmentOfKind(ctx, run.ID, models.AttachmentKindZReport)
	if err != nil {
		return nil, err
	}

	expected := run.Version
	if err := applyClose(run, submitterRole(run, user.ID), missing, hasZ, time.Now().UTC()); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.SaveRunOptimistic(ctx, tx, run, expected); err != nil {
			return err
		}
		return models.AppendAudit(ctx, tx, &user.ID, "run.close", "run", run.ID, map[string]any{
			"delta_total": run.DeltaTotal,
		})
	})
	if err != nil {
		return nil, err
	}

	// Closing ends the alert window for the run.
	ResetDeltaAlertCooldown(run.ID)
	return run, nil
}

// ReturnRun is the manager override: reachable from any non-terminal state,
// requires a reason, clears the active user and frees the slot for a fresh
// run. History is preserved.
func (m *RunStateMachine) ReturnRun(ctx context.Context, runId int, reason string, username string) (*models.Run, error) {
	user, err := models.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewValidationError("unknown-user", "user %s is not registered", username)
		}
		return nil, err
	}

	run, err := models.GetRunById(ctx, runId)
	if err != nil {
		return nil, err
	}

	lock, err := m.Locks.Acquire(ctx, run.ShopId, run.Date)
	if err != nil {
		return nil, err
	}
	defer m.releaseLock(ctx, lock)

	run, err = models.GetRunById(ctx, runId)
	if err != nil {
		return nil, err
	}

	expected := run.Version
	if err := applyReturn(run, reason, user.Role, time.Now().UTC()); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.SaveRunOptimistic(ctx, tx, run, expected); err != nil {
			return err
		}
		return models.AppendAudit(ctx, tx, &user.ID, "run.return", "run", run.ID, map[string]any{
			"reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	ResetDeltaAlertCooldown(run.ID)
	return run, nil
}

type RunStatusView struct {
	Run         *models.Run       `json:"run"`
	Steps       []*models.RunStep `json:"steps"`
	Attachments int               `json:"attachments"`
}

// RunStatus is the lock-free read: it may observe state that changes right
// after the read, which is acceptable for an informational query.
func (m *RunStateMachine) RunStatus(ctx context.Context, shopId int, date string) (*RunStatusView, error) {
	if date == "" {
		shop, err := loadShop(ctx, shopId)
		if err != nil {
			return nil, err
		}
		date = time.Now().In(shop.Location()).Format("2006-01-02")
	}
	run, err := models.GetActiveRun(ctx, shopId, date)
	if err != nil {
		return nil, err
	}
	steps, err := models.ListRunSteps(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	atts, err := models.ListAttachments(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return &RunStatusView{Run: run, Steps: steps, Attachments: len(atts)}, nil
}

func (m *RunStateMachine) releaseLock(ctx context.Context, lock *RunLock) {
	if err := m.Locks.Release(ctx, lock); err != nil {
		config.LogError(config.GetLogger(), moduleRunWorkflow, "releaseLock", "release", nil, err)
	}
}

func upsertStep(ctx context.Context, tx *gorm.DB, run *models.Run, def *models.TemplateStep, in SubmitStepInput, result *StepResult, userId int, role models.RunRole) (*models.RunStep, error) {
	var step models.RunStep
	err := tx.WithContext(ctx).
		Where("run_id = ? AND phase = ? AND step_code = ?", run.ID, in.Phase, in.StepCode).
		First(&step).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	isNew := errors.Is(err, gorm.ErrRecordNotFound)

	step.RunId = run.ID
	step.Phase = in.Phase
	step.StepCode = in.StepCode
	step.OwnerRole = def.OwnerRole
	step.Comment = in.Comment
	step.PerformerUserId = &userId
	step.IdempotencyKey = in.IdempotencyKey

	if in.Skip {
		step.Status = models.StepStatusSkipped
		step.ValueNumber = nil
		step.ValueText = nil
		step.ValueCheck = nil
		step.Delta = decimal.Zero
	} else {
		step.Status = models.StepStatusOk
		step.ValueNumber = result.ValueNumber
		step.ValueText = result.ValueText
		step.ValueCheck = result.ValueCheck
		step.Delta = result.Delta
	}

	if isNew {
		if err := tx.Create(&step).Error; err != nil {
			return nil, err
		}
	} else {
		if err := tx.Save(&step).Error; err != nil {
			return nil, err
		}
	}
	return &step, nil
}

// advanceRun recomputes the accumulated delta and moves the status forward:
// opened -> in_progress on the first step write, in_progress ->
// ready_to_close once everything mandatory is done and a z_report exists.
// Saved with the version loaded under the lock.
func advanceRun(ctx context.Context, tx *gorm.DB, run *models.Run) error {
	var total decimal.NullDecimal
	if err := tx.WithContext(ctx).Model(&models.RunStep{}).
		Where("run_id = ?", run.ID).
		Select("SUM(delta)").
		Scan(&total).Error; err != nil {
		return err
	}

	expected := run.Version
	if total.Valid {
		run.DeltaTotal = total.Decimal
	} else {
		run.DeltaTotal = decimal.Zero
	}

	var mandatoryDone, hasZ bool
	if run.Status == models.RunStatusOpened || run.Status == models.RunStatusInProgress {
		complete, _, err := mandatoryStepsCompleteTx(ctx, tx, run)
		if err != nil {
			return err
		}
		mandatoryDone = complete
		if complete {
			var zCount int64
			if err := tx.WithContext(ctx).Model(&models.Attachment{}).
				Where("run_id = ? AND kind = ?", run.ID, models.AttachmentKindZReport).
				Count(&zCount).Error; err != nil {
				return err
			}
			hasZ = zCount > 0
		}
	}
	applyProgress(run, mandatoryDone, hasZ)
	return models.SaveRunOptimistic(ctx, tx, run, expected)
}

// Pure transition functions. Each one is applied to a run loaded under the
// slot lock; the caller persists the result with the version it loaded.

// applyAssignRole claims opener or closer. Re-entry by the current holder is
// a distinct no-op status; a held role is a validation error.
func applyAssignRole(run *models.Run, role models.RunRole, userId int, now time.Time) (string, error) {
	if run.Status.IsTerminal() {
		return "", utils.NewValidationError("run-not-active", "run %d is %s", run.ID, run.Status)
	}
	holder := roleHolder(run, role)
	if holder != nil && *holder == userId {
		return AssignStatusAlreadyHolder, nil
	}
	if holder != nil {
		return "", utils.NewValidationError("role-taken", "%s already assigned for run %d", role, run.ID)
	}
	setRoleHolder(run, role, userId, now)
	run.CurrentActiveUserId = &userId
	return AssignStatusAssigned, nil
}

// applyHandover reassigns a held role. Returns the outgoing holder's id.
func applyHandover(run *models.Run, role models.RunRole, newUserId int, now time.Time) (int, error) {
	if run.Status.IsTerminal() {
		return 0, utils.NewValidationError("run-not-active", "run %d is %s", run.ID, run.Status)
	}
	holder := roleHolder(run, role)
	if holder == nil {
		return 0, utils.NewValidationError("role-unassigned", "%s is not assigned for run %d", role, run.ID)
	}
	oldHolder := *holder
	setRoleHolder(run, role, newUserId, now)
	run.CurrentActiveUserId = &newUserId
	return oldHolder, nil
}

// applyClose finishes a run once every guard holds: the caller has a role,
// nothing mandatory is missing, and a z_report is attached. Frees the slot.
func applyClose(run *models.Run, holderRole models.RunRole, missing []string, hasZReport bool, now time.Time) error {
	if run.Status.IsTerminal() {
		return utils.NewValidationError("run-not-active", "run %d is %s", run.ID, run.Status)
	}
	if holderRole == "" {
		return utils.NewValidationError("wrong-role", "caller holds no role in run %d", run.ID)
	}
	if len(missing) > 0 {
		return utils.NewValidationError("steps-incomplete", "pending mandatory steps: %s", strings.Join(missing, ", "))
	}
	if !hasZReport {
		return utils.NewValidationError("missing-z-report", "close requires a z_report attachment")
	}
	run.Status = models.RunStatusClosed
	run.SlotKey = nil
	run.CurrentActiveUserId = nil
	run.FinishedAt = &now
	return nil
}

// applyReturn is the manager override: any non-terminal state, reason
// required, slot freed for a fresh run.
func applyReturn(run *models.Run, reason string, byRole models.UserRole, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return utils.NewValidationError("missing-reason", "return requires a reason")
	}
	if byRole != models.UserRoleManager && byRole != models.UserRoleAdmin {
		return utils.NewValidationError("not-manager", "only managers may return a run")
	}
	if run.Status.IsTerminal() {
		return utils.NewValidationError("run-not-active", "run %d is %s", run.ID, run.Status)
	}
	run.Status = models.RunStatusReturned
	run.SlotKey = nil
	run.CurrentActiveUserId = nil
	run.Comment = reason
	run.FinishedAt = &now
	return nil
}

// applyProgress moves the run forward after a step write: the first write
// takes opened to in_progress; once everything mandatory is done and a
// z_report exists the run becomes ready_to_close. The active-user marker only
// has meaning while the run is in_progress, so it is cleared on that edge.
func applyProgress(run *models.Run, mandatoryDone, hasZReport bool) {
	if run.Status == models.RunStatusOpened {
		run.Status = models.RunStatusInProgress
	}
	if run.Status == models.RunStatusInProgress && mandatoryDone && hasZReport {
		run.Status = models.RunStatusReadyToClose
		run.CurrentActiveUserId = nil
	}
}

func mandatoryStepsComplete(ctx context.Context, run *models.Run) (bool, []string, error) {
	return mandatoryStepsCompleteTx(ctx, config.GetDB(), run)
}

func mandatoryStepsCompleteTx(ctx context.Context, tx *gorm.DB, run *models.Run) (bool, []string, error) {
	phaseMap, err := run.PhaseMap()
	if err != nil {
		return false, nil, err
	}

	var steps []*models.RunStep
	if err := tx.WithContext(ctx).Where("run_id = ?", run.ID).Find(&steps).Error; err != nil {
		return false, nil, err
	}
	done := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.Status == models.StepStatusOk || s.Status == models.StepStatusSkipped {
			done[s.Phase+"/"+s.StepCode] = true
		}
	}

	var missing []string
	for phase := range phaseMap {
		defs, err := ResolveTemplateSteps(ctx, run, phase, models.RunRoleShared)
		if err != nil {
			return false, nil, err
		}
		for _, d := range defs {
			if d.Required && !done[phase+"/"+d.Code] {
				missing = append(missing, phase+"/"+d.Code)
			}
		}
	}
	return len(missing) == 0, missing, nil
}

func loadShop(ctx context.Context, shopId int) (*models.Shop, error) {
	db := config.GetDB()
	var shop models.Shop
	if err := db.WithContext(ctx).Where("id = ?", shopId).First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &shop, nil
}

func roleHolder(run *models.Run, role models.RunRole) *int {
	if role == models.RunRoleOpener {
		return run.OpenerUserId
	}
	return run.CloserUserId
}

func setRoleHolder(run *models.Run, role models.RunRole, userId int, at time.Time) {
	if role == models.RunRoleOpener {
		run.OpenerUserId = &userId
		run.OpenerAt = &at
	} else {
		run.CloserUserId = &userId
		run.CloserAt = &at
	}
}

// submitterRole maps a user to the role they hold in the run, "" when none.
func submitterRole(run *models.Run, userId int) models.RunRole {
	if run.OpenerUserId != nil && *run.OpenerUserId == userId {
		return models.RunRoleOpener
	}
	if run.CloserUserId != nil && *run.CloserUserId == userId {
		return models.RunRoleCloser
	}
	return ""
}

func userIdOrNil(u *models.User) *int {
	if u == nil {
		return nil
	}
	return &u.ID
}
