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
	"gorm.io/gorm"
)

const moduleReminder = "reminderWorkflow"

// ReminderSlot is one computed reminder time for a run's day.
type ReminderSlot struct {
	Label string // "HH:MM" shop-local, also the dedupe key
	At    time.Time
	Role  models.RunRole
	Final bool // escalation slot: managers are copied
}

// ComputeReminderSlots derives the day's slots from the shop schedule.
// Default: open_time-15min for the opener, close_time-30min for the closer.
// Shops with a custom slot list (dual-cash) get one slot per entry; the last
// entry is the escalating final slot. Slots before the midpoint of the
// working day target the opener, the rest the closer.
func ComputeReminderSlots(shop *models.Shop, date string) ([]ReminderSlot, error) {
	loc := shop.Location()
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, err
	}

	openAt, err := atClock(day, shop.OpenTime)
	if err != nil {
		return nil, fmt.Errorf("shop %d open_time: %w", shop.ID, err)
	}
	closeAt, err := atClock(day, shop.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("shop %d close_time: %w", shop.ID, err)
	}

	custom := shop.ReminderSlotList()
	if len(custom) == 0 {
		return []ReminderSlot{
			{Label: clockLabel(openAt.Add(-config.ReminderOpenOffset())), At: openAt.Add(-config.ReminderOpenOffset()), Role: models.RunRoleOpener},
			{Label: clockLabel(closeAt.Add(-config.ReminderCloseOffset())), At: closeAt.Add(-config.ReminderCloseOffset()), Role: models.RunRoleCloser},
		}, nil
	}

	midpoint := openAt.Add(closeAt.Sub(openAt) / 2)
	slots := make([]ReminderSlot, 0, len(custom))
	for i, c := range custom {
		at, err := atClock(day, c)
		if err != nil {
			return nil, fmt.Errorf("shop %d reminder slot %q: %w", shop.ID, c, err)
		}
		role := models.RunRoleOpener
		if !at.Before(midpoint) {
			role = models.RunRoleCloser
		}
		slots = append(slots, ReminderSlot{
			Label: clockLabel(at),
			At:    at,
			Role:  role,
			Final: i == len(custom)-1,
		})
	}
	return slots, nil
}

// DueSlots filters to slots whose time has passed within the tick tolerance
// and that were not already sent for this run.
func DueSlots(slots []ReminderSlot, sent map[string]bool, now time.Time) []ReminderSlot {
	tolerance := config.ReminderTickTolerance()
	var due []ReminderSlot
	for _, s := range slots {
		if sent[s.Label] {
			continue
		}
		age := now.Sub(s.At)
		if age < 0 || age > tolerance {
			continue
		}
		due = append(due, s)
	}
	return due
}

// TickReminders is the externally triggered scheduler tick. For every shop
// with an active run today it dispatches the due, unsent slots. Runs whose
// slot lock is held are skipped for this tick rather than blocked on.
func TickReminders(ctx context.Context, now time.Time) error {
	logger := config.GetLogger()
	locks := NewLockCoordinator()

	shops, err := listActiveShops(ctx)
	if err != nil {
		return err
	}

	var errCount int
	for _, shop := range shops {
		date := now.In(shop.Location()).Format("2006-01-02")

		run, err := models.GetActiveRun(ctx, shop.ID, date)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				continue
			}
			config.LogError(logger, moduleReminder, "TickReminders", "load run", shop.ID, err)
			errCount++
			continue
		}
		if run.Status != models.RunStatusOpened && run.Status != models.RunStatusInProgress {
			continue
		}

		if held, err := locks.IsHeld(ctx, shop.ID, date); err != nil {
			config.LogError(logger, moduleReminder, "TickReminders", "lock check", shop.ID, err)
			errCount++
			continue
		} else if held {
			// Under active mutation; next tick will catch up.
			continue
		}

		if err := remindRun(ctx, shop, run, now); err != nil {
			config.LogError(logger, moduleReminder, "TickReminders", "remind", run.ID, err)
			errCount++
		}
	}
	if errCount > 0 {
		return fmt.Errorf("reminder tick finished with %d errors", errCount)
	}
	return nil
}

func remindRun(ctx context.Context, shop *models.Shop, run *models.Run, now time.Time) error {
	slots, err := ComputeReminderSlots(shop, run.Date)
	if err != nil {
		return err
	}
	sent, err := models.SentSlotsForRun(ctx, run.ID)
	if err != nil {
		return err
	}
	due := DueSlots(slots, sent, now)
	if len(due) == 0 {
		return nil
	}

	steps, err := models.ListRunSteps(ctx, run.ID)
	if err != nil {
		return err
	}

	db := config.GetDB()
	for _, slot := range due {
		target, recipients, err := slotRecipients(ctx, shop, run, slot)
		if err != nil {
			return err
		}
		var managers []string
		if slot.Final {
			if managers, err = managerRecipients(ctx, shop); err != nil {
				return err
			}
		}
		pending, err := pendingStepCodes(ctx, run, slot.Role, steps)
		if err != nil {
			return err
		}
		body := reminderBody(shop, slot, pending)

		// Mark and enqueue in one transaction. The ReminderSent row goes in
		// FIRST: an overlapping tick that lost the race hits its unique index,
		// the whole transaction rolls back, and no duplicate notification is
		// ever enqueued. A failed enqueue also rolls the marker back, so the
		// slot is retried on the next tick.
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return dispatchSlot(&txSlotWriter{ctx: ctx, tx: tx, shop: shop, run: run},
				run, slot, target, recipients, managers, body, pending)
		})
		if errors.Is(err, errSlotAlreadySent) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// errSlotAlreadySent aborts a slot transaction when an overlapping tick won
// the (run, slot) marker race. Translated to a silent skip by the caller.
var errSlotAlreadySent = errors.New("reminder slot already sent")

// slotWriter is the transactional write surface of one slot dispatch.
type slotWriter interface {
	MarkSent(runId int, slot string) error
	Enqueue(target models.NotifyTarget, recipients []string, body string, payload map[string]any) error
}

type txSlotWriter struct {
	ctx  context.Context
	tx   *gorm.DB
	shop *models.Shop
	run  *models.Run
}

func (w *txSlotWriter) MarkSent(runId int, slot string) error {
	err := w.tx.Create(&models.ReminderSent{RunId: runId, Slot: slot}).Error
	if isDuplicateKeyErr(err) {
		return errSlotAlreadySent
	}
	return err
}

func (w *txSlotWriter) Enqueue(target models.NotifyTarget, recipients []string, body string, payload map[string]any) error {
	return models.EnqueueNotification(w.ctx, w.tx, models.NotifyKindReminder,
		target, w.shop.ID, w.run.ID, recipients, body, payload)
}

// dispatchSlot writes one due slot: the sent marker first, then the
// notification (plus the manager escalation on the final slot). Any error
// aborts the caller's transaction, keeping marker and enqueue atomic.
func dispatchSlot(w slotWriter, run *models.Run, slot ReminderSlot, target models.NotifyTarget, recipients []string, managers []string, body string, pending []string) error {
	if err := w.MarkSent(run.ID, slot.Label); err != nil {
		return err
	}
	if err := w.Enqueue(target, recipients, body, map[string]any{
		"slot": slot.Label, "role": slot.Role, "final": slot.Final,
		"pending_steps": pending,
	}); err != nil {
		return err
	}
	if slot.Final && len(managers) > 0 {
		if err := w.Enqueue(models.NotifyTargetManagers, managers,
			body+" (escalation)", map[string]any{
				"slot": slot.Label, "role": slot.Role, "final": true,
			}); err != nil {
			return err
		}
	}
	return nil
}

// slotRecipients picks the audience for one slot: the assigned role holder
// when there is one, otherwise the whole store whitelist.
func slotRecipients(ctx context.Context, shop *models.Shop, run *models.Run, slot ReminderSlot) (models.NotifyTarget, []string, error) {
	holderId := run.OpenerUserId
	if slot.Role == models.RunRoleCloser {
		holderId = run.CloserUserId
		if holderId == nil {
			// No closer yet; the opener covers the close reminder.
			holderId = run.OpenerUserId
		}
	}

	if holderId != nil {
		user, err := models.GetUserById(ctx, *holderId)
		if err != nil {
			return "", nil, err
		}
		if user.ChatId == "" {
			return models.NotifyTargetUser, nil, nil
		}
		return models.NotifyTargetUser, []string{user.ChatId}, nil
	}

	users, err := models.ListUsersByUsernames(ctx, shop.EmployeeList())
	if err != nil {
		return "", nil, err
	}
	var recipients []string
	for _, u := range users {
		if u.ChatId != "" {
			recipients = append(recipients, u.ChatId)
		}
	}
	return models.NotifyTargetStoreWhitelist, recipients, nil
}

// pendingStepCodes lists what the slot's role still has to do, for the
// message body.
func pendingStepCodes(ctx context.Context, run *models.Run, role models.RunRole, steps []*models.RunStep) ([]string, error) {
	done := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.Status == models.StepStatusOk || s.Status == models.StepStatusSkipped {
			done[s.Phase+"/"+s.StepCode] = true
		}
	}

	phaseMap, err := run.PhaseMap()
	if err != nil {
		return nil, err
	}
	var pending []string
	for phase := range phaseMap {
		defs, err := ResolveTemplateSteps(ctx, run, phase, role)
		if err != nil {
			return nil, err
		}
		for _, d := range defs {
			if d.Required && !done[phase+"/"+d.Code] {
				pending = append(pending, phase+"/"+d.Code)
			}
		}
	}
	return pending, nil
}

func reminderBody(shop *models.Shop, slot ReminderSlot, pending []string) string {
	body := fmt.Sprintf("Checklist reminder for %s (%s slot)", shop.Name, slot.Label)
	if len(pending) > 0 {
		body += ": pending " + strings.Join(pending, ", ")
	}
	return body
}

func atClock(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

func clockLabel(t time.Time) string {
	return t.Format("15:04")
}
