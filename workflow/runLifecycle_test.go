package workflow

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
)

// NOTE: These tests are DB-free. They drive the production transition
// functions (applyAssignRole, applyHandover, applyClose, applyReturn,
// applyProgress) that RunStateMachine applies to a run loaded under the slot
// lock. Slot uniqueness, the version CAS and durable idempotency are enforced
// by MySQL (unique indexes, WHERE version = ?); their app-side error mapping
// is covered here and in the duplicate-key test below. Full DB+Redis
// integration tests should be added in an environment that can run both.

func activeRun() *models.Run {
	return &models.Run{
		ID:      1,
		ShopId:  7,
		Date:    "2026-08-20",
		Status:  models.RunStatusOpened,
		Version: 1,
		SlotKey: utils.NewPtr(models.ActiveSlotKey(7, "2026-08-20")),
	}
}

func validationReason(t *testing.T, err error) string {
	t.Helper()
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	return ve.Reason
}

func TestAssignRole_ConcurrentClaim_OneWinner(t *testing.T) {
	now := time.Now().UTC()
	for round := 0; round < 100; round++ {
		run := activeRun()
		// The slot lock serializes claimants in production; a mutex stands
		// in for it here. The transition itself decides who wins.
		var slotLock sync.Mutex
		var wg sync.WaitGroup
		results := make(chan string, 2)
		for userId := 1; userId <= 2; userId++ {
			wg.Add(1)
			go func(uid int) {
				defer wg.Done()
				slotLock.Lock()
				defer slotLock.Unlock()
				status, err := applyAssignRole(run, models.RunRoleOpener, uid, now)
				if err == nil {
					results <- status
				}
			}(userId)
		}
		wg.Wait()
		close(results)

		var assigned int
		for s := range results {
			if s == AssignStatusAssigned {
				assigned++
			}
		}
		if assigned != 1 {
			t.Fatalf("round %d: %d winners", round, assigned)
		}
		if run.OpenerUserId == nil {
			t.Fatalf("round %d: opener not recorded", round)
		}
	}
}

func TestAssignRole_ReentryIsAlreadyHolder(t *testing.T) {
	run := activeRun()
	now := time.Now().UTC()

	status, err := applyAssignRole(run, models.RunRoleOpener, 42, now)
	if err != nil || status != AssignStatusAssigned {
		t.Fatalf("first claim: %s %v", status, err)
	}
	if run.CurrentActiveUserId == nil || *run.CurrentActiveUserId != 42 {
		t.Fatalf("active user = %v", run.CurrentActiveUserId)
	}

	status, err = applyAssignRole(run, models.RunRoleOpener, 42, now)
	if err != nil || status != AssignStatusAlreadyHolder {
		t.Fatalf("re-entry: %s %v", status, err)
	}

	if _, err := applyAssignRole(run, models.RunRoleOpener, 43, now); validationReason(t, err) != "role-taken" {
		t.Fatalf("second claimant: %v", err)
	}
}

func TestAssignRole_TerminalRunRejected(t *testing.T) {
	now := time.Now().UTC()
	for _, status := range []models.RunStatus{models.RunStatusClosed, models.RunStatusReturned} {
		run := activeRun()
		run.Status = status
		if _, err := applyAssignRole(run, models.RunRoleCloser, 1, now); validationReason(t, err) != "run-not-active" {
			t.Fatalf("%s: %v", status, err)
		}
	}
}

func TestHandover(t *testing.T) {
	run := activeRun()
	now := time.Now().UTC()

	if _, err := applyHandover(run, models.RunRoleOpener, 2, now); validationReason(t, err) != "role-unassigned" {
		t.Fatalf("unassigned handover: %v", err)
	}

	if _, err := applyAssignRole(run, models.RunRoleOpener, 1, now); err != nil {
		t.Fatal(err)
	}
	oldHolder, err := applyHandover(run, models.RunRoleOpener, 2, now)
	if err != nil {
		t.Fatal(err)
	}
	if oldHolder != 1 {
		t.Fatalf("old holder = %d", oldHolder)
	}
	if run.OpenerUserId == nil || *run.OpenerUserId != 2 {
		t.Fatalf("opener = %v", run.OpenerUserId)
	}
	if run.CurrentActiveUserId == nil || *run.CurrentActiveUserId != 2 {
		t.Fatalf("active user = %v", run.CurrentActiveUserId)
	}

	run.Status = models.RunStatusClosed
	if _, err := applyHandover(run, models.RunRoleOpener, 3, now); validationReason(t, err) != "run-not-active" {
		t.Fatalf("terminal handover: %v", err)
	}
}

func TestCloseGuards(t *testing.T) {
	now := time.Now().UTC()
	run := activeRun()
	run.Status = models.RunStatusReadyToClose

	// Caller holds no role.
	if err := applyClose(run, "", nil, true, now); validationReason(t, err) != "wrong-role" {
		t.Fatalf("no role: %v", err)
	}

	// Mandatory steps pending.
	missing := []string{"close/cash_close", "close/z_report_photo"}
	if err := applyClose(run, models.RunRoleCloser, missing, true, now); validationReason(t, err) != "steps-incomplete" {
		t.Fatalf("incomplete close: %v", err)
	}

	// Steps done but no z_report attachment.
	if err := applyClose(run, models.RunRoleCloser, nil, false, now); validationReason(t, err) != "missing-z-report" {
		t.Fatalf("close without z_report: %v", err)
	}

	// All guards hold: terminal state, slot freed, active user cleared.
	run.CurrentActiveUserId = utils.NewPtr(9)
	if err := applyClose(run, models.RunRoleCloser, nil, true, now); err != nil {
		t.Fatalf("valid close: %v", err)
	}
	if run.Status != models.RunStatusClosed {
		t.Fatalf("status = %s", run.Status)
	}
	if run.SlotKey != nil {
		t.Fatalf("slot key not freed: %v", *run.SlotKey)
	}
	if run.CurrentActiveUserId != nil {
		t.Fatalf("active user not cleared: %v", *run.CurrentActiveUserId)
	}
	if run.FinishedAt == nil {
		t.Fatal("finished_at not set")
	}

	// Closing twice is rejected.
	if err := applyClose(run, models.RunRoleCloser, nil, true, now); validationReason(t, err) != "run-not-active" {
		t.Fatalf("double close: %v", err)
	}
}

func TestReturnRun(t *testing.T) {
	now := time.Now().UTC()

	run := activeRun()
	if err := applyReturn(run, "  ", models.UserRoleManager, now); validationReason(t, err) != "missing-reason" {
		t.Fatalf("blank reason: %v", err)
	}
	if err := applyReturn(run, "register mismatch", models.UserRoleEmployee, now); validationReason(t, err) != "not-manager" {
		t.Fatalf("employee return: %v", err)
	}

	// Reachable from any non-terminal state.
	for _, status := range []models.RunStatus{models.RunStatusOpened, models.RunStatusInProgress, models.RunStatusReadyToClose} {
		run := activeRun()
		run.Status = status
		run.CurrentActiveUserId = utils.NewPtr(5)
		if err := applyReturn(run, "register mismatch", models.UserRoleManager, now); err != nil {
			t.Fatalf("%s: %v", status, err)
		}
		if run.Status != models.RunStatusReturned {
			t.Fatalf("status = %s", run.Status)
		}
		if run.Comment != "register mismatch" {
			t.Fatalf("comment = %q", run.Comment)
		}
		if run.SlotKey != nil || run.CurrentActiveUserId != nil {
			t.Fatal("slot or active user not released")
		}
	}

	run = activeRun()
	run.Status = models.RunStatusClosed
	if err := applyReturn(run, "register mismatch", models.UserRoleAdmin, now); validationReason(t, err) != "run-not-active" {
		t.Fatalf("closed return: %v", err)
	}
}

func TestProgress(t *testing.T) {
	// First step write moves opened forward.
	run := activeRun()
	applyProgress(run, false, false)
	if run.Status != models.RunStatusInProgress {
		t.Fatalf("status = %s", run.Status)
	}

	// Everything done but no z_report: stays in_progress, holder kept.
	run.CurrentActiveUserId = utils.NewPtr(5)
	applyProgress(run, true, false)
	if run.Status != models.RunStatusInProgress || run.CurrentActiveUserId == nil {
		t.Fatalf("status = %s, active user = %v", run.Status, run.CurrentActiveUserId)
	}

	// Mandatory done + z_report: ready_to_close, and the active-user marker
	// goes away with the in_progress state it belongs to.
	applyProgress(run, true, true)
	if run.Status != models.RunStatusReadyToClose {
		t.Fatalf("status = %s", run.Status)
	}
	if run.CurrentActiveUserId != nil {
		t.Fatalf("active user survived in_progress: %v", *run.CurrentActiveUserId)
	}

	// Already ready: stays put.
	applyProgress(run, true, true)
	if run.Status != models.RunStatusReadyToClose {
		t.Fatalf("status = %s", run.Status)
	}
}

func TestDuplicateKeyDetection(t *testing.T) {
	dup := &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !isDuplicateKeyErr(dup) {
		t.Fatal("1062 not detected")
	}
	if !isDuplicateKeyErr(fmt.Errorf("create run: %w", dup)) {
		t.Fatal("wrapped 1062 not detected")
	}
	if isDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1213}) {
		t.Fatal("deadlock misread as duplicate")
	}
	if isDuplicateKeyErr(errors.New("duplicate entry")) {
		t.Fatal("plain error misread as duplicate")
	}
	if isDuplicateKeyErr(nil) {
		t.Fatal("nil misread as duplicate")
	}
}
