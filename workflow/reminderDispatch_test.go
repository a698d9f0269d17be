package workflow

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
)

// recordingSlotWriter captures the write order of one slot dispatch so the
// tests can assert the sent marker always lands before any notification.
type recordingSlotWriter struct {
	calls     []string
	dupOnMark bool
}

func (w *recordingSlotWriter) MarkSent(runId int, slot string) error {
	w.calls = append(w.calls, "mark:"+slot)
	if w.dupOnMark {
		return errSlotAlreadySent
	}
	return nil
}

func (w *recordingSlotWriter) Enqueue(target models.NotifyTarget, recipients []string, body string, payload map[string]any) error {
	w.calls = append(w.calls, "enqueue:"+string(target))
	return nil
}

func reminderTestSlot(final bool) ReminderSlot {
	return ReminderSlot{Label: "21:30", At: time.Now(), Role: models.RunRoleCloser, Final: final}
}

func TestDispatchSlot_MarksBeforeEnqueue(t *testing.T) {
	w := &recordingSlotWriter{}
	run := &models.Run{ID: 11}

	err := dispatchSlot(w, run, reminderTestSlot(false), models.NotifyTargetUser,
		[]string{"chat-1"}, nil, "reminder", []string{"close/cash_close"})
	if err != nil {
		t.Fatal(err)
	}
	if len(w.calls) != 2 || w.calls[0] != "mark:21:30" || w.calls[1] != "enqueue:user" {
		t.Fatalf("calls = %v", w.calls)
	}
}

func TestDispatchSlot_DuplicateAbortsBeforeAnyEnqueue(t *testing.T) {
	// An overlapping tick already inserted the (run, slot) marker: the unique
	// index fires on MarkSent, the dispatch aborts, and nothing is enqueued.
	// The caller rolls the transaction back and skips the slot silently.
	w := &recordingSlotWriter{dupOnMark: true}
	run := &models.Run{ID: 11}

	err := dispatchSlot(w, run, reminderTestSlot(true), models.NotifyTargetUser,
		[]string{"chat-1"}, []string{"mgr-1"}, "reminder", nil)
	if !errors.Is(err, errSlotAlreadySent) {
		t.Fatalf("err = %v", err)
	}
	for _, c := range w.calls {
		if c != "mark:21:30" {
			t.Fatalf("write after duplicate marker: %v", w.calls)
		}
	}
}

func TestDispatchSlot_FinalSlotEscalatesToManagers(t *testing.T) {
	w := &recordingSlotWriter{}
	run := &models.Run{ID: 11}

	err := dispatchSlot(w, run, reminderTestSlot(true), models.NotifyTargetUser,
		[]string{"chat-1"}, []string{"mgr-1", "mgr-2"}, "reminder", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"mark:21:30", "enqueue:user", "enqueue:managers"}
	if len(w.calls) != len(want) {
		t.Fatalf("calls = %v", w.calls)
	}
	for i := range want {
		if w.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", w.calls, want)
		}
	}
}
