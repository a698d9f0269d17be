package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
)

func testShop() *models.Shop {
	return &models.Shop{
		ID:        1,
		Name:      "Central",
		Timezone:  "UTC",
		OpenTime:  "09:00",
		CloseTime: "21:00",
	}
}

func TestComputeReminderSlots_Defaults(t *testing.T) {
	// Default schedule: open 09:00 -> reminder 08:45 (opener),
	// close 21:00 -> reminder 20:30 (closer).
	slots, err := ComputeReminderSlots(testShop(), "2026-08-20")
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].Label != "08:45" || slots[0].Role != models.RunRoleOpener {
		t.Fatalf("open slot = %+v", slots[0])
	}
	if slots[1].Label != "20:30" || slots[1].Role != models.RunRoleCloser {
		t.Fatalf("close slot = %+v", slots[1])
	}
	if slots[0].Final || slots[1].Final {
		t.Fatal("default slots are not escalation slots")
	}
}

func TestComputeReminderSlots_CustomDualCash(t *testing.T) {
	shop := testShop()
	shop.DualCashMode = true
	shop.ReminderSlots = "12:00,13:00,13:30,15:00,16:00,16:30,17:30"

	slots, err := ComputeReminderSlots(shop, "2026-08-20")
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 7 {
		t.Fatalf("expected 7 slots, got %d", len(slots))
	}
	for i, s := range slots {
		wantFinal := i == len(slots)-1
		if s.Final != wantFinal {
			t.Fatalf("slot %s final = %v, want %v", s.Label, s.Final, wantFinal)
		}
	}
	// Working day 09:00-21:00, midpoint 15:00: morning slots target the
	// opener, the rest the closer.
	if slots[0].Role != models.RunRoleOpener {
		t.Fatalf("12:00 role = %s", slots[0].Role)
	}
	if slots[3].Role != models.RunRoleCloser {
		t.Fatalf("15:00 role = %s", slots[3].Role)
	}
	if slots[6].Role != models.RunRoleCloser {
		t.Fatalf("17:30 role = %s", slots[6].Role)
	}
}

func TestDueSlots_ToleranceWindow(t *testing.T) {
	slots, err := ComputeReminderSlots(testShop(), "2026-08-20")
	if err != nil {
		t.Fatal(err)
	}
	at := func(clock string) time.Time {
		ts, err := time.Parse("2006-01-02 15:04:05", "2026-08-20 "+clock)
		if err != nil {
			t.Fatal(err)
		}
		return ts.UTC()
	}

	// Right at the slot: due.
	due := DueSlots(slots, nil, at("08:45:00"))
	if len(due) != 1 || due[0].Label != "08:45" {
		t.Fatalf("at 08:45 due = %+v", due)
	}
	// Before the slot: nothing.
	if due := DueSlots(slots, nil, at("08:44:59")); len(due) != 0 {
		t.Fatalf("before slot due = %+v", due)
	}
	// Long past the slot: a run started late must not trigger stale slots.
	if due := DueSlots(slots, nil, at("12:00:00")); len(due) != 0 {
		t.Fatalf("stale slot due = %+v", due)
	}
	// Evening slot at 20:30.
	due = DueSlots(slots, nil, at("20:30:30"))
	if len(due) != 1 || due[0].Role != models.RunRoleCloser {
		t.Fatalf("at 20:30 due = %+v", due)
	}
}

func TestDueSlots_SentAtMostOnce(t *testing.T) {
	slots, err := ComputeReminderSlots(testShop(), "2026-08-20")
	if err != nil {
		t.Fatal(err)
	}
	now, _ := time.Parse("2006-01-02 15:04", "2026-08-20 08:45")

	sent := map[string]bool{}
	due := DueSlots(slots, sent, now)
	if len(due) != 1 {
		t.Fatalf("first tick due = %d", len(due))
	}
	sent[due[0].Label] = true

	// Overlapping/retried tick: already-sent slot never fires again.
	if due := DueSlots(slots, sent, now); len(due) != 0 {
		t.Fatalf("second tick due = %+v", due)
	}
}
