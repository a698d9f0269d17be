package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Operational tunables. All env-overridable; defaults match production.

func init() {
	godotenv.Load()
}

// DeltaThreshold is the absolute delta (in store currency) at or above which
// a numeric step requires a comment and becomes alert-eligible.
func DeltaThreshold() decimal.Decimal {
	v := strings.TrimSpace(os.Getenv("DELTA_THRESHOLD"))
	if v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			return d
		}
	}
	return decimal.NewFromInt(300)
}

// DeltaAlertCooldown is the per-run suppression window between delta alerts.
func DeltaAlertCooldown() time.Duration {
	return time.Duration(IntFromEnv("DELTA_ALERT_COOLDOWN_SECONDS", 3600)) * time.Second
}

// RunLockTTL bounds how long a run-level lock may be held before it expires
// on its own. Handlers holding the lock longer than this must refresh it.
func RunLockTTL() time.Duration {
	return time.Duration(IntFromEnv("RUN_LOCK_TTL_SECONDS", 30)) * time.Second
}

// ReminderOpenOffset is how long before shop open time the opening reminder fires.
func ReminderOpenOffset() time.Duration {
	return time.Duration(IntFromEnv("REMINDER_OPEN_OFFSET_MINUTES", 15)) * time.Minute
}

// ReminderCloseOffset is how long before shop close time the closing reminder fires.
func ReminderCloseOffset() time.Duration {
	return time.Duration(IntFromEnv("REMINDER_CLOSE_OFFSET_MINUTES", 30)) * time.Minute
}

// ReminderTickTolerance is the window around a slot time within which a tick
// counts as "due". Ticks run every minute in production; the tolerance absorbs
// scheduler jitter without double-firing (dedupe is per run+slot anyway).
func ReminderTickTolerance() time.Duration {
	return time.Duration(IntFromEnv("REMINDER_TICK_TOLERANCE_SECONDS", 90)) * time.Second
}

// ManagerChatIds lists the chat ids copied on final-slot reminders and delta
// alerts, comma separated.
func ManagerChatIds() []string {
	raw := strings.TrimSpace(os.Getenv("MANAGER_CHAT_IDS"))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DefaultPhaseOrder is the canonical phase sequence for a standard day.
// Templates are bound per phase; unknown phases are rejected at import time.
var DefaultPhaseOrder = []string{
	"open",
	"check_1100",
	"check_1600",
	"check_1900",
	"close",
	"finance",
}

func IsKnownPhase(phase string) bool {
	for _, p := range DefaultPhaseOrder {
		if p == phase {
			return true
		}
	}
	return false
}
