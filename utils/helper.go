package utils

import "fmt"

// SlotKey is the unique-slot value for an active run: "{shop_id}:{date}:active".
// Cleared (NULL) when the run reaches a terminal state.
func SlotKey(shopId int, date string) string {
	return fmt.Sprintf("%d:%s:active", shopId, date)
}

// RunLockKey is the Redis key serializing all run-level mutations for a slot.
func RunLockKey(shopId int, date string) string {
	return fmt.Sprintf("lock:run:%d:%s", shopId, date)
}

// DeltaAlertCooldownKey is the Redis key suppressing repeat delta alerts for
// a run.
func DeltaAlertCooldownKey(runId int) string {
	return fmt.Sprintf("delta_alert:%d", runId)
}

func NewPtr[T any](v T) *T {
	return &v
}

func DereferencePtr[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
