package workflow

import (
	"errors"
	"testing"
)

// Without a connected Redis the SETNX helper reports a won claim, which lets
// these tests drive the claim-and-send path directly.

func TestClaimDeltaAlertWindow_SendRunsOnceAfterClaim(t *testing.T) {
	var sends int
	won, err := claimDeltaAlertWindow(11, func() error {
		sends++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !won {
		t.Fatal("claim not won")
	}
	if sends != 1 {
		t.Fatalf("send ran %d times", sends)
	}
}

func TestClaimDeltaAlertWindow_FailedSendReleasesClaim(t *testing.T) {
	// A failed enqueue must not burn the cooldown window: the claim is
	// released and the error surfaces so the next trigger alerts again.
	sendErr := errors.New("enqueue failed")
	var sends int
	won, err := claimDeltaAlertWindow(11, func() error {
		sends++
		return sendErr
	})
	if !errors.Is(err, sendErr) {
		t.Fatalf("err = %v", err)
	}
	if !won {
		t.Fatal("claim should have been won before the send failed")
	}
	if sends != 1 {
		t.Fatalf("send ran %d times", sends)
	}
}
