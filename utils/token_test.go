package utils

import (
	"testing"
	"time"
)

func TestInternalTokenRoundTrip(t *testing.T) {
	token, err := JwtGenerateInternal("scheduler", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claim, err := JwtValidateInternal(token)
	if err != nil {
		t.Fatal(err)
	}
	if claim.Caller != "scheduler" {
		t.Fatalf("caller = %q", claim.Caller)
	}
	if claim.Scope != InternalOpsScope {
		t.Fatalf("scope = %q", claim.Scope)
	}
}

func TestInternalTokenRejectsTampering(t *testing.T) {
	if _, err := JwtValidateInternal("not-a-token"); err == nil {
		t.Fatal("garbage accepted")
	}
	token, err := JwtGenerateInternal("scheduler", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := JwtValidateInternal(token + "AA"); err == nil {
		t.Fatal("tampered signature accepted")
	}
}

func TestInternalTokenExpiry(t *testing.T) {
	token, err := JwtGenerateInternal("scheduler", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := JwtValidateInternal(token); err == nil {
		t.Fatal("expired token accepted")
	}
}
