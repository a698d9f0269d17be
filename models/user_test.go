package models

import (
	"testing"

	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
)

func TestUserPhoneNormalizedOnSave(t *testing.T) {
	u := &User{Username: "anna_k", Phone: "8 (926) 123-45-67"}
	if err := u.BeforeSave(nil); err != nil {
		t.Fatal(err)
	}
	if u.Phone != "+79261234567" {
		t.Fatalf("phone = %q", u.Phone)
	}

	u.Phone = "not-a-phone"
	if err := u.BeforeSave(nil); !utils.IsValidationError(err) {
		t.Fatalf("invalid phone: %v", err)
	}

	u.Phone = "   "
	if err := u.BeforeSave(nil); err != nil {
		t.Fatal(err)
	}
	if u.Phone != "" {
		t.Fatalf("blank phone kept: %q", u.Phone)
	}
}
