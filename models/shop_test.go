package models

import (
	"reflect"
	"testing"
)

func TestShop_WhitelistParsing(t *testing.T) {
	shop := &Shop{
		EmployeeUsernames: "@anna_k, petrov_s;dual_one\n dual_two",
		ManagerUsernames:  " @mgr_ivanova ",
	}

	want := []string{"anna_k", "petrov_s", "dual_one", "dual_two"}
	if got := shop.EmployeeList(); !reflect.DeepEqual(got, want) {
		t.Fatalf("EmployeeList() = %v, want %v", got, want)
	}
	if got := shop.ManagerList(); !reflect.DeepEqual(got, []string{"mgr_ivanova"}) {
		t.Fatalf("ManagerList() = %v", got)
	}
}

func TestShop_IsWhitelisted(t *testing.T) {
	shop := &Shop{
		EmployeeUsernames: "anna_k",
		ManagerUsernames:  "mgr_ivanova",
	}

	if !shop.IsWhitelisted("anna_k") || !shop.IsWhitelisted("ANNA_K") {
		t.Fatal("employee should be whitelisted case-insensitively")
	}
	if !shop.IsWhitelisted("mgr_ivanova") {
		t.Fatal("manager should be whitelisted")
	}
	if shop.IsWhitelisted("stranger") {
		t.Fatal("unknown user should be rejected")
	}

	shop.AllowAnyone = true
	if !shop.IsWhitelisted("stranger") {
		t.Fatal("allow_anyone should admit any user")
	}
}

func TestShop_ReminderSlotList(t *testing.T) {
	shop := &Shop{}
	if got := shop.ReminderSlotList(); got != nil {
		t.Fatalf("empty slots = %v, want nil", got)
	}

	shop.ReminderSlots = "12:00, 13:00,17:30"
	want := []string{"12:00", "13:00", "17:30"}
	if got := shop.ReminderSlotList(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ReminderSlotList() = %v, want %v", got, want)
	}
}

func TestShop_LocationFallback(t *testing.T) {
	shop := &Shop{Timezone: "Not/AZone"}
	if loc := shop.Location(); loc.String() != "UTC" {
		t.Fatalf("bad timezone resolved to %s, want UTC", loc)
	}
	shop.Timezone = "UTC"
	if loc := shop.Location(); loc.String() != "UTC" {
		t.Fatalf("UTC resolved to %s", loc)
	}
}
