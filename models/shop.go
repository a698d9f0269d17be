package models

import (
	"strings"
	"time"
)

// Shop is one retail store with its daily schedule and staffing whitelist.
// Times are local wall-clock "HH:MM" strings interpreted in Shop.Timezone.
type Shop struct {
	ID        int    `gorm:"primary_key" json:"id"`
	Name      string `gorm:"size:255;not null" json:"name"`
	Timezone  string `gorm:"size:64;not null;default:'Europe/Moscow'" json:"timezone"`
	OpenTime  string `gorm:"size:5;not null;default:'09:00'" json:"open_time"`
	CloseTime string `gorm:"size:5;not null;default:'21:00'" json:"close_time"`

	// Comma separated username whitelists. Parsed, never queried by substring.
	EmployeeUsernames string `gorm:"type:text" json:"employee_usernames"`
	ManagerUsernames  string `gorm:"type:text" json:"manager_usernames"`

	// Custom reminder slots ("12:00,13:00,...") override the default
	// open/close offsets. Used by dual-cash stores.
	ReminderSlots string `gorm:"type:text" json:"reminder_slots"`

	AllowAnyone  bool `gorm:"not null;default:false" json:"allow_anyone"`
	DualCashMode bool `gorm:"not null;default:false" json:"dual_cash_mode"`
	IsActive     bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// EmployeeList returns the parsed employee whitelist, trimmed and without
// empty entries.
func (s *Shop) EmployeeList() []string {
	return splitNames(s.EmployeeUsernames)
}

func (s *Shop) ManagerList() []string {
	return splitNames(s.ManagerUsernames)
}

// ReminderSlotList returns the custom slot times ("HH:MM") or nil when the
// shop uses the default open/close offsets.
func (s *Shop) ReminderSlotList() []string {
	return splitNames(s.ReminderSlots)
}

// Location resolves the shop timezone, falling back to UTC on a bad value so
// a misconfigured row never breaks the tick loop.
func (s *Shop) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s *Shop) IsWhitelisted(username string) bool {
	if s.AllowAnyone {
		return true
	}
	for _, u := range s.EmployeeList() {
		if strings.EqualFold(u, username) {
			return true
		}
	}
	for _, u := range s.ManagerList() {
		if strings.EqualFold(u, username) {
			return true
		}
	}
	return false
}

func splitNames(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(strings.TrimPrefix(f, "@"))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
