package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage and wire format for calendar dates.
const DateLayout = "2006-01-02"

// Persisted field widths shared with existing stored data.
const (
	MaxNameLength  = 128
	MaxEmailLength = 128
	MaxSlotLength  = 16
	MaxCoachLength = 64
	MaxNotesLength = 256
)

// Appointment is a member's request to book a coach for a service.
type Appointment struct {
	ID          int64      `json:"id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Date        time.Time  `json:"date"`
	TimeSlot    string     `json:"time_slot"`
	Coach       string     `json:"coach"`
	ServiceName string     `json:"service_name"`
	Notes       string     `json:"notes,omitempty"`
	Status      Status     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	DecidedBy   string     `json:"decided_by,omitempty"`
}

// MemberKey identifies the member for double-booking checks.
func (a *Appointment) MemberKey() string {
	return NormalizeEmail(a.Email)
}

// DateString returns the appointment date as YYYY-MM-DD.
func (a *Appointment) DateString() string {
	return a.Date.Format(DateLayout)
}

// Validate checks required fields and persisted widths.
func (a *Appointment) Validate() error {
	checks := []struct {
		field    string
		value    string
		max      int
		required bool
	}{
		{"full_name", a.FullName, MaxNameLength, true},
		{"email", a.Email, MaxEmailLength, true},
		{"time_slot", a.TimeSlot, MaxSlotLength, true},
		{"coach", a.Coach, MaxCoachLength, true},
		{"service_name", a.ServiceName, MaxNameLength, true},
		{"notes", a.Notes, MaxNotesLength, false},
	}
	for _, c := range checks {
		if c.required && strings.TrimSpace(c.value) == "" {
			return &FieldError{Field: c.field, Message: "is required"}
		}
		if len([]rune(c.value)) > c.max {
			return &FieldError{Field: c.field, Message: fmt.Sprintf("must be at most %d characters", c.max)}
		}
	}
	if a.Date.IsZero() {
		return &FieldError{Field: "date", Message: "is required"}
	}
	return nil
}

// FieldError describes an invalid field value.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Message
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ParseDate parses YYYY-MM-DD in the local time zone.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.Local)
}
