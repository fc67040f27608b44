// Package form defines the form domain types, the lifecycle state machine
// and the storage contract.
package form

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("form not found")
	ErrPermissionDenied  = errors.New("form belongs to another channel")
	ErrDuplicateReminder = errors.New("reminder already recorded")
	ErrDuplicateID       = errors.New("form id already exists")
)

// Status represents the lifecycle state of a form.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// ReminderKind is one of the fixed due-date notification categories.
type ReminderKind string

const (
	ReminderTwoDays  ReminderKind = "two_days"
	ReminderOneDay   ReminderKind = "one_day"
	ReminderFinalDay ReminderKind = "final_day"
)

// ReminderKinds lists every kind in precedence order.
var ReminderKinds = []ReminderKind{ReminderTwoDays, ReminderOneDay, ReminderFinalDay}

// IsValid reports whether k is a known reminder kind.
func (k ReminderKind) IsValid() bool {
	switch k {
	case ReminderTwoDays, ReminderOneDay, ReminderFinalDay:
		return true
	default:
		return false
	}
}

// DaysBefore returns how many days before the deadline the reminder fires.
func (k ReminderKind) DaysBefore() int {
	switch k {
	case ReminderTwoDays:
		return 2
	case ReminderOneDay:
		return 1
	default:
		return 0
	}
}

// SentReminder records a dispatched reminder and the day it went out.
type SentReminder struct {
	Kind ReminderKind `json:"kind"`
	On   Date         `json:"on,omitzero"`
}

// Form is a tracked title/deadline record derived from an announcement.
type Form struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Deadline Date   `json:"deadline"`
	Channel  string `json:"channel"`
	AddedBy  string `json:"added_by,omitempty"`
	SourceTS string `json:"source_ts,omitempty"`
	Status   Status `json:"status"`

	// Description is free text carried over from imported records. Detected
	// announcements leave it empty.
	Description string         `json:"description,omitempty"`
	Reminders   []SentReminder `json:"reminders,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Validate checks the fields every stored form must carry.
func (f *Form) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return errors.New("title is required")
	}
	if f.Deadline.IsZero() {
		return errors.New("deadline is required")
	}
	if f.Channel == "" {
		return errors.New("channel is required")
	}
	switch f.Status {
	case StatusActive, StatusExpired:
	default:
		return fmt.Errorf("invalid status %q", f.Status)
	}
	return nil
}

// IsActive reports whether the form is still tracked for reminders.
func (f *Form) IsActive() bool {
	return f.Status == StatusActive
}

// HasSent reports whether a reminder of kind k was already recorded.
func (f *Form) HasSent(k ReminderKind) bool {
	for _, r := range f.Reminders {
		if r.Kind == k {
			return true
		}
	}
	return false
}

// MarkSent records reminder k as sent on the given day. A kind is recorded at
// most once per form; a second record returns ErrDuplicateReminder.
func (f *Form) MarkSent(k ReminderKind, on Date) error {
	if f.HasSent(k) {
		return fmt.Errorf("form %s: %s: %w", f.ID, k, ErrDuplicateReminder)
	}
	f.Reminders = append(f.Reminders, SentReminder{Kind: k, On: on})
	return nil
}

// Expire moves the form to the terminal expired state.
func (f *Form) Expire() {
	f.Status = StatusExpired
}
