package jsonfile

import (
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/formbot/internal/core/form"
)

// LegacyFile is the document written by the first version of the bot.
type LegacyFile struct {
	Forms    []LegacyForm `json:"forms"`
	Channels []string     `json:"channels"`
}

// LegacyForm is one entry of LegacyFile. Reminder state is tracked with two
// flags instead of a history.
type LegacyForm struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Deadline        string `json:"deadline"` // YYYY-MM-DD
	Description     string `json:"description"`
	AddedBy         string `json:"addedBy"`
	AddedAt         string `json:"addedAt"` // RFC 3339
	NotifiedTwoDays bool   `json:"notifiedTwoDays"`
	NotifiedOneDay  bool   `json:"notifiedOneDay"`
	Channel         string `json:"channel"`
}

// Convert maps a legacy entry to a Form. The original send day of a flagged
// reminder is unknown, so it is recorded with a zero date.
func (l LegacyForm) Convert() (form.Form, error) {
	deadline, err := form.ParseDate(strings.TrimSpace(l.Deadline))
	if err != nil {
		return form.Form{}, fmt.Errorf("legacy form %s: %w", l.ID, err)
	}

	f := form.Form{
		ID:       l.ID,
		Title:       strings.TrimSpace(l.Title),
		Deadline:    deadline,
		Description: strings.TrimSpace(l.Description),
		Channel:     l.Channel,
		AddedBy:     l.AddedBy,
		Status:      form.StatusActive,
	}

	if l.AddedAt != "" {
		if t, err := time.Parse(time.RFC3339, l.AddedAt); err == nil {
			f.CreatedAt = t
		}
	}

	if l.NotifiedTwoDays {
		f.Reminders = append(f.Reminders, form.SentReminder{Kind: form.ReminderTwoDays})
	}
	if l.NotifiedOneDay {
		f.Reminders = append(f.Reminders, form.SentReminder{Kind: form.ReminderOneDay})
	}

	if err := f.Validate(); err != nil {
		return form.Form{}, fmt.Errorf("legacy form %s: %w", l.ID, err)
	}
	return f, nil
}
