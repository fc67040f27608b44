package form

import (
	"slices"
	"time"
)

// Policy configures which reminders the state machine emits.
type Policy struct {
	// Kinds enabled for dispatch. Kinds missing here are never emitted.
	Kinds []ReminderKind
	// FinalDayHour opens the daily window for the final-day reminder; before
	// this hour a form due today produces nothing.
	FinalDayHour int
}

// DefaultPolicy enables every reminder kind with a 19:00 final-day window.
func DefaultPolicy() Policy {
	return Policy{
		Kinds:        slices.Clone(ReminderKinds),
		FinalDayHour: 19,
	}
}

func (p Policy) enabled(k ReminderKind) bool {
	return slices.Contains(p.Kinds, k)
}

// Transition is the outcome of evaluating a form for one tick.
type Transition struct {
	DaysRemaining int
	Due           []ReminderKind
	Expire        bool
}

// IsNoop reports whether the transition changes nothing.
func (t Transition) IsNoop() bool {
	return len(t.Due) == 0 && !t.Expire
}

// Evaluate computes the reminders due for f at now and whether it expires.
// Days remaining is a calendar-day difference, so a deadline of today is 0
// regardless of the time of day.
func Evaluate(f Form, now time.Time, p Policy) Transition {
	today := DateOf(now)
	t := Transition{DaysRemaining: DaysBetween(today, f.Deadline)}

	if !f.IsActive() {
		return t
	}

	due := func(k ReminderKind) {
		if p.enabled(k) && !f.HasSent(k) {
			t.Due = append(t.Due, k)
		}
	}

	switch t.DaysRemaining {
	case 2:
		due(ReminderTwoDays)
	case 1:
		due(ReminderOneDay)
	case 0:
		if now.Hour() >= p.FinalDayHour {
			due(ReminderFinalDay)
		}
	}

	// expiry is decided after the reminder checks
	if t.DaysRemaining < 0 {
		t.Expire = true
	}

	return t
}

// Apply records the transition on f: due reminders are marked sent on today
// and the form expires when requested.
func (f *Form) Apply(t Transition, today Date) error {
	for _, k := range t.Due {
		if err := f.MarkSent(k, today); err != nil {
			return err
		}
	}
	if t.Expire {
		f.Expire()
	}
	return nil
}
