package form

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t *testing.T, day string, hour int) time.Time {
	t.Helper()
	d := mustDate(t, day)
	return time.Date(d.Year, d.Month, d.Day, hour, 0, 0, 0, time.Local)
}

func activeForm(t *testing.T, deadline string) Form {
	return Form{ID: "f1", Title: "Relatório", Deadline: mustDate(t, deadline), Channel: "C1", Status: StatusActive}
}

func TestEvaluate_TransitionTable(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		now      time.Time
		wantDays int
		wantDue  []ReminderKind
		expire   bool
	}{
		{"three days out", at(t, "2024-06-12", 19), 3, nil, false},
		{"two days out", at(t, "2024-06-13", 19), 2, []ReminderKind{ReminderTwoDays}, false},
		{"two days out early morning", at(t, "2024-06-13", 1), 2, []ReminderKind{ReminderTwoDays}, false},
		{"one day out", at(t, "2024-06-14", 19), 1, []ReminderKind{ReminderOneDay}, false},
		{"final day inside window", at(t, "2024-06-15", 19), 0, []ReminderKind{ReminderFinalDay}, false},
		{"final day before window", at(t, "2024-06-15", 9), 0, nil, false},
		{"past deadline", at(t, "2024-06-16", 0), -1, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(activeForm(t, "2024-06-15"), tt.now, p)
			assert.Equal(t, tt.wantDays, got.DaysRemaining)
			assert.Equal(t, tt.wantDue, got.Due)
			assert.Equal(t, tt.expire, got.Expire)
		})
	}
}

func TestEvaluate_SkipsRecordedReminders(t *testing.T) {
	f := activeForm(t, "2024-06-15")
	require.NoError(t, f.MarkSent(ReminderTwoDays, mustDate(t, "2024-06-13")))

	got := Evaluate(f, at(t, "2024-06-13", 20), DefaultPolicy())
	assert.True(t, got.IsNoop())
}

func TestEvaluate_RespectsEnabledKinds(t *testing.T) {
	p := Policy{Kinds: []ReminderKind{ReminderOneDay, ReminderFinalDay}, FinalDayHour: 0}

	got := Evaluate(activeForm(t, "2024-06-15"), at(t, "2024-06-13", 19), p)
	assert.Empty(t, got.Due)

	got = Evaluate(activeForm(t, "2024-06-15"), at(t, "2024-06-15", 0), p)
	assert.Equal(t, []ReminderKind{ReminderFinalDay}, got.Due)
}

func TestEvaluate_ExpiredFormIsInert(t *testing.T) {
	f := activeForm(t, "2024-06-15")
	f.Expire()

	got := Evaluate(f, at(t, "2024-06-13", 19), DefaultPolicy())
	assert.True(t, got.IsNoop())
	assert.Equal(t, 2, got.DaysRemaining)
}

func TestForm_Apply(t *testing.T) {
	f := activeForm(t, "2024-06-15")
	today := mustDate(t, "2024-06-13")

	tr := Evaluate(f, at(t, "2024-06-13", 19), DefaultPolicy())
	require.NoError(t, f.Apply(tr, today))
	assert.Equal(t, []SentReminder{{Kind: ReminderTwoDays, On: today}}, f.Reminders)

	// same tick again is a no-op
	tr = Evaluate(f, at(t, "2024-06-13", 21), DefaultPolicy())
	assert.True(t, tr.IsNoop())

	// applying a stale transition is rejected
	err := f.Apply(Transition{Due: []ReminderKind{ReminderTwoDays}}, today)
	require.ErrorIs(t, err, ErrDuplicateReminder)

	require.NoError(t, f.Apply(Transition{Expire: true}, today))
	assert.Equal(t, StatusExpired, f.Status)
}
