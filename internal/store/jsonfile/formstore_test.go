package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/core/notify"
)

func newTestFile(t *testing.T) *File {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "forms-db.json"))
}

func newForm(t *testing.T, title, deadline, channel string) *form.Form {
	t.Helper()
	d, err := form.ParseDate(deadline)
	require.NoError(t, err)
	return &form.Form{Title: title, Deadline: d, Channel: channel}
}

func TestFormStore(t *testing.T) {
	ctx := context.Background()

	t.Run("empty file lists nothing", func(t *testing.T) {
		store := NewFormStore(newTestFile(t))

		forms, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, forms)

		channels, err := store.ListChannels(ctx)
		require.NoError(t, err)
		assert.Empty(t, channels)
	})

	t.Run("create and get", func(t *testing.T) {
		store := NewFormStore(newTestFile(t))

		f := newForm(t, "Pesquisa", "2024-06-15", "C1")
		require.NoError(t, store.Create(ctx, f))
		assert.NotEmpty(t, f.ID)
		assert.Equal(t, form.StatusActive, f.Status)

		got, err := store.Get(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, "Pesquisa", got.Title)
		assert.Equal(t, f.Deadline, got.Deadline)

		_, err = store.Get(ctx, "missing")
		assert.ErrorIs(t, err, form.ErrNotFound)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		store := NewFormStore(newTestFile(t))

		first := newForm(t, "Pesquisa", "2024-06-15", "C1")
		first.ID = "same1234"
		require.NoError(t, store.Create(ctx, first))

		second := newForm(t, "Outra", "2024-06-20", "C2")
		second.ID = "same1234"
		err := store.Create(ctx, second)
		require.ErrorIs(t, err, form.ErrDuplicateID)

		forms, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, forms, 1)
		assert.Equal(t, "Pesquisa", forms[0].Title)
	})

	t.Run("generated id retried on collision", func(t *testing.T) {
		store := NewFormStore(newTestFile(t))

		taken := newForm(t, "Pesquisa", "2024-06-15", "C1")
		taken.ID = "taken123"
		require.NoError(t, store.Create(ctx, taken))

		ids := []string{"taken123", "taken123", "fresh123"}
		orig := form.NewID
		form.NewID = func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}
		t.Cleanup(func() { form.NewID = orig })

		f := newForm(t, "Outra", "2024-06-20", "C1")
		require.NoError(t, store.Create(ctx, f))
		assert.Equal(t, "fresh123", f.ID)

		got, err := store.Get(ctx, "taken123")
		require.NoError(t, err)
		assert.Equal(t, "Pesquisa", got.Title)
	})

	t.Run("update is persisted and mutator errors roll back", func(t *testing.T) {
		file := newTestFile(t)
		store := NewFormStore(file)
		f := newForm(t, "A", "2024-06-15", "C1")
		require.NoError(t, store.Create(ctx, f))

		today := form.Date{Year: 2024, Month: time.June, Day: 13}
		_, err := store.Update(ctx, f.ID, func(f *form.Form) error {
			return f.MarkSent(form.ReminderTwoDays, today)
		})
		require.NoError(t, err)

		_, err = store.Update(ctx, f.ID, func(f *form.Form) error {
			return f.MarkSent(form.ReminderTwoDays, today)
		})
		require.ErrorIs(t, err, form.ErrDuplicateReminder)

		boom := errors.New("boom")
		_, err = store.Update(ctx, f.ID, func(f *form.Form) error {
			f.Expire()
			return boom
		})
		require.ErrorIs(t, err, boom)

		// A second store on the same path sees the committed state only.
		got, err := NewFormStore(Open(file.Path())).Get(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, form.StatusActive, got.Status)
		assert.Equal(t, []form.SentReminder{{Kind: form.ReminderTwoDays, On: today}}, got.Reminders)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		store := NewFormStore(newTestFile(t))
		f := newForm(t, "A", "2024-06-15", "C1")
		require.NoError(t, store.Create(ctx, f))

		require.NoError(t, store.Remove(ctx, f.ID))
		require.NoError(t, store.Remove(ctx, f.ID))

		forms, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, forms)
	})

	t.Run("channels are deduplicated", func(t *testing.T) {
		store := NewFormStore(newTestFile(t))
		for _, ch := range []string{"C1", "C1", "C2"} {
			require.NoError(t, store.RegisterChannel(ctx, ch))
		}

		channels, err := store.ListChannels(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"C1", "C2"}, channels)
	})

	t.Run("corrupt file surfaces an error", func(t *testing.T) {
		file := newTestFile(t)
		require.NoError(t, os.WriteFile(file.Path(), []byte("{not json"), 0o644))

		_, err := NewFormStore(file).List(ctx)
		require.Error(t, err)
	})
}

func TestDocumentShape(t *testing.T) {
	ctx := context.Background()
	file := newTestFile(t)
	store := NewFormStore(file)

	require.NoError(t, store.Create(ctx, newForm(t, "A", "2024-06-15", "C1")))
	require.NoError(t, store.RegisterChannel(ctx, "C1"))

	data, err := os.ReadFile(file.Path())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "forms")
	assert.Contains(t, raw, "channels")

	var forms []map[string]any
	require.NoError(t, json.Unmarshal(raw["forms"], &forms))
	require.Len(t, forms, 1)
	assert.Equal(t, "2024-06-15", forms[0]["deadline"])
}

func TestDeliveryLog(t *testing.T) {
	ctx := context.Background()
	log := NewDeliveryLog(newTestFile(t))

	id1, err := log.Record(ctx, notify.Delivery{FormID: "f1", Channel: "C1", Kind: form.ReminderOneDay})
	require.NoError(t, err)
	id2, err := log.Record(ctx, notify.Delivery{FormID: "f1", Channel: "C2", Kind: form.ReminderOneDay, Error: "not_in_channel"})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	items, err := log.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "C2", items[0].Channel, "newest first")

	n, err := log.CountFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeliveryLogSharesDocumentWithForms(t *testing.T) {
	ctx := context.Background()
	file := newTestFile(t)
	forms := NewFormStore(file)
	log := NewDeliveryLog(file)

	require.NoError(t, forms.Create(ctx, newForm(t, "A", "2024-06-15", "C1")))
	_, err := log.Record(ctx, notify.Delivery{FormID: "f1", Channel: "C1", Kind: form.ReminderTwoDays})
	require.NoError(t, err)

	all, err := forms.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
