package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/core/form/formtest"
	"github.com/colonyops/formbot/internal/store/jsonfile"
)

func legacyDoc() jsonfile.LegacyFile {
	return jsonfile.LegacyFile{
		Channels: []string{"C1", "C2"},
		Forms: []jsonfile.LegacyForm{
			{ID: "f1", Title: "Relatório", Deadline: "2024-06-15", Description: "Enviar pelo portal", Channel: "C1", NotifiedTwoDays: true},
			{ID: "f2", Title: "Pesquisa", Deadline: "2024-06-20", Channel: "C3"},
			{ID: "bad", Title: "Sem prazo", Deadline: "amanhã", Channel: "C1"},
		},
	}
}

func TestImportLegacy(t *testing.T) {
	ctx := context.Background()
	store := formtest.New()

	summary, err := importLegacy(ctx, store, legacyDoc(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, []string{"bad"}, summary.Invalid)
	assert.Equal(t, 3, summary.Channels)

	f1, err := store.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "Enviar pelo portal", f1.Description)
	assert.True(t, f1.HasSent(form.ReminderTwoDays))
	assert.False(t, f1.HasSent(form.ReminderOneDay))

	channels, err := store.ListChannels(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"C1", "C2", "C3"}, channels)
}

func TestImportLegacy_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	store := formtest.New()

	_, err := importLegacy(ctx, store, legacyDoc(), false)
	require.NoError(t, err)

	summary, err := importLegacy(ctx, store, legacyDoc(), false)
	require.NoError(t, err)
	assert.Zero(t, summary.Imported)
	assert.Equal(t, 2, summary.Skipped)

	forms, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, forms, 2)
}

func TestImportLegacy_DryRun(t *testing.T) {
	ctx := context.Background()
	store := formtest.New()

	summary, err := importLegacy(ctx, store, legacyDoc(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.True(t, summary.DryRun)

	forms, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, forms)

	channels, err := store.ListChannels(ctx)
	require.NoError(t, err)
	assert.Empty(t, channels)
}
