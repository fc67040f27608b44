package formbot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/formbot/internal/core/config"
	"github.com/colonyops/formbot/internal/core/notify/notifytest"
)

const announcement = "NOVO FORMULÁRIO - Relatório Mensal - responder até dia 15/6"

func TestIntake_Detects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.app.Intake.Handle(ctx, Message{Text: announcement, Channel: "C1", Timestamp: "100.1", AuthorID: "U1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeDetected, res.Outcome)

	stored, err := env.forms.Get(ctx, res.Form.ID)
	require.NoError(t, err)
	assert.Equal(t, "Relatório Mensal", stored.Title)
	assert.Equal(t, "C1", stored.Channel)
	assert.Equal(t, "U1", stored.AddedBy)
	assert.Equal(t, "100.1", stored.SourceTS)

	channels, err := env.forms.ListChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, channels)

	sent := env.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "100.1", sent[0].Thread, "confirmation goes to the announcement thread")
	assert.Contains(t, sent[0].Text, "*Título:* Relatório Mensal")
	assert.Contains(t, sent[0].Text, "*Prazo:* 15/06")
	assert.Contains(t, sent[0].Text, "2 dias antes, 1 dia antes e no último dia do prazo")

	assert.Equal(t, []notifytest.Marker{{Channel: "C1", MessageTS: "100.1", Marker: "white_check_mark"}}, env.notifier.Markers())
}

func TestIntake_Ignores(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Slack.Channels = []string{"C0*"} })

	tests := []struct {
		name string
		msg  Message
	}{
		{name: "bot author", msg: Message{Text: announcement, Channel: "C01", IsBot: true}},
		{name: "empty text", msg: Message{Text: "   ", Channel: "C01"}},
		{name: "unwatched channel", msg: Message{Text: announcement, Channel: "D99"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.app.Intake.Handle(context.Background(), tt.msg)
			require.NoError(t, err)
			assert.Equal(t, OutcomeIgnored, res.Outcome)
		})
	}

	forms, err := env.forms.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, forms)
	assert.Empty(t, env.notifier.Sent())
}

func TestIntake_NoMatch(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.app.Intake.Handle(context.Background(), Message{Text: "bom dia pessoal", Channel: "C1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Empty(t, env.notifier.Sent())
}

func TestIntake_RoutesCommands(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "A", "2024-06-20", "C1")

	res, err := env.app.Intake.Handle(context.Background(), Message{Text: "!listar", Channel: "C1", Timestamp: "200.2"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommand, res.Outcome)
	assert.Contains(t, res.Reply, "*A*")

	sent := env.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, res.Reply, sent[0].Text)
	assert.Equal(t, "200.2", sent[0].Thread)
}

func TestIntake_RedeliveredEventIsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	msg := Message{Text: announcement, Channel: "C1", Timestamp: "100.1"}

	first, err := env.app.Intake.Handle(context.Background(), msg)
	require.NoError(t, err)
	second, err := env.app.Intake.Handle(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.Form.ID, second.Form.ID)

	forms, err := env.forms.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, forms, 1)
}

func TestIntake_ConcurrentRedeliveriesStoreOnce(t *testing.T) {
	env := newTestEnv(t)
	msg := Message{Text: announcement, Channel: "C1", Timestamp: "100.1"}

	const deliveries = 16
	outcomes := make(chan Outcome, deliveries)
	var wg sync.WaitGroup
	for range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.app.Intake.Handle(context.Background(), msg)
			assert.NoError(t, err)
			outcomes <- res.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	detected := 0
	for o := range outcomes {
		if o == OutcomeDetected {
			detected++
		} else {
			assert.Equal(t, OutcomeDuplicate, o)
		}
	}
	assert.Equal(t, 1, detected)

	forms, err := env.forms.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, forms, 1)
	assert.Len(t, env.notifier.Markers(), 1)
}

func TestIntake_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.forms.FailWrites = errors.New("disk full")

	_, err := env.app.Intake.Handle(context.Background(), Message{Text: announcement, Channel: "C1", Timestamp: "1"})
	require.Error(t, err)
	assert.Empty(t, env.notifier.Sent(), "no confirmation for an unsaved form")
}

func TestIntake_NotifierFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.FailChannels = map[string]bool{"C1": true}

	res, err := env.app.Intake.Handle(context.Background(), Message{Text: announcement, Channel: "C1", Timestamp: "1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDetected, res.Outcome)
}

func TestNewIntake_InvalidPattern(t *testing.T) {
	_, err := NewIntake(nil, nil, nil, nil, IntakeOptions{Channels: []string{"C[1"}})
	assert.Error(t, err)
}
