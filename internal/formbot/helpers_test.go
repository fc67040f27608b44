package formbot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/formbot/internal/core/config"
	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/core/form/formtest"
	"github.com/colonyops/formbot/internal/core/notify/notifytest"
)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testEnv struct {
	app      *App
	forms    *formtest.Store
	notifier *notifytest.Recorder
	log      *notifytest.Log
	clock    *fakeClock
	registry *prometheus.Registry
}

func day(d, hour int) time.Time {
	return time.Date(2024, time.June, d, hour, 0, 0, 0, time.UTC)
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Schedule.Timezone = "UTC"
	for _, fn := range mutate {
		fn(&cfg)
	}
	require.NoError(t, cfg.Validate())

	env := &testEnv{
		forms:    formtest.New(),
		notifier: &notifytest.Recorder{},
		log:      &notifytest.Log{},
		clock:    &fakeClock{now: day(13, 10)},
		registry: prometheus.NewRegistry(),
	}

	app, err := NewApp(&cfg, Deps{
		Forms:      env.forms,
		Deliveries: env.log,
		Notifier:   env.notifier,
		Metrics:    NewMetrics(env.registry),
		Clock:      env.clock.Now,
	})
	require.NoError(t, err)
	env.app = app
	return env
}

// seed stores a form directly, bypassing intake.
func (e *testEnv) seed(t *testing.T, title, deadline, channel string) form.Form {
	t.Helper()
	d, err := form.ParseDate(deadline)
	require.NoError(t, err)

	f := form.Form{Title: title, Deadline: d, Channel: channel}
	require.NoError(t, e.forms.Create(context.Background(), &f))
	require.NoError(t, e.forms.RegisterChannel(context.Background(), channel))
	return f
}

func (e *testEnv) tick(t *testing.T, at time.Time) TickReport {
	t.Helper()
	e.clock.Set(at)
	report, err := e.app.Scheduler.Tick(context.Background(), at)
	require.NoError(t, err)
	return report
}

func (e *testEnv) texts(channel string) []string {
	var out []string
	for _, s := range e.notifier.Sent() {
		if s.Channel == channel {
			out = append(out, s.Text)
		}
	}
	return out
}
