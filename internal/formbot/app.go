// Package formbot wires the form lifecycle engine: intake of chat messages,
// the command router and the reminder scheduler.
package formbot

import (
	"time"

	"github.com/colonyops/formbot/internal/core/config"
	"github.com/colonyops/formbot/internal/core/extract"
	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/core/notify"
)

// App is the central entry point for formbot operations.
// Commands and the HTTP server consume App instead of cherry-picking raw dependencies.
type App struct {
	Intake    *Intake
	Router    *Router
	Scheduler *Scheduler

	Forms      form.Store
	Deliveries notify.Log
	Notifier   notify.Notifier
	Config     *config.Config
	Metrics    *Metrics
	Started    time.Time
}

// Deps are the collaborators App is built from.
type Deps struct {
	Forms      form.Store
	Deliveries notify.Log
	Notifier   notify.Notifier
	Metrics    *Metrics
	Clock      func() time.Time // defaults to time.Now
}

// NewApp constructs an App from the configuration and explicit dependencies.
func NewApp(cfg *config.Config, deps Deps) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	localClock := func() time.Time { return clock().In(loc) }

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	scheduler := NewScheduler(deps.Forms, notifier, deps.Deliveries, SchedulerOptions{
		Policy:        cfg.Policy(),
		Broadcast:     cfg.Reminders.Broadcast,
		RetentionDays: cfg.Retention.Days,
		RemoveOnTick:  cfg.RemoveOnTick(),
		ReminderSpec:  cfg.Schedule.Reminders,
		SweepSpec:     cfg.Schedule.Sweep,
		Concurrency:   cfg.Schedule.Concurrency,
		Location:      loc,
		Clock:         clock,
		Metrics:       deps.Metrics,
	})

	started := localClock()
	router := NewRouter(deps.Forms, deps.Deliveries, RouterOptions{
		Prefix:        cfg.Commands.Prefix,
		Aliases:       cfg.Commands.Aliases,
		ChannelScoped: cfg.ChannelScoped(),
		Started:       started,
		Clock:         localClock,
		Schedule:      scheduler.Describe(),
	})

	intake, err := NewIntake(extract.New(cfg.Extract), router, deps.Forms, notifier, IntakeOptions{
		Marker:   cfg.Slack.Marker,
		Channels: cfg.Slack.Channels,
		Kinds:    cfg.Reminders.Kinds,
		Clock:    localClock,
		Metrics:  deps.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Intake:     intake,
		Router:     router,
		Scheduler:  scheduler,
		Forms:      deps.Forms,
		Deliveries: deps.Deliveries,
		Notifier:   notifier,
		Config:     cfg,
		Metrics:    deps.Metrics,
		Started:    started,
	}, nil
}

// Uptime returns how long the App has been running.
func (a *App) Uptime() time.Duration {
	return a.Scheduler.Now().Sub(a.Started)
}
