package formbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/colonyops/formbot/internal/core/config"
	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/core/logging"
	"github.com/colonyops/formbot/internal/core/notify"
)

// errUnchanged aborts a store update that has nothing to write.
var errUnchanged = errors.New("unchanged")

// TickReport summarizes one reminder tick.
type TickReport struct {
	TickID      string `json:"tick_id"`
	Evaluated   int    `json:"evaluated"`    // forms whose state changed
	Sent        int    `json:"sent"`         // reminder messages delivered
	Failed      int    `json:"failed"`       // reminder messages that failed
	Expired     int    `json:"expired"`      // forms moved to expired
	Removed     int    `json:"removed"`      // forms removed by this tick
	StoreErrors int    `json:"store_errors"` // forms skipped on persistence failures
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Policy        form.Policy
	Broadcast     string // config.BroadcastAll or config.BroadcastOrigin
	RetentionDays int
	RemoveOnTick  bool

	ReminderSpec string // cron expression for Tick
	SweepSpec    string // cron expression for Sweep
	Concurrency  string // config.ConcurrencySkip or config.ConcurrencyDelay
	Location     *time.Location
	Clock        func() time.Time

	Metrics *Metrics
}

// Scheduler evaluates every stored form on a clock schedule, dispatches due
// reminders and retires expired forms. Tick and Sweep never run concurrently.
type Scheduler struct {
	forms      form.Store
	notifier   notify.Notifier
	deliveries notify.Log
	opts       SchedulerOptions
	log        zerolog.Logger

	runMu sync.Mutex
}

// NewScheduler creates a scheduler. deliveries may be nil.
func NewScheduler(forms form.Store, notifier notify.Notifier, deliveries notify.Log, opts SchedulerOptions) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Broadcast == "" {
		opts.Broadcast = config.BroadcastAll
	}

	return &Scheduler{
		forms:      forms,
		notifier:   notifier,
		deliveries: deliveries,
		opts:       opts,
		log:        logging.Component("scheduler"),
	}
}

// Now returns the scheduler's current time in its configured location.
func (s *Scheduler) Now() time.Time {
	return s.opts.Clock().In(s.opts.Location)
}

// Describe returns a human readable description of the reminder schedule.
func (s *Scheduler) Describe() string {
	return describeSpec(s.opts.ReminderSpec)
}

// Tick evaluates every form against now. Check-and-mark happens inside a
// single store update per form, so a reminder is recorded before it is sent
// and is never sent twice, even when ticks are replayed.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	report := TickReport{TickID: uuid.NewString()}
	ctx = logging.WithTickID(ctx, report.TickID)
	today := form.DateOf(now)

	forms, err := s.forms.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list forms: %w", err)
	}

	channels, err := s.forms.ListChannels(ctx)
	if err != nil {
		return report, fmt.Errorf("list channels: %w", err)
	}

	for _, snapshot := range forms {
		fctx := logging.WithFormID(ctx, snapshot.ID)

		if !snapshot.IsActive() {
			// Left behind by an earlier tick whose removal failed.
			if s.removesOnTick() {
				s.remove(fctx, snapshot.ID, &report)
			}
			continue
		}

		var tr form.Transition
		updated, err := s.forms.Update(fctx, snapshot.ID, func(f *form.Form) error {
			tr = form.Evaluate(*f, now, s.opts.Policy)
			if tr.IsNoop() {
				return errUnchanged
			}
			return f.Apply(tr, today)
		})
		switch {
		case errors.Is(err, errUnchanged), errors.Is(err, form.ErrNotFound):
			continue
		case err != nil:
			report.StoreErrors++
			s.log.Error().Ctx(fctx).Err(err).Msg("failed to update form, skipping")
			continue
		}

		report.Evaluated++

		for _, kind := range tr.Due {
			sent, failed := s.dispatch(fctx, updated, kind, channels)
			report.Sent += sent
			report.Failed += failed
		}

		if tr.Expire {
			report.Expired++
			s.log.Info().Ctx(fctx).Str("title", updated.Title).Str("deadline", updated.Deadline.String()).Msg("form expired")

			if s.removesOnTick() {
				s.remove(fctx, updated.ID, &report)
			}
		}
	}

	s.opts.Metrics.tick()
	s.log.Info().Ctx(ctx).
		Int("forms", len(forms)).
		Int("evaluated", report.Evaluated).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("expired", report.Expired).
		Int("removed", report.Removed).
		Msg("tick complete")

	return report, nil
}

// Sweep removes forms whose deadline passed more than the retention window
// ago, expired or not. It returns the number of forms removed.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	today := form.DateOf(now)

	forms, err := s.forms.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list forms: %w", err)
	}

	removed := 0
	var errs []error
	for _, f := range forms {
		if form.DaysBetween(f.Deadline, today) <= s.opts.RetentionDays {
			continue
		}

		fctx := logging.WithFormID(ctx, f.ID)
		if err := s.forms.Remove(fctx, f.ID); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", f.ID, err))
			continue
		}
		removed++
		s.log.Info().Ctx(fctx).Str("title", f.Title).Str("deadline", f.Deadline.String()).Msg("removed expired form")
	}

	s.log.Info().Int("removed", removed).Msg("sweep complete")
	return removed, errors.Join(errs...)
}

// Start runs Tick and Sweep on their cron schedules until ctx is cancelled,
// then waits for a running job to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	c, err := s.newCron()
	if err != nil {
		return err
	}

	s.log.Info().
		Str("reminders", s.opts.ReminderSpec).
		Str("sweep", s.opts.SweepSpec).
		Str("location", s.opts.Location.String()).
		Msg("scheduler started")

	c.Start()
	<-ctx.Done()

	<-c.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
	return nil
}

func (s *Scheduler) newCron() (*cron.Cron, error) {
	logger := cronLogger{l: s.log}

	c := cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLocation(s.opts.Location),
		cron.WithChain(cron.Recover(logger), jobWrapper(s.opts.Concurrency, logger)),
		cron.WithLogger(logger),
	)

	// A running job finishes after shutdown begins; Stop waits for it.
	jobCtx := context.Background()

	if _, err := c.AddFunc(s.opts.ReminderSpec, func() {
		if _, err := s.Tick(jobCtx, s.Now()); err != nil {
			s.log.Error().Err(err).Msg("tick failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule reminders %q: %w", s.opts.ReminderSpec, err)
	}

	if _, err := c.AddFunc(s.opts.SweepSpec, func() {
		if _, err := s.Sweep(jobCtx, s.Now()); err != nil {
			s.log.Error().Err(err).Msg("sweep failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", s.opts.SweepSpec, err)
	}

	return c, nil
}

// jobWrapper picks what cron does when a job fires while its previous run is
// still going: skip the new run or queue it behind the old one.
func jobWrapper(policy string, logger cron.Logger) cron.JobWrapper {
	if policy == config.ConcurrencyDelay {
		return cron.DelayIfStillRunning(logger)
	}
	return cron.SkipIfStillRunning(logger)
}

// dispatch sends one reminder to its target channels and records every
// attempt. Failures never undo the recorded reminder.
func (s *Scheduler) dispatch(ctx context.Context, f form.Form, kind form.ReminderKind, channels []string) (sent, failed int) {
	text := reminderText(f, kind)

	for _, channel := range s.targets(f, channels) {
		cctx := logging.WithChannel(ctx, channel)
		err := s.notifier.Send(cctx, channel, text, "")

		d := notify.Delivery{FormID: f.ID, Channel: channel, Kind: kind}
		if err != nil {
			failed++
			d.Error = err.Error()
			s.opts.Metrics.sendFailed()
			s.log.Warn().Ctx(cctx).Err(err).Str("kind", string(kind)).Msg("failed to send reminder")
		} else {
			sent++
			s.opts.Metrics.reminderSent(kind)
			s.log.Info().Ctx(cctx).Str("kind", string(kind)).Str("title", f.Title).Msg("reminder sent")
		}

		if s.deliveries != nil {
			if _, err := s.deliveries.Record(cctx, d); err != nil {
				s.log.Warn().Ctx(cctx).Err(err).Msg("failed to record delivery")
			}
		}
	}

	return sent, failed
}

// targets resolves the broadcast policy. An empty registry falls back to the
// origin channel so a reminder always has somewhere to go.
func (s *Scheduler) targets(f form.Form, channels []string) []string {
	if s.opts.Broadcast == config.BroadcastOrigin || len(channels) == 0 {
		return []string{f.Channel}
	}
	return channels
}

func (s *Scheduler) removesOnTick() bool {
	return s.opts.RemoveOnTick && s.opts.RetentionDays == 0
}

func (s *Scheduler) remove(ctx context.Context, id string, report *TickReport) {
	if err := s.forms.Remove(ctx, id); err != nil {
		report.StoreErrors++
		s.log.Error().Ctx(ctx).Err(err).Msg("failed to remove expired form")
		return
	}
	report.Removed++
}

// describeSpec renders the common "M H * * *" daily shape in words and
// falls back to the raw expression.
func describeSpec(spec string) string {
	fields := strings.Fields(spec)
	if len(fields) == 5 && fields[2] == "*" && fields[3] == "*" && fields[4] == "*" {
		if t, err := time.Parse("15:4", fields[1]+":"+fields[0]); err == nil {
			return "Diariamente às " + t.Format("15:04")
		}
	}
	return "cron `" + spec + "`"
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
