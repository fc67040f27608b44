package formbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/colonyops/formbot/internal/core/extract"
	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/core/logging"
	"github.com/colonyops/formbot/internal/core/notify"
	"github.com/colonyops/formbot/pkg/keylock"
)

// Message is an inbound chat message.
type Message struct {
	Text      string
	Channel   string
	Timestamp string // platform message id, used for thread replies and markers
	AuthorID  string
	IsBot     bool
}

// Outcome classifies what Intake did with a message.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"   // bot-authored, empty or unwatched channel
	OutcomeCommand   Outcome = "command"   // routed to the command router
	OutcomeDetected  Outcome = "detected"  // new form stored
	OutcomeDuplicate Outcome = "duplicate" // announcement already stored
	OutcomeNoMatch   Outcome = "no_match"  // plain chatter
)

// Result is the outcome of handling one message.
type Result struct {
	Outcome Outcome
	Form    form.Form // set for OutcomeDetected and OutcomeDuplicate
	Reply   string    // set for OutcomeCommand
}

// IntakeOptions configures an Intake.
type IntakeOptions struct {
	Marker   string              // reaction added to detected announcements
	Channels []string            // glob allowlist of watched channels; empty = all
	Kinds    []form.ReminderKind // enabled reminder kinds, quoted in the confirmation
	Clock    func() time.Time
	Metrics  *Metrics
}

// Intake routes inbound messages to the command router or the extractor.
type Intake struct {
	extractor *extract.Extractor
	router    *Router
	forms     form.Store
	notifier  notify.Notifier
	opts      IntakeOptions
	log       zerolog.Logger
	locks     keylock.Locker
}

// NewIntake creates an Intake.
func NewIntake(extractor *extract.Extractor, router *Router, forms form.Store, notifier notify.Notifier, opts IntakeOptions) (*Intake, error) {
	for _, p := range opts.Channels {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid channel pattern %q", p)
		}
	}
	if opts.Marker == "" {
		opts.Marker = notify.MarkerDetected
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Intake{
		extractor: extractor,
		router:    router,
		forms:     forms,
		notifier:  notifier,
		opts:      opts,
		log:       logging.Component("intake"),
	}, nil
}

// Handle processes one message. Only persistence failures are returned as
// errors; outbound failures are logged and otherwise ignored.
func (in *Intake) Handle(ctx context.Context, msg Message) (Result, error) {
	if msg.IsBot || strings.TrimSpace(msg.Text) == "" || !in.watches(msg.Channel) {
		return Result{Outcome: OutcomeIgnored}, nil
	}

	ctx = logging.WithChannel(ctx, msg.Channel)

	if cmd, ok := in.router.Parse(msg.Text); ok {
		reply, err := in.router.Handle(ctx, cmd, msg.Channel)
		in.send(ctx, msg.Channel, reply, msg.Timestamp)
		return Result{Outcome: OutcomeCommand, Reply: reply}, err
	}

	cand, ok := in.extractor.Extract(msg.Text, in.opts.Clock())
	if !ok {
		in.log.Debug().Ctx(ctx).Msg("message does not match announcement template")
		return Result{Outcome: OutcomeNoMatch}, nil
	}

	f, created, err := in.store(ctx, msg, cand)
	if err != nil {
		return Result{}, err
	}
	if !created {
		in.log.Info().Ctx(logging.WithFormID(ctx, f.ID)).Msg("announcement already stored")
		return Result{Outcome: OutcomeDuplicate, Form: f}, nil
	}

	ctx = logging.WithFormID(ctx, f.ID)
	in.opts.Metrics.formDetected()
	in.log.Info().Ctx(ctx).Str("title", f.Title).Str("deadline", f.Deadline.String()).Msg("form detected")

	if err := in.forms.RegisterChannel(ctx, msg.Channel); err != nil {
		in.log.Error().Ctx(ctx).Err(err).Msg("failed to register channel")
	}

	in.send(ctx, msg.Channel, confirmationText(f, in.opts.Kinds), msg.Timestamp)
	if msg.Timestamp != "" {
		if err := in.notifier.AddMarker(ctx, msg.Channel, msg.Timestamp, in.opts.Marker); err != nil {
			in.opts.Metrics.sendFailed()
			in.log.Warn().Ctx(ctx).Err(err).Msg("failed to add marker")
		}
	}

	return Result{Outcome: OutcomeDetected, Form: f}, nil
}

// store creates the form for an announcement unless the same message was
// already stored. Redelivered events race each other, so the lookup and the
// create run under one lock per message.
func (in *Intake) store(ctx context.Context, msg Message, cand extract.Candidate) (form.Form, bool, error) {
	unlock := in.locks.Lock(msg.Channel + "/" + msg.Timestamp)
	defer unlock()

	if existing, found, err := in.findAnnouncement(ctx, msg); err != nil {
		return form.Form{}, false, err
	} else if found {
		return existing, false, nil
	}

	f := form.Form{
		Title:    cand.Title,
		Deadline: cand.Deadline,
		Channel:  msg.Channel,
		AddedBy:  msg.AuthorID,
		SourceTS: msg.Timestamp,
	}
	if err := in.forms.Create(ctx, &f); err != nil {
		in.log.Error().Ctx(ctx).Err(err).Str("title", f.Title).Msg("failed to store form")
		return form.Form{}, false, fmt.Errorf("store form: %w", err)
	}
	return f, true, nil
}

func (in *Intake) send(ctx context.Context, channel, text, thread string) {
	if err := in.notifier.Send(ctx, channel, text, thread); err != nil {
		in.opts.Metrics.sendFailed()
		in.log.Warn().Ctx(ctx).Err(err).Msg("failed to send reply")
	}
}

// findAnnouncement looks for a form created from the same message, which
// happens when the platform redelivers an event.
func (in *Intake) findAnnouncement(ctx context.Context, msg Message) (form.Form, bool, error) {
	if msg.Timestamp == "" {
		return form.Form{}, false, nil
	}

	forms, err := in.forms.List(ctx)
	if err != nil {
		return form.Form{}, false, fmt.Errorf("list forms: %w", err)
	}
	for _, f := range forms {
		if f.Channel == msg.Channel && f.SourceTS == msg.Timestamp {
			return f, true, nil
		}
	}
	return form.Form{}, false, nil
}

func (in *Intake) watches(channel string) bool {
	if len(in.opts.Channels) == 0 {
		return true
	}
	for _, p := range in.opts.Channels {
		if ok, _ := doublestar.Match(p, channel); ok {
			return true
		}
	}
	return false
}
