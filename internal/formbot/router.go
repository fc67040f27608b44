package formbot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/formbot/internal/core/config"
	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/core/logging"
	"github.com/colonyops/formbot/internal/core/notify"
)

// Command is a parsed chat command.
type Command struct {
	Name string // canonical command name after alias resolution
	As   string // keyword as typed, lowercased
	Arg  string // optional positional argument
}

// RouterOptions configures a Router.
type RouterOptions struct {
	Prefix        string
	Aliases       map[string]string
	ChannelScoped bool
	Started       time.Time
	Clock         func() time.Time
	Schedule      string // human readable reminder schedule for status
}

// Router interprets inline chat commands against the form store.
type Router struct {
	forms      form.Store
	deliveries notify.Log
	opts       RouterOptions
	log        zerolog.Logger
}

// NewRouter creates a Router. deliveries may be nil.
func NewRouter(forms form.Store, deliveries notify.Log, opts RouterOptions) *Router {
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Started.IsZero() {
		opts.Started = opts.Clock()
	}

	return &Router{
		forms:      forms,
		deliveries: deliveries,
		opts:       opts,
		log:        logging.Component("router"),
	}
}

// Parse reports whether text is a command and returns it. The keyword is
// case-insensitive; anything past the first argument is ignored.
func (r *Router) Parse(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, r.opts.Prefix) {
		return Command{}, false
	}

	fields := strings.Fields(strings.TrimPrefix(text, r.opts.Prefix))
	if len(fields) == 0 {
		return Command{Name: config.CommandHelp}, true
	}

	cmd := Command{As: strings.ToLower(fields[0])}
	cmd.Name = cmd.As
	if target, ok := r.opts.Aliases[cmd.As]; ok {
		cmd.Name = target
	}
	if len(fields) > 1 {
		cmd.Arg = fields[1]
	}
	return cmd, true
}

// Handle runs cmd on behalf of channel and returns the reply text. On a
// persistence failure the reply is a generic error message and the error is
// returned for logging.
func (r *Router) Handle(ctx context.Context, cmd Command, channel string) (string, error) {
	ctx = logging.WithChannel(ctx, channel)

	var (
		reply string
		err   error
	)
	switch cmd.Name {
	case config.CommandList:
		reply, err = r.list(ctx, channel)
	case config.CommandStatus:
		reply, err = r.status(ctx)
	case config.CommandDelete:
		reply, err = r.delete(ctx, channel, cmd.Arg)
	case config.CommandPurge:
		reply, err = r.purge(ctx, channel)
	case config.CommandHelp:
		reply = helpText(r.opts.Prefix)
	default:
		reply = unknownCommandText(cmd.As, r.opts.Prefix)
	}

	if err != nil {
		r.log.Error().Ctx(ctx).Err(err).Str("command", cmd.Name).Msg("command failed")
		return failureText(), err
	}

	r.log.Debug().Ctx(ctx).Str("command", cmd.Name).Str("arg", cmd.Arg).Msg("command handled")
	return reply, nil
}

func (r *Router) list(ctx context.Context, channel string) (string, error) {
	forms, err := r.scoped(ctx, channel)
	if err != nil {
		return "", err
	}
	return listText(forms, form.DateOf(r.opts.Clock())), nil
}

func (r *Router) status(ctx context.Context) (string, error) {
	info, err := r.Status(ctx)
	if err != nil {
		return "", err
	}
	return statusText(info), nil
}

// Status collects the figures reported by the status command.
func (r *Router) Status(ctx context.Context) (StatusInfo, error) {
	forms, err := r.forms.List(ctx)
	if err != nil {
		return StatusInfo{}, fmt.Errorf("list forms: %w", err)
	}

	channels, err := r.forms.ListChannels(ctx)
	if err != nil {
		return StatusInfo{}, fmt.Errorf("list channels: %w", err)
	}

	info := StatusInfo{
		Uptime:   r.opts.Clock().Sub(r.opts.Started),
		Forms:    len(forms),
		Channels: len(channels),
		Schedule: r.opts.Schedule,
	}
	info.UptimeSeconds = int64(info.Uptime.Seconds())

	if r.deliveries != nil {
		n, err := r.deliveries.CountFailed(ctx)
		if err != nil {
			r.log.Warn().Ctx(ctx).Err(err).Msg("failed to count delivery failures")
		}
		info.FailedDeliveries = n
	}

	return info, nil
}

func (r *Router) delete(ctx context.Context, channel, id string) (string, error) {
	if id == "" {
		forms, err := r.scoped(ctx, channel)
		if err != nil {
			return "", err
		}
		return deleteUsageText(forms, form.DateOf(r.opts.Clock()), r.opts.Prefix), nil
	}

	f, err := r.Delete(ctx, channel, id)
	switch {
	case errors.Is(err, form.ErrNotFound):
		return notFoundText(id), nil
	case errors.Is(err, form.ErrPermissionDenied):
		return notPermittedText(id), nil
	case err != nil:
		return "", err
	}
	return deletedText(f), nil
}

// Delete removes form id on behalf of channel. It returns form.ErrNotFound for
// an unknown id and form.ErrPermissionDenied when channel scoping is on and
// the form belongs to another channel.
func (r *Router) Delete(ctx context.Context, channel, id string) (form.Form, error) {
	f, err := r.forms.Get(ctx, id)
	if err != nil {
		return form.Form{}, err
	}

	if r.opts.ChannelScoped && f.Channel != channel {
		return form.Form{}, fmt.Errorf("delete %s: %w", id, form.ErrPermissionDenied)
	}

	if err := r.forms.Remove(ctx, id); err != nil {
		return form.Form{}, fmt.Errorf("remove %s: %w", id, err)
	}

	r.log.Info().Ctx(logging.WithFormID(ctx, id)).Str("title", f.Title).Msg("form deleted")
	return f, nil
}

// Purge removes every form in scope and returns how many were removed.
func (r *Router) Purge(ctx context.Context, channel string) (int, error) {
	forms, err := r.scoped(ctx, channel)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, f := range forms {
		if err := r.forms.Remove(ctx, f.ID); err != nil {
			return removed, fmt.Errorf("remove %s: %w", f.ID, err)
		}
		removed++
	}

	r.log.Info().Ctx(ctx).Int("removed", removed).Msg("forms purged")
	return removed, nil
}

func (r *Router) purge(ctx context.Context, channel string) (string, error) {
	n, err := r.Purge(ctx, channel)
	if err != nil {
		return "", err
	}
	return purgedText(n), nil
}

// scoped returns the forms visible from channel, sorted by deadline.
func (r *Router) scoped(ctx context.Context, channel string) ([]form.Form, error) {
	forms, err := r.forms.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}

	if r.opts.ChannelScoped {
		forms = slices.DeleteFunc(forms, func(f form.Form) bool { return f.Channel != channel })
	}

	SortByDeadline(forms)
	return forms, nil
}

// SortByDeadline orders forms by deadline, nearest first, keeping insertion
// order for equal deadlines.
func SortByDeadline(forms []form.Form) {
	slices.SortStableFunc(forms, func(a, b form.Form) int {
		switch {
		case a.Deadline.Before(b.Deadline):
			return -1
		case b.Deadline.Before(a.Deadline):
			return 1
		default:
			return 0
		}
	})
}
