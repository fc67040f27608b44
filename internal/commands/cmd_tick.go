package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/formbot/internal/core/config"
	"github.com/colonyops/formbot/pkg/iojson"
)

const atLayout = "2006-01-02 15:04"

type TickCmd struct {
	flags *Flags

	// flags
	at string
}

// NewTickCmd creates a new tick command
func NewTickCmd(flags *Flags) *TickCmd {
	return &TickCmd{flags: flags}
}

// Register adds the tick and sweep commands to the application
func (cmd *TickCmd) Register(app *cli.Command) *cli.Command {
	atFlag := &cli.StringFlag{
		Name:        "at",
		Usage:       "evaluate as of this local time (YYYY-MM-DD HH:MM) instead of now",
		Destination: &cmd.at,
	}

	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "tick",
			Usage:     "Run one reminder pass now",
			UsageText: "formbot tick [--at \"YYYY-MM-DD HH:MM\"]",
			Description: `Evaluates every form once, exactly like a scheduled reminder run:
due reminders are sent, past deadlines expire. Prints the run report as JSON.`,
			Flags:  []cli.Flag{atFlag},
			Action: cmd.runTick,
		},
		&cli.Command{
			Name:        "sweep",
			Usage:       "Remove forms past retention now",
			UsageText:   "formbot sweep [--at \"YYYY-MM-DD HH:MM\"]",
			Description: "Removes forms whose deadline is more than retention.days in the past.",
			Flags:       []cli.Flag{atFlag},
			Action:      cmd.runSweep,
		},
	)

	return app
}

func (cmd *TickCmd) runTick(ctx context.Context, c *cli.Command) error {
	now, err := resolveAt(cmd.flags.Config, cmd.at)
	if err != nil {
		return err
	}

	b, err := openBot(cmd.flags.Config)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	report, err := b.app.Scheduler.Tick(ctx, now)
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, report)
}

func (cmd *TickCmd) runSweep(ctx context.Context, c *cli.Command) error {
	now, err := resolveAt(cmd.flags.Config, cmd.at)
	if err != nil {
		return err
	}

	b, err := openBot(cmd.flags.Config)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	removed, err := b.app.Scheduler.Sweep(ctx, now)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, map[string]int{"removed": removed})
}

// resolveAt parses --at in the configured time zone; empty means now.
func resolveAt(cfg *config.Config, at string) (time.Time, error) {
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	if at == "" {
		return time.Now().In(loc), nil
	}

	t, err := time.ParseInLocation(atLayout, at, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q, expected YYYY-MM-DD HH:MM", at)
	}
	return t, nil
}
