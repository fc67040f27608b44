package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/formbot/internal/core/form"
)

type RmCmd struct {
	flags *Flags
}

// NewRmCmd creates a new rm command
func NewRmCmd(flags *Flags) *RmCmd {
	return &RmCmd{flags: flags}
}

// Register adds the rm command to the application
func (cmd *RmCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "rm",
		Usage:       "Remove forms by ID",
		UsageText:   "formbot rm <id>...",
		Description: "Removes forms regardless of the channel they were announced in.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *RmCmd) run(ctx context.Context, c *cli.Command) error {
	ids := c.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("at least one form ID is required")
	}

	b, err := openBot(cmd.flags.Config)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	out := c.Root().Writer
	var missing int
	for _, id := range ids {
		f, err := b.app.Forms.Get(ctx, id)
		if errors.Is(err, form.ErrNotFound) {
			_, _ = fmt.Fprintf(c.Root().ErrWriter, "%s: not found\n", id)
			missing++
			continue
		}
		if err != nil {
			return fmt.Errorf("get form %s: %w", id, err)
		}

		if err := b.app.Forms.Remove(ctx, id); err != nil {
			return fmt.Errorf("remove form %s: %w", id, err)
		}
		_, _ = fmt.Fprintf(out, "removed %s (%s)\n", f.ID, f.Title)
	}

	if missing > 0 {
		return cli.Exit("", 1)
	}
	return nil
}
