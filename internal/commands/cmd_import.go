package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/store/jsonfile"
	"github.com/colonyops/formbot/pkg/iojson"
)

type ImportCmd struct {
	flags  *Flags
	reader iojson.FileReader[jsonfile.LegacyFile]

	// flags
	dryRun bool
}

// NewImportCmd creates a new import command
func NewImportCmd(flags *Flags) *ImportCmd {
	return &ImportCmd{flags: flags}
}

// Register adds the import command to the application
func (cmd *ImportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "import",
		Usage:     "Import forms from a legacy forms-db.json",
		UsageText: "formbot import [-f forms-db.json] [--dry-run]",
		Description: `Reads the JSON document written by the first version of the bot and
stores its forms and channels. Reminders already flagged as sent are kept,
so they are not sent again. Forms whose ID already exists are skipped.`,
		Flags: []cli.Flag{
			cmd.reader.Flag(),
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "validate the document without storing anything",
				Destination: &cmd.dryRun,
			},
		},
		Action: cmd.run,
	})

	return app
}

// importSummary is printed after an import.
type importSummary struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Invalid  []string `json:"invalid,omitempty"`
	Channels int      `json:"channels"`
	DryRun   bool     `json:"dry_run,omitempty"`
}

func (cmd *ImportCmd) run(ctx context.Context, c *cli.Command) error {
	doc, err := cmd.reader.Read()
	if err != nil {
		return err
	}

	b, err := openBot(cmd.flags.Config)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	summary, err := importLegacy(ctx, b.app.Forms, doc, cmd.dryRun)
	if err != nil {
		return err
	}
	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, summary)
}

func importLegacy(ctx context.Context, store form.Store, doc jsonfile.LegacyFile, dryRun bool) (importSummary, error) {
	summary := importSummary{DryRun: dryRun}

	channels := map[string]bool{}
	for _, ch := range doc.Channels {
		channels[ch] = true
	}

	for _, legacy := range doc.Forms {
		f, err := legacy.Convert()
		if err != nil {
			log.Warn().Err(err).Msg("skipping invalid legacy form")
			summary.Invalid = append(summary.Invalid, legacy.ID)
			continue
		}

		if f.ID != "" {
			if _, err := store.Get(ctx, f.ID); err == nil {
				summary.Skipped++
				continue
			}
		}

		if f.Channel != "" {
			channels[f.Channel] = true
		}
		if dryRun {
			summary.Imported++
			continue
		}

		if err := store.Create(ctx, &f); err != nil {
			return summary, fmt.Errorf("store form %s: %w", legacy.ID, err)
		}
		summary.Imported++
	}

	summary.Channels = len(channels)
	if dryRun {
		return summary, nil
	}

	for _, ch := range doc.Channels {
		if err := store.RegisterChannel(ctx, ch); err != nil {
			return summary, fmt.Errorf("register channel %s: %w", ch, err)
		}
	}
	for _, legacy := range doc.Forms {
		if legacy.Channel == "" {
			continue
		}
		if err := store.RegisterChannel(ctx, legacy.Channel); err != nil {
			return summary, fmt.Errorf("register channel %s: %w", legacy.Channel, err)
		}
	}

	return summary, nil
}
