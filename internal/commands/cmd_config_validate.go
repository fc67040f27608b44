package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/formbot/internal/core/config"
	"github.com/colonyops/formbot/internal/core/styles"
	"github.com/colonyops/formbot/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "formbot config validate [options]",
				Description: "Validates the configuration file, checking cron expressions, detection phrases, aliases, and file paths.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

func (cmd *ConfigValidateCmd) run(_ context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	err := cfg.ValidateDeep(cmd.flags.ConfigPath)
	warnings := cfg.Warnings()

	if cmd.format == "json" {
		return cmd.outputJSON(c, err, warnings)
	}

	return cmd.outputText(err, warnings)
}

func (cmd *ConfigValidateCmd) outputJSON(c *cli.Command, err error, warnings []config.ValidationWarning) error {
	out := struct {
		Valid    bool                       `json:"valid"`
		Error    string                     `json:"error,omitempty"`
		Warnings []config.ValidationWarning `json:"warnings,omitempty"`
	}{
		Valid:    err == nil,
		Warnings: warnings,
	}
	if err != nil {
		out.Error = err.Error()
	}

	if werr := iojson.WriteWith(c.Root().Writer, os.Stderr, out); werr != nil {
		return werr
	}
	if err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *ConfigValidateCmd) outputText(err error, warnings []config.ValidationWarning) error {
	w := os.Stderr

	for _, warn := range warnings {
		_, _ = fmt.Fprintf(w, "%s %s: %s\n", styles.TextWarningStyle.Render("●"), warn.Category, warn.Message)
		if warn.Item != "" {
			_, _ = fmt.Fprintf(w, "  Item: %s\n", warn.Item)
		}
	}

	if err != nil {
		_, _ = fmt.Fprintf(w, "%s %v\n", styles.TextErrorStyle.Render("✘"), err)
		return cli.Exit("", 1)
	}

	_, _ = fmt.Fprintf(w, "%s Configuration is valid\n", styles.TextSuccessStyle.Render("✔"))
	return nil
}
