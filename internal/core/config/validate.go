package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
	"github.com/robfig/cron/v3"

	"github.com/colonyops/formbot/internal/core/extract"
)

// CronParser parses the five-field cron expressions used by the scheduler.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration including
// cron expressions, extractor phrases, and file accessibility. The configPath argument
// specifies the config file location to validate (empty string skips config file check).
// This calls Validate() first for basic structural validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateSchedule(),
		c.validateExtract(),
		c.validateAliases(),
		criterio.Run("server.keepalive_url", c.Server.KeepaliveURL, httpURL),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if len(c.Reminders.Kinds) == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Reminders",
			Item:     "kinds",
			Message:  "no reminder kinds enabled, forms will only expire",
		})
	}

	if sched, err := CronParser.Parse(c.Schedule.Reminders); err == nil {
		if s, ok := sched.(*cron.SpecSchedule); ok && !firesAfter(s.Hour, c.Reminders.FinalDayHour) {
			warnings = append(warnings, ValidationWarning{
				Category: "Reminders",
				Item:     "final_day_hour",
				Message:  fmt.Sprintf("reminder schedule never runs at or after %02d:00, final day reminders will not be sent", c.Reminders.FinalDayHour),
			})
		}
	}

	if c.Slack.BotToken == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Slack",
			Item:     "bot_token",
			Message:  "no bot token configured, notifications are discarded",
		})
	}

	return warnings
}

// firesAfter reports whether the cron hour bitmask has any hour >= h.
func firesAfter(hours uint64, h int) bool {
	for i := h; i < 24; i++ {
		if hours&(1<<uint(i)) != 0 {
			return true
		}
	}
	return false
}

// validateFileAccess checks config file and data directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

// validateSchedule checks both cron expressions parse.
func (c *Config) validateSchedule() error {
	return criterio.ValidateStruct(
		criterio.Run("schedule.reminders", c.Schedule.Reminders, cronExpression),
		criterio.Run("schedule.sweep", c.Schedule.Sweep, cronExpression),
	)
}

func cronExpression(spec string) error {
	if _, err := CronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

func httpURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
}

// validateExtract checks the detection phrases are usable.
func (c *Config) validateExtract() error {
	var errs criterio.FieldErrorsBuilder

	if strings.TrimSpace(c.Extract.Trigger) == "" {
		errs = errs.Append("extract.trigger", fmt.Errorf("cannot be blank"))
	}
	if strings.TrimSpace(c.Extract.DuePhrase) == "" {
		errs = errs.Append("extract.due_phrase", fmt.Errorf("cannot be blank"))
	}
	for i, p := range c.Extract.CutPhrases {
		if strings.TrimSpace(p) == "" {
			errs = errs.Append(fmt.Sprintf("extract.cut_phrases[%d]", i), fmt.Errorf("cannot be blank"))
		}
	}

	// A trigger that is itself cut would make every announcement title empty.
	probe := extract.New(c.Extract).Normalize(c.Extract.Trigger)
	if probe == "" {
		errs = errs.Append("extract.trigger", fmt.Errorf("trigger %q is removed by cut_phrases", c.Extract.Trigger))
	}

	return errs.ToError()
}

// validateAliases rejects aliases that shadow a different built-in command.
func (c *Config) validateAliases() error {
	var errs criterio.FieldErrorsBuilder
	for alias, target := range c.Commands.Aliases {
		if IsCommand(alias) && alias != target {
			errs = errs.Append(fmt.Sprintf("commands.aliases[%q]", alias), fmt.Errorf("shadows built-in command %q", alias))
		}
		if strings.ContainsAny(alias, " \t\n") {
			errs = errs.Append(fmt.Sprintf("commands.aliases[%q]", alias), fmt.Errorf("alias cannot contain whitespace"))
		}
	}
	return errs.ToError()
}
