// Package config handles configuration loading and validation for formbot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/formbot/internal/core/extract"
	"github.com/colonyops/formbot/internal/core/form"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverJSONFile = "jsonfile"
)

// Broadcast policies for reminders.
const (
	BroadcastAll    = "all"    // every registered channel
	BroadcastOrigin = "origin" // only the channel the form came from
)

// Scheduler concurrency policies.
const (
	ConcurrencySkip  = "skip"
	ConcurrencyDelay = "delay"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Slack     SlackConfig     `yaml:"slack"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Reminders ReminderConfig  `yaml:"reminders"`
	Retention RetentionConfig `yaml:"retention"`
	Extract   extract.Config  `yaml:"extract"`
	Commands  CommandsConfig  `yaml:"commands"`
	Database  DatabaseConfig  `yaml:"database"`
	DataDir   string          `yaml:"-"` // set by caller, not from config file
}

// ServerConfig configures the HTTP intake server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	RateLimit       float64       `yaml:"rate_limit"` // requests per second per client IP
	RateBurst       int           `yaml:"rate_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// KeepaliveURL, when set, is requested every KeepaliveInterval so hosts
	// that idle inactive services keep the bot running.
	KeepaliveURL      string        `yaml:"keepalive_url"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`

	// PprofAddr, when set, serves runtime profiles on a separate listener.
	PprofAddr string `yaml:"pprof_addr"`
}

// SlackConfig configures the Slack integration. Secrets come from flags or
// the environment, never from the config file.
type SlackConfig struct {
	BotToken      string        `yaml:"-"`
	SigningSecret string        `yaml:"-"`
	Timeout       time.Duration `yaml:"timeout"`
	Marker        string        `yaml:"marker"`   // reaction added to detected announcements
	Channels      []string      `yaml:"channels"` // glob allowlist of watched channels; empty = all
}

// ScheduleConfig holds the cron expressions driving the scheduler.
type ScheduleConfig struct {
	Reminders   string `yaml:"reminders"`
	Sweep       string `yaml:"sweep"`
	Concurrency string `yaml:"concurrency"` // skip, delay
	Timezone    string `yaml:"timezone"`    // IANA name; empty = local
}

// ReminderConfig selects the reminder cadence.
type ReminderConfig struct {
	Kinds        []form.ReminderKind `yaml:"kinds"`
	FinalDayHour int                 `yaml:"final_day_hour"`
	Broadcast    string              `yaml:"broadcast"` // all, origin
}

// RetentionConfig controls removal of expired forms.
type RetentionConfig struct {
	Days         int   `yaml:"days"`
	RemoveOnTick *bool `yaml:"remove_on_tick"` // nil = true
}

// CommandsConfig configures the in-chat command surface.
type CommandsConfig struct {
	Prefix        string            `yaml:"prefix"`
	ChannelScoped *bool             `yaml:"channel_scoped"` // nil = true
	Aliases       map[string]string `yaml:"aliases"`        // alias -> command
}

// DatabaseConfig configures the form store backend.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // sqlite, jsonfile
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	BusyTimeout  int    `yaml:"busy_timeout"` // milliseconds
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":3000",
			RateLimit:         20,
			RateBurst:         40,
			ShutdownTimeout:   10 * time.Second,
			KeepaliveInterval: 5 * time.Minute,
		},
		Slack: SlackConfig{
			Timeout: 10 * time.Second,
			Marker:  "white_check_mark",
		},
		Schedule: ScheduleConfig{
			Reminders:   "0 19 * * *",
			Sweep:       "0 0 * * *",
			Concurrency: ConcurrencySkip,
		},
		Reminders: ReminderConfig{
			Kinds:        slices.Clone(form.ReminderKinds),
			FinalDayHour: 19,
			Broadcast:    BroadcastAll,
		},
		Extract: extract.DefaultConfig(),
		Commands: CommandsConfig{
			Prefix: "!",
			Aliases: map[string]string{
				"listar":  "list",
				"deletar": "delete",
				"apagar":  "delete",
				"limpar":  "purge",
				"ajuda":   "help",
			},
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5000,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.Commands.Aliases = mergeAliases(DefaultConfig().Commands.Aliases, cfg.Commands.Aliases)

	// Apply defaults for zero values
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = defaults.Server.RateLimit
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = defaults.Server.RateBurst
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if c.Server.KeepaliveInterval == 0 {
		c.Server.KeepaliveInterval = defaults.Server.KeepaliveInterval
	}
	if c.Slack.Timeout == 0 {
		c.Slack.Timeout = defaults.Slack.Timeout
	}
	if c.Slack.Marker == "" {
		c.Slack.Marker = defaults.Slack.Marker
	}
	if c.Schedule.Reminders == "" {
		c.Schedule.Reminders = defaults.Schedule.Reminders
	}
	if c.Schedule.Sweep == "" {
		c.Schedule.Sweep = defaults.Schedule.Sweep
	}
	if c.Schedule.Concurrency == "" {
		c.Schedule.Concurrency = defaults.Schedule.Concurrency
	}
	if c.Reminders.Broadcast == "" {
		c.Reminders.Broadcast = defaults.Reminders.Broadcast
	}
	if c.Extract.Trigger == "" {
		c.Extract.Trigger = defaults.Extract.Trigger
	}
	if c.Extract.DuePhrase == "" {
		c.Extract.DuePhrase = defaults.Extract.DuePhrase
	}
	if c.Commands.Prefix == "" {
		c.Commands.Prefix = defaults.Commands.Prefix
	}
	if c.Database.Driver == "" {
		c.Database.Driver = defaults.Database.Driver
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
}

// mergeAliases merges user aliases into defaults.
// User aliases override defaults for the same key.
func mergeAliases(defaults, user map[string]string) map[string]string {
	result := make(map[string]string, len(defaults)+len(user))
	for k, v := range defaults {
		result[k] = v
	}
	for k, v := range user {
		result[k] = v
	}
	return result
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverJSONFile:
	default:
		return fmt.Errorf("database.driver %q is not supported (sqlite, jsonfile)", c.Database.Driver)
	}

	for _, k := range c.Reminders.Kinds {
		if !k.IsValid() {
			return fmt.Errorf("reminders.kinds: unknown kind %q", k)
		}
	}

	if c.Reminders.FinalDayHour < 0 || c.Reminders.FinalDayHour > 23 {
		return fmt.Errorf("reminders.final_day_hour must be between 0 and 23")
	}

	switch c.Reminders.Broadcast {
	case BroadcastAll, BroadcastOrigin:
	default:
		return fmt.Errorf("reminders.broadcast %q is not supported (all, origin)", c.Reminders.Broadcast)
	}

	if c.Server.KeepaliveInterval < 0 {
		return fmt.Errorf("server.keepalive_interval cannot be negative")
	}

	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days cannot be negative")
	}

	switch c.Schedule.Concurrency {
	case ConcurrencySkip, ConcurrencyDelay:
	default:
		return fmt.Errorf("schedule.concurrency %q is not supported (skip, delay)", c.Schedule.Concurrency)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}

	for alias, target := range c.Commands.Aliases {
		if !IsCommand(target) {
			return fmt.Errorf("commands.aliases: %q points to unknown command %q", alias, target)
		}
	}

	return nil
}

// Commands understood by the in-chat router.
const (
	CommandList   = "list"
	CommandStatus = "status"
	CommandDelete = "delete"
	CommandPurge  = "purge"
	CommandHelp   = "help"
)

// IsCommand reports whether name is a built-in command.
func IsCommand(name string) bool {
	switch name {
	case CommandList, CommandStatus, CommandDelete, CommandPurge, CommandHelp:
		return true
	default:
		return false
	}
}

// Policy returns the lifecycle policy derived from the reminder settings.
func (c *Config) Policy() form.Policy {
	return form.Policy{
		Kinds:        slices.Clone(c.Reminders.Kinds),
		FinalDayHour: c.Reminders.FinalDayHour,
	}
}

// Location returns the time zone the scheduler and date math run in.
func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Schedule.Timezone)
}

// RemoveOnTick reports whether expired forms are removed by the reminder tick
// itself when retention is zero days.
func (c *Config) RemoveOnTick() bool {
	return c.Retention.RemoveOnTick == nil || *c.Retention.RemoveOnTick
}

// ChannelScoped reports whether commands only see forms of the invoking channel.
func (c *Config) ChannelScoped() bool {
	return c.Commands.ChannelScoped == nil || *c.Commands.ChannelScoped
}

// FormsFile returns the path to the forms JSON file (jsonfile driver).
func (c *Config) FormsFile() string {
	return filepath.Join(c.DataDir, "forms-db.json")
}
