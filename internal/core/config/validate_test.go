package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Slack.BotToken = "xoxb-test"
	return cfg
}

func TestValidateDeep_Valid(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.ValidateDeep(""))
}

func TestValidateDeep_BadCron(t *testing.T) {
	cfg := validConfig(t)
	cfg.Schedule.Reminders = "every evening"

	err := cfg.ValidateDeep("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule.reminders")
}

func TestValidateDeep_DataDirIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	cfg.DataDir = file

	err := cfg.ValidateDeep("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestValidateDeep_ConfigPathIsDir(t *testing.T) {
	cfg := validConfig(t)
	dir := t.TempDir()

	err := cfg.ValidateDeep(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestValidateDeep_TriggerCut(t *testing.T) {
	cfg := validConfig(t)
	cfg.Extract.Trigger = "link"

	err := cfg.ValidateDeep("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract.trigger")
}

func TestValidateDeep_AliasShadowsCommand(t *testing.T) {
	cfg := validConfig(t)
	cfg.Commands.Aliases = map[string]string{"status": "list"}

	err := cfg.ValidateDeep("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shadows built-in")
}

func TestValidateDeep_KeepaliveURL(t *testing.T) {
	cfg := validConfig(t)
	cfg.Server.KeepaliveURL = "https://formbot.example.com/test"
	require.NoError(t, cfg.ValidateDeep(""))

	cfg.Server.KeepaliveURL = "formbot.example.com/test"
	err := cfg.ValidateDeep("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.keepalive_url")
}

func TestWarnings(t *testing.T) {
	cfg := validConfig(t)
	assert.Empty(t, cfg.Warnings())

	cfg.Reminders.Kinds = nil
	cfg.Schedule.Reminders = "0 9 * * *"
	cfg.Slack.BotToken = ""

	items := make([]string, 0, 3)
	for _, w := range cfg.Warnings() {
		items = append(items, w.Item)
	}
	assert.ElementsMatch(t, []string{"kinds", "final_day_hour", "bot_token"}, items)
}
