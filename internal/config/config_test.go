package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 20, cfg.Dialogue.HistorySize)
	assert.Equal(t, 30, cfg.Dialogue.IdleMinutes)
	assert.Equal(t, "30s", cfg.Reminders.PollInterval)
	assert.Equal(t, "60s", cfg.Reminders.Tolerance)
	assert.Equal(t, []OffsetEntry{{"advance", "-10m"}, {"due", "0s"}}, cfg.Reminders.Offsets)
	assert.Equal(t, "0 20 * * *", cfg.Reminders.DailyReport)
	assert.True(t, cfg.Reminders.IsEnabled())
	assert.Equal(t, "none", cfg.LLM.Provider)
	assert.True(t, cfg.Gateway.IsEnabled())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, Validate(&cfg))
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Gateway.Port, cfg.Gateway.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("TEST_AGENDA_IRC_PASS", "hunter2")

	yaml := `
timezone: UTC
dialogue:
  confirmTokens: [si, vale]
  fieldAliases:
    project: [obra]
reminders:
  tolerance: 90s
  offsets:
    - label: day-before
      offset: -24h
  dailyReport: "30 19 * * *"
llm:
  provider: ollama
  model: llama3
channels:
  irc:
    server: irc.libera.chat
    nick: agendabot
    password: ${TEST_AGENDA_IRC_PASS}
    channels: ["#oficina"]
    useTLS: true
  websocket:
    enabled: true
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, []string{"si", "vale"}, cfg.Dialogue.ConfirmTokens)
	assert.Equal(t, []string{"obra"}, cfg.Dialogue.FieldAliases["project"])
	assert.Equal(t, 20, cfg.Dialogue.HistorySize, "unset values keep defaults")
	assert.Equal(t, "90s", cfg.Reminders.Tolerance)
	assert.Equal(t, "30s", cfg.Reminders.PollInterval)
	assert.Equal(t, []OffsetEntry{{"day-before", "-24h"}}, cfg.Reminders.Offsets)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	require.NotNil(t, cfg.Channels.IRC)
	assert.Equal(t, "hunter2", cfg.Channels.IRC.Password)
	assert.Equal(t, []string{"#oficina"}, cfg.Channels.IRC.Channels)
	require.NotNil(t, cfg.Channels.WebSocket)
	assert.True(t, cfg.Channels.WebSocket.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Empty(t, Validate(&cfg))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reminders: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AGENDABOT_GATEWAY_PORT", "7777")
	t.Setenv("AGENDABOT_LOG_LEVEL", "DEBUG")
	t.Setenv("AGENDABOT_TIMEZONE", "Europe/Madrid")
	t.Setenv("AGENDABOT_LLM_PROVIDER", "Claude")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Gateway.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "Europe/Madrid", cfg.Timezone)
	assert.Equal(t, "claude", cfg.LLM.Provider)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_AGENDA_TOKEN", "abc")
	assert.Equal(t, "abc", expandEnvVars("${TEST_AGENDA_TOKEN}"))
	assert.Equal(t, "x-abc-y", expandEnvVars("x-${TEST_AGENDA_TOKEN}-y"))
	assert.Equal(t, "${TEST_AGENDA_UNSET_VAR}", expandEnvVars("${TEST_AGENDA_UNSET_VAR}"))
}

func TestLocation(t *testing.T) {
	cfg := Defaults()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Timezone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	cfg.Timezone = "Mars/Olympus"
	_, err = cfg.Location()
	assert.Error(t, err)
}

func TestDurationOr(t *testing.T) {
	assert.Equal(t, 30*time.Second, DurationOr("30s", time.Minute))
	assert.Equal(t, time.Minute, DurationOr("", time.Minute))
	assert.Equal(t, time.Minute, DurationOr("soon", time.Minute))
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	raw, err := LoadRaw(path)
	require.NoError(t, err)
	assert.Empty(t, raw)

	SetValueAtPath(raw, []string{"reminders", "tolerance"}, "90s")
	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)
	val, ok := GetValueAtPath(loaded, []string{"reminders", "tolerance"})
	assert.True(t, ok)
	assert.Equal(t, "90s", val)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "90s", cfg.Reminders.Tolerance)
}

func TestFromRaw(t *testing.T) {
	raw := map[string]any{
		"timezone": "UTC",
		"reminders": map[string]any{
			"tolerance": "5s",
		},
	}
	cfg, err := FromRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "5s", cfg.Reminders.Tolerance)
	assert.Equal(t, "30s", cfg.Reminders.PollInterval, "unset keys keep defaults")
	assert.NotEmpty(t, Validate(&cfg), "tolerance below the poll interval")

	cfg, err = FromRaw(map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, Validate(&cfg))
}
