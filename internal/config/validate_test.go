package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func issuePaths(issues []ValidationIssue) []string {
	var out []string
	for _, i := range issues {
		out = append(out, i.Path)
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"defaults", func(*Config) {}, nil},
		{"bad timezone", func(c *Config) { c.Timezone = "Nowhere/Town" }, []string{"timezone"}},
		{"bad store driver", func(c *Config) { c.Store.Driver = "mongo" }, []string{"store.driver"}},
		{"unknown alias field", func(c *Config) {
			c.Dialogue.FieldAliases = map[string][]string{"color": {"tono"}}
		}, []string{"dialogue.fieldAliases.color"}},
		{"poll above tolerance", func(c *Config) {
			c.Reminders.PollInterval = "2m"
		}, []string{"reminders.tolerance"}},
		{"tolerance above lateness", func(c *Config) {
			c.Reminders.Tolerance = "15m"
		}, []string{"reminders.maxLateness"}},
		{"equal bounds are fine", func(c *Config) {
			c.Reminders.PollInterval = "1m"
			c.Reminders.Tolerance = "1m"
			c.Reminders.MaxLateness = "1m"
		}, nil},
		{"bad duration", func(c *Config) { c.Reminders.SendTimeout = "pronto" }, []string{"reminders.sendTimeout"}},
		{"zero duration", func(c *Config) { c.Reminders.PollInterval = "0s" }, []string{"reminders.pollInterval"}},
		{"duplicate offset", func(c *Config) {
			c.Reminders.Offsets = []OffsetEntry{{"due", "0s"}, {"due", "-5m"}}
		}, []string{"reminders.offsets[1].label"}},
		{"bad offset label", func(c *Config) {
			c.Reminders.Offsets = []OffsetEntry{{"Día Antes", "-24h"}}
		}, []string{"reminders.offsets[0].label"}},
		{"bad offset value", func(c *Config) {
			c.Reminders.Offsets = []OffsetEntry{{"due", "now"}}
		}, []string{"reminders.offsets[0].offset"}},
		{"bad cron", func(c *Config) { c.Reminders.DailyReport = "every evening" }, []string{"reminders.dailyReport"}},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "gpt" }, []string{"llm.provider"}},
		{"gemini needs key and model", func(c *Config) { c.LLM.Provider = "gemini" }, []string{"llm.apiKey", "llm.model"}},
		{"claude needs key and model", func(c *Config) { c.LLM.Provider = "claude" }, []string{"llm.apiKey", "llm.model"}},
		{"ollama needs model", func(c *Config) { c.LLM.Provider = "ollama" }, []string{"llm.model"}},
		{"bad port", func(c *Config) { c.Gateway.Port = 70000 }, []string{"gateway.port"}},
		{"bad bind", func(c *Config) { c.Gateway.Bind = "tailnet" }, []string{"gateway.bind"}},
		{"websocket without gateway", func(c *Config) {
			off := false
			c.Gateway.Enabled = &off
			c.Channels.WebSocket = &WebSocketConfig{Enabled: true}
		}, []string{"channels.websocket.enabled"}},
		{"irc missing fields", func(c *Config) {
			c.Channels.IRC = &IRCConfig{Port: -1, SASL: true}
		}, []string{"channels.irc.server", "channels.irc.nick", "channels.irc.port", "channels.irc.sasl"}},
		{"irc valid", func(c *Config) {
			c.Channels.IRC = &IRCConfig{Server: "irc.libera.chat", Nick: "agendabot", SASL: true, Password: "x"}
		}, nil},
		{"sheets incomplete", func(c *Config) { c.Sheets.Enabled = true }, []string{"sheets.spreadsheetId", "sheets.credentialsFile"}},
		{"hook incomplete", func(c *Config) {
			c.Hooks.Commands = []HookEntry{{Timeout: -1}}
		}, []string{"hooks.commands[0].event", "hooks.commands[0].command", "hooks.commands[0].timeout"}},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, []string{"logging.level"}},
		{"bad console style", func(c *Config) { c.Logging.ConsoleStyle = "compact" }, []string{"logging.consoleStyle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Equal(t, tt.want, issuePaths(Validate(&cfg)))
		})
	}
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "reminders.tolerance", Message: "too small"}
	assert.Equal(t, "reminders.tolerance: too small", issue.String())
}
