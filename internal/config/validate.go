package config

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var offsetLabelPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

var canonicalFields = []string{"client_name", "client_number", "project", "modality", "occurs_at", "notes"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := cfg.Location(); err != nil {
		add("timezone", "unknown timezone %q", cfg.Timezone)
	}

	validDrivers := []string{"sqlite", "memory"}
	if cfg.Store.Driver != "" && !slices.Contains(validDrivers, cfg.Store.Driver) {
		add("store.driver", "must be one of %v, got %q", validDrivers, cfg.Store.Driver)
	}

	// Dialogue
	for field := range cfg.Dialogue.FieldAliases {
		if !slices.Contains(canonicalFields, field) {
			add("dialogue.fieldAliases."+field, "must be one of %v", canonicalFields)
		}
	}
	if cfg.Dialogue.HistorySize < 0 {
		add("dialogue.historySize", "must not be negative")
	}
	if cfg.Dialogue.IdleMinutes < 0 {
		add("dialogue.idleMinutes", "must not be negative")
	}

	issues = append(issues, validateReminders(&cfg.Reminders)...)

	// LLM
	validProviders := []string{"claude", "gemini", "ollama", "none"}
	switch {
	case cfg.LLM.Provider != "" && !slices.Contains(validProviders, cfg.LLM.Provider):
		add("llm.provider", "must be one of %v, got %q", validProviders, cfg.LLM.Provider)
	case (cfg.LLM.Provider == "claude" || cfg.LLM.Provider == "gemini") && cfg.LLM.APIKey == "":
		add("llm.apiKey", "required for provider %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Provider != "none" && slices.Contains(validProviders, cfg.LLM.Provider) && cfg.LLM.Model == "" {
		add("llm.model", "required for provider %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Timeout != "" {
		if _, err := time.ParseDuration(cfg.LLM.Timeout); err != nil {
			add("llm.timeout", "invalid duration %q", cfg.LLM.Timeout)
		}
	}

	// Gateway
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	validBinds := []string{"loopback", "lan"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if ws := cfg.Channels.WebSocket; ws != nil && ws.Enabled && !cfg.Gateway.IsEnabled() {
		add("channels.websocket.enabled", "requires the gateway to be enabled")
	}

	// IRC validation (only if configured)
	if irc := cfg.Channels.IRC; irc != nil {
		if irc.Server == "" {
			add("channels.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("channels.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("channels.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("channels.irc.sasl", "SASL requires a password to be set")
		}
	}

	if cfg.Sheets.Enabled {
		if cfg.Sheets.SpreadsheetID == "" {
			add("sheets.spreadsheetId", "required when sheets is enabled")
		}
		if cfg.Sheets.CredentialsFile == "" {
			add("sheets.credentialsFile", "required when sheets is enabled")
		}
	}

	for i, h := range cfg.Hooks.Commands {
		path := fmt.Sprintf("hooks.commands[%d]", i)
		if h.Event == "" {
			add(path+".event", "event is required")
		}
		if h.Command == "" {
			add(path+".command", "command is required")
		}
		if h.Timeout < 0 {
			add(path+".timeout", "must not be negative")
		}
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}

func validateReminders(r *RemindersConfig) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: "reminders." + path, Message: fmt.Sprintf(format, args...)})
	}

	durations := map[string]time.Duration{}
	for _, kv := range []struct{ name, value string }{
		{"pollInterval", r.PollInterval},
		{"tolerance", r.Tolerance},
		{"maxLateness", r.MaxLateness},
		{"sendTimeout", r.SendTimeout},
	} {
		if kv.value == "" {
			continue
		}
		d, err := time.ParseDuration(kv.value)
		if err != nil || d <= 0 {
			add(kv.name, "must be a positive duration, got %q", kv.value)
			continue
		}
		durations[kv.name] = d
	}
	poll, okP := durations["pollInterval"]
	tol, okT := durations["tolerance"]
	late, okL := durations["maxLateness"]
	if okP && okT && poll > tol {
		add("tolerance", "must be at least pollInterval (%s), got %s", poll, tol)
	}
	if okT && okL && tol > late {
		add("maxLateness", "must be at least tolerance (%s), got %s", tol, late)
	}

	seen := map[string]bool{}
	for i, o := range r.Offsets {
		path := fmt.Sprintf("offsets[%d]", i)
		if !offsetLabelPattern.MatchString(o.Label) {
			add(path+".label", "must match %s, got %q", offsetLabelPattern, o.Label)
		} else if seen[o.Label] {
			add(path+".label", "duplicate label %q", o.Label)
		}
		seen[o.Label] = true
		if _, err := time.ParseDuration(o.Offset); err != nil {
			add(path+".offset", "invalid duration %q", o.Offset)
		}
	}

	if r.DailyReport != "" {
		if _, err := cron.ParseStandard(r.DailyReport); err != nil {
			add("dailyReport", "invalid cron expression: %v", err)
		}
	}
	return issues
}
