package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields resolves ${ENV} references in credentials.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Token = expandEnvVars(cfg.Gateway.Token)
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	cfg.Sheets.CredentialsFile = expandEnvVars(cfg.Sheets.CredentialsFile)
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Defaults(), err
	}
	return Parse(data)
}

// Parse builds a Config from YAML the same way Load does. Empty data yields
// the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
		applyDefaults(&cfg)
	}
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// FromRaw converts a map from LoadRaw into a Config.
func FromRaw(raw map[string]any) (Config, error) {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return Defaults(), fmt.Errorf("encoding config: %w", err)
	}
	return Parse(data)
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults refills values a config file zeroed out explicitly.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = def.Store.Driver
	}
	d := &cfg.Dialogue
	if d.HistorySize == 0 {
		d.HistorySize = def.Dialogue.HistorySize
	}
	if d.ListLimit == 0 {
		d.ListLimit = def.Dialogue.ListLimit
	}
	if d.IdleMinutes == 0 {
		d.IdleMinutes = def.Dialogue.IdleMinutes
	}
	if d.MaxSessions == 0 {
		d.MaxSessions = def.Dialogue.MaxSessions
	}
	r := &cfg.Reminders
	if r.PollInterval == "" {
		r.PollInterval = def.Reminders.PollInterval
	}
	if r.Tolerance == "" {
		r.Tolerance = def.Reminders.Tolerance
	}
	if r.MaxLateness == "" {
		r.MaxLateness = def.Reminders.MaxLateness
	}
	if r.SendTimeout == "" {
		r.SendTimeout = def.Reminders.SendTimeout
	}
	if len(r.Offsets) == 0 {
		r.Offsets = def.Reminders.Offsets
	}
	if r.DailyReport == "" {
		r.DailyReport = def.Reminders.DailyReport
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = def.LLM.Provider
	}
	if cfg.LLM.Timeout == "" {
		cfg.LLM.Timeout = def.LLM.Timeout
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = def.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = def.Gateway.Bind
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = def.Logging.ConsoleStyle
	}
	if cfg.Sheets.Sheet == "" {
		cfg.Sheets.Sheet = "Citas"
	}
}

// applyEnvOverrides reads AGENDABOT_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENDABOT_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("AGENDABOT_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("AGENDABOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("AGENDABOT_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("AGENDABOT_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("AGENDABOT_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
}
