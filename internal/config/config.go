package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Store: StoreConfig{Driver: "sqlite"},
		Dialogue: DialogueConfig{
			HistorySize: 20,
			ListLimit:   10,
			IdleMinutes: 30,
			MaxSessions: 1000,
		},
		Reminders: RemindersConfig{
			PollInterval: "30s",
			Tolerance:    "60s",
			MaxLateness:  "10m",
			SendTimeout:  "10s",
			Offsets: []OffsetEntry{
				{Label: "advance", Offset: "-10m"},
				{Label: "due", Offset: "0s"},
			},
			DailyReport: "0 20 * * *",
		},
		LLM: LLMConfig{Provider: "none", Timeout: "60s"},
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "loopback",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("timezone %q: %v", c.Timezone, err)}
	}
	return loc, nil
}

// DurationOr parses s, returning def when s is empty or malformed.
func DurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
