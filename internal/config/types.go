package config

// Config is the root configuration for agendabot.
type Config struct {
	Timezone  string          `yaml:"timezone,omitempty"` // IANA name, e.g. "America/Lima"; empty means the host zone
	Store     StoreConfig     `yaml:"store,omitempty"`
	Dialogue  DialogueConfig  `yaml:"dialogue,omitempty"`
	Reminders RemindersConfig `yaml:"reminders,omitempty"`
	LLM       LLMConfig       `yaml:"llm,omitempty"`
	Channels  ChannelsConfig  `yaml:"channels,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Sheets    SheetsConfig    `yaml:"sheets,omitempty"`
	Hooks     HooksConfig     `yaml:"hooks,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// StoreConfig selects where appointments live.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory"
	Path   string `yaml:"path,omitempty"`   // sqlite file; defaults to <home>/data/agendabot.db
}

// DialogueConfig tunes the conversation manager and its session table.
type DialogueConfig struct {
	ConfirmTokens []string            `yaml:"confirmTokens,omitempty"`
	CancelTokens  []string            `yaml:"cancelTokens,omitempty"`
	FieldAliases  map[string][]string `yaml:"fieldAliases,omitempty"` // canonical field -> extra spellings
	HistorySize   int                 `yaml:"historySize,omitempty"`
	ListLimit     int                 `yaml:"listLimit,omitempty"`
	IdleMinutes   int                 `yaml:"idleMinutes,omitempty"`
	MaxSessions   int                 `yaml:"maxSessions,omitempty"`
}

// RemindersConfig drives the reminder scheduler. Durations use Go syntax
// ("30s", "10m").
type RemindersConfig struct {
	Enabled      *bool         `yaml:"enabled,omitempty"` // defaults to true
	PollInterval string        `yaml:"pollInterval,omitempty"`
	Tolerance    string        `yaml:"tolerance,omitempty"`
	MaxLateness  string        `yaml:"maxLateness,omitempty"`
	SendTimeout  string        `yaml:"sendTimeout,omitempty"`
	Offsets      []OffsetEntry `yaml:"offsets,omitempty"`
	DailyReport  string        `yaml:"dailyReport,omitempty"` // 5-field cron in the configured timezone
}

// OffsetEntry is one reminder relative to the appointment time. Negative
// values fire before it.
type OffsetEntry struct {
	Label  string `yaml:"label"`
	Offset string `yaml:"offset"`
}

// IsEnabled reports whether the scheduler should run.
func (r RemindersConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// LLMConfig selects the language model used for extraction and small talk.
type LLMConfig struct {
	Provider    string   `yaml:"provider,omitempty"` // "claude" | "ollama" | "none"
	APIKey      string   `yaml:"apiKey,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	Endpoint    string   `yaml:"endpoint,omitempty"`
	Timeout     string   `yaml:"timeout,omitempty"`
	MaxTokens   int      `yaml:"maxTokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	Name        string   `yaml:"name,omitempty"` // assistant display name
	ExtraPrompt string   `yaml:"extraPrompt,omitempty"`
}

// ChannelsConfig defines the chat transports.
type ChannelsConfig struct {
	IRC       *IRCConfig       `yaml:"irc,omitempty"`
	WebSocket *WebSocketConfig `yaml:"websocket,omitempty"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server       string   `yaml:"server"`
	Port         int      `yaml:"port,omitempty"`
	Nick         string   `yaml:"nick"`
	Password     string   `yaml:"password,omitempty"`
	Channels     []string `yaml:"channels,omitempty"`
	UseTLS       bool     `yaml:"useTLS,omitempty"`
	SASL         bool     `yaml:"sasl,omitempty"`
	AllowedNicks []string `yaml:"allowedNicks,omitempty"` // empty accepts everyone
}

// WebSocketConfig enables the browser chat endpoint on the gateway.
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled,omitempty"`
	Path           string   `yaml:"path,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// GatewayConfig controls the HTTP server.
type GatewayConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // defaults to true
	Port    int    `yaml:"port,omitempty"`
	Bind    string `yaml:"bind,omitempty"` // "loopback" | "lan"
	Token   string `yaml:"token,omitempty"`
}

// IsEnabled reports whether serve should start the HTTP server.
func (g GatewayConfig) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

// SheetsConfig mirrors appointments into a Google Sheet.
type SheetsConfig struct {
	Enabled         bool   `yaml:"enabled,omitempty"`
	SpreadsheetID   string `yaml:"spreadsheetId,omitempty"`
	Sheet           string `yaml:"sheet,omitempty"`
	CredentialsFile string `yaml:"credentialsFile,omitempty"` // service account JSON
}

// HooksConfig lists shell commands run on lifecycle events.
type HooksConfig struct {
	Commands []HookEntry `yaml:"commands,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Name    string `yaml:"name,omitempty"`
	Event   string `yaml:"event"`
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
