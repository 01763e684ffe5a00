package llm

import (
	"fmt"
	"strings"
	"time"
)

// Options selects and configures a provider.
type Options struct {
	Provider string // "claude", "gemini", "ollama", or "none"
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// NewClient builds the configured client. It returns (nil, nil) when the
// provider is "none" or empty, so callers can fall back to non-LLM behavior.
func NewClient(opts Options) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "none":
		return nil, nil
	case "claude":
		if opts.APIKey == "" || opts.Model == "" {
			return nil, fmt.Errorf("claude provider requires apiKey and model")
		}
		return NewClaudeAPIClient(opts.APIKey, opts.Model, opts.Endpoint, opts.Timeout), nil
	case "gemini":
		if opts.APIKey == "" || opts.Model == "" {
			return nil, fmt.Errorf("gemini provider requires apiKey and model")
		}
		return NewGeminiAPIClient(opts.APIKey, opts.Model, opts.Endpoint, opts.Timeout), nil
	case "ollama":
		if opts.Model == "" {
			return nil, fmt.Errorf("ollama provider requires model")
		}
		return NewOllamaAPIClient(opts.Endpoint, opts.Model, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}
