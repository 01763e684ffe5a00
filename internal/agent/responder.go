// Package agent answers messages that are not part of an appointment flow.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/llm"
	"github.com/soyeahso/agendabot/internal/logging"
)

// ResponderConfig configures the chat fallback.
type ResponderConfig struct {
	AssistantName string
	ExtraPrompt   string
	MaxTokens     int
	Temperature   *float64
	MaxTurns      int
}

// Responder produces small-talk replies. A nil client makes every reply the
// help text.
type Responder struct {
	cfg    ResponderConfig
	client llm.Client
	now    func() time.Time
	log    *logging.Logger
}

// NewResponder creates a Responder.
func NewResponder(cfg ResponderConfig, client llm.Client, now func() time.Time, log *logging.Logger) *Responder {
	if now == nil {
		now = time.Now
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	return &Responder{cfg: cfg, client: client, now: now, log: log.Sub("agent")}
}

// Respond answers text from userID. On failure it returns HelpText together
// with the error so callers can log it and still reply.
func (r *Responder) Respond(ctx context.Context, userID, text string, history []domain.Turn) (string, error) {
	if r.client == nil {
		return HelpText, nil
	}

	channelID, _, _ := strings.Cut(userID, ":")
	req := llm.CompletionRequest{
		System: BuildSystemPrompt(PromptConfig{
			AssistantName: r.cfg.AssistantName,
			ChannelID:     channelID,
			UserID:        userID,
			Now:           r.now(),
			ExtraPrompt:   r.cfg.ExtraPrompt,
		}),
		Messages:    llm.Conversation(history, text, r.cfg.MaxTurns),
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	}

	start := time.Now()
	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return HelpText, fmt.Errorf("chat completion: %w", err)
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return HelpText, nil
	}

	r.log.Debug().
		Str("user", userID).
		Str("model", resp.Model).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("chat reply")
	return reply, nil
}
