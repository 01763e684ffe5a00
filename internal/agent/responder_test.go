package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/llm"
	"github.com/soyeahso/agendabot/internal/logging"
)

var fixedNow = func() time.Time { return time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC) }

func TestBuildSystemPrompt(t *testing.T) {
	p := BuildSystemPrompt(PromptConfig{
		AssistantName: "Citas",
		ChannelID:     "irc",
		UserID:        "irc:ana",
		Now:           fixedNow(),
		ExtraPrompt:   "Trata de usted.",
	})
	assert.Contains(t, p, "Eres Citas")
	assert.Contains(t, p, "Fecha actual: 2025-06-09")
	assert.Contains(t, p, "Canal: irc")
	assert.Contains(t, p, "Usuario: irc:ana")
	assert.Contains(t, p, "citas del 2025-06-01 al 2025-06-05")
	assert.Contains(t, p, "Trata de usted.")
}

func TestBuildSystemPromptDefaults(t *testing.T) {
	p := BuildSystemPrompt(PromptConfig{Now: fixedNow()})
	assert.Contains(t, p, "Eres Agendabot")
	assert.NotContains(t, p, "Canal:")
}

func TestRespondWithoutClient(t *testing.T) {
	r := NewResponder(ResponderConfig{}, nil, fixedNow, logging.Nop())
	reply, err := r.Respond(context.Background(), "cli:local", "hola", nil)
	require.NoError(t, err)
	assert.Equal(t, HelpText, reply)
	assert.Contains(t, HelpText, "buscar juan")
	assert.Contains(t, HelpText, "- clientes\n- proyectos")
}

func TestRespond(t *testing.T) {
	mock := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "  ¡Hola! ¿Agendamos algo?  "}, nil
		},
	}
	r := NewResponder(ResponderConfig{MaxTurns: 10}, mock, fixedNow, logging.Nop())
	history := []domain.Turn{{Role: "user", Content: "buenas"}, {Role: "assistant", Content: "hola"}}

	reply, err := r.Respond(context.Background(), "ws:u1", "¿qué tal?", history)
	require.NoError(t, err)
	assert.Equal(t, "¡Hola! ¿Agendamos algo?", reply)

	req := mock.Requests()[0]
	assert.Contains(t, req.System, "Canal: ws")
	assert.Equal(t, 300, req.MaxTokens)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "¿qué tal?", req.Messages[2].Content)
}

func TestRespondFallsBackToHelp(t *testing.T) {
	mock := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "mock", Code: 500, Message: "boom"}
		},
	}
	r := NewResponder(ResponderConfig{}, mock, fixedNow, logging.Nop())
	reply, err := r.Respond(context.Background(), "cli:local", "hola", nil)
	assert.Error(t, err)
	assert.Equal(t, HelpText, reply)

	empty := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "   "}, nil
		},
	}
	r = NewResponder(ResponderConfig{}, empty, fixedNow, logging.Nop())
	reply, err = r.Respond(context.Background(), "cli:local", "hola", nil)
	assert.NoError(t, err)
	assert.Equal(t, HelpText, reply)
}
