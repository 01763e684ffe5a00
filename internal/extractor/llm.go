package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/llm"
	"github.com/soyeahso/agendabot/internal/logging"
)

const systemPrompt = `Eres el extractor de un asistente que agenda citas con clientes.
Lee el último mensaje del usuario (y el historial como contexto) y responde SOLO con un objeto JSON:

{
  "intent": "create" | "query" | "modify" | "chat",
  "fields": {
    "client_name": "", "client_number": "", "project": "",
    "modality": "", "occurs_at": "", "notes": ""
  },
  "search": {"field": "", "value": ""},
  "modify": {"field": "", "new_value": ""}
}

Reglas:
- create: quiere agendar una cita o recordatorio nuevo.
- query: quiere ver o buscar citas (por nombre, proyecto o fecha).
- modify: quiere cambiar una cita existente; "search" indica cómo encontrarla.
- chat: cualquier otra cosa.
- occurs_at: copia la fecha y hora tal como las escribió el usuario, sin convertirlas.
- modality: presencial, virtual o telefónica.
- Deja vacío ("") todo lo que el usuario no haya dicho. No inventes datos.
Fecha actual: %s.`

// LLM extracts with a language model.
type LLM struct {
	client   llm.Client
	aliases  *domain.AliasTable
	now      func() time.Time
	maxTurns int
	log      *logging.Logger
}

// NewLLM creates an LLM-backed extractor. maxTurns bounds how much history is
// sent with each request.
func NewLLM(client llm.Client, aliases *domain.AliasTable, now func() time.Time, maxTurns int, log *logging.Logger) *LLM {
	if now == nil {
		now = time.Now
	}
	return &LLM{
		client:   client,
		aliases:  aliases,
		now:      now,
		maxTurns: maxTurns,
		log:      log.Sub("extractor"),
	}
}

// Extract implements Extractor. Transport failures are returned; malformed
// model output is not an error and yields whatever could be recovered.
func (e *LLM) Extract(ctx context.Context, text string, history []domain.Turn) (Result, error) {
	req := llm.CompletionRequest{
		System:      fmt.Sprintf(systemPrompt, e.now().Format("2006-01-02 15:04 (Monday)")),
		Messages:    llm.Conversation(history, text, e.maxTurns),
		MaxTokens:   512,
		Temperature: llm.Temperature(0),
		JSON:        true,
	}

	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("extract via %s: %w", e.client.Name(), err)
	}

	res := ParseResult(resp.Content, e.aliases)
	if res.Empty() {
		e.log.Debug().Str("raw", truncate(resp.Content, 200)).Msg("nothing extracted")
	}
	return res, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
