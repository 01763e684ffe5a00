package agent

import (
	"fmt"
	"strings"
	"time"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	AssistantName string
	ChannelID     string
	UserID        string
	Now           time.Time
	ExtraPrompt   string
}

// BuildSystemPrompt constructs the system prompt for small talk.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	name := cfg.AssistantName
	if name == "" {
		name = "Agendabot"
	}
	fmt.Fprintf(&b, "Eres %s, un asistente que agenda citas con clientes y envía recordatorios.\n\n", name)

	fmt.Fprintf(&b, "Fecha actual: %s\n", cfg.Now.Format("2006-01-02"))
	if cfg.ChannelID != "" {
		fmt.Fprintf(&b, "Canal: %s\n", cfg.ChannelID)
	}
	if cfg.UserID != "" {
		fmt.Fprintf(&b, "Usuario: %s\n", cfg.UserID)
	}
	b.WriteString("\n")

	b.WriteString("Pautas:\n")
	b.WriteString("- Responde en español, en una o dos frases.\n")
	b.WriteString("- No confirmes ni inventes citas; solo el flujo de agenda puede crearlas.\n")
	b.WriteString("- Si el usuario parece querer agendar, consultar o modificar una cita, sugiérele cómo pedirlo.\n")
	b.WriteString("\nEjemplos que entiende el asistente:\n")
	b.WriteString(examples)

	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	return b.String()
}
