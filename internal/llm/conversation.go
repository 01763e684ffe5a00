package llm

import "github.com/soyeahso/agendabot/internal/domain"

// Conversation turns a chat history plus the newest user text into a
// message list that starts with the user and alternates roles, which is what
// the hosted APIs accept. Adjacent turns of the same role are merged.
// maxTurns > 0 keeps only the most recent turns.
func Conversation(history []domain.Turn, text string, maxTurns int) []Message {
	if maxTurns > 0 && len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	msgs := make([]Message, 0, len(history)+1)
	for _, t := range history {
		role := RoleUser
		if t.Role == RoleAssistant {
			role = RoleAssistant
		}
		if len(msgs) == 0 && role != RoleUser {
			continue
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content += "\n" + t.Content
			continue
		}
		msgs = append(msgs, Message{Role: role, Content: t.Content})
	}
	if n := len(msgs); n > 0 && msgs[n-1].Role == RoleUser {
		msgs[n-1].Content += "\n" + text
		return msgs
	}
	return append(msgs, Message{Role: RoleUser, Content: text})
}
