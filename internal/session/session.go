// Package session holds the per-user dialogue state.
package session

import (
	"time"

	"github.com/soyeahso/agendabot/internal/domain"
)

// State is the position of a user's conversation in the dialogue machine.
type State int

const (
	Idle State = iota
	Collecting
	AwaitingConfirmation
	AwaitingSearchSelection
	AwaitingModifyField
	AwaitingModifyValue
	AwaitingModifyConfirmation
)

var stateNames = [...]string{
	Idle:                       "idle",
	Collecting:                 "collecting",
	AwaitingConfirmation:       "awaiting_confirmation",
	AwaitingSearchSelection:    "awaiting_search_selection",
	AwaitingModifyField:        "awaiting_modify_field",
	AwaitingModifyValue:        "awaiting_modify_value",
	AwaitingModifyConfirmation: "awaiting_modify_confirmation",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Session is one user's in-flight conversation.
type Session struct {
	UserID string
	State  State

	// Draft collects fields during creation.
	Draft domain.Appointment
	// PendingField is the field the last prompt asked for.
	PendingField domain.Field

	// Candidates are the appointments offered for selection, in display order.
	Candidates []domain.Appointment
	// TargetID is the appointment being modified.
	TargetID    string
	ModifyField domain.Field
	// PendingChange waits for the user's confirmation.
	PendingChange *domain.Change

	History   []domain.Turn
	UpdatedAt time.Time
}

// Reset returns the session to Idle and drops everything but the history.
func (s *Session) Reset() {
	s.State = Idle
	s.Draft = domain.Appointment{}
	s.PendingField = ""
	s.Candidates = nil
	s.TargetID = ""
	s.ModifyField = ""
	s.PendingChange = nil
}

// Remember appends a turn, keeping at most max entries.
func (s *Session) Remember(role, content string, at time.Time, max int) {
	s.History = append(s.History, domain.Turn{Role: role, Content: content, Timestamp: at})
	if max > 0 && len(s.History) > max {
		s.History = append([]domain.Turn(nil), s.History[len(s.History)-max:]...)
	}
}
