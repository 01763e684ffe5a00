// Package dialogue runs the per-user conversation that creates, lists and
// edits appointments.
package dialogue

import (
	"context"
	"strings"
	"time"

	"github.com/soyeahso/agendabot/internal/agent"
	"github.com/soyeahso/agendabot/internal/datetime"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/extractor"
	"github.com/soyeahso/agendabot/internal/hooks"
	"github.com/soyeahso/agendabot/internal/logging"
	"github.com/soyeahso/agendabot/internal/session"
	"github.com/soyeahso/agendabot/internal/textfold"
)

// Store is the part of the appointment store the dialogue needs.
type Store interface {
	Create(ctx context.Context, a domain.Appointment) (string, error)
	Get(ctx context.Context, id string) (*domain.Appointment, error)
	Query(ctx context.Context, ownerID string, f domain.Filter) ([]domain.Appointment, error)
	Update(ctx context.Context, id string, c domain.Change) error
}

// Responder answers messages that are not about appointments.
type Responder interface {
	Respond(ctx context.Context, userID, text string, history []domain.Turn) (string, error)
}

// Config tunes the conversation.
type Config struct {
	ConfirmTokens []string
	CancelTokens  []string
	// HistorySize bounds the turns kept per session for the extractor.
	HistorySize int
	// ListLimit caps how many appointments a listing or selection shows.
	ListLimit int
}

var (
	defaultConfirmTokens = []string{"si", "sí", "ok", "dale", "confirmo"}
	defaultCancelTokens  = []string{"cancelar", "cancela", "salir"}
	helpTokens           = textfold.NewSet("ayuda", "help", "/help", "/start", "menu")
)

// Deps are the manager's collaborators. Chat and Hooks may be nil.
type Deps struct {
	Sessions   *session.Repository
	Extractor  extractor.Extractor
	Normalizer *datetime.Normalizer
	Aliases    *domain.AliasTable
	Store      Store
	Chat       Responder
	Hooks      hooks.Emitter
}

// Result is the outcome of one inbound message.
type Result struct {
	Reply string
	State session.State
}

// Manager drives each user's session through the dialogue states.
type Manager struct {
	cfg     Config
	deps    Deps
	confirm textfold.Set
	cancel  textfold.Set
	log     *logging.Logger
}

// New creates a Manager.
func New(cfg Config, deps Deps, log *logging.Logger) *Manager {
	if len(cfg.ConfirmTokens) == 0 {
		cfg.ConfirmTokens = defaultConfirmTokens
	}
	if len(cfg.CancelTokens) == 0 {
		cfg.CancelTokens = defaultCancelTokens
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 20
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 10
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewRepository(0, 0, nil)
	}
	if deps.Aliases == nil {
		deps.Aliases = domain.NewAliasTable(nil)
	}
	if deps.Normalizer == nil {
		deps.Normalizer = datetime.New(nil, nil)
	}
	return &Manager{
		cfg:     cfg,
		deps:    deps,
		confirm: textfold.NewSet(cfg.ConfirmTokens...),
		cancel:  textfold.NewSet(cfg.CancelTokens...),
		log:     log.Sub("dialogue"),
	}
}

// Handle processes one message from userID and advances that user's session
// by exactly one step. A non-nil error comes with a Result whose Reply should
// still be delivered.
func (m *Manager) Handle(ctx context.Context, userID, text string) (*Result, error) {
	s, release := m.deps.Sessions.Acquire(userID)
	defer release()

	text = strings.TrimSpace(text)
	from := s.State
	m.emit(ctx, hooks.EventMessageReceived, map[string]any{
		"user":  userID,
		"text":  text,
		"state": from.String(),
	})
	if text == "" {
		return &Result{State: s.State}, nil
	}

	var (
		reply string
		err   error
	)
	switch {
	case s.State != session.Idle && m.cancel.Has(text):
		s.Reset()
		reply = msgCancelled
	default:
		reply, err = m.step(ctx, s, text)
	}

	now := m.deps.Normalizer.Now()
	s.Remember("user", text, now, m.cfg.HistorySize)
	if reply != "" {
		s.Remember("assistant", reply, now, m.cfg.HistorySize)
	}

	if err != nil {
		m.log.Warn().Err(err).Str("user", userID).Stringer("state", s.State).Msg("message failed")
	} else {
		m.log.Debug().Str("user", userID).Stringer("from", from).Stringer("to", s.State).Msg("message handled")
	}

	return &Result{Reply: reply, State: s.State}, err
}

// State reports the user's current state without creating a session.
func (m *Manager) State(userID string) session.State {
	st, _ := m.deps.Sessions.Peek(userID)
	return st
}

func (m *Manager) step(ctx context.Context, s *session.Session, text string) (string, error) {
	switch s.State {
	case session.Collecting:
		return m.collect(ctx, s, text), nil
	case session.AwaitingConfirmation:
		return m.confirmDraft(ctx, s, text)
	case session.AwaitingSearchSelection:
		return m.selectCandidate(s, text), nil
	case session.AwaitingModifyField:
		return m.chooseField(s, text), nil
	case session.AwaitingModifyValue:
		return m.takeValue(s, text), nil
	case session.AwaitingModifyConfirmation:
		return m.confirmChange(ctx, s, text)
	default:
		return m.idle(ctx, s, text)
	}
}

func (m *Manager) idle(ctx context.Context, s *session.Session, text string) (string, error) {
	if helpTokens.Has(text) {
		return agent.HelpText, nil
	}
	if f, ok := m.deps.Aliases.ListField(text); ok {
		return m.listField(ctx, s, f)
	}

	res := m.extract(ctx, s, text)
	switch res.Intent {
	case extractor.IntentCreate:
		return m.startCreate(s, res), nil
	case extractor.IntentQuery:
		return m.query(ctx, s, res, text)
	case extractor.IntentModify:
		return m.startModify(ctx, s, res, text)
	default:
		return m.chat(ctx, s, text), nil
	}
}

// extract never fails: transport errors read as "nothing extracted".
func (m *Manager) extract(ctx context.Context, s *session.Session, text string) extractor.Result {
	if m.deps.Extractor == nil {
		return extractor.Result{}
	}
	res, err := m.deps.Extractor.Extract(ctx, text, s.History)
	if err != nil {
		m.log.Warn().Err(err).Str("user", s.UserID).Msg("extraction failed")
		return extractor.Result{}
	}
	return res
}

func (m *Manager) chat(ctx context.Context, s *session.Session, text string) string {
	if m.deps.Chat == nil {
		return agent.HelpText
	}
	reply, err := m.deps.Chat.Respond(ctx, s.UserID, text, s.History)
	if err != nil {
		m.log.Warn().Err(err).Str("user", s.UserID).Msg("chat fallback failed")
	}
	if strings.TrimSpace(reply) == "" {
		return agent.HelpText
	}
	return reply
}

func (m *Manager) emit(ctx context.Context, event string, data map[string]any) {
	if m.deps.Hooks != nil {
		m.deps.Hooks.Emit(ctx, event, data)
	}
}

func (m *Manager) loc() *time.Location { return m.deps.Normalizer.Location() }
