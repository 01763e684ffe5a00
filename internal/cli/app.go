package cli

import (
	"fmt"
	"time"

	"github.com/soyeahso/agendabot/internal/agent"
	"github.com/soyeahso/agendabot/internal/config"
	"github.com/soyeahso/agendabot/internal/datetime"
	"github.com/soyeahso/agendabot/internal/dialogue"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/extractor"
	"github.com/soyeahso/agendabot/internal/hooks"
	"github.com/soyeahso/agendabot/internal/llm"
	"github.com/soyeahso/agendabot/internal/logging"
	"github.com/soyeahso/agendabot/internal/reminder"
	"github.com/soyeahso/agendabot/internal/session"
	"github.com/soyeahso/agendabot/internal/store"
)

// app holds the components shared by serve and chat.
type app struct {
	cfg      config.Config
	loc      *time.Location
	store    store.Appointments
	hooks    *hooks.Manager
	sessions *session.Repository
	norm     *datetime.Normalizer
	manager  *dialogue.Manager
	log      *logging.Logger

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("closing resource")
		}
	}
}

// openStore opens the configured appointment store. The returned close
// func is never nil.
func openStore(cfg config.Config, dbPath string, log *logging.Logger) (store.Appointments, func() error, error) {
	if cfg.Store.Driver == "memory" {
		log.Warn().Msg("using in-memory store; appointments are lost on exit")
		return store.NewMemory(), func() error { return nil }, nil
	}
	db, err := store.Open(dbPath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info().Str("path", dbPath).Msg("using SQLite appointment store")
	return store.NewSQLiteAppointmentStore(db), db.Close, nil
}

func aliasTable(cfg config.DialogueConfig) *domain.AliasTable {
	extra := make(map[domain.Field][]string, len(cfg.FieldAliases))
	for field, words := range cfg.FieldAliases {
		extra[domain.Field(field)] = words
	}
	return domain.NewAliasTable(extra)
}

// newApp wires store, hooks, sessions, extractor and the dialogue manager.
func newApp(cfg config.Config, dbPath string, log *logging.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, loc: loc, log: log}

	st, closeStore, err := openStore(cfg, dbPath, log)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, closeStore)

	a.hooks = hooks.NewManager(log)
	cmds := make([]hooks.Command, 0, len(cfg.Hooks.Commands))
	for _, h := range cfg.Hooks.Commands {
		cmds = append(cmds, hooks.Command{
			Name:    h.Name,
			Event:   h.Event,
			Run:     h.Command,
			Timeout: time.Duration(h.Timeout) * time.Millisecond,
		})
	}
	if err := a.hooks.RegisterCommands(cmds); err != nil {
		a.Close()
		return nil, fmt.Errorf("registering hooks: %w", err)
	}

	client, err := llm.NewClient(llm.Options{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Endpoint: cfg.LLM.Endpoint,
		Timeout:  config.DurationOr(cfg.LLM.Timeout, time.Minute),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("llm client: %w", err)
	}

	a.norm = datetime.New(loc, nil)
	aliases := aliasTable(cfg.Dialogue)

	var ext extractor.Extractor
	if client != nil {
		ext = extractor.NewLLM(client, aliases, a.norm.Now, cfg.Dialogue.HistorySize, log)
		log.Info().Str("provider", client.Name()).Msg("using LLM extractor")
	} else {
		ext = extractor.NewRules(aliases, a.norm)
		log.Info().Msg("no LLM configured; using rule extractor")
	}

	chat := agent.NewResponder(agent.ResponderConfig{
		AssistantName: cfg.LLM.Name,
		ExtraPrompt:   cfg.LLM.ExtraPrompt,
		MaxTokens:     cfg.LLM.MaxTokens,
		Temperature:   cfg.LLM.Temperature,
		MaxTurns:      cfg.Dialogue.HistorySize,
	}, client, a.norm.Now, log)

	a.sessions = session.NewRepository(
		cfg.Dialogue.MaxSessions,
		time.Duration(cfg.Dialogue.IdleMinutes)*time.Minute,
		nil,
	)
	a.manager = dialogue.New(dialogue.Config{
		ConfirmTokens: cfg.Dialogue.ConfirmTokens,
		CancelTokens:  cfg.Dialogue.CancelTokens,
		HistorySize:   cfg.Dialogue.HistorySize,
		ListLimit:     cfg.Dialogue.ListLimit,
	}, dialogue.Deps{
		Sessions:   a.sessions,
		Extractor:  ext,
		Normalizer: a.norm,
		Aliases:    aliases,
		Store:      a.store,
		Chat:       chat,
		Hooks:      a.hooks,
	}, log)
	return a, nil
}

// schedulerConfig converts the reminders section. Durations were checked by
// config.Validate.
func schedulerConfig(cfg config.RemindersConfig, loc *time.Location) (reminder.Config, error) {
	offsets := make([]reminder.Offset, 0, len(cfg.Offsets))
	for _, o := range cfg.Offsets {
		d, err := time.ParseDuration(o.Offset)
		if err != nil {
			return reminder.Config{}, fmt.Errorf("reminder offset %s: %w", o.Label, err)
		}
		offsets = append(offsets, reminder.Offset{Label: o.Label, Delta: d})
	}
	return reminder.Config{
		PollInterval:   config.DurationOr(cfg.PollInterval, 30*time.Second),
		Tolerance:      config.DurationOr(cfg.Tolerance, time.Minute),
		MaxLateness:    config.DurationOr(cfg.MaxLateness, 10*time.Minute),
		Offsets:        offsets,
		ReportSchedule: cfg.DailyReport,
		Location:       loc,
		CallTimeout:    config.DurationOr(cfg.SendTimeout, 10*time.Second),
	}, nil
}
