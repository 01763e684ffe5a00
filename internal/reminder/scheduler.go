// Package reminder polls the appointment store and sends timed reminders and
// the daily follow-up.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/soyeahso/agendabot/internal/datetime"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/hooks"
	"github.com/soyeahso/agendabot/internal/logging"
)

// Offset is a reminder fired Delta after an appointment's start. Negative
// deltas fire before it.
type Offset struct {
	Label string
	Delta time.Duration
}

// DefaultOffsets are a ten-minute warning and a notice at the start time.
func DefaultOffsets() []Offset {
	return []Offset{
		{Label: "advance", Delta: -10 * time.Minute},
		{Label: "due", Delta: 0},
	}
}

// Config controls the polling loop.
type Config struct {
	PollInterval time.Duration
	// Tolerance is how long after an offset instant a reminder may still go out.
	Tolerance time.Duration
	// MaxLateness is how long after an offset instant it is dropped unsent.
	MaxLateness time.Duration
	Offsets     []Offset
	// ReportSchedule is a standard cron expression for the daily follow-up.
	// Empty disables the follow-up.
	ReportSchedule string
	Location       *time.Location
	// CallTimeout bounds each store or dispatch call.
	CallTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 60 * time.Second
	}
	if c.MaxLateness <= 0 {
		c.MaxLateness = 10 * time.Minute
	}
	if c.Offsets == nil {
		c.Offsets = DefaultOffsets()
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	return c
}

// Validate checks that ticks cannot straddle a window and that late
// reminders are dropped only after their window closed.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Tolerance < c.PollInterval {
		return fmt.Errorf("tolerance %s is shorter than poll interval %s", c.Tolerance, c.PollInterval)
	}
	if c.MaxLateness < c.Tolerance {
		return fmt.Errorf("max lateness %s is shorter than tolerance %s", c.MaxLateness, c.Tolerance)
	}
	seen := make(map[string]bool, len(c.Offsets))
	for _, o := range c.Offsets {
		if o.Label == "" {
			return errors.New("offset with empty label")
		}
		if seen[o.Label] {
			return fmt.Errorf("duplicate offset label %q", o.Label)
		}
		seen[o.Label] = true
	}
	if c.ReportSchedule != "" {
		if _, err := cron.ParseStandard(c.ReportSchedule); err != nil {
			return fmt.Errorf("report schedule %q: %w", c.ReportSchedule, err)
		}
	}
	return nil
}

// Store is the scheduler's view of the appointment store.
type Store interface {
	Pending(ctx context.Context, labels []string) ([]domain.Appointment, error)
	ClaimOffset(ctx context.Context, id, label string) (bool, error)
	ReleaseOffset(ctx context.Context, id, label string) error
	ListUnreported(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	ClaimReport(ctx context.Context, id string) (bool, error)
	ReleaseReport(ctx context.Context, id string) error
}

// Dispatcher delivers a message to the user that owns an appointment.
type Dispatcher interface {
	Notify(ctx context.Context, userID, text string) error
}

// Stats counts what one tick did.
type Stats struct {
	Sent     int
	Skipped  int
	Failed   int
	Reported int
}

// Scheduler sends each (appointment, offset) reminder at most once.
type Scheduler struct {
	cfg      Config
	store    Store
	dispatch Dispatcher
	hooks    hooks.Emitter
	report   cron.Schedule
	labels   []string
	now      func() time.Time
	log      *logging.Logger
}

// New creates a Scheduler. hooks may be nil; a nil now means time.Now.
func New(cfg Config, st Store, d Dispatcher, em hooks.Emitter, now func() time.Time, log *logging.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if now == nil {
		now = time.Now
	}

	s := &Scheduler{
		cfg:      cfg,
		store:    st,
		dispatch: d,
		hooks:    em,
		now:      now,
		log:      log.Sub("reminder"),
	}
	for _, o := range cfg.Offsets {
		s.labels = append(s.labels, o.Label)
	}
	if cfg.ReportSchedule != "" {
		// Validate has already parsed it.
		s.report, _ = cron.ParseStandard(cfg.ReportSchedule)
	}
	return s, nil
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().
		Dur("interval", s.cfg.PollInterval).
		Dur("tolerance", s.cfg.Tolerance).
		Strs("offsets", s.labels).
		Str("report", s.cfg.ReportSchedule).
		Msg("scheduler started")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.Tick(ctx, s.now())
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick runs one polling pass as of now. Failures are logged and never stop
// the pass.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) Stats {
	var st Stats
	s.reminders(ctx, now, &st)
	if s.report != nil {
		s.followUps(ctx, now, &st)
	}
	if st != (Stats{}) {
		s.log.Debug().
			Int("sent", st.Sent).
			Int("skipped", st.Skipped).
			Int("failed", st.Failed).
			Int("reported", st.Reported).
			Msg("tick")
	}
	return st
}

func (s *Scheduler) reminders(ctx context.Context, now time.Time, st *Stats) {
	var pending []domain.Appointment
	err := s.call(ctx, func(ctx context.Context) (err error) {
		pending, err = s.store.Pending(ctx, s.labels)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Msg("listing pending reminders")
		return
	}

	for i := range pending {
		a := &pending[i]
		for _, off := range s.cfg.Offsets {
			if a.HasNotified(off.Label) {
				continue
			}
			late := now.Sub(a.OccursAt.Add(off.Delta))
			switch {
			case late < 0:
			case late < s.cfg.Tolerance:
				s.remind(ctx, a, off, st)
			case late > s.cfg.MaxLateness:
				if s.claim(ctx, a, off.Label) {
					st.Skipped++
					s.log.Info().Str("id", a.ID).Str("offset", off.Label).Dur("late", late).Msg("stale reminder dropped")
				}
			}
		}
	}
}

func (s *Scheduler) remind(ctx context.Context, a *domain.Appointment, off Offset, st *Stats) {
	if !s.claim(ctx, a, off.Label) {
		return
	}
	text := reminderText(a, off.Delta, s.cfg.Location)
	if err := s.call(ctx, func(ctx context.Context) error { return s.dispatch.Notify(ctx, a.OwnerID, text) }); err != nil {
		st.Failed++
		s.log.Warn().Err(err).Str("id", a.ID).Str("offset", off.Label).Str("owner", a.OwnerID).Msg("reminder not delivered")
		if err := s.call(ctx, func(ctx context.Context) error { return s.store.ReleaseOffset(ctx, a.ID, off.Label) }); err != nil {
			s.log.Error().Err(err).Str("id", a.ID).Str("offset", off.Label).Msg("releasing reminder claim")
		}
		return
	}

	st.Sent++
	s.log.Info().Str("id", a.ID).Str("offset", off.Label).Str("owner", a.OwnerID).Msg("reminder sent")
	s.emit(ctx, hooks.EventReminderSent, map[string]any{
		"id":     a.ID,
		"owner":  a.OwnerID,
		"offset": off.Label,
	})
}

// claim reports whether this caller recorded the offset.
func (s *Scheduler) claim(ctx context.Context, a *domain.Appointment, label string) bool {
	var won bool
	err := s.call(ctx, func(ctx context.Context) (err error) {
		won, err = s.store.ClaimOffset(ctx, a.ID, label)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Str("id", a.ID).Str("offset", label).Msg("claiming reminder")
		return false
	}
	return won
}

// followUps sends the daily follow-up for the day's appointments that
// started before the report time, once that time has passed.
func (s *Scheduler) followUps(ctx context.Context, now time.Time, st *Stats) {
	dayStart := datetime.StartOfDay(now.In(s.cfg.Location))
	at := s.report.Next(dayStart.Add(-time.Nanosecond))
	if now.Before(at) || !at.Before(dayStart.AddDate(0, 0, 1)) {
		return
	}

	var due []domain.Appointment
	err := s.call(ctx, func(ctx context.Context) (err error) {
		due, err = s.store.ListUnreported(ctx, dayStart, at)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Msg("listing unreported appointments")
		return
	}

	for i := range due {
		a := &due[i]
		var won bool
		err := s.call(ctx, func(ctx context.Context) (err error) {
			won, err = s.store.ClaimReport(ctx, a.ID)
			return err
		})
		if err != nil {
			s.log.Error().Err(err).Str("id", a.ID).Msg("claiming follow-up")
			continue
		}
		if !won {
			continue
		}

		text := followUpText(a, s.cfg.Location)
		if err := s.call(ctx, func(ctx context.Context) error { return s.dispatch.Notify(ctx, a.OwnerID, text) }); err != nil {
			st.Failed++
			s.log.Warn().Err(err).Str("id", a.ID).Str("owner", a.OwnerID).Msg("follow-up not delivered")
			if err := s.call(ctx, func(ctx context.Context) error { return s.store.ReleaseReport(ctx, a.ID) }); err != nil {
				s.log.Error().Err(err).Str("id", a.ID).Msg("releasing follow-up claim")
			}
			continue
		}

		st.Reported++
		s.emit(ctx, hooks.EventReportSent, map[string]any{"id": a.ID, "owner": a.OwnerID})
	}
}

func (s *Scheduler) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Scheduler) emit(ctx context.Context, event string, data map[string]any) {
	if s.hooks != nil {
		s.hooks.Emit(ctx, event, data)
	}
}
