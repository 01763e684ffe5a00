package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/extractor"
	"github.com/soyeahso/agendabot/internal/hooks"
	"github.com/soyeahso/agendabot/internal/session"
)

func (m *Manager) startCreate(s *session.Session, res extractor.Result) string {
	s.Reset()
	s.State = session.Collecting
	s.Draft.OwnerID = s.UserID
	return m.advance(s, m.merge(s, res.Fields, false))
}

// collect merges one answer into the draft.
func (m *Manager) collect(ctx context.Context, s *session.Session, text string) string {
	res := m.extract(ctx, s, text)
	fields := res.Fields
	if p := s.PendingField; p != "" && len(fields) == 0 {
		fields = map[domain.Field]string{p: text}
	}
	return m.advance(s, m.merge(s, fields, false))
}

// merge copies extracted values into the draft. Without overwrite only empty
// fields and the pending one are written. It reports whether a date value was
// given but could not be read; that field is left empty.
func (m *Manager) merge(s *session.Session, fields map[domain.Field]string, overwrite bool) (badDate bool) {
	for _, f := range domain.AllFields {
		v := strings.TrimSpace(fields[f])
		if v == "" {
			continue
		}
		if !overwrite && f != s.PendingField && s.Draft.Has(f) {
			continue
		}
		if f != domain.FieldOccursAt {
			s.Draft.SetText(f, v)
			continue
		}
		if t, ok := m.deps.Normalizer.Normalize(v); ok {
			s.Draft.OccursAt = t
		} else {
			s.Draft.Clear(domain.FieldOccursAt)
			badDate = true
		}
	}
	return badDate
}

// advance asks for the next missing field, or shows the summary once the
// draft is complete.
func (m *Manager) advance(s *session.Session, badDate bool) string {
	if badDate {
		s.State = session.Collecting
		s.PendingField = domain.FieldOccursAt
		return msgBadDate + " " + question(domain.FieldOccursAt)
	}
	if missing := s.Draft.Missing(); len(missing) > 0 {
		s.State = session.Collecting
		s.PendingField = missing[0]
		return question(missing[0])
	}
	s.State = session.AwaitingConfirmation
	s.PendingField = ""
	return m.summary(&s.Draft)
}

func (m *Manager) confirmDraft(ctx context.Context, s *session.Session, text string) (string, error) {
	if !m.confirm.Has(text) {
		res := m.extract(ctx, s, text)
		if len(res.Fields) == 0 {
			return m.summary(&s.Draft), nil
		}
		return m.advance(s, m.merge(s, res.Fields, true)), nil
	}

	a := s.Draft
	a.OwnerID = s.UserID
	id, err := m.deps.Store.Create(ctx, a)
	if err != nil {
		return msgSaveFailed, fmt.Errorf("create appointment: %w", err)
	}
	a.ID = id
	s.Reset()

	m.log.Info().Str("id", id).Str("owner", a.OwnerID).Msg("appointment created")
	m.emit(ctx, hooks.EventAppointmentCreated, map[string]any{
		"id":          id,
		"owner":       a.OwnerID,
		"appointment": a,
	})
	return fmt.Sprintf(msgCreated, a.ClientName, m.when(a.OccursAt)), nil
}

// summary lists every field in canonical order.
func (m *Manager) summary(a *domain.Appointment) string {
	var b strings.Builder
	b.WriteString(msgSummaryHeader)
	for _, f := range domain.AllFields {
		v := m.display(a, f)
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(&b, "\n- %s: %s", f.Label(), v)
	}
	b.WriteString("\n")
	b.WriteString(msgConfirmPrompt)
	return b.String()
}

func (m *Manager) display(a *domain.Appointment, f domain.Field) string {
	if f == domain.FieldOccursAt {
		if a.OccursAt.IsZero() {
			return ""
		}
		return m.when(a.OccursAt)
	}
	return a.Text(f)
}
