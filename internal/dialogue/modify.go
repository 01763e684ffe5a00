package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/extractor"
	"github.com/soyeahso/agendabot/internal/hooks"
	"github.com/soyeahso/agendabot/internal/session"
	"github.com/soyeahso/agendabot/internal/textfold"
)

// startModify finds the appointment to edit. Without criteria the user's
// upcoming appointments are offered.
func (m *Manager) startModify(ctx context.Context, s *session.Session, res extractor.Result, text string) (string, error) {
	f, ok := m.criteria(res, text)
	if !ok {
		f = domain.Filter{From: m.deps.Normalizer.Now()}
	}
	list, err := m.deps.Store.Query(ctx, s.UserID, f)
	if err != nil {
		return msgQueryFailed, fmt.Errorf("query appointments: %w", err)
	}

	s.Reset()
	switch len(list) {
	case 0:
		return msgNoneToModify, nil
	case 1:
		return m.target(s, &list[0], res.Modify.Field), nil
	}

	hidden := 0
	if len(list) > m.cfg.ListLimit {
		hidden = len(list) - m.cfg.ListLimit
		list = list[:m.cfg.ListLimit]
	}

	s.State = session.AwaitingSearchSelection
	s.Candidates = list
	s.ModifyField = res.Modify.Field
	var b strings.Builder
	b.WriteString(msgPickOne)
	for i := range list {
		fmt.Fprintf(&b, "\n%d. %s", i+1, strings.TrimPrefix(m.row(&list[i], false), "- "))
	}
	if hidden > 0 {
		fmt.Fprintf(&b, "\n"+msgMore+" "+msgNarrow, hidden)
	}
	return b.String(), nil
}

// target selects a for editing and asks which field to change. hint, when
// set, is only suggested.
func (m *Manager) target(s *session.Session, a *domain.Appointment, hint domain.Field) string {
	s.State = session.AwaitingModifyField
	s.TargetID = a.ID
	s.Candidates = nil
	s.ModifyField = ""

	reply := m.row(a, false) + "\n" + fmt.Sprintf(msgWhichField, strings.Join(m.deps.Aliases.Names(), ", "))
	if hint.Valid() {
		reply += " " + fmt.Sprintf(msgFieldHint, strings.ToLower(hint.Label()))
	}
	return reply
}

func (m *Manager) selectCandidate(s *session.Session, text string) string {
	n, err := strconv.Atoi(textfold.Token(text))
	if err != nil || n < 1 || n > len(s.Candidates) {
		return fmt.Sprintf(msgPickRange, len(s.Candidates))
	}
	chosen := s.Candidates[n-1]
	return m.target(s, &chosen, s.ModifyField)
}

func (m *Manager) chooseField(s *session.Session, text string) string {
	f, ok := m.deps.Aliases.Resolve(text)
	if !ok {
		return fmt.Sprintf(msgUnknownField, strings.Join(m.deps.Aliases.Names(), ", "))
	}
	s.State = session.AwaitingModifyValue
	s.ModifyField = f
	reply := fmt.Sprintf(msgNewValue, strings.ToLower(f.Label()))
	if f == domain.FieldOccursAt {
		reply += " " + question(domain.FieldOccursAt)
	}
	return reply
}

func (m *Manager) takeValue(s *session.Session, text string) string {
	c := domain.Change{Field: s.ModifyField, Text: text}
	shown := text
	if c.Field == domain.FieldOccursAt {
		t, ok := m.deps.Normalizer.Normalize(text)
		if !ok {
			return msgBadDate + " " + question(domain.FieldOccursAt)
		}
		c = domain.Change{Field: c.Field, Time: t}
		shown = m.when(t)
	}
	s.State = session.AwaitingModifyConfirmation
	s.PendingChange = &c
	return fmt.Sprintf(msgConfirmEdit, strings.ToLower(c.Field.Label()), shown)
}

func (m *Manager) confirmChange(ctx context.Context, s *session.Session, text string) (string, error) {
	if !m.confirm.Has(text) || s.PendingChange == nil {
		s.Reset()
		return msgDiscarded, nil
	}

	c, id := *s.PendingChange, s.TargetID
	err := m.deps.Store.Update(ctx, id, c)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.Reset()
		return msgGone, nil
	case err != nil:
		return msgUpdateFailed, fmt.Errorf("update appointment %s: %w", id, err)
	}
	s.Reset()

	shown := c.Text
	if c.Field == domain.FieldOccursAt {
		shown = m.when(c.Time)
	}
	m.log.Info().Str("id", id).Str("field", string(c.Field)).Msg("appointment updated")

	data := map[string]any{"id": id, "owner": s.UserID, "field": string(c.Field)}
	if a, err := m.deps.Store.Get(ctx, id); err == nil {
		data["appointment"] = *a
	}
	m.emit(ctx, hooks.EventAppointmentUpdated, data)
	return fmt.Sprintf(msgUpdated, strings.ToLower(c.Field.Label()), shown), nil
}
