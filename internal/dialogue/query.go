package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agendabot/internal/datetime"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/extractor"
	"github.com/soyeahso/agendabot/internal/session"
	"github.com/soyeahso/agendabot/internal/textfold"
)

// criteria turns an extractor search into a store filter. Dates, and text
// without an explicit search, are read as a day range; found is false when
// neither yields anything.
func (m *Manager) criteria(res extractor.Result, text string) (f domain.Filter, found bool) {
	search := res.Search
	if search.Value != "" && search.Field.Valid() && search.Field != domain.FieldOccursAt {
		return domain.Filter{Field: search.Field, Value: search.Value}, true
	}
	for _, src := range []string{search.Value, text} {
		if src == "" {
			continue
		}
		if from, to, ok := m.deps.Normalizer.ParseRange(src); ok {
			return domain.Filter{From: from, To: to}, true
		}
	}
	return domain.Filter{}, false
}

// query answers a listing request. The session stays Idle.
func (m *Manager) query(ctx context.Context, s *session.Session, res extractor.Result, text string) (string, error) {
	f, ok := m.criteria(res, text)
	if !ok {
		from := datetime.StartOfDay(m.deps.Normalizer.Now())
		f = domain.Filter{From: from, To: from.AddDate(0, 0, 1)}
	}

	list, err := m.deps.Store.Query(ctx, s.UserID, f)
	if err != nil {
		return msgQueryFailed, fmt.Errorf("query appointments: %w", err)
	}

	textSearch := f.Field != ""
	if len(list) == 0 {
		if textSearch {
			return fmt.Sprintf(msgNoClient, f.Value), nil
		}
		return msgNoneInRange, nil
	}

	sameDay := !textSearch && f.To.Equal(f.From.AddDate(0, 0, 1))
	var header string
	switch {
	case textSearch:
		header = fmt.Sprintf(msgMatchHeader, f.Value)
	case sameDay:
		header = fmt.Sprintf(msgDayHeader, f.From.Format(time.DateOnly))
	default:
		header = fmt.Sprintf(msgRangeHeader, f.From.Format(time.DateOnly), f.To.AddDate(0, 0, -1).Format(time.DateOnly))
	}

	var b strings.Builder
	b.WriteString(header)
	for i, a := range list {
		if i == m.cfg.ListLimit {
			fmt.Fprintf(&b, "\n"+msgMore, len(list)-i)
			break
		}
		b.WriteString("\n")
		b.WriteString(m.row(&a, sameDay))
	}
	return b.String(), nil
}

// listField answers "clientes" style requests with the distinct values the
// user has recorded for f. The session stays Idle.
func (m *Manager) listField(ctx context.Context, s *session.Session, f domain.Field) (string, error) {
	list, err := m.deps.Store.Query(ctx, s.UserID, domain.Filter{})
	if err != nil {
		return msgQueryFailed, fmt.Errorf("query appointments: %w", err)
	}

	label := strings.ToLower(f.Label())
	var values []string
	seen := map[string]bool{}
	for i := range list {
		v := list[i].Text(f)
		if f == domain.FieldOccursAt {
			v = m.when(list[i].OccursAt)
		}
		key := textfold.Fold(v)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		values = append(values, v)
	}
	if len(values) == 0 {
		return fmt.Sprintf(msgNoValues, label), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, msgValuesHeader, label)
	for i, v := range values {
		if i == m.cfg.ListLimit {
			fmt.Fprintf(&b, "\n"+msgMore, len(values)-i)
			break
		}
		b.WriteString("\n- ")
		b.WriteString(v)
	}
	return b.String(), nil
}

// row renders one appointment on a single line. Within a one-day listing
// only the time is shown.
func (m *Manager) row(a *domain.Appointment, timeOnly bool) string {
	when := m.when(a.OccursAt)
	if timeOnly {
		when = a.OccursAt.In(m.loc()).Format("15:04")
	}
	notes := a.Notes
	if notes == "" {
		notes = "-"
	}
	return fmt.Sprintf("- Cliente: %s | Proyecto: %s | Hora: %s | Modalidad: %s | Obs: %s",
		a.ClientName, a.Project, when, a.Modality, notes)
}
