// Package sheets mirrors appointments into a Google Sheet, one row per
// appointment keyed by id in column A.
package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/agendabot/internal/datetime"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/hooks"
	"github.com/soyeahso/agendabot/internal/logging"
)

const queueSize = 64

// Header is written to row 1 of an empty sheet.
var Header = []any{"ID", "Usuario", "Cliente", "Número", "Proyecto", "Modalidad", "Fecha y hora", "Observaciones", "Creada"}

// Exporter writes appointment changes to a sheet from a background queue so
// hook emitters never wait on the network.
type Exporter struct {
	values  Values
	id      string
	sheet   string
	loc     *time.Location
	timeout time.Duration
	log     *logging.Logger

	queue chan domain.Appointment
}

// New creates an Exporter for spreadsheetID/sheet. Times are written in loc.
func New(values Values, spreadsheetID, sheet string, loc *time.Location, log *logging.Logger) *Exporter {
	if loc == nil {
		loc = time.Local
	}
	return &Exporter{
		values:  values,
		id:      spreadsheetID,
		sheet:   sheet,
		loc:     loc,
		timeout: 30 * time.Second,
		log:     log.Sub("sheets"),
		queue:   make(chan domain.Appointment, queueSize),
	}
}

// Register subscribes the exporter to appointment events.
func (e *Exporter) Register(hm *hooks.Manager) {
	hm.On(hooks.EventAppointmentCreated, "sheets", e.enqueue)
	hm.On(hooks.EventAppointmentUpdated, "sheets", e.enqueue)
}

func (e *Exporter) enqueue(_ context.Context, p hooks.Payload) error {
	a, ok := p.Data["appointment"].(domain.Appointment)
	if !ok {
		return fmt.Errorf("%s payload has no appointment", p.Event)
	}
	if a.ID == "" {
		a.ID, _ = p.Data["id"].(string)
	}
	select {
	case e.queue <- a:
		return nil
	default:
		return fmt.Errorf("sheets queue full, dropping %s", a.ID)
	}
}

// Run writes the header if needed, then drains the queue until ctx ends.
func (e *Exporter) Run(ctx context.Context) error {
	if err := e.ensureHeader(ctx); err != nil {
		e.log.Warn().Err(err).Msg("could not check sheet header")
	}
	e.log.Info().Str("spreadsheet", e.id).Str("sheet", e.sheet).Msg("sheets exporter started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case a := <-e.queue:
			if err := e.Upsert(ctx, a); err != nil {
				e.log.Error().Err(err).Str("id", a.ID).Msg("sheet write failed")
			}
		}
	}
}

func (e *Exporter) ensureHeader(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	rows, err := e.values.Get(ctx, e.id, e.sheet+"!A1:I1")
	if err != nil {
		return err
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		return nil
	}
	return e.values.Update(ctx, e.id, e.sheet+"!A1:I1", [][]any{Header})
}

// Upsert rewrites the row whose column A equals a.ID, appending when there
// is none.
func (e *Exporter) Upsert(ctx context.Context, a domain.Appointment) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ids, err := e.values.Get(ctx, e.id, e.sheet+"!A:A")
	if err != nil {
		return fmt.Errorf("read ids: %w", err)
	}
	row := [][]any{e.row(a)}
	for i, r := range ids {
		if len(r) > 0 && fmt.Sprint(r[0]) == a.ID {
			rng := fmt.Sprintf("%s!A%d:I%d", e.sheet, i+1, i+1)
			if err := e.values.Update(ctx, e.id, rng, row); err != nil {
				return fmt.Errorf("update row %d: %w", i+1, err)
			}
			e.log.Debug().Str("id", a.ID).Int("row", i+1).Msg("sheet row updated")
			return nil
		}
	}
	if err := e.values.Append(ctx, e.id, e.sheet+"!A:I", row); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	e.log.Debug().Str("id", a.ID).Msg("sheet row appended")
	return nil
}

func (e *Exporter) row(a domain.Appointment) []any {
	created := ""
	if !a.CreatedAt.IsZero() {
		created = a.CreatedAt.In(e.loc).Format(datetime.Layout)
	}
	return []any{
		a.ID,
		a.OwnerID,
		a.ClientName,
		a.ClientNumber,
		a.Project,
		a.Modality,
		a.OccursAt.In(e.loc).Format(datetime.Layout),
		a.Notes,
		created,
	}
}
