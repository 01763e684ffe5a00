package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/agendabot/internal/domain"
)

const selectAppointment = `
	SELECT a.id, a.owner_id, a.client_name, a.client_number, a.project, a.modality,
	       a.occurs_at, a.notes, a.reported, a.created_at,
	       COALESCE((SELECT GROUP_CONCAT(n.offset_label, ',')
	                 FROM appointment_notifications n
	                 WHERE n.appointment_id = a.id), '')
	FROM appointments a`

var columnForField = map[domain.Field]string{
	domain.FieldClientName:   "client_name",
	domain.FieldClientNumber: "client_number",
	domain.FieldProject:      "project",
	domain.FieldModality:     "modality",
	domain.FieldNotes:        "notes",
}

// SQLiteAppointmentStore implements Appointments backed by SQLite.
type SQLiteAppointmentStore struct {
	db *DB
}

// NewSQLiteAppointmentStore creates an appointment store using the given database.
func NewSQLiteAppointmentStore(db *DB) *SQLiteAppointmentStore {
	return &SQLiteAppointmentStore{db: db}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.DateTime) }

func parseTime(s string) time.Time {
	t, _ := time.ParseInLocation(time.DateTime, s, time.UTC)
	return t
}

// Create validates and inserts a new appointment.
func (s *SQLiteAppointmentStore) Create(ctx context.Context, a domain.Appointment) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO appointments (id, owner_id, client_name, client_number, project, modality, occurs_at, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.ClientName, a.ClientNumber, a.Project, a.Modality,
		formatTime(a.OccursAt), a.Notes, formatTime(a.CreatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert appointment: %w", err)
	}
	s.db.log.Debug().Str("id", a.ID).Str("owner", a.OwnerID).Msg("appointment created")
	return a.ID, nil
}

// Get returns an appointment by id.
func (s *SQLiteAppointmentStore) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	row := s.db.sql.QueryRowContext(ctx, selectAppointment+` WHERE a.id = ?`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return a, nil
}

// Query lists appointments for ownerID that match f, soonest first. The time
// range is applied in SQL; the text match runs on the results so it can fold
// accents.
func (s *SQLiteAppointmentStore) Query(ctx context.Context, ownerID string, f domain.Filter) ([]domain.Appointment, error) {
	var (
		where []string
		args  []any
	)
	if ownerID != "" {
		where = append(where, "a.owner_id = ?")
		args = append(args, ownerID)
	}
	if !f.From.IsZero() {
		where = append(where, "a.occurs_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "a.occurs_at < ?")
		args = append(args, formatTime(f.To))
	}

	q := selectAppointment
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY a.occurs_at, a.created_at"

	all, err := s.list(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	out := all[:0]
	for i := range all {
		if f.Match(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Update applies a single-field change.
func (s *SQLiteAppointmentStore) Update(ctx context.Context, id string, c domain.Change) error {
	if err := validateChange(c); err != nil {
		return err
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if c.Field == domain.FieldOccursAt {
		res, err = tx.ExecContext(ctx,
			`UPDATE appointments SET occurs_at = ?, reported = 0 WHERE id = ?`,
			formatTime(c.Time), id)
		if err == nil {
			_, err = tx.ExecContext(ctx, `DELETE FROM appointment_notifications WHERE appointment_id = ?`, id)
		}
	} else {
		// Column names come from a fixed map, never from input.
		res, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE appointments SET %s = ? WHERE id = ?`, columnForField[c.Field]),
			strings.TrimSpace(c.Text), id)
	}
	if err != nil {
		return fmt.Errorf("update appointment %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	s.db.log.Debug().Str("id", id).Str("field", string(c.Field)).Msg("appointment updated")
	return nil
}

// Pending lists appointments missing at least one of labels.
func (s *SQLiteAppointmentStore) Pending(ctx context.Context, labels []string) ([]domain.Appointment, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(labels)), ",")
	args := make([]any, 0, len(labels)+1)
	for _, l := range labels {
		args = append(args, l)
	}
	args = append(args, len(labels))

	q := selectAppointment + `
		WHERE (SELECT COUNT(*) FROM appointment_notifications n
		       WHERE n.appointment_id = a.id AND n.offset_label IN (` + placeholders + `)) < ?
		ORDER BY a.occurs_at`
	out, err := s.list(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pending appointments: %w", err)
	}
	return out, nil
}

// ClaimOffset records label for id if nobody has yet.
func (s *SQLiteAppointmentStore) ClaimOffset(ctx context.Context, id, label string) (bool, error) {
	res, err := s.db.sql.ExecContext(ctx,
		`INSERT OR IGNORE INTO appointment_notifications (appointment_id, offset_label) VALUES (?, ?)`,
		id, label)
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", id, label, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", id, label, err)
	}
	return n == 1, nil
}

// ReleaseOffset removes a recorded label.
func (s *SQLiteAppointmentStore) ReleaseOffset(ctx context.Context, id, label string) error {
	_, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM appointment_notifications WHERE appointment_id = ? AND offset_label = ?`, id, label)
	if err != nil {
		return fmt.Errorf("release %s/%s: %w", id, label, err)
	}
	return nil
}

// ListUnreported lists appointments in [from, to) still awaiting follow-up.
func (s *SQLiteAppointmentStore) ListUnreported(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	out, err := s.list(ctx,
		selectAppointment+` WHERE a.reported = 0 AND a.occurs_at >= ? AND a.occurs_at < ? ORDER BY a.occurs_at`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("unreported appointments: %w", err)
	}
	return out, nil
}

// ClaimReport flips reported from 0 to 1.
func (s *SQLiteAppointmentStore) ClaimReport(ctx context.Context, id string) (bool, error) {
	res, err := s.db.sql.ExecContext(ctx, `UPDATE appointments SET reported = 1 WHERE id = ? AND reported = 0`, id)
	if err != nil {
		return false, fmt.Errorf("claim report %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim report %s: %w", id, err)
	}
	return n == 1, nil
}

// ReleaseReport clears the reported flag.
func (s *SQLiteAppointmentStore) ReleaseReport(ctx context.Context, id string) error {
	if _, err := s.db.sql.ExecContext(ctx, `UPDATE appointments SET reported = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("release report %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored appointments.
func (s *SQLiteAppointmentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM appointments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return n, nil
}

func (s *SQLiteAppointmentStore) list(ctx context.Context, q string, args ...any) ([]domain.Appointment, error) {
	rows, err := s.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (*domain.Appointment, error) {
	var (
		a                   domain.Appointment
		occursAt, createdAt string
		reported            int
		offsets             string
	)
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.ClientName, &a.ClientNumber, &a.Project, &a.Modality,
		&occursAt, &a.Notes, &reported, &createdAt, &offsets,
	)
	if err != nil {
		return nil, err
	}
	a.OccursAt = parseTime(occursAt)
	a.CreatedAt = parseTime(createdAt)
	a.Reported = reported != 0
	if offsets != "" {
		a.NotifiedOffsets = strings.Split(offsets, ",")
		sort.Strings(a.NotifiedOffsets)
	}
	return &a, nil
}
