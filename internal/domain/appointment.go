package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agendabot/internal/textfold"
)

var (
	// ErrNotFound is returned by stores when an appointment id is unknown.
	ErrNotFound = errors.New("appointment not found")
	// ErrIncomplete is returned when an appointment is missing a required field.
	ErrIncomplete = errors.New("appointment incomplete")
)

// Field names one attribute of an appointment.
type Field string

const (
	FieldClientName   Field = "client_name"
	FieldClientNumber Field = "client_number"
	FieldProject      Field = "project"
	FieldModality     Field = "modality"
	FieldOccursAt     Field = "occurs_at"
	FieldNotes        Field = "notes"
)

// AllFields lists every field in canonical display order.
var AllFields = []Field{
	FieldClientName, FieldClientNumber, FieldProject,
	FieldModality, FieldOccursAt, FieldNotes,
}

// RequiredFields lists the fields an appointment cannot be saved without,
// in the order they are asked for.
var RequiredFields = []Field{
	FieldClientName, FieldProject, FieldModality, FieldOccursAt,
}

// Valid reports whether f is one of the known fields.
func (f Field) Valid() bool {
	for _, k := range AllFields {
		if k == f {
			return true
		}
	}
	return false
}

// Required reports whether f must be filled before saving.
func (f Field) Required() bool {
	for _, k := range RequiredFields {
		if k == f {
			return true
		}
	}
	return false
}

// Label is the user-facing Spanish name of the field.
func (f Field) Label() string {
	switch f {
	case FieldClientName:
		return "Cliente"
	case FieldClientNumber:
		return "Número"
	case FieldProject:
		return "Proyecto"
	case FieldModality:
		return "Modalidad"
	case FieldOccursAt:
		return "Fecha y hora"
	case FieldNotes:
		return "Observaciones"
	default:
		return string(f)
	}
}

// Appointment is a scheduled meeting with a client.
type Appointment struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"ownerId"`
	ClientName      string    `json:"clientName"`
	ClientNumber    string    `json:"clientNumber,omitempty"`
	Project         string    `json:"project"`
	Modality        string    `json:"modality"`
	OccursAt        time.Time `json:"occursAt"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	NotifiedOffsets []string  `json:"notifiedOffsets,omitempty"`
	Reported        bool      `json:"reported,omitempty"`
}

// Text returns the textual value of a non-time field. OccursAt is not
// representable here; callers format it themselves.
func (a *Appointment) Text(f Field) string {
	switch f {
	case FieldClientName:
		return a.ClientName
	case FieldClientNumber:
		return a.ClientNumber
	case FieldProject:
		return a.Project
	case FieldModality:
		return a.Modality
	case FieldNotes:
		return a.Notes
	}
	return ""
}

// SetText assigns a non-time field. It is a no-op for FieldOccursAt.
func (a *Appointment) SetText(f Field, v string) {
	v = strings.TrimSpace(v)
	switch f {
	case FieldClientName:
		a.ClientName = v
	case FieldClientNumber:
		a.ClientNumber = v
	case FieldProject:
		a.Project = v
	case FieldModality:
		a.Modality = v
	case FieldNotes:
		a.Notes = v
	}
}

// Has reports whether f holds a value.
func (a *Appointment) Has(f Field) bool {
	if f == FieldOccursAt {
		return !a.OccursAt.IsZero()
	}
	return a.Text(f) != ""
}

// Clear empties f.
func (a *Appointment) Clear(f Field) {
	if f == FieldOccursAt {
		a.OccursAt = time.Time{}
		return
	}
	a.SetText(f, "")
}

// Missing returns the unset required fields in canonical order.
func (a *Appointment) Missing() []Field {
	var out []Field
	for _, f := range RequiredFields {
		if !a.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Validate returns ErrIncomplete when any required field is empty.
func (a *Appointment) Validate() error {
	if missing := a.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = string(f)
		}
		return fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(names, ", "))
	}
	return nil
}

// HasNotified reports whether the offset label was already recorded.
func (a *Appointment) HasNotified(label string) bool {
	for _, l := range a.NotifiedOffsets {
		if l == label {
			return true
		}
	}
	return false
}

// Change is a single-field update. Time is used for FieldOccursAt, Text for
// every other field.
type Change struct {
	Field Field
	Text  string
	Time  time.Time
}

// Apply writes the change into a.
func (c Change) Apply(a *Appointment) {
	if c.Field == FieldOccursAt {
		a.OccursAt = c.Time
		return
	}
	a.SetText(c.Field, c.Text)
}

// Filter selects appointments. Value is an accent- and case-insensitive
// substring match on Field; From/To bound OccursAt as a half-open range. Zero values match all.
type Filter struct {
	Field Field
	Value string
	From  time.Time
	To    time.Time
}

// Match reports whether a satisfies the filter.
func (f Filter) Match(a *Appointment) bool {
	if !f.From.IsZero() && a.OccursAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.OccursAt.Before(f.To) {
		return false
	}
	if f.Value != "" && f.Field != "" && f.Field != FieldOccursAt {
		if !strings.Contains(textfold.Fold(a.Text(f.Field)), textfold.Fold(f.Value)) {
			return false
		}
	}
	return true
}
