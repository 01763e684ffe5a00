package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agendabot/internal/domain"
)

// Appointments is the full persistence contract. The dialogue and the
// scheduler each depend on the subset they use.
type Appointments interface {
	// Create validates and stores a, returning the new id.
	Create(ctx context.Context, a domain.Appointment) (string, error)
	// Get returns domain.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*domain.Appointment, error)
	// Query lists an owner's appointments matching f, soonest first. An
	// empty ownerID matches every owner.
	Query(ctx context.Context, ownerID string, f domain.Filter) ([]domain.Appointment, error)
	// Update applies a single-field change. Moving OccursAt forgets recorded
	// notifications and the report flag.
	Update(ctx context.Context, id string, c domain.Change) error

	// Pending lists appointments missing at least one of labels.
	Pending(ctx context.Context, labels []string) ([]domain.Appointment, error)
	// ClaimOffset records label for id. It reports false when the label was
	// already recorded, by this or any other caller.
	ClaimOffset(ctx context.Context, id, label string) (bool, error)
	// ReleaseOffset forgets a claim so a later tick can retry it.
	ReleaseOffset(ctx context.Context, id, label string) error
	// ListUnreported lists appointments in [from, to) whose follow-up has not
	// been sent.
	ListUnreported(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	// ClaimReport sets the reported flag, reporting false if it was set.
	ClaimReport(ctx context.Context, id string) (bool, error)
	ReleaseReport(ctx context.Context, id string) error

	// Count returns the number of stored appointments.
	Count(ctx context.Context) (int, error)
}

// validateChange rejects changes that would leave a required field empty.
func validateChange(c domain.Change) error {
	if !c.Field.Valid() {
		return fmt.Errorf("unknown field %q", c.Field)
	}
	if c.Field == domain.FieldOccursAt {
		if c.Time.IsZero() {
			return fmt.Errorf("%w: empty occurs_at", domain.ErrIncomplete)
		}
		return nil
	}
	if c.Field.Required() && strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("%w: empty %s", domain.ErrIncomplete, c.Field)
	}
	return nil
}
