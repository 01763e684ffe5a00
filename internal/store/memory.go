package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/agendabot/internal/domain"
)

// Memory is an in-process Appointments implementation. Data is lost on exit.
type Memory struct {
	mu    sync.Mutex
	items map[string]*domain.Appointment
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]*domain.Appointment)}
}

func clone(a *domain.Appointment) domain.Appointment {
	c := *a
	c.NotifiedOffsets = append([]string(nil), a.NotifiedOffsets...)
	if len(c.NotifiedOffsets) == 0 {
		c.NotifiedOffsets = nil
	}
	sort.Strings(c.NotifiedOffsets)
	return c
}

func (m *Memory) sorted(keep func(*domain.Appointment) bool) []domain.Appointment {
	var out []domain.Appointment
	for _, a := range m.items {
		if keep(a) {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccursAt.Equal(out[j].OccursAt) {
			return out[i].OccursAt.Before(out[j].OccursAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Memory) Create(_ context.Context, a domain.Appointment) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.NotifiedOffsets = nil
	a.Reported = false

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[a.ID] = &a
	return a.ID, nil
}

func (m *Memory) Get(_ context.Context, id string) (*domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := clone(a)
	return &c, nil
}

func (m *Memory) Query(_ context.Context, ownerID string, f domain.Filter) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(a *domain.Appointment) bool {
		return (ownerID == "" || a.OwnerID == ownerID) && f.Match(a)
	}), nil
}

func (m *Memory) Update(_ context.Context, id string, c domain.Change) error {
	if err := validateChange(c); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if c.Field == domain.FieldOccursAt {
		a.NotifiedOffsets = nil
		a.Reported = false
	}
	c.Text = strings.TrimSpace(c.Text)
	c.Apply(a)
	return nil
}

func (m *Memory) Pending(_ context.Context, labels []string) ([]domain.Appointment, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(a *domain.Appointment) bool {
		for _, l := range labels {
			if !a.HasNotified(l) {
				return true
			}
		}
		return false
	}), nil
}

func (m *Memory) ClaimOffset(_ context.Context, id, label string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if a.HasNotified(label) {
		return false, nil
	}
	a.NotifiedOffsets = append(a.NotifiedOffsets, label)
	return true, nil
}

func (m *Memory) ReleaseOffset(_ context.Context, id, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil
	}
	kept := a.NotifiedOffsets[:0]
	for _, l := range a.NotifiedOffsets {
		if l != label {
			kept = append(kept, l)
		}
	}
	a.NotifiedOffsets = kept
	return nil
}

func (m *Memory) ListUnreported(_ context.Context, from, to time.Time) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(a *domain.Appointment) bool {
		return !a.Reported && !a.OccursAt.Before(from) && a.OccursAt.Before(to)
	}), nil
}

func (m *Memory) ClaimReport(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if a.Reported {
		return false, nil
	}
	a.Reported = true
	return true, nil
}

func (m *Memory) ReleaseReport(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.items[id]; ok {
		a.Reported = false
	}
	return nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

var (
	_ Appointments = (*Memory)(nil)
	_ Appointments = (*SQLiteAppointmentStore)(nil)
)
