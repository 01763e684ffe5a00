package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// backends runs fn against every Appointments implementation.
func backends(t *testing.T, fn func(t *testing.T, s Appointments)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, NewSQLiteAppointmentStore(testDB(t))) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

var base = time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

func sample(owner, client string, at time.Time) domain.Appointment {
	return domain.Appointment{
		OwnerID:    owner,
		ClientName: client,
		Project:    "Norte",
		Modality:   "presencial",
		OccursAt:   at,
	}
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	v, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, v)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.migrate(context.Background()))

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"appointments", "appointment_notifications"} {
		var name string
		err := db.sql.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestOpen_File(t *testing.T) {
	path := t.TempDir() + "/nested/agendabot.db"
	db, err := Open(path, logging.Nop())
	require.NoError(t, err)
	s := NewSQLiteAppointmentStore(db)
	id, err := s.Create(context.Background(), sample("irc:ana", "Ana", base))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, logging.Nop())
	require.NoError(t, err)
	defer db.Close()
	got, err := NewSQLiteAppointmentStore(db).Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.ClientName)
}

// --- Appointment contract tests ---

func TestCreateAndGet(t *testing.T) {
	backends(t, func(t *testing.T, s Appointments) {
		ctx := context.Background()
		a := sample("irc:ana", "Ana", base)
		a.ClientNumber = "987654321"
		a.Notes = "llevar planos"

		id, err := s.Create(ctx, a)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "irc:ana", got.OwnerID)
		assert.Equal(t, "Ana", got.ClientName)
		assert.Equal(t, "987654321", got.ClientNumber)
		assert.Equal(t, "llevar planos", got.Notes)
		assert.True(t, base.Equal(got.OccursAt))
		assert.False(t, got.CreatedAt.IsZero())
		assert.Empty(t, got.NotifiedOffsets)
		assert.False(t, got.Reported)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestCreateRejectsIncomplete(t *testing.T) {
	backends(t, func(t *testing.T, s Appointments) {
		a := sample("irc:ana", "Ana", time.Time{})
		_, err := s.Create(context.Background(), a)
		assert.True(t, errors.Is(err, domain.ErrIncomplete))

		n, err := s.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestGetNotFound(t *testing.T) {
	backends(t, func(t *testing.T, s Appointments) {
		_, err := s.Get(context.Background(), "missing")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestQuery(t *testing.T) {
	backends(t, func(t *testing.T, s Appointments) {
		ctx := context.Background()
		for _, a := range []domain.Appointment{
			sample("irc:ana", "José Pérez", base.Add(48*time.Hour)),
			sample("irc:ana", "Ana", base),
			sample("irc:ana", "Pedro", base.Add(24*time.Hour)),
			sample("ws:u1", "Ana", base),
		} {
			_, err := s.Create(ctx, a)
			require.NoError(t, err)
		}

		all, err := s.Query(ctx, "irc:ana", domain.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"Ana", "Pedro", "José Pérez"},
			[]string{all[0].ClientName, all[1].ClientName, all[2].ClientName}, "soonest first")

		byName, err := s.Query(ctx, "irc:ana", domain.Filter{Field: domain.FieldClientName, Value: "jose"})
		require.NoError(t, err)
		require.Len(t, byName, 1)
		assert.Equal(t, "José Pérez", byName[0].ClientName)

		day, err := s.Query(ctx, "irc:ana", domain.Filter{From: base.Add(24 * time.Hour), To: base.Add(48 * time.Hour)})
		require.NoError(t, err)
		require.Len(t, day, 1)
		assert.Equal(t, "Pedro", day[0].ClientName)

		everyone, err := s.Query(ctx, "", domain.Filter{Field: domain.FieldClientName, Value: "ana"})
		require.NoError(t, err)
		assert.Len(t, everyone, 2)
	})
}

func TestUpdate(t *testing.T) {
	backends(t, func(t *testing.T, s Appointments) {
		ctx := context.Background()
		id, err := s.Create(ctx, sample("irc:ana", "Ana", base))
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, id, domain.Change{Field: domain.FieldProject, Text: " Sur "}))
		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Sur", got.Project)

		require.NoError(t, s.Update(ctx, id, domain.Change{Field: domain.FieldNotes, Text: ""}), "optional field may be cleared")

		err = s.Update(ctx, id, domain.Change{Field: domain.FieldClientName, Text: "  "})
		assert.True(t, errors.Is(err, domain.ErrIncomplete))
		err = s.Update(ctx, id, domain.Change{Field: domain.FieldOccursAt})
		assert.True(t, errors.Is(err, domain.ErrIncomplete))
		err = s.Update(ctx, id, domain.Change{Field: "color", Text: "rojo"})
		assert.Error(t, err)

		err = s.Update(ctx, "missing", domain.Change{Field: domain.FieldProject, Text: "x"})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestUpdateOccursAtResetsNotifications(t *testing.T) {
	backends(t, func(t *testing.T, s Appointments) {
		ctx := context.Background()
		id, err := s.Create(ctx, sample("irc:ana", "Ana", base))
		require.NoError(t, err)

		ok, err := s.ClaimOffset(ctx, id, "advance")
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = s.ClaimReport(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)

		// A text change keeps the history.
		require.NoError(t, s.Update(ctx, id, domain.Change{Field: domain.FieldNotes, Text: "x"}))
		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"advance"}, got.NotifiedOffsets)
		assert.True(t, got.Reported)

		later := base.Add(2 * time.Hour)
		require.NoError(t, s.Update(ctx, id, domain.Change{Field: domain.FieldOccursAt, Time: later}))
		got, err = s.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, later.Equal(got.OccursAt))
		assert.Empty(t, got.NotifiedOffsets)
		assert.False(t, got.Reported)
	})
}

func TestOffsetClaims(t *testing.T) {
	backends(t, func(t *testing.T, s Appointments) {
		ctx := context.Background()
		id, err := s.Create(ctx, sample("irc:ana", "Ana", base))
		require.NoError(t, err)
		labels := []string{"advance", "due"}

		pending, err := s.Pending(ctx, labels)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		ok, err := s.ClaimOffset(ctx, id, "advance")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.ClaimOffset(ctx, id, "advance")
		require.NoError(t, err)
		assert.False(t, ok, "second claim loses")

		pending, err = s.Pending(ctx, labels)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, []string{"advance"}, pending[0].NotifiedOffsets)

		ok, err = s.ClaimOffset(ctx, id, "due")
		require.NoError(t, err)
		assert.True(t, ok)
		pending, err = s.Pending(ctx, labels)
		require.NoError(t, err)
		assert.Empty(t, pending, "fully notified")

		require.NoError(t, s.ReleaseOffset(ctx, id, "due"))
		pending, err = s.Pending(ctx, labels)
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		none, err := s.Pending(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestOffsetClaimsConcurrent(t *testing.T) {
	backends(t, func(t *testing.T, s Appointments) {
		ctx := context.Background()
		id, err := s.Create(ctx, sample("irc:ana", "Ana", base))
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.ClaimOffset(ctx, id, "due")
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestReports(t *testing.T) {
	backends(t, func(t *testing.T, s Appointments) {
		ctx := context.Background()
		morning, err := s.Create(ctx, sample("irc:ana", "Ana", base.Add(-5*time.Hour)))
		require.NoError(t, err)
		_, err = s.Create(ctx, sample("irc:ana", "Luis", base.Add(24*time.Hour)))
		require.NoError(t, err)

		dayStart := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
		list, err := s.ListUnreported(ctx, dayStart, base)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, morning, list[0].ID)

		ok, err := s.ClaimReport(ctx, morning)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.ClaimReport(ctx, morning)
		require.NoError(t, err)
		assert.False(t, ok)

		list, err = s.ListUnreported(ctx, dayStart, base)
		require.NoError(t, err)
		assert.Empty(t, list)

		require.NoError(t, s.ReleaseReport(ctx, morning))
		list, err = s.ListUnreported(ctx, dayStart, base)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestStoresNonUTCInstants(t *testing.T) {
	lima := time.FixedZone("PET", -5*60*60)
	at := time.Date(2025, 6, 10, 22, 30, 0, 0, lima) // 2025-06-11 03:30 UTC
	backends(t, func(t *testing.T, s Appointments) {
		ctx := context.Background()
		id, err := s.Create(ctx, sample("irc:ana", "Ana", at))
		require.NoError(t, err)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, at.Equal(got.OccursAt))

		dayStart := time.Date(2025, 6, 10, 0, 0, 0, 0, lima)
		list, err := s.Query(ctx, "irc:ana", domain.Filter{From: dayStart, To: dayStart.AddDate(0, 0, 1)})
		require.NoError(t, err)
		assert.Len(t, list, 1, "range is compared as instants, not wall clock")
	})
}
