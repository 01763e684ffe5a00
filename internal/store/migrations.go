package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations. Timestamps are
// UTC in time.DateTime layout so they sort and compare as text.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create appointments",
		SQL: `
			CREATE TABLE appointments (
				id             TEXT PRIMARY KEY,
				owner_id       TEXT NOT NULL,
				client_name    TEXT NOT NULL,
				client_number  TEXT NOT NULL DEFAULT '',
				project        TEXT NOT NULL,
				modality       TEXT NOT NULL,
				occurs_at      TEXT NOT NULL,
				notes          TEXT NOT NULL DEFAULT '',
				reported       INTEGER NOT NULL DEFAULT 0,
				created_at     TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_appointments_owner ON appointments (owner_id, occurs_at);
			CREATE INDEX idx_appointments_occurs ON appointments (occurs_at);
		`,
	},
	{
		Version: 2,
		Name:    "create appointment notifications",
		SQL: `
			CREATE TABLE appointment_notifications (
				appointment_id  TEXT NOT NULL REFERENCES appointments(id) ON DELETE CASCADE,
				offset_label    TEXT NOT NULL,
				recorded_at     TEXT NOT NULL DEFAULT (datetime('now')),
				PRIMARY KEY (appointment_id, offset_label)
			);
		`,
	},
}
