package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create reservations",
		SQL: `
			CREATE TABLE reservations (
				id                   TEXT PRIMARY KEY,
				name                 TEXT NOT NULL,
				phone_number         TEXT NOT NULL,
				party_size           INTEGER NOT NULL,
				date                 TEXT NOT NULL,
				time                 TEXT NOT NULL,
				special_requests     TEXT,
				status               TEXT NOT NULL DEFAULT 'pending',
				status_message       TEXT,
				status_details       TEXT,
				final_date_time      TEXT,
				person_name          TEXT,
				confirmed_party_size INTEGER,
				special_instructions TEXT,
				created_at           TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_reservations_created ON reservations (created_at DESC);
			CREATE INDEX idx_reservations_status ON reservations (status);
		`,
	},
}
