package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/soyeahso/tablecall/internal/domain"
	"github.com/soyeahso/tablecall/internal/logging"
)

// DB wraps a SQLite database connection with migration support.
type DB struct {
	sql *sql.DB
	log *logging.Logger
}

// Open opens (or creates) a SQLite database at the given path and runs
// migrations. Use ":memory:" for an in-memory database (useful for tests).
func Open(path string, log *logging.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// Single connection: serializes writers, so a merge transaction never
	// fails its lock upgrade against a concurrent merge on the same row.
	sqlDB.SetMaxOpenConns(1)

	// WAL mode for better concurrent read performance
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	db := &DB{sql: sqlDB, log: log.Sub("store")}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	db.log.Info().Str("path", path).Msg("database opened")
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.log.Info().Msg("closing database")
	return db.sql.Close()
}

// migrate runs all pending migrations.
func (db *DB) migrate() error {
	if _, err := db.sql.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := db.isMigrationApplied(m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		db.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")

		tx, err := db.sql.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (db *DB) isMigrationApplied(version int) (bool, error) {
	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking migration %d: %w", version, err)
	}
	return count > 0, nil
}

// SQLiteStore implements ReservationStore backed by SQLite.
type SQLiteStore struct {
	db *DB
}

// NewSQLiteStore creates a reservation store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const reservationColumns = `id, name, phone_number, party_size, date, time, special_requests,
	status, status_message, status_details, final_date_time, person_name,
	confirmed_party_size, special_instructions, created_at`

// Create inserts a pending reservation with a fresh ID.
func (s *SQLiteStore) Create(in domain.NewReservation) (*domain.Reservation, error) {
	r := domain.Reservation{
		ID:              uuid.New().String(),
		Name:            in.Name,
		PhoneNumber:     in.PhoneNumber,
		PartySize:       in.PartySize,
		Date:            in.Date,
		Time:            in.Time,
		SpecialRequests: in.SpecialRequests,
		Status:          domain.StatusPending,
		CreatedAt:       time.Now(),
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO reservations (id, name, phone_number, party_size, date, time, special_requests, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.PhoneNumber, r.PartySize, r.Date, r.Time,
		nullable(r.SpecialRequests), string(r.Status), r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting reservation: %w", err)
	}
	return &r, nil
}

// Get returns the reservation, or (nil, nil) when absent.
func (s *SQLiteStore) Get(id string) (*domain.Reservation, error) {
	row := s.db.sql.QueryRow(
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id,
	)
	return scanReservation(row)
}

// MergeStatus applies a status event inside a transaction so concurrent
// merges on the same ID never lose updates.
func (s *SQLiteStore) MergeStatus(update domain.StatusUpdate) (*domain.Reservation, error) {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, update.ID,
	)
	current, err := scanReservation(row)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	merged := domain.ApplyStatusUpdate(*current, update)

	_, err = tx.Exec(
		`UPDATE reservations SET
			status = ?, status_message = ?, status_details = ?, final_date_time = ?,
			person_name = ?, confirmed_party_size = ?, special_instructions = ?
		 WHERE id = ?`,
		string(merged.Status), nullable(merged.StatusMessage), nullable(merged.StatusDetails),
		nullable(merged.FinalDateTime), nullable(merged.PersonName),
		nullableInt(merged.ConfirmedPartySize), nullable(merged.SpecialInstructions),
		merged.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating reservation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit merge: %w", err)
	}
	return &merged, nil
}

// ListRecent returns up to limit reservations, newest first.
func (s *SQLiteStore) ListRecent(limit int) ([]domain.Reservation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.sql.Query(
		`SELECT `+reservationColumns+` FROM reservations
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		r, err := scanReservationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row *sql.Row) (*domain.Reservation, error) {
	r, err := scanInto(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func scanReservationRow(rows *sql.Rows) (*domain.Reservation, error) {
	return scanInto(rows)
}

func scanInto(sc rowScanner) (*domain.Reservation, error) {
	var r domain.Reservation
	var status, createdAt string
	var specialRequests, statusMessage, statusDetails sql.NullString
	var finalDateTime, personName, specialInstructions sql.NullString
	var confirmedPartySize sql.NullInt64

	err := sc.Scan(
		&r.ID, &r.Name, &r.PhoneNumber, &r.PartySize, &r.Date, &r.Time,
		&specialRequests, &status, &statusMessage, &statusDetails,
		&finalDateTime, &personName, &confirmedPartySize, &specialInstructions,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning reservation: %w", err)
	}

	r.Status = domain.Status(status)
	r.SpecialRequests = specialRequests.String
	r.StatusMessage = statusMessage.String
	r.StatusDetails = statusDetails.String
	r.FinalDateTime = finalDateTime.String
	r.PersonName = personName.String
	r.SpecialInstructions = specialInstructions.String
	r.ConfirmedPartySize = int(confirmedPartySize.Int64)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
