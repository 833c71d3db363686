// Package store owns the sqlite schema and every read/write the service
// performs against it. Schema initialization and seeding are idempotent and
// run on each process start; readings are append-only facts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is the persisted timestamp format, matching the collector the
// database was originally populated by.
const timeLayout = "2006-01-02 15:04:05"

const schema = `
CREATE TABLE IF NOT EXISTS crops (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT NOT NULL,
    primary_nutrient TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS field_devices (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    sensor_type TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS plots (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    name    TEXT NOT NULL,
    region  TEXT NOT NULL DEFAULT '',
    grower  TEXT NOT NULL DEFAULT '',
    crop_id INTEGER NOT NULL REFERENCES crops(id)
);

CREATE TABLE IF NOT EXISTS soil_readings (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp     TEXT NOT NULL,
    moisture      REAL NOT NULL,
    ph            REAL NOT NULL,
    npk           TEXT NOT NULL,
    temperature   REAL,
    rain_forecast TEXT,
    growth_pct    REAL,
    device_id     INTEGER NOT NULL REFERENCES field_devices(id),
    plot_id       INTEGER NOT NULL REFERENCES plots(id)
);
CREATE INDEX IF NOT EXISTS idx_soil_readings_ts ON soil_readings(timestamp);

CREATE TABLE IF NOT EXISTS recommended_actions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    reading_id     INTEGER NOT NULL REFERENCES soil_readings(id),
    recommendation TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recommended_actions_reading ON recommended_actions(reading_id);

CREATE TABLE IF NOT EXISTS action_outcomes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    action_id   INTEGER NOT NULL REFERENCES recommended_actions(id),
    executed    INTEGER NOT NULL DEFAULT 0,
    executed_at TEXT,
    grower_note TEXT NOT NULL DEFAULT ''
);
`

// Store wraps the sqlite handle. Safe for one writer (the ingestion service
// or a bulk loader) plus concurrent readers; WAL mode gives readers a
// consistent snapshot while appends land.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and applies the
// schema. Foreign keys are enforced on every connection. Safe to call on
// every process start; never destructive.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes per connection; a single connection
	// avoids SQLITE_BUSY between the ingest writer and bulk loads.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// IntegrityError reports a write rejected by a foreign-key or required-field
// constraint. It indicates a configuration defect (e.g. missing seed rows),
// not a transient condition, and is surfaced to the caller rather than
// silently dropped.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: integrity violation: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// wrapWriteErr classifies a write error, converting sqlite constraint
// failures into *IntegrityError.
func wrapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return &IntegrityError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Seed inserts the default reference rows, once. Each reference table is
// seeded only when empty, so repeated starts never duplicate rows.
func (s *Store) Seed(ctx context.Context) error {
	seeds := []struct {
		table string
		query string
		args  []any
	}{
		{
			table: "crops",
			query: `INSERT INTO crops (id, name, primary_nutrient) VALUES (1, 'Cacau', 'Fósforo')`,
		},
		{
			table: "field_devices",
			query: `INSERT INTO field_devices (id, sensor_type, description) VALUES (1, 'ESP32', 'Simulador Wokwi')`,
		},
		{
			table: "plots",
			query: `INSERT INTO plots (id, name, region, grower, crop_id) VALUES (1, 'Talhão 1', 'Região A', 'Produtor X', 1)`,
		},
	}

	for _, seed := range seeds {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+seed.table).Scan(&n); err != nil {
			return fmt.Errorf("count %s: %w", seed.table, err)
		}
		if n > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, seed.query, seed.args...); err != nil {
			return wrapWriteErr("seed "+seed.table, err)
		}
	}
	return nil
}
