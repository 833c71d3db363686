package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/soil-telemetry-service/internal/domain"
)

// ErrNoReadings is returned by LatestReading when the fact table is empty.
var ErrNoReadings = errors.New("no soil readings stored")

// SoilReading is one persisted sensor observation. Optional channels are
// pointers: nil means the source never reported the value, which downstream
// consumers must treat as distinct from zero.
type SoilReading struct {
	ID           int64
	Timestamp    time.Time
	Moisture     float64
	PH           float64
	NPK          string
	Temperature  *float64
	RainForecast *string
	GrowthPct    *float64
	DeviceID     int64
	PlotID       int64
}

// Nutrients decodes the persisted NPK pair.
func (r SoilReading) Nutrients() (phosphorus, potassium bool, err error) {
	return domain.DecodeNPK(r.NPK)
}

// ReadingFilter narrows QueryReadings. Zero values mean "unbounded".
type ReadingFilter struct {
	Since      time.Time
	Until      time.Time
	Limit      int
	Descending bool
}

const insertReadingSQL = `
INSERT INTO soil_readings (timestamp, moisture, ph, npk, temperature, rain_forecast, growth_pct, device_id, plot_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertReading appends one reading. The write is atomic: a constraint
// violation (unknown device or plot, missing required field) returns an
// *IntegrityError and leaves the table unchanged. If r.Timestamp is zero the
// row is stamped at write time.
func (s *Store) InsertReading(ctx context.Context, r *SoilReading) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = domain.Now()
	}
	res, err := s.db.ExecContext(ctx, insertReadingSQL,
		ts.Format(timeLayout), r.Moisture, r.PH, r.NPK,
		r.Temperature, r.RainForecast, r.GrowthPct, r.DeviceID, r.PlotID)
	if err != nil {
		return wrapWriteErr("insert reading", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert reading: last insert id: %w", err)
	}
	r.ID = id
	r.Timestamp = ts
	return nil
}

// InsertReadingBatch appends readings in a single transaction. Bulk loaders
// call this once per batch (a few thousand rows) so memory stays bounded and
// an interrupted run keeps every fully committed batch.
func (s *Store) InsertReadingBatch(ctx context.Context, readings []SoilReading) error {
	if len(readings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert batch: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return fmt.Errorf("insert batch: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range readings {
		r := &readings[i]
		ts := r.Timestamp
		if ts.IsZero() {
			ts = domain.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			ts.Format(timeLayout), r.Moisture, r.PH, r.NPK,
			r.Temperature, r.RainForecast, r.GrowthPct, r.DeviceID, r.PlotID); err != nil {
			return wrapWriteErr("insert batch", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert batch: commit: %w", err)
	}
	return nil
}

// QueryReadings returns readings matching the filter. Rows are ordered by
// timestamp explicitly; arrival order in the table is not temporal order.
func (s *Store) QueryReadings(ctx context.Context, f ReadingFilter) ([]SoilReading, error) {
	query := `SELECT id, timestamp, moisture, ph, npk, temperature, rain_forecast, growth_pct, device_id, plot_id
FROM soil_readings`
	var (
		where []string
		args  []any
	)
	if !f.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.Since.Format(timeLayout))
	}
	if !f.Until.IsZero() {
		where = append(where, "timestamp < ?")
		args = append(args, f.Until.Format(timeLayout))
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	if f.Descending {
		query += " ORDER BY timestamp DESC, id DESC"
	} else {
		query += " ORDER BY timestamp ASC, id ASC"
	}
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var out []SoilReading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestReading returns the most recent reading by timestamp, or
// ErrNoReadings when the table is empty.
func (s *Store) LatestReading(ctx context.Context) (SoilReading, error) {
	rows, err := s.QueryReadings(ctx, ReadingFilter{Limit: 1, Descending: true})
	if err != nil {
		return SoilReading{}, err
	}
	if len(rows) == 0 {
		return SoilReading{}, ErrNoReadings
	}
	return rows[0], nil
}

// CountReadings reports the size of the fact table.
func (s *Store) CountReadings(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM soil_readings").Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

func scanReading(rows *sql.Rows) (SoilReading, error) {
	var (
		r  SoilReading
		ts string
	)
	if err := rows.Scan(&r.ID, &ts, &r.Moisture, &r.PH, &r.NPK,
		&r.Temperature, &r.RainForecast, &r.GrowthPct, &r.DeviceID, &r.PlotID); err != nil {
		return SoilReading{}, fmt.Errorf("scan reading: %w", err)
	}
	parsed, err := time.ParseInLocation(timeLayout, ts, time.Local)
	if err != nil {
		return SoilReading{}, fmt.Errorf("parse reading timestamp %q: %w", ts, err)
	}
	r.Timestamp = parsed
	return r, nil
}
