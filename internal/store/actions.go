package store

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/soil-telemetry-service/internal/domain"
)

// RecommendedAction is a model-produced irrigation recommendation tied to the
// reading it was derived from. Created by training/inference, never by the
// ingestion path.
type RecommendedAction struct {
	ID             int64
	ReadingID      int64
	Recommendation string
}

// ActionOutcome records human-confirmed follow-through on a recommendation.
type ActionOutcome struct {
	ID         int64
	ActionID   int64
	Executed   bool
	ExecutedAt *time.Time
	GrowerNote string
}

// InsertRecommendation attaches a recommendation to an existing reading.
// A non-existent reading id is an *IntegrityError.
func (s *Store) InsertRecommendation(ctx context.Context, readingID int64, recommendation string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO recommended_actions (reading_id, recommendation) VALUES (?, ?)`,
		readingID, recommendation)
	if err != nil {
		return 0, wrapWriteErr("insert recommendation", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert recommendation: last insert id: %w", err)
	}
	return id, nil
}

// RecommendationsFor returns the recommendations recorded for a reading
// (zero or one in normal operation).
func (s *Store) RecommendationsFor(ctx context.Context, readingID int64) ([]RecommendedAction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reading_id, recommendation FROM recommended_actions WHERE reading_id = ? ORDER BY id`,
		readingID)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	var out []RecommendedAction
	for rows.Next() {
		var a RecommendedAction
		if err := rows.Scan(&a.ID, &a.ReadingID, &a.Recommendation); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReadingIDsWithRecommendations returns the set of reading ids that have at
// least one recommendation row. The historical-label training source builds
// its positive class from this set.
func (s *Store) ReadingIDsWithRecommendations(ctx context.Context) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT reading_id FROM recommended_actions`)
	if err != nil {
		return nil, fmt.Errorf("query recommended reading ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reading id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// InsertOutcome records whether a recommendation was executed in the field.
func (s *Store) InsertOutcome(ctx context.Context, o *ActionOutcome) error {
	var executedAt any
	if o.ExecutedAt != nil {
		executedAt = o.ExecutedAt.Format(timeLayout)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO action_outcomes (action_id, executed, executed_at, grower_note) VALUES (?, ?, ?, ?)`,
		o.ActionID, o.Executed, executedAt, o.GrowerNote)
	if err != nil {
		return wrapWriteErr("insert outcome", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert outcome: last insert id: %w", err)
	}
	o.ID = id
	return nil
}

// OutcomesFor returns the outcomes recorded for a recommendation.
func (s *Store) OutcomesFor(ctx context.Context, actionID int64) ([]ActionOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action_id, executed, executed_at, grower_note FROM action_outcomes WHERE action_id = ? ORDER BY id`,
		actionID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []ActionOutcome
	for rows.Next() {
		var (
			o  ActionOutcome
			ts *string
		)
		if err := rows.Scan(&o.ID, &o.ActionID, &o.Executed, &ts, &o.GrowerNote); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if ts != nil {
			parsed, err := time.ParseInLocation(timeLayout, *ts, time.Local)
			if err != nil {
				return nil, fmt.Errorf("parse outcome timestamp %q: %w", *ts, err)
			}
			o.ExecutedAt = &parsed
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// NewReadingFromDecoded builds a SoilReading row from a decoded telemetry
// line. Channels outside the line grammar stay nil.
func NewReadingFromDecoded(r domain.Reading, deviceID, plotID int64) SoilReading {
	return SoilReading{
		Moisture: r.Moisture,
		PH:       r.PH,
		NPK:      r.NPK(),
		DeviceID: deviceID,
		PlotID:   plotID,
	}
}
