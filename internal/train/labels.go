package train

import (
	"context"
	"fmt"

	"github.com/couchcryptid/soil-telemetry-service/internal/domain"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
)

// LabelSource assigns the supervised label to a stored reading. Two sources
// exist because the system historically carried both signals: the agronomic
// threshold rule, and the presence of a recorded recommendation. They are
// deliberately swappable; the threshold rule is the production default (see
// DESIGN.md) because the recommendation table is empty until inference has
// run, which makes the historical source degenerate on a fresh install.
type LabelSource interface {
	Name() string
	Label(r store.SoilReading) (int, error)
}

// ThresholdLabels derives the label from the reading itself using the
// irrigation thresholds (self-supervised variant).
type ThresholdLabels struct {
	Thresholds domain.Thresholds
}

func (ThresholdLabels) Name() string { return "threshold" }

func (s ThresholdLabels) Label(r store.SoilReading) (int, error) {
	phosphorus, potassium, err := r.Nutrients()
	if err != nil {
		return 0, fmt.Errorf("label reading %d: %w", r.ID, err)
	}
	return s.Thresholds.Label(r.Moisture, r.PH, phosphorus, potassium), nil
}

// ActionLabels marks a reading positive iff a recommendation was recorded
// for it (historical variant).
type ActionLabels struct {
	ids map[int64]bool
}

// NewActionLabels snapshots the set of readings that have recommendations.
func NewActionLabels(ctx context.Context, st *store.Store) (ActionLabels, error) {
	ids, err := st.ReadingIDsWithRecommendations(ctx)
	if err != nil {
		return ActionLabels{}, err
	}
	return ActionLabels{ids: ids}, nil
}

func (ActionLabels) Name() string { return "recorded-actions" }

func (s ActionLabels) Label(r store.SoilReading) (int, error) {
	if s.ids[r.ID] {
		return 1, nil
	}
	return 0, nil
}
