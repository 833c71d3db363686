package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/soil-telemetry-service/internal/domain"
	"github.com/couchcryptid/soil-telemetry-service/internal/ml"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
)

// ErrInsufficientData is returned when the reading history cannot support a
// trustworthy fit: too few rows, or every row carries the same label.
var ErrInsufficientData = errors.New("insufficient training data")

// MinReadings is the default floor below which training refuses to run. With
// five expanding validation folds anything smaller leaves folds with a
// handful of rows.
const MinReadings = 50

// Feature order is part of the model contract. Inference builds vectors in
// this exact order; changing it invalidates every saved artifact. The time
// features sit last so the base soil-only variant is a prefix.
var featureNames = []string{
	"moisture", "ph", "phosphorus", "potassium", "temperature", "hour", "weekday",
}

const baseFeatureCount = 5

// Options tunes a training run. The zero value is not usable; call
// DefaultOptions.
type Options struct {
	Labels        LabelSource
	LearningRates []float64
	Splits        int
	MinReadings   int
	Base          ml.Params

	// TimeFeatures includes hour and weekday in the vector. The forecast
	// engine needs them to prefer one period over another; the soil-only
	// variant exists for ad-hoc analysis.
	TimeFeatures bool
}

func DefaultOptions() Options {
	return Options{
		Labels:        ThresholdLabels{Thresholds: domain.DefaultThresholds()},
		LearningRates: []float64{0.01, 0.1},
		Splits:        5,
		MinReadings:   MinReadings,
		Base:          ml.DefaultParams(),
		TimeFeatures:  true,
	}
}

// Result carries the fitted model and the evidence behind it.
type Result struct {
	Model     *ml.Classifier
	CV        []ml.CVResult
	Rows      int
	Positives int
	Negatives int
}

// ReadingSource is the slice of the store the trainer needs.
type ReadingSource interface {
	QueryReadings(ctx context.Context, f store.ReadingFilter) ([]store.SoilReading, error)
}

// FeatureVector maps a stored reading onto the fixed feature order. A missing
// temperature becomes 0; the tree splits learn to route around the sentinel
// because real temperatures in the field never reach it.
func FeatureVector(r store.SoilReading) ([]float64, error) {
	phosphorus, potassium, err := r.Nutrients()
	if err != nil {
		return nil, err
	}
	temperature := 0.0
	if r.Temperature != nil {
		temperature = *r.Temperature
	}
	return []float64{
		r.Moisture,
		r.PH,
		bit(phosphorus),
		bit(potassium),
		temperature,
		float64(r.Timestamp.Hour()),
		float64(weekdayIndex(r.Timestamp)),
	}, nil
}

// weekdayIndex numbers days Monday=0 .. Sunday=6.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func bit(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Run assembles the dataset in temporal order, grid-searches the learning
// rate with expanding-window validation, and refits on the full history.
func Run(ctx context.Context, src ReadingSource, opts Options, logger *slog.Logger) (*Result, error) {
	if opts.Labels == nil {
		return nil, errors.New("train: nil label source")
	}

	readings, err := src.QueryReadings(ctx, store.ReadingFilter{})
	if err != nil {
		return nil, fmt.Errorf("train: load readings: %w", err)
	}
	if len(readings) < opts.MinReadings {
		return nil, fmt.Errorf("train: %d readings, need at least %d: %w",
			len(readings), opts.MinReadings, ErrInsufficientData)
	}

	X := make([][]float64, 0, len(readings))
	y := make([]int, 0, len(readings))
	positives := 0
	for _, r := range readings {
		x, err := FeatureVector(r)
		if err != nil {
			return nil, fmt.Errorf("train: reading %d: %w", r.ID, err)
		}
		if !opts.TimeFeatures {
			x = x[:baseFeatureCount]
		}
		label, err := opts.Labels.Label(r)
		if err != nil {
			return nil, fmt.Errorf("train: %w", err)
		}
		X = append(X, x)
		y = append(y, label)
		positives += label
	}
	negatives := len(y) - positives

	logger.Info("training dataset assembled",
		"rows", len(y),
		"irrigate", positives,
		"hold", negatives,
		"label_source", opts.Labels.Name())

	if positives == 0 || negatives == 0 {
		return nil, fmt.Errorf("train: all %d rows share one label: %w",
			len(y), ErrInsufficientData)
	}

	model, cv, err := ml.GridSearch(X, y, opts.LearningRates, opts.Splits, opts.Base)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	names := featureNames
	if !opts.TimeFeatures {
		names = featureNames[:baseFeatureCount]
	}
	model.FeatureNames = append([]string(nil), names...)

	for _, res := range cv {
		logger.Info("cross-validation candidate",
			"learning_rate", res.Params.LearningRate,
			"mean_accuracy", res.MeanScore,
			"fold_scores", res.FoldScores)
	}
	logger.Info("model refit on full history",
		"learning_rate", model.Params.LearningRate,
		"trees", len(model.Trees),
		"train_accuracy", model.Accuracy(X, y))

	return &Result{
		Model:     model,
		CV:        cv,
		Rows:      len(y),
		Positives: positives,
		Negatives: negatives,
	}, nil
}
