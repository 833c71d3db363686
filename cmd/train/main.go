// Command train fits the irrigation classifier on the stored reading history
// and writes the model artifact consumed by the forecast command.
//
// Usage:
//
//	go run ./cmd/train [-labels threshold|recorded-actions] [-min-readings 50] \
//	  [-splits 5] [-time-features] [-db farm_data.db] [-model models/irrigation_model.json]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/soil-telemetry-service/internal/config"
	"github.com/couchcryptid/soil-telemetry-service/internal/domain"
	"github.com/couchcryptid/soil-telemetry-service/internal/ml"
	"github.com/couchcryptid/soil-telemetry-service/internal/observability"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
	"github.com/couchcryptid/soil-telemetry-service/internal/train"
)

func main() {
	if err := run(); err != nil {
		slog.Error("training failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	labelSource := flag.String("labels", "threshold", "label source: threshold or recorded-actions")
	minReadings := flag.Int("min-readings", train.MinReadings, "refuse to train below this many readings")
	splits := flag.Int("splits", 5, "number of time-ordered validation folds")
	timeFeatures := flag.Bool("time-features", true, "include hour and weekday features")
	dbPath := flag.String("db", "", "override DB_PATH")
	modelPath := flag.String("model", "", "override MODEL_PATH")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *modelPath != "" {
		cfg.ModelPath = *modelPath
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	defer st.Close()

	ctx := context.Background()
	opts := train.DefaultOptions()
	opts.MinReadings = *minReadings
	opts.Splits = *splits
	opts.TimeFeatures = *timeFeatures

	switch *labelSource {
	case "threshold":
		// default already set
	case "recorded-actions":
		labels, err := train.NewActionLabels(ctx, st)
		if err != nil {
			return fmt.Errorf("load recorded actions: %w", err)
		}
		opts.Labels = labels
	default:
		return fmt.Errorf("unknown label source %q", *labelSource)
	}

	res, err := train.Run(ctx, st, opts, logger)
	if errors.Is(err, train.ErrInsufficientData) {
		return fmt.Errorf("%w (run the collector or simulator first)", err)
	}
	if err != nil {
		return err
	}

	trainedAt := domain.Now()
	if err := ml.Save(cfg.ModelPath, res.Model, trainedAt); err != nil {
		return err
	}

	logger.Info("model artifact written",
		"path", cfg.ModelPath,
		"trained_at", trainedAt,
		"rows", res.Rows,
		"learning_rate", res.Model.Params.LearningRate)
	return nil
}
