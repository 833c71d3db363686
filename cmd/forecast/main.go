// Command forecast loads the fitted model, scores the hourly grid ahead of
// the latest stored reading, and prints the best irrigation window per day.
//
// Usage:
//
//	go run ./cmd/forecast [-days 7] [-json]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/soil-telemetry-service/internal/config"
	"github.com/couchcryptid/soil-telemetry-service/internal/domain"
	"github.com/couchcryptid/soil-telemetry-service/internal/forecast"
	"github.com/couchcryptid/soil-telemetry-service/internal/ml"
	"github.com/couchcryptid/soil-telemetry-service/internal/observability"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("forecast failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	days := flag.Int("days", 7, "forecast horizon in days")
	asJSON := flag.Bool("json", false, "emit the table as JSON instead of text")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	model, err := ml.Load(cfg.ModelPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	defer st.Close()

	latest, err := st.LatestReading(context.Background())
	if errors.Is(err, store.ErrNoReadings) {
		return fmt.Errorf("%w (run the collector or simulator first)", err)
	}
	if err != nil {
		return err
	}

	logger.Info("forecasting from latest reading",
		"reading_id", latest.ID,
		"recorded_at", latest.Timestamp,
		"moisture", latest.Moisture,
		"ph", latest.PH)

	table, err := forecast.New(model).Recommend(latest, domain.Now(), *days)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}
	return table.WriteText(os.Stdout)
}
