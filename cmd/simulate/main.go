// Command simulate bulk-loads synthetic sensor history so the trainer and
// forecaster can be exercised without a live device. Values follow a daily
// moisture/temperature cycle with noise rather than pure uniform draws, so
// the hour features carry signal.
//
// Usage:
//
//	go run ./cmd/simulate [-rows 20000] [-days 30] [-seed 1]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/couchcryptid/soil-telemetry-service/internal/config"
	"github.com/couchcryptid/soil-telemetry-service/internal/domain"
	"github.com/couchcryptid/soil-telemetry-service/internal/observability"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	rows := flag.Int("rows", 20000, "number of readings to generate")
	days := flag.Int("days", 30, "history window ending now")
	seed := flag.Int64("seed", 1, "rng seed for reproducible runs")
	flag.Parse()

	if *rows < 1 || *days < 1 {
		return fmt.Errorf("rows and days must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Seed(ctx); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	end := domain.Now()
	start := end.Add(-time.Duration(*days) * 24 * time.Hour)
	step := end.Sub(start) / time.Duration(*rows)

	logger.Info("generating readings",
		"rows", *rows,
		"from", start,
		"to", end,
		"batch_size", cfg.BatchSize)

	batch := make([]store.SoilReading, 0, cfg.BatchSize)
	inserted := 0
	for i := 0; i < *rows; i++ {
		ts := start.Add(time.Duration(i) * step)
		batch = append(batch, synthesize(rng, ts, cfg.DeviceID, cfg.PlotID))
		if len(batch) == cfg.BatchSize {
			if err := st.InsertReadingBatch(ctx, batch); err != nil {
				return err
			}
			inserted += len(batch)
			logger.Info("batch committed", "inserted", inserted)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := st.InsertReadingBatch(ctx, batch); err != nil {
			return err
		}
		inserted += len(batch)
	}

	logger.Info("simulation complete", "inserted", inserted)
	return nil
}

// synthesize produces one reading at ts. Moisture dips through the afternoon
// and recovers overnight; temperature does the opposite.
func synthesize(rng *rand.Rand, ts time.Time, deviceID, plotID int64) store.SoilReading {
	hourFrac := float64(ts.Hour()) + float64(ts.Minute())/60

	// Daily cycle peaking at 04:00 for moisture, 16:00 for temperature.
	phase := 2 * math.Pi * (hourFrac - 4) / 24
	moisture := 42 - 8*math.Cos(phase+math.Pi) + rng.NormFloat64()*3
	moisture = clamp(moisture, 10, 90)

	ph := 6.0 + rng.NormFloat64()*0.5
	ph = clamp(ph, 3.5, 8.5)

	temp := 26 - 6*math.Cos(phase) + rng.NormFloat64()*1.5

	phosphorus := rng.Float64() < 0.6
	potassium := rng.Float64() < 0.6

	return store.SoilReading{
		Timestamp:   ts,
		Moisture:    moisture,
		PH:          ph,
		NPK:         domain.EncodeNPK(phosphorus, potassium),
		Temperature: &temp,
		DeviceID:    deviceID,
		PlotID:      plotID,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
