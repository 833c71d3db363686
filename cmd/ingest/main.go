// Command ingest runs the telemetry collector: it opens the sensor stream,
// decodes soil readings, appends them to the SQLite store, and exposes the
// operational HTTP surface.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/soil-telemetry-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/soil-telemetry-service/internal/adapter/kafka"
	"github.com/couchcryptid/soil-telemetry-service/internal/config"
	"github.com/couchcryptid/soil-telemetry-service/internal/ingest"
	"github.com/couchcryptid/soil-telemetry-service/internal/observability"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
	"github.com/couchcryptid/soil-telemetry-service/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Seed(context.Background()); err != nil {
		logger.Error("failed to seed reference tables", "error", err)
		os.Exit(1)
	}

	// Optional kafka sink (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	var publisher ingest.Publisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		publisher = kafkaWriter
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	opener := func() (ingest.LineSource, error) {
		return transport.Open(cfg.SerialAddr, cfg.SerialBaud, cfg.SerialReadTimeout)
	}

	svc := ingest.New(opener, st, publisher, logger, metrics, cfg.DeviceID, cfg.PlotID)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := svc.Run(ctx); err != nil {
			logger.Error("ingest error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
