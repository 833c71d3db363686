// Package ingest runs the long-lived collection loop: sensor stream in,
// decoded readings appended to the store. It is the only component doing
// blocking I/O in a tight loop; reads carry a bounded timeout so
// cancellation is observed promptly.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/soil-telemetry-service/internal/domain"
	"github.com/couchcryptid/soil-telemetry-service/internal/observability"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
	"github.com/couchcryptid/soil-telemetry-service/internal/transport"
)

// LineSource yields telemetry lines from the transport.
type LineSource interface {
	ReadLine() (string, error)
	Close() error
}

// StreamOpener establishes the transport connection when the service starts.
type StreamOpener func() (LineSource, error)

// ReadingStore appends accepted readings.
type ReadingStore interface {
	InsertReading(ctx context.Context, r *store.SoilReading) error
}

// Publisher forwards accepted readings to downstream consumers. Optional and
// best-effort: a publish failure never affects persistence.
type Publisher interface {
	PublishReading(ctx context.Context, r store.SoilReading) error
}

// Service is the ingestion loop. One instance per process; the store is the
// only shared resource and appends are atomic per row.
type Service struct {
	open      StreamOpener
	store     ReadingStore
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	deviceID  int64
	plotID    int64
	ready     atomic.Bool
}

// New creates a Service. publisher may be nil.
func New(open StreamOpener, st ReadingStore, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics, deviceID, plotID int64) *Service {
	return &Service{
		open:      open,
		store:     st,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		deviceID:  deviceID,
		plotID:    plotID,
	}
}

// CheckReadiness returns nil once at least one reading has been accepted.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no readings ingested yet")
	}
	return nil
}

// Ready reports whether at least one reading has been accepted.
func (s *Service) Ready() bool { return s.ready.Load() }

// Run streams until the context is cancelled or the transport fails.
//
// Failure handling follows the supervisor contract: per-line problems
// (timeouts, decode failures) are logged and contained here; a transport
// failure or an integrity violation ends the run with an error so the
// supervisor can decide to restart or to fix configuration. Transient
// in-loop errors back off exponentially (200ms doubling to a 5s cap) instead
// of spinning.
func (s *Service) Run(ctx context.Context) error {
	stream, err := s.open()
	if err != nil {
		return err
	}
	defer stream.Close()

	s.logger.Info("ingest started", "device_id", s.deviceID, "plot_id", s.plotID)
	s.metrics.IngestRunning.Set(1)
	defer s.metrics.IngestRunning.Set(0)

	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ingest stopping", "reason", ctx.Err())
			return nil
		default:
		}

		line, err := stream.ReadLine()
		switch {
		case err == nil:
			// fall through to decode
		case errors.Is(err, transport.ErrReadTimeout):
			// Quiet stream, not an error.
			s.metrics.ReadTimeouts.Inc()
			continue
		default:
			var streamErr *transport.StreamError
			if errors.As(err, &streamErr) {
				s.logger.Error("stream failed", "error", err)
				return err
			}
			s.logger.Warn("read failed, retrying", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		if line == "" {
			continue
		}
		s.metrics.LinesReceived.Inc()

		if err := s.processLine(ctx, line); err != nil {
			return err
		}
	}
}

// processLine decodes and persists one line. A decode failure is contained;
// an integrity violation is a configuration defect and ends the run.
func (s *Service) processLine(ctx context.Context, line string) error {
	reading, err := domain.Decode(line)
	if err != nil {
		s.logger.Warn("line not recognized, skipping", "line", line)
		s.metrics.DecodeErrors.Inc()
		return nil
	}

	row := store.NewReadingFromDecoded(reading, s.deviceID, s.plotID)

	start := time.Now()
	if err := s.store.InsertReading(ctx, &row); err != nil {
		s.metrics.InsertErrors.Inc()
		var integrity *store.IntegrityError
		if errors.As(err, &integrity) {
			s.logger.Error("reading rejected by schema constraints", "error", err)
			return err
		}
		s.logger.Warn("insert failed, reading dropped", "error", err)
		return nil
	}
	s.metrics.StoreDuration.Observe(time.Since(start).Seconds())
	s.metrics.ReadingsStored.Inc()
	if reading.RelayOn {
		s.metrics.RelayOnReadings.Inc()
	}
	s.ready.Store(true)

	s.logger.Debug("reading stored",
		"id", row.ID,
		"moisture", reading.Moisture,
		"ph", reading.PH,
		"npk", row.NPK,
		"relay_on", reading.RelayOn,
	)

	if s.publisher != nil {
		if err := s.publisher.PublishReading(ctx, row); err != nil {
			s.logger.Warn("publish failed", "error", err, "reading_id", row.ID)
			s.metrics.PublishErrors.Inc()
		}
	}
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
