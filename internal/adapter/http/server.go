package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/soil-telemetry-service/internal/domain"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReadingStore is the slice of the store the API endpoints need.
type ReadingStore interface {
	LatestReading(ctx context.Context) (store.SoilReading, error)
	QueryReadings(ctx context.Context, f store.ReadingFilter) ([]store.SoilReading, error)
}

// Server exposes health, readiness, metrics, and reading query endpoints.
type Server struct {
	httpServer *http.Server
	readings   ReadingStore
	logger     *slog.Logger
}

const (
	defaultQueryHours = 24
	maxQueryLimit     = 1000
)

// NewServer creates the operational HTTP surface. readings may be nil for
// processes that run without a database, in which case the API routes are not
// registered.
func NewServer(addr string, ready ReadinessChecker, readings ReadingStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		readings: readings,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if readings != nil {
		mux.HandleFunc("GET /api/v1/readings/latest", s.handleLatestReading)
		mux.HandleFunc("GET /api/v1/readings", s.handleReadings)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleLatestReading(w http.ResponseWriter, r *http.Request) {
	reading, err := s.readings.LatestReading(r.Context())
	if errors.Is(err, store.ErrNoReadings) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no readings stored"})
		return
	}
	if err != nil {
		s.logger.Error("latest reading query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, toReadingJSON(reading))
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	hours := defaultQueryHours
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hours must be a positive integer"})
			return
		}
		hours = n
	}
	limit := maxQueryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxQueryLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be between 1 and " + strconv.Itoa(maxQueryLimit),
			})
			return
		}
		limit = n
	}

	since := domain.Now().Add(-time.Duration(hours) * time.Hour)
	rows, err := s.readings.QueryReadings(r.Context(), store.ReadingFilter{
		Since:      since,
		Limit:      limit,
		Descending: true,
	})
	if err != nil {
		s.logger.Error("readings query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	out := make([]readingJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, toReadingJSON(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hours":    hours,
		"count":    len(out),
		"readings": out,
	})
}

type readingJSON struct {
	ID          int64    `json:"id"`
	Timestamp   string   `json:"timestamp"`
	Moisture    float64  `json:"moisture"`
	PH          float64  `json:"ph"`
	NPK         string   `json:"npk"`
	Temperature *float64 `json:"temperature,omitempty"`
	DeviceID    int64    `json:"device_id"`
	PlotID      int64    `json:"plot_id"`
}

func toReadingJSON(r store.SoilReading) readingJSON {
	return readingJSON{
		ID:          r.ID,
		Timestamp:   r.Timestamp.Format(time.RFC3339),
		Moisture:    r.Moisture,
		PH:          r.PH,
		NPK:         r.NPK,
		Temperature: r.Temperature,
		DeviceID:    r.DeviceID,
		PlotID:      r.PlotID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
