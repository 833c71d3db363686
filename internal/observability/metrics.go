package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion service.
type Metrics struct {
	LinesReceived   prometheus.Counter
	DecodeErrors    prometheus.Counter
	ReadTimeouts    prometheus.Counter
	ReadingsStored  prometheus.Counter
	InsertErrors    prometheus.Counter
	PublishErrors   prometheus.Counter
	IngestRunning   prometheus.Gauge
	StoreDuration   prometheus.Histogram
	RelayOnReadings prometheus.Counter
}

// NewMetrics creates and registers all ingestion metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.LinesReceived,
		m.DecodeErrors,
		m.ReadTimeouts,
		m.ReadingsStored,
		m.InsertErrors,
		m.PublishErrors,
		m.IngestRunning,
		m.StoreDuration,
		m.RelayOnReadings,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		LinesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soil_etl",
			Name:      "lines_received_total",
			Help:      "Total non-empty lines read from the sensor stream.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soil_etl",
			Name:      "decode_errors_total",
			Help:      "Total lines that did not match the telemetry grammar.",
		}),
		ReadTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soil_etl",
			Name:      "read_timeouts_total",
			Help:      "Total stream reads that timed out with no complete line.",
		}),
		ReadingsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soil_etl",
			Name:      "readings_stored_total",
			Help:      "Total soil readings appended to the store.",
		}),
		InsertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soil_etl",
			Name:      "insert_errors_total",
			Help:      "Total store writes that failed.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soil_etl",
			Name:      "publish_errors_total",
			Help:      "Total best-effort sink publishes that failed.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soil_etl",
			Name:      "ingest_running",
			Help:      "1 when the ingestion loop is active, 0 when shut down.",
		}),
		StoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "soil_etl",
			Name:      "store_duration_seconds",
			Help:      "Duration of a single reading insert.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		RelayOnReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soil_etl",
			Name:      "relay_on_readings_total",
			Help:      "Accepted readings reporting the irrigation relay ON.",
		}),
	}
}
