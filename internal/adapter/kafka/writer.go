package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/soil-telemetry-service/internal/config"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
)

// Writer publishes accepted soil readings to a Kafka topic so downstream
// consumers (dashboards, lake loaders) see the stream without touching the
// database. It implements ingest.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the readings topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishReading serializes and publishes one stored reading.
func (w *Writer) PublishReading(ctx context.Context, r store.SoilReading) error {
	msg, err := serializeToMessage(r)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// wireReading is the published shape. It is decoupled from the store row so
// schema changes there do not silently change the wire contract.
type wireReading struct {
	ID          int64    `json:"id"`
	Timestamp   string   `json:"timestamp"`
	Moisture    float64  `json:"moisture"`
	PH          float64  `json:"ph"`
	NPK         string   `json:"npk"`
	Temperature *float64 `json:"temperature,omitempty"`
	DeviceID    int64    `json:"device_id"`
	PlotID      int64    `json:"plot_id"`
}

// serializeToMessage marshals a soil reading into a Kafka message keyed by
// reading id.
func serializeToMessage(r store.SoilReading) (kafkago.Message, error) {
	data, err := json.Marshal(wireReading{
		ID:          r.ID,
		Timestamp:   r.Timestamp.Format(time.RFC3339),
		Moisture:    r.Moisture,
		PH:          r.PH,
		NPK:         r.NPK,
		Temperature: r.Temperature,
		DeviceID:    r.DeviceID,
		PlotID:      r.PlotID,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize soil reading: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(r.ID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "device_id", Value: []byte(strconv.FormatInt(r.DeviceID, 10))},
			{Key: "recorded_at", Value: []byte(r.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
