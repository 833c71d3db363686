package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Stream transport: tcp://host:port (Wokwi RFC2217 bridge) or a local
	// device path such as /dev/ttyUSB0.
	SerialAddr        string
	SerialBaud        int
	SerialReadTimeout time.Duration

	DBPath    string
	ModelPath string

	// Identity of the device/plot this collector writes readings for.
	DeviceID int64
	PlotID   int64

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Bulk-load batch size (simulator/backfill).
	BatchSize int

	// Optional kafka sink for accepted readings.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	baud, err := envInt("SERIAL_BAUD", 115200)
	if err != nil {
		return nil, err
	}
	readTimeout, err := envDuration("SERIAL_READ_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	batchSize, err := envInt("BATCH_SIZE", 5000)
	if err != nil {
		return nil, err
	}
	deviceID, err := envInt64("DEVICE_ID", 1)
	if err != nil {
		return nil, err
	}
	plotID, err := envInt64("PLOT_ID", 1)
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		SerialAddr:        envOrDefault("SERIAL_ADDR", "tcp://localhost:8181"),
		SerialBaud:        baud,
		SerialReadTimeout: readTimeout,
		DBPath:            envOrDefault("DB_PATH", "farm_data.db"),
		ModelPath:         envOrDefault("MODEL_PATH", "models/irrigation_model.json"),
		DeviceID:          deviceID,
		PlotID:            plotID,
		HTTPAddr:          envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
		BatchSize:         batchSize,
		KafkaBrokers:      brokers,
		KafkaTopic:        envOrDefault("KAFKA_TOPIC", "soil-readings"),
		KafkaEnabled:      kafkaEnabled,
	}

	if cfg.SerialAddr == "" {
		return nil, errors.New("SERIAL_ADDR is required")
	}
	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if cfg.SerialReadTimeout <= 0 {
		return nil, errors.New("invalid SERIAL_READ_TIMEOUT")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func envInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
