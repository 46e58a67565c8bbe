package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers      []string
	KafkaTriggerTopic string
	KafkaEnabled      bool
	HTTPAddr          string
	LogLevel          string
	LogFormat         string
	ShutdownTimeout   time.Duration

	StoreDriver string
	StoreDSN    string

	MonitorInterval time.Duration
	TriggerLevel    domain.TriggerLevel
	ThresholdsFile  string

	// Google Flood Forecasting configuration.
	GoogleAPIKey    string
	GoogleGaugeID   string
	GoogleEnabled   bool
	GoogleTimeout   time.Duration
	GoogleCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	googleTimeout, err := parsePositiveDuration("GOOGLE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	monitorInterval, err := parsePositiveDuration("MONITOR_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}

	level, err := domain.ParseTriggerLevel(os.Getenv("TRIGGER_LEVEL"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRIGGER_LEVEL: %w", err)
	}

	kafkaEnabled := true
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	googleKey := os.Getenv("GOOGLE_API_KEY")

	cfg := &Config{
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTriggerTopic: sharedcfg.EnvOrDefault("KAFKA_TRIGGER_TOPIC", "nga-flood-triggers"),
		KafkaEnabled:      kafkaEnabled,
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,

		StoreDriver: sharedcfg.EnvOrDefault("STORE_DRIVER", "sqlite"),
		StoreDSN:    sharedcfg.EnvOrDefault("STORE_DSN", "file:nga-flood.db"),

		MonitorInterval: monitorInterval,
		TriggerLevel:    level,
		ThresholdsFile:  os.Getenv("THRESHOLDS_FILE"),

		GoogleAPIKey:    googleKey,
		GoogleGaugeID:   sharedcfg.EnvOrDefault("GOOGLE_GAUGE_ID", "hybas_1120842550"),
		GoogleEnabled:   googleKey != "",
		GoogleTimeout:   googleTimeout,
		GoogleCacheSize: parseGoogleCacheSize(),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaEnabled && cfg.KafkaTriggerTopic == "" {
		return nil, errors.New("KAFKA_TRIGGER_TOPIC is required")
	}
	switch cfg.StoreDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want sqlite or postgres", cfg.StoreDriver)
	}
	if cfg.StoreDSN == "" {
		return nil, errors.New("STORE_DSN is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseGoogleCacheSize() int {
	if s := os.Getenv("GOOGLE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 256
}
