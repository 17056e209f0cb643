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
	GoogleMapsAPIKey  string
	GoogleMapsTimeout time.Duration

	DBPath       string
	RateInterval time.Duration

	DefaultState      string
	CostPerRequestUSD float64

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional Kafka event stream for freshly geocoded addresses.
	KafkaBrokers       []string
	KafkaEventsTopic   string
	KafkaEventsEnabled bool
}

// Load reads configuration from environment variables, applying defaults where
// unset. The Google Maps key may be empty here; commands that call the
// provider check for it themselves so read-only commands work without one.
func Load() (*Config, error) {
	timeout, err := parseDuration("GOOGLE_MAPS_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	rateInterval, err := parseDuration("GEOCODE_RATE_INTERVAL", "50ms")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	costPerRequest, err := parseCostPerRequest()
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_EVENTS_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		GoogleMapsAPIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
		GoogleMapsTimeout: timeout,

		DBPath:       envOrDefault("GEOCODE_DB_PATH", "geocode_cache.db"),
		RateInterval: rateInterval,

		DefaultState:      envOrDefault("DEFAULT_STATE", "WA"),
		CostPerRequestUSD: costPerRequest,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEventsTopic:   envOrDefault("KAFKA_EVENTS_TOPIC", "geocoded-addresses"),
		KafkaEventsEnabled: kafkaEnabled,
	}

	if cfg.DBPath == "" {
		return nil, errors.New("GEOCODE_DB_PATH is required")
	}
	if cfg.KafkaEventsEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_EVENTS_ENABLED is true but KAFKA_BROKERS is not set")
		}
		if cfg.KafkaEventsTopic == "" {
			return nil, errors.New("KAFKA_EVENTS_ENABLED is true but KAFKA_EVENTS_TOPIC is not set")
		}
	}

	return cfg, nil
}

// RequireAPIKey rejects configurations that cannot reach the provider.
func (c *Config) RequireAPIKey() error {
	if c.GoogleMapsAPIKey == "" {
		return errors.New("GOOGLE_MAPS_API_KEY is required")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCostPerRequest() (float64, error) {
	s := envOrDefault("COST_PER_REQUEST_USD", "0.005")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, errors.New("invalid COST_PER_REQUEST_USD")
	}
	return v, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
