package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers   []string
	KafkaJobsTopic string
	KafkaGroupID   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// External archive endpoints.
	SoundingsURL string
	StationsURL  string
	UserAgent    string

	// Acquisition limits. Concurrency caps simultaneous outstanding requests
	// against the shared third-party source regardless of window size.
	SoundingsConcurrency int
	RequestTimeout       time.Duration
	ConnectTimeout       time.Duration
	ReadTimeout          time.Duration

	ExportDir          string
	SeriesDefaultLimit int
	ScheduleEnabled    bool
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is folded in first.
func Load() (*Config, error) {
	// Best effort; absence of a .env file is the normal deployed case.
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	connectTimeout, err := parseDuration("CONNECT_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	readTimeout, err := parseDuration("READ_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	concurrency, err := parseInt("SOUNDINGS_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	seriesLimit, err := parseInt("SERIES_DEFAULT_LIMIT", 500)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:   parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaJobsTopic: envOrDefault("KAFKA_JOBS_TOPIC", "sounding-jobs"),
		KafkaGroupID:   envOrDefault("KAFKA_GROUP_ID", "sounding-data-service"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SoundingsURL: envOrDefault("SOUNDINGS_URL", "https://weather.uwyo.edu/cgi-bin/sounding"),
		StationsURL:  envOrDefault("STATIONS_URL", "https://weather.uwyo.edu/cgi-bin/sounding_stationlist"),
		UserAgent:    envOrDefault("USER_AGENT", "sounding-data-service/1.0"),

		SoundingsConcurrency: concurrency,
		RequestTimeout:       requestTimeout,
		ConnectTimeout:       connectTimeout,
		ReadTimeout:          readTimeout,

		ExportDir:          envOrDefault("EXPORT_DIR", "./exports"),
		SeriesDefaultLimit: seriesLimit,
		ScheduleEnabled:    envOrDefault("SCHEDULE_ENABLED", "true") == "true",
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaJobsTopic == "" {
		return nil, errors.New("KAFKA_JOBS_TOPIC is required")
	}
	if cfg.SoundingsURL == "" {
		return nil, errors.New("SOUNDINGS_URL is required")
	}
	if cfg.SoundingsConcurrency < 1 || cfg.SoundingsConcurrency > 32 {
		return nil, errors.New("SOUNDINGS_CONCURRENCY must be between 1 and 32")
	}
	if cfg.SeriesDefaultLimit < 1 {
		return nil, errors.New("SERIES_DEFAULT_LIMIT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := envOrDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}
