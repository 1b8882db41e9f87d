package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// CKAN page size is capped server-side; asking for more silently returns
// fewer rows, which would break the pagination arithmetic.
const maxPageSize = 32000

// Config holds all settings, populated from environment variables.
// Run-specific choices (years, output directory) are CLI flags, not
// environment, so one environment can serve many runs.
type Config struct {
	CKANBaseURL    string
	CKANResourceID string
	HTTPTimeout    time.Duration
	PageSize       int
	RateLimitRPS   float64
	RateBurst      int

	LogLevel  string
	LogFormat string

	// MetricsAddr is the health/metrics listener address. Empty disables
	// the listener; it is mostly useful during long backfills.
	MetricsAddr     string
	ShutdownTimeout time.Duration

	// Kafka publishing configuration.
	KafkaBrokers   []string
	KafkaTopic     string
	PublishEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	httpTimeout, err := parsePositiveDuration("HTTP_TIMEOUT", "120s")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	pageSize, err := parseBoundedInt("PAGE_SIZE", maxPageSize, 1, maxPageSize)
	if err != nil {
		return nil, err
	}

	rps, err := parsePositiveFloat("RATE_LIMIT_RPS", 2)
	if err != nil {
		return nil, err
	}

	burst, err := parseBoundedInt("RATE_LIMIT_BURST", 1, 1, 100)
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	publishEnabled := len(brokers) > 0
	if v := os.Getenv("PUBLISH_ENABLED"); v != "" {
		publishEnabled = v == "true"
	}

	cfg := &Config{
		CKANBaseURL:    envOrDefault("CKAN_BASE_URL", "https://data.montreal.ca/api/3/action"),
		CKANResourceID: envOrDefault("CKAN_RESOURCE_ID", "5232a72d-235a-48eb-ae20-bb9d501300ad"),
		HTTPTimeout:    httpTimeout,
		PageSize:       pageSize,
		RateLimitRPS:   rps,
		RateBurst:      burst,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:   brokers,
		KafkaTopic:     envOrDefault("KAFKA_TOPIC", "montreal-permits"),
		PublishEnabled: publishEnabled,
	}

	if cfg.CKANBaseURL == "" {
		return nil, errors.New("CKAN_BASE_URL is required")
	}
	if u, err := url.Parse(cfg.CKANBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("CKAN_BASE_URL is not a valid http(s) URL: %q", cfg.CKANBaseURL)
	}
	if cfg.CKANResourceID == "" {
		return nil, errors.New("CKAN_RESOURCE_ID is required")
	}
	if cfg.PublishEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("PUBLISH_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.PublishEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when publishing is enabled")
	}

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// parseBrokers splits a comma-separated broker list, dropping empty entries.
func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parsePositiveDuration(name, fallback string) (time.Duration, error) {
	s := envOrDefault(name, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return d, nil
}

func parseBoundedInt(name string, fallback, lo, hi int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: %q (want %d..%d)", name, s, lo, hi)
	}
	return n, nil
}

func parsePositiveFloat(name string, fallback float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return f, nil
}
