// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, the process
// exits before any external connection is opened.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Store driver names accepted in STORE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all runtime configuration for the watcher.
type Config struct {
	LogLevel string

	// Ledger storage. SQLite is the default; setting DATABASE_URL
	// switches to Postgres. REDIS_URL optionally adds the notified-id
	// cache in front of either.
	StoreDriver string
	SQLitePath  string
	DatabaseURL string
	RedisURL    string

	// Search parameters handed to the listing source.
	ProfilePath    string
	SearchQuery    string
	SearchLocation string

	// Listing source credentials (Adzuna-compatible API).
	SourceAppID   string
	SourceAppKey  string
	SourceCountry string

	// Embedding service (Ollama-compatible API).
	EmbedBaseURL string
	EmbedModel   string

	// Notification transport.
	NtfyServer string
	NtfyTopic  string

	// Scheduler.
	PollIntervalSeconds int
	LookbackSeconds     int // TPR_SECONDS: dedup ledger lookback window
	StatusPort          string
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	profilePath := os.Getenv("PROFILE_PATH")
	if profilePath == "" {
		return nil, fmt.Errorf("PROFILE_PATH is required")
	}

	query := os.Getenv("SEARCH_QUERY")
	if query == "" {
		return nil, fmt.Errorf("SEARCH_QUERY is required")
	}

	cfg := &Config{
		LogLevel:       envOr("LOG_LEVEL", "info"),
		SQLitePath:     envOr("SQLITE_PATH", "freshroles.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ProfilePath:    profilePath,
		SearchQuery:    query,
		SearchLocation: os.Getenv("SEARCH_LOCATION"),
		SourceAppID:    os.Getenv("SOURCE_APP_ID"),
		SourceAppKey:   os.Getenv("SOURCE_APP_KEY"),
		SourceCountry:  envOr("SOURCE_COUNTRY", "us"),
		EmbedBaseURL:   envOr("EMBED_BASE_URL", "http://localhost:11434"),
		EmbedModel:     envOr("EMBED_MODEL", "nomic-embed-text"),
		NtfyServer:     envOr("NTFY_SERVER", "https://ntfy.sh"),
		NtfyTopic:      os.Getenv("NTFY_TOPIC"),
		StatusPort:     envOr("STATUS_PORT", "8082"),
	}

	cfg.StoreDriver = DriverSQLite
	if cfg.DatabaseURL != "" {
		cfg.StoreDriver = DriverPostgres
	}
	if d := os.Getenv("STORE_DRIVER"); d != "" {
		if d != DriverSQLite && d != DriverPostgres {
			return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, d)
		}
		cfg.StoreDriver = d
	}
	if cfg.StoreDriver == DriverPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
	}

	var err error
	if cfg.PollIntervalSeconds, err = envPositiveInt("POLL_INTERVAL_SECONDS", 900); err != nil {
		return nil, err
	}
	if cfg.LookbackSeconds, err = envPositiveInt("TPR_SECONDS", 86400); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envPositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}
