package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const (
	AppName = "quickcal"

	DefaultTokenMaxAge   = 50 * time.Minute // Google access tokens live for about an hour
	DefaultSummaryPrefix = "📅 "
	DefaultCalendarID    = "primary"
	DefaultRelayAddr     = "127.0.0.1:8765"
	DefaultLogLevel      = "info"
)

// Config is the runtime configuration, read from the environment.
type Config struct {
	ClientID      string
	ClientSecret  string
	StorePath     string
	TokenMaxAge   time.Duration
	SummaryPrefix string
	CalendarID    string
	APIEndpoint   string // Calendar API base URL; empty uses the library default
	RelayAddr     string
	LogLevel      string
}

// DefaultStorePath returns the XDG data path for the key-value store.
func DefaultStorePath() string {
	return filepath.Join(xdg.DataHome, AppName, "store")
}

// Load builds a Config from environment variables, applying defaults for
// anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		ClientID:      os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret:  os.Getenv("GOOGLE_CLIENT_SECRET"),
		StorePath:     envOr("QUICKCAL_STORE_PATH", DefaultStorePath()),
		TokenMaxAge:   DefaultTokenMaxAge,
		SummaryPrefix: DefaultSummaryPrefix,
		CalendarID:    envOr("QUICKCAL_CALENDAR_ID", DefaultCalendarID),
		APIEndpoint:   os.Getenv("QUICKCAL_API_ENDPOINT"),
		RelayAddr:     envOr("QUICKCAL_RELAY_ADDR", DefaultRelayAddr),
		LogLevel:      envOr("LOG_LEVEL", DefaultLogLevel),
	}

	// An explicitly empty prefix is allowed.
	if prefix, ok := os.LookupEnv("QUICKCAL_SUMMARY_PREFIX"); ok {
		cfg.SummaryPrefix = prefix
	}

	if raw := os.Getenv("QUICKCAL_TOKEN_MAX_AGE"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid QUICKCAL_TOKEN_MAX_AGE %q: %w", raw, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("QUICKCAL_TOKEN_MAX_AGE must be positive, got %s", d)
		}
		cfg.TokenMaxAge = d
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
