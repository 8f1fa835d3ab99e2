// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTP
	HTTPAddr string

	// Settings persistence
	SettingsPath string

	// Chat
	ChatTransportEnabled bool
	HistoryCapacity      int
	DefaultTransport     string

	// Token handling
	TokenSafetyMargin time.Duration
	ProbeTimeout      time.Duration

	// Twitch OAuth endpoints (overridable for tests)
	TwitchAuthBaseURL string
}

// Load reads environment variables and applies defaults. Missing optional
// variables fall back to defaults; malformed values are reported as errors.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.SettingsPath = os.Getenv("SETTINGS_PATH")
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = "config/settings.json"
	}

	cfg.ChatTransportEnabled = true
	if v := os.Getenv("CHAT_TRANSPORT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CHAT_TRANSPORT_ENABLED: %w", err)
		}
		cfg.ChatTransportEnabled = enabled
	}

	cfg.HistoryCapacity = 500
	if v := os.Getenv("CHAT_HISTORY_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CHAT_HISTORY_CAPACITY: %q", v)
		}
		cfg.HistoryCapacity = n
	}

	cfg.DefaultTransport = os.Getenv("CHAT_DEFAULT_TRANSPORT")
	if cfg.DefaultTransport == "" {
		cfg.DefaultTransport = "twitch"
	}

	cfg.TokenSafetyMargin = 2 * time.Minute
	if v := os.Getenv("TOKEN_SAFETY_MARGIN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid TOKEN_SAFETY_MARGIN: %q", v)
		}
		cfg.TokenSafetyMargin = d
	}

	cfg.ProbeTimeout = 8 * time.Second
	if v := os.Getenv("PROBE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid PROBE_TIMEOUT: %q", v)
		}
		cfg.ProbeTimeout = d
	}

	cfg.TwitchAuthBaseURL = os.Getenv("TWITCH_AUTH_BASE_URL")
	if cfg.TwitchAuthBaseURL == "" {
		cfg.TwitchAuthBaseURL = "https://id.twitch.tv"
	}

	return cfg, nil
}
