// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const secretKeyBytes = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	APIURL          string
	UIURL           string
	DocsURL         string
	LabelName       string
	CIToken         string
	PollInterval    time.Duration
	FetchRate       float64
	ChangeRetention time.Duration
	ListenAddr      string
	DBPath          string
	SecretKey       []byte // nil when FWCHECKS_SECRET_KEY is unset.
	LogLevel        slog.Level
	GitHubToken     string
	GitHubRepo      string
}

// HasGitHubMirror reports whether commit statuses should be mirrored to GitHub.
func (c *Config) HasGitHubMirror() bool {
	return c.GitHubToken != "" && c.GitHubRepo != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// FWCHECKS_API_URL is required. The CI token is optional; without it the
// server starts and checks queries answer with an error until a token is
// stored through PUT /api/v1/credentials/ci.
func Load() (*Config, error) {
	apiURL := strings.TrimRight(os.Getenv("FWCHECKS_API_URL"), "/")
	if apiURL == "" {
		return nil, fmt.Errorf("FWCHECKS_API_URL is required")
	}

	cfg := &Config{
		APIURL:      apiURL,
		UIURL:       strings.TrimRight(envOr("FWCHECKS_UI_URL", apiURL), "/"),
		DocsURL:     strings.TrimRight(os.Getenv("FWCHECKS_DOCS_URL"), "/"),
		LabelName:   envOr("FWCHECKS_LABEL_NAME", "Verified"),
		CIToken:     os.Getenv("FWCHECKS_CI_TOKEN"),
		ListenAddr:  envOr("FWCHECKS_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:      envOr("FWCHECKS_DB_PATH", "fwchecks.db"),
		LogLevel:    slog.LevelInfo,
		GitHubToken: os.Getenv("FWCHECKS_GITHUB_TOKEN"),
		GitHubRepo:  os.Getenv("FWCHECKS_GITHUB_REPO"),
	}
	if cfg.DocsURL == "" {
		cfg.DocsURL = cfg.UIURL + "/docs"
	}

	var err error
	if cfg.PollInterval, err = durationEnv("FWCHECKS_POLL_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("FWCHECKS_POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.ChangeRetention, err = durationEnv("FWCHECKS_CHANGE_RETENTION", 72*time.Hour); err != nil {
		return nil, err
	}

	cfg.FetchRate = 5
	if v, ok := os.LookupEnv("FWCHECKS_FETCH_RATE"); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("FWCHECKS_FETCH_RATE has invalid number %q: %w", v, err)
		}
		cfg.FetchRate = rate
	}

	if v, ok := os.LookupEnv("FWCHECKS_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil || len(key) != secretKeyBytes {
			return nil, fmt.Errorf("FWCHECKS_SECRET_KEY must be %d hex characters", secretKeyBytes*2)
		}
		cfg.SecretKey = key
	}

	if v, ok := os.LookupEnv("FWCHECKS_LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("FWCHECKS_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	if (cfg.GitHubToken == "") != (cfg.GitHubRepo == "") {
		return nil, fmt.Errorf("FWCHECKS_GITHUB_TOKEN and FWCHECKS_GITHUB_REPO must be set together")
	}
	if cfg.GitHubRepo != "" && strings.Count(cfg.GitHubRepo, "/") != 1 {
		return nil, fmt.Errorf("FWCHECKS_GITHUB_REPO must be owner/name, got %q", cfg.GitHubRepo)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return d, nil
}
