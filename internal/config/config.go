package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// AppConfig is the runtime configuration of the chessboard server.
type AppConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// AssetBaseURL, when set, makes the loader fetch piece SVGs over HTTP
	// from {AssetBaseURL}/pieces/{color}{type}.svg instead of the embedded set.
	AssetBaseURL   string `yaml:"asset_base_url"`
	AssetTimeoutMS int    `yaml:"asset_timeout_ms"`

	SessionTTLSec      int `yaml:"session_ttl_sec"`
	MaxSessions        int `yaml:"max_sessions"`
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`

	MessagesDir   string `yaml:"messages_dir"`
	BoardSquarePx int    `yaml:"board_square_px"`
}

func defaults() *AppConfig {
	return &AppConfig{
		HTTPAddr:           ":8080",
		AssetTimeoutMS:     5000,
		SessionTTLSec:      3600,
		MaxSessions:        1000,
		ShutdownTimeoutSec: 10,
		BoardSquarePx:      64,
	}
}

// AssetTimeout is AssetTimeoutMS as a duration.
func (c *AppConfig) AssetTimeout() time.Duration {
	return time.Duration(c.AssetTimeoutMS) * time.Millisecond
}

// SessionTTL is SessionTTLSec as a duration.
func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSec) * time.Second
}

// ShutdownTimeout is ShutdownTimeoutSec as a duration.
func (c *AppConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment overrides.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v, ok := os.LookupEnv("ASSET_BASE_URL"); ok {
		cfg.AssetBaseURL = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("MESSAGES_DIR")); v != "" {
		cfg.MessagesDir = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"ASSET_TIMEOUT_MS", &cfg.AssetTimeoutMS},
		{"SESSION_TTL_SEC", &cfg.SessionTTLSec},
		{"MAX_SESSIONS", &cfg.MaxSessions},
		{"SHUTDOWN_TIMEOUT_SEC", &cfg.ShutdownTimeoutSec},
		{"BOARD_SQUARE_PX", &cfg.BoardSquarePx},
	}
	for _, it := range ints {
		v := strings.TrimSpace(os.Getenv(it.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", it.key, err)
		}
		*it.dst = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks ranges and required values.
func (c *AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.AssetTimeoutMS <= 0 {
		errs = append(errs, errors.New("ASSET_TIMEOUT_MS must be positive"))
	}
	if c.SessionTTLSec <= 0 {
		errs = append(errs, errors.New("SESSION_TTL_SEC must be positive"))
	}
	if c.MaxSessions <= 0 {
		errs = append(errs, errors.New("MAX_SESSIONS must be positive"))
	}
	if c.ShutdownTimeoutSec <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT_SEC must be positive"))
	}
	if c.BoardSquarePx < 16 || c.BoardSquarePx > 256 {
		errs = append(errs, errors.New("BOARD_SQUARE_PX must be within 16..256"))
	}
	if c.AssetBaseURL != "" && !strings.HasPrefix(c.AssetBaseURL, "http://") && !strings.HasPrefix(c.AssetBaseURL, "https://") {
		errs = append(errs, errors.New("ASSET_BASE_URL must be an http(s) URL"))
	}
	return errors.Join(errs...)
}
