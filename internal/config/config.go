// Package config loads process configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	fileEnv   = "GOTTABIKE_CONFIG"
	envPrefix = "GOTTABIKE_"
)

// Config contains process configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr     string `koanf:"addr"`
	LogLevel string `koanf:"log_level"`

	// DatabaseURL is a pgx connection string.
	DatabaseURL  string        `koanf:"database_url"`
	MaxDBConns   int           `koanf:"max_db_conns"`
	AutoMigrate  bool          `koanf:"auto_migrate"`
	AuthSecret   string        `koanf:"auth_secret"`
	AccessTTL    time.Duration `koanf:"access_ttl"`
	MagicTTL     time.Duration `koanf:"magic_ttl"`
	BotAPIKey    string        `koanf:"bot_api_key"`
	PublicURL    string        `koanf:"public_url"`
	NATSURL      string        `koanf:"nats_url"`
	NATSPrefix   string        `koanf:"nats_subject_prefix"`
	RateBurst    int           `koanf:"rate_burst"`
	RatePerSec   float64       `koanf:"rate_per_sec"`
	CORSOrigins  []string      `koanf:"cors_origins"`
	FilterTTL    time.Duration `koanf:"roster_filter_ttl"`
	ShutdownWait time.Duration `koanf:"shutdown_timeout"`
}

// New returns the defaults.
func New() *Config {
	return &Config{
		Addr:         ":8080",
		LogLevel:     "info",
		MaxDBConns:   10,
		AccessTTL:    12 * time.Hour,
		MagicTTL:     5 * time.Minute,
		PublicURL:    "http://localhost:8080",
		NATSPrefix:   "gottabike.tasks",
		RateBurst:    20,
		RatePerSec:   10,
		FilterTTL:    5 * time.Minute,
		ShutdownWait: 10 * time.Second,
	}
}

// Load builds a Config by layering defaults, an optional YAML file named by
// GOTTABIKE_CONFIG and GOTTABIKE_* environment variables, in that order.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(fileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// GOTTABIKE_RATE_BURST -> rate_burst
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.DatabaseURL != "" && len(c.AuthSecret) < 16 {
		errs = append(errs, errors.New("auth_secret must be at least 16 characters"))
	}
	if c.AccessTTL <= 0 || c.MagicTTL <= 0 {
		errs = append(errs, errors.New("token ttls must be positive"))
	}
	if c.RateBurst <= 0 || c.RatePerSec <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.FilterTTL <= 0 {
		errs = append(errs, errors.New("roster_filter_ttl must be positive"))
	}
	return errors.Join(errs...)
}
