// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads recruitauth configuration from defaults, an optional
// YAML file, RECRUITAUTH_ environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variable names. Nested keys use a
// double underscore: RECRUITAUTH_AUTH__SIGNING_SECRET sets auth.signing_secret.
const EnvPrefix = "RECRUITAUTH_"

// MinSecretLength is the shortest accepted signing secret, in bytes.
const MinSecretLength = 32

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full process configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	Store     StoreConfig     `koanf:"store"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// StoreConfig selects and configures the identity backend.
type StoreConfig struct {
	Backend         string `koanf:"backend"`
	DatabaseURL     string `koanf:"database_url"`
	RedisURL        string `koanf:"redis_url"`
	ConnectAttempts uint64 `koanf:"connect_attempts"`
}

// AuthConfig holds token settings.
type AuthConfig struct {
	SigningSecret string `koanf:"signing_secret"`
	Issuer        string `koanf:"issuer"`
}

// RateLimitConfig bounds login attempts per client address.
type RateLimitConfig struct {
	LoginRPS   float64 `koanf:"login_rps"`
	LoginBurst int     `koanf:"login_burst"`
}

// Defaults returns the built-in values. There is no signing secret default.
func Defaults() map[string]any {
	return map[string]any{
		"http.addr":              ":8080",
		"http.shutdown_timeout":  "10s",
		"metrics.addr":           "127.0.0.1:9100",
		"log.format":             "json",
		"log.level":              "info",
		"store.backend":          BackendMemory,
		"store.connect_attempts": 5,
		"auth.issuer":            "recruitauth",
		"ratelimit.login_rps":    1.0,
		"ratelimit.login_burst":  5,
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":        "http.addr",
	"metrics-addr":     "metrics.addr",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"store-backend":    "store.backend",
	"database-url":     "store.database_url",
	"redis-url":        "store.redis_url",
	"connect-attempts": "store.connect_attempts",
}

// RegisterFlags adds the overridable flags to fs. Flag defaults are empty so
// that only flags the user actually sets take effect.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", "", "API listen address")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("store-backend", "", "identity backend (memory, postgres, redis)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("redis-url", "", "Redis connection URL")
	fs.Uint64("connect-attempts", 0, "startup connection attempts")
}

// Options control where Load reads from.
type Options struct {
	// File is an optional YAML file path.
	File string
	// Flags, when set, contributes every flag the user changed.
	Flags *pflag.FlagSet
	// Getenv overrides os.Getenv for the DATABASE_URL fallback.
	Getenv func(string) string
}

// Load builds a Config. The result is not validated.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	for key, val := range Defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", opts.File).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if cfg.Store.DatabaseURL == "" {
		cfg.Store.DatabaseURL = getenv("DATABASE_URL")
	}

	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	errb := oops.Code("CONFIG_INVALID")

	if c.Auth.SigningSecret == "" {
		return errb.With("key", "auth.signing_secret").
			Errorf("signing secret is required (set %sAUTH__SIGNING_SECRET)", EnvPrefix)
	}
	if len(c.Auth.SigningSecret) < MinSecretLength {
		return errb.With("key", "auth.signing_secret").With("min_length", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	if c.HTTP.Addr == "" {
		return errb.With("key", "http.addr").Errorf("http address is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return errb.With("key", "log.format").Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return errb.With("key", "store.database_url").Errorf("database url is required for the postgres backend")
		}
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return errb.With("key", "store.redis_url").Errorf("redis url is required for the redis backend")
		}
	default:
		return errb.With("key", "store.backend").Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.RateLimit.LoginRPS <= 0 || c.RateLimit.LoginBurst < 1 {
		return errb.With("key", "ratelimit").Errorf("login rate limit must be positive")
	}
	return nil
}
