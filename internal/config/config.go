// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration.
type Config struct {
	Addr          string `env:"KV_ADDR" envDefault:":8080"`
	DBPath        string `env:"KV_DB_PATH" envDefault:"kv-store.db"`
	CacheCapacity int    `env:"KV_CACHE_CAPACITY" envDefault:"100"`
	// Workers is both the worker pool size and the number of store connections.
	// Zero means one per CPU.
	Workers int `env:"KV_WORKERS" envDefault:"0"`

	Env      string `env:"KV_ENV" envDefault:"development"`
	LogLevel string `env:"KV_LOG_LEVEL" envDefault:"info"`
	SQLLog   string `env:"KV_SQL_LOG" envDefault:"warn"`

	// AuthSecret enables bearer auth on write routes when set.
	AuthSecret   string `env:"KV_AUTH_SECRET"`
	AuthIssuer   string `env:"KV_AUTH_ISSUER" envDefault:"kvstore-api"`
	AuthAudience string `env:"KV_AUTH_AUDIENCE" envDefault:"kvstore-clients"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and applies an optional positional worker count
// taken from args (the server's argv without the program name).
func Load(args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return Config{}, fmt.Errorf("parse worker count %q: %w", args[0], err)
		}
		cfg.Workers = n
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration values the server cannot start with.
func (c Config) Validate() error {
	if c.CacheCapacity < 1 {
		return fmt.Errorf("cache capacity must be at least 1, got %d", c.CacheCapacity)
	}
	if c.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Workers)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	return nil
}

// AuthEnabled reports whether write routes require a bearer token.
func (c Config) AuthEnabled() bool {
	return c.AuthSecret != ""
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
