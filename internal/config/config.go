// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/barter/internal/exchange"
	"github.com/caarlos0/env/v11"
)

// Backend names accepted by Config.Store.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config is the runtime configuration of the barter service.
type Config struct {
	Addr         string `env:"BARTER_ADDR"          envDefault:":8080"`
	InstanceName string `env:"BARTER_INSTANCE_NAME" envDefault:"barter"`
	LogLevel     string `env:"BARTER_LOG_LEVEL"     envDefault:"info"`

	Store      string `env:"BARTER_STORE"       envDefault:"memory"`
	SQLitePath string `env:"BARTER_SQLITE_PATH" envDefault:"barter.db"`

	RedisAddr     string `env:"BARTER_REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"BARTER_REDIS_PASSWORD"`
	RedisDB       int    `env:"BARTER_REDIS_DB"       envDefault:"0"`
	RedisPrefix   string `env:"BARTER_REDIS_PREFIX"   envDefault:"barter:"`

	// DisableTransactions forces the single-record transfer path.
	DisableTransactions bool `env:"BARTER_DISABLE_TRANSACTIONS"`

	RollbackInitialInterval time.Duration `env:"BARTER_ROLLBACK_INITIAL_INTERVAL" envDefault:"50ms"`
	RollbackMaxInterval     time.Duration `env:"BARTER_ROLLBACK_MAX_INTERVAL"     envDefault:"2s"`
	RollbackMaxElapsed      time.Duration `env:"BARTER_ROLLBACK_MAX_ELAPSED"      envDefault:"30s"`

	ShutdownTimeout time.Duration `env:"BARTER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	SeedFile        string        `env:"BARTER_SEED_FILE"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("sqlite store requires BARTER_SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s, %s or %s)", c.Store, StoreMemory, StoreRedis, StoreSQLite)
	}
	if c.RollbackInitialInterval <= 0 || c.RollbackMaxInterval < c.RollbackInitialInterval {
		return fmt.Errorf("invalid rollback intervals %s..%s", c.RollbackInitialInterval, c.RollbackMaxInterval)
	}
	if c.RollbackMaxElapsed <= 0 {
		return fmt.Errorf("rollback max elapsed must be positive")
	}
	return nil
}

// RollbackPolicy returns the compensation retry bounds.
func (c Config) RollbackPolicy() exchange.RollbackPolicy {
	return exchange.RollbackPolicy{
		InitialInterval: c.RollbackInitialInterval,
		MaxInterval:     c.RollbackMaxInterval,
		MaxElapsed:      c.RollbackMaxElapsed,
	}
}
