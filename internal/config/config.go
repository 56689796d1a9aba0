// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration, loaded from environment
// variables (a .env file is loaded first by the cmd mains).
type Config struct {
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBName     string `env:"DB_NAME" envDefault:"criadores"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// AMQPURL is optional; when empty the server falls back to the
	// in-memory queue.
	AMQPURL         string `env:"AMQP_URL"`
	SlotEventsQueue string `env:"SLOT_EVENTS_QUEUE" envDefault:"slot_events"`

	CacheSizeMB int           `env:"CACHE_SIZE_MB" envDefault:"16"`
	SlotViewTTL time.Duration `env:"SLOT_VIEW_TTL" envDefault:"30s"`
	RosterTTL   time.Duration `env:"ROSTER_TTL" envDefault:"5m"`

	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"db/migrations"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// DSN returns the Postgres data source name.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}
