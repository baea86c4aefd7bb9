package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=3001"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Session  SessionConfig
	CORS     CORSConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Hash     HashConfig
}

type SessionConfig struct {
	Secret        string        `env:"SESSION_SECRET"`
	TTL           time.Duration `env:"SESSION_TTL,            default=24h"`
	CookieSecure  bool          `env:"COOKIE_SECURE,          default=false"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL, default=15m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=http://localhost:8080,http://localhost:5173"`
}

type DatabaseConfig struct {
	Driver  string        `env:"DB_DRIVER,  default=sqlite"`
	DSN     string        `env:"DB_DSN,     default=farmiq.db"`
	Timeout time.Duration `env:"DB_TIMEOUT, default=5s"`
}

type MongoConfig struct {
	URI      string        `env:"MONGO_URI,     default=mongodb://localhost:27017"`
	Database string        `env:"MONGO_DB,      default=farmiq"`
	Timeout  time.Duration `env:"MONGO_TIMEOUT, default=10s"`
}

type RedisConfig struct {
	Addr    string        `env:"REDIS_ADDR,    default=localhost:6379"`
	DB      int           `env:"REDIS_DB,      default=0"`
	Timeout time.Duration `env:"REDIS_TIMEOUT, default=5s"`
}

type HashConfig struct {
	Workers int           `env:"HASH_WORKERS, default=0"`
	Timeout time.Duration `env:"HASH_TIMEOUT, default=5s"`
}

const devSessionSecret = "farmiq-dev-secret"

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// IsDevelopment reports whether ENV names a local development setup.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Session.Secret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("SESSION_SECRET is required when ENV=%s", c.Env)
		}
		c.Session.Secret = devSessionSecret
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}
