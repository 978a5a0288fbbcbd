package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string
	Env  string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type ERPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type SchedulerConfig struct {
	SweepInterval time.Duration
	PendingMaxAge time.Duration
}

type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Gateway   GatewayConfig
	ERP       ERPConfig
	Scheduler SchedulerConfig
}

// Load reads configuration from the environment, optionally preloading a .env
// file when path is non-empty. Postgres credentials are required; everything
// else falls back to a sane default.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}

	cfg.App.Port = getenv("APP_PORT", "8080")
	cfg.App.Env = getenv("APP_ENV", "development")

	for _, req := range []struct {
		key  string
		dest *string
	}{
		{"DB_HOST", &cfg.Postgres.Host},
		{"DB_PORT", &cfg.Postgres.Port},
		{"DB_USER", &cfg.Postgres.User},
		{"DB_PASSWORD", &cfg.Postgres.Password},
		{"DB_NAME", &cfg.Postgres.DBName},
	} {
		v := os.Getenv(req.key)
		if v == "" {
			return nil, fmt.Errorf("%s is required", req.key)
		}
		*req.dest = v
	}
	cfg.Postgres.SSLMode = getenv("DB_SSLMODE", "disable")
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2
	cfg.Postgres.MaxConnLifetime = 30 * time.Minute
	cfg.Postgres.MigrationsPath = getenv("DB_MIGRATIONS_PATH", "migrations")

	var err error

	cfg.Redis.Addr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = getint("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.Gateway.BaseURL = getenv("GATEWAY_BASE_URL", "https://sandbox.gateway.example.com")
	cfg.Gateway.APIKey = os.Getenv("GATEWAY_API_KEY")
	if cfg.Gateway.Timeout, err = getduration("GATEWAY_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	cfg.ERP.BaseURL = getenv("ERP_BASE_URL", "")
	cfg.ERP.APIKey = os.Getenv("ERP_API_KEY")
	if cfg.ERP.Timeout, err = getduration("ERP_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}

	if cfg.Scheduler.SweepInterval, err = getduration("EXPIRY_SWEEP_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Scheduler.PendingMaxAge, err = getduration("EXPIRY_PENDING_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid integer: %q", key, v)
	}
	return n, nil
}

func getduration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid duration: %q", key, v)
	}
	return d, nil
}
