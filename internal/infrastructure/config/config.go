package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	HTTP     HTTPConfig
	Store    StoreConfig
	RedisURL string
	Auth     AuthConfig
	Log      LogConfig
	Queue    QueueConfig

	ProfileCacheTTL time.Duration
}

type HTTPConfig struct {
	Addr           string
	RequestTimeout time.Duration
}

type StoreConfig struct {
	Driver   string
	DSN      string
	MaxConns int // 0 keeps the pgxpool default
}

type AuthConfig struct {
	Secret string
	Issuer string
}

type LogConfig struct {
	Level  string
	Format string
}

// QueueConfig holds asynq worker settings. Queues is a CSV like "chat=6,default=1".
type QueueConfig struct {
	Concurrency int
	Queues      string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:           getEnv("HTTP_ADDR", ":8080"),
			RequestTimeout: getDuration("REQUEST_TIMEOUT", 5*time.Second),
		},
		Store: StoreConfig{
			Driver:   strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			DSN:      strings.TrimSpace(os.Getenv("DB_URL")),
			MaxConns: getInt("DB_MAX_CONNS", 0),
		},
		RedisURL: strings.TrimSpace(os.Getenv("REDIS_URL")),
		Auth: AuthConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getEnv("JWT_ISSUER", "childnur"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Queue: QueueConfig{
			Concurrency: getInt("ASYNQ_CONCURRENCY", 10),
			Queues:      getEnv("ASYNQ_QUEUES", "chat=1,default=1"),
		},
		ProfileCacheTTL: getDuration("PROFILE_CACHE_TTL", 5*time.Minute),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: DB_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	return nil
}

// QueueEnabled reports whether background delivery via asynq can be started.
func (c *Config) QueueEnabled() bool {
	return c.RedisURL != ""
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && i > 0 {
			return i
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
