package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "childnur-chat"

// Pool settings used when the DSN does not carry its own.
const (
	poolIdleTimeout  = 5 * time.Minute
	poolConnLifetime = time.Hour
	poolHealthCheck  = time.Minute
)

// Option adjusts the pool configuration before the pool is opened.
type Option func(*pgxpool.Config)

// WithMaxConns overrides the pool size unless n is zero.
func WithMaxConns(n int32) Option {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// Connect opens the message store pool and pings it. DSNs copied from
// SQLAlchemy-style env files ("postgresql+asyncpg://...") are accepted.
func Connect(ctx context.Context, dsn string, opts ...Option) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

func poolConfig(dsn string, opts ...Option) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(normalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = poolIdleTimeout
	}
	if cfg.MaxConnLifetime == 0 {
		cfg.MaxConnLifetime = poolConnLifetime
	}
	if cfg.HealthCheckPeriod == 0 {
		cfg.HealthCheckPeriod = poolHealthCheck
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return cfg, nil
}

var driverSuffixes = strings.NewReplacer(
	"postgresql+asyncpg://", "postgresql://",
	"postgres+asyncpg://", "postgres://",
	"postgresql+pgx://", "postgresql://",
	"postgres+pgx://", "postgres://",
)

// normalizeDSN strips driver suffixes pgx does not understand.
func normalizeDSN(dsn string) string {
	return driverSuffixes.Replace(strings.TrimSpace(dsn))
}
