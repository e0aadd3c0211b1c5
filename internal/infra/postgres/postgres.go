// Package postgres builds the connection pool shared by every
// repository adapter.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvectorpgx "github.com/pgvector/pgvector-go/pgx"
)

// Config names the fields Connect needs out of config.Config, kept
// narrow so this package doesn't import the config package directly.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// Connect opens a pooled connection to Postgres and verifies it with a
// Ping before returning, so a misconfigured DSN fails fast at startup
// rather than on the first query.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable pool_max_conns=20 pool_min_conns=2 pool_max_conn_lifetime=1h pool_max_conn_idle_time=30m",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	// Every pooled connection must register the vector type handler or
	// scanning/encoding pgvector.Vector values panics mid-query.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgvectorpgx.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("connected to postgres pool",
		slog.String("host", cfg.Host),
		slog.String("db", cfg.DBName),
		slog.Int("max_conns", int(poolCfg.MaxConns)))

	return pool, nil
}
