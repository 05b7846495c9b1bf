package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolSize bounds the connection pool. Zero values keep pgxpool's defaults.
type PoolSize struct {
	MaxConns int32
	MinConns int32
}

func Connect(ctx context.Context, databaseURL string, size PoolSize) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(databaseURL, size)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

func poolConfig(databaseURL string, size PoolSize) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if size.MaxConns > 0 {
		cfg.MaxConns = size.MaxConns
	}
	if size.MinConns > 0 {
		cfg.MinConns = min(size.MinConns, cfg.MaxConns)
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute
	return cfg, nil
}
