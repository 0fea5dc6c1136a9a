package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rgoswami/findata/internal/config"
)

// Pools holds the database connections for the ingestion daemon.
type Pools struct {
	// Meta holds orchestration state and dead letters.
	Meta *pgxpool.Pool

	// Timescale holds the three domain hypertables.
	Timescale *pgxpool.Pool
}

// NewPools creates connection pools for both databases.
func NewPools(ctx context.Context, cfg config.DatabaseConfig) (*Pools, error) {
	meta, err := Connect(ctx, cfg.Meta)
	if err != nil {
		return nil, fmt.Errorf("connect meta: %w", err)
	}

	ts, err := Connect(ctx, cfg.Timescale)
	if err != nil {
		meta.Close()
		return nil, fmt.Errorf("connect timescale: %w", err)
	}

	return &Pools{
		Meta:      meta,
		Timescale: ts,
	}, nil
}

// Connect creates a single connection pool.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Close closes both connection pools.
func (p *Pools) Close() {
	if p.Meta != nil {
		p.Meta.Close()
	}
	if p.Timescale != nil {
		p.Timescale.Close()
	}
}

// Ping verifies both connections are healthy.
func (p *Pools) Ping(ctx context.Context) error {
	if err := p.Meta.Ping(ctx); err != nil {
		return fmt.Errorf("ping meta: %w", err)
	}
	if err := p.Timescale.Ping(ctx); err != nil {
		return fmt.Errorf("ping timescale: %w", err)
	}
	return nil
}
