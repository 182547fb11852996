// Package postgres wires pgx connection pools with tracing, query logging
// and per-query metrics.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSlowQuery is the duration above which successful queries are logged.
const DefaultSlowQuery = 100 * time.Millisecond

// PoolOption configures NewPool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	maxConns  int32
	slowQuery time.Duration
}

// WithMaxConns caps the pool size. Values <= 0 keep the pgx default.
func WithMaxConns(n int32) PoolOption {
	return func(o *poolOptions) { o.maxConns = n }
}

// WithSlowQuery sets the slow-query log threshold. 0 logs every query.
func WithSlowQuery(d time.Duration) PoolOption {
	return func(o *poolOptions) { o.slowQuery = d }
}

// NewPool parses dsn, installs the otelpgx tracer wrapped with query logging,
// and verifies connectivity.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*pgxpool.Pool, error) {
	o := poolOptions{slowQuery: DefaultSlowQuery}
	for _, fn := range opts {
		fn(&o)
	}

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if o.maxConns > 0 {
		pcfg.MaxConns = o.maxConns
	}
	pcfg.ConnConfig.Tracer = wrapQueryTracer(otelpgx.NewTracer(), o.slowQuery)

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}
