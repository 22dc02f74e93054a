package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the relational persistence layer shared by every worker and the
// query service. It holds no per-request state of its own; the pool handles
// connection lifecycle.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for callers (migrations, health checks)
// that need it directly.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging store: %w", err)
	}
	return nil
}
