// Package postgres is the storage driver for credentials, team policy,
// the response cache, and data-capture tables.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskgate/taskgate/pkg/logger"
)

const (
	defaultPingTimeout   = 3 * time.Second
	defaultHealthTimeout = time.Second
)

// DB is the minimal query surface the repositories run on. Both
// pgxpool.Pool and test mocks satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store owns the pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects the pool and verifies it with a ping.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	logger.FromContext(ctx).Info("connected to postgres")
	return &Store{pool: pool}, nil
}

func (s *Store) DB() DB { return s.pool }

func (s *Store) Close() { s.pool.Close() }

// Health runs a bounded liveness probe against the pool.
func (s *Store) Health(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()
	if err := s.pool.Ping(healthCtx); err != nil {
		return fmt.Errorf("postgres: health check: %w", err)
	}
	return nil
}
