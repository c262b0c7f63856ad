package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultQueryTimeout bounds each repository call when none is configured.
const DefaultQueryTimeout = 5 * time.Second

// Connect opens a pool against databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn is embedded by every repository. It owns the pool, an optional
// transaction and the per-call timeout.
type conn struct {
	pool    *pgxpool.Pool
	tx      pgx.Tx
	timeout time.Duration
}

func (c conn) queryer() queryer {
	if c.tx != nil {
		return c.tx
	}
	return c.pool
}

// begin starts the per-call deadline and the query timer. The returned
// finish func must be called with the call's final error.
func (c conn) begin(ctx context.Context, operation string) (context.Context, func(error) error) {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	start := time.Now()
	return ctx, func(err error) error {
		cancel()
		err = classify(operation, err)
		metrics.RecordQuery(operation, start, err)
		return err
	}
}

// classify maps driver errors onto the domain taxonomy.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrStorage) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", operation, domain.ErrConflict)
		case "23503", "23514":
			return fmt.Errorf("%s: %w", operation, &domain.ValidationError{Message: pgErr.Message})
		}
	}
	return fmt.Errorf("%s: %w: %w", operation, domain.ErrStorage, err)
}

// notFoundIfNone turns an update or delete that touched no rows into
// domain.ErrNotFound.
func notFoundIfNone(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
