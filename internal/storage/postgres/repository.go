package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/eventops/server/internal/domain/access"
	"github.com/eventops/server/internal/domain/equipment"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/history"
	"github.com/eventops/server/internal/domain/staff"
	"github.com/eventops/server/internal/domain/users"
	"github.com/eventops/server/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ storage.Repository = (*Repository)(nil)

// Repository implements storage.Repository with a PostgreSQL backend.
type Repository struct {
	conn conn
}

// NewRepository creates a repository whose calls are each bounded by
// queryTimeout.
func NewRepository(pool *pgxpool.Pool, queryTimeout time.Duration) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{conn: conn{pool: pool, timeout: queryTimeout}}, nil
}

func (r *Repository) Users() users.Repository { return &UserRepository{conn: r.conn} }

func (r *Repository) Permissions() access.Store { return &PermissionRepository{conn: r.conn} }

func (r *Repository) History() history.Store { return &HistoryRepository{conn: r.conn} }

func (r *Repository) Events() events.Repository { return &EventRepository{conn: r.conn} }

func (r *Repository) Staff() staff.Repository { return &StaffRepository{conn: r.conn} }

func (r *Repository) Equipment() equipment.Repository { return &EquipmentRepository{conn: r.conn} }

// WithTx runs fn with a repository bound to a single transaction. The
// transaction commits when fn returns nil.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, *Repository) error) error {
	if r.conn.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.conn.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txConn := r.conn
	txConn.tx = tx
	if err := fn(ctx, &Repository{conn: txConn}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
