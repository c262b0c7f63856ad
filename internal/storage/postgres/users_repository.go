package postgres

import (
	"context"

	"github.com/eventops/server/internal/domain/users"
	"github.com/jackc/pgx/v5"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	conn
}

const userColumns = `id::text, email, password_hash, display_name, phone, job_title, created_at, updated_at`

func scanUser(row pgx.Row) (users.User, error) {
	var u users.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Phone, &u.JobTitle, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UserRepository) Create(ctx context.Context, user users.User) (err error) {
	ctx, finish := r.begin(ctx, "create_user")
	defer func() { err = finish(err) }()

	_, err = r.queryer().Exec(ctx, `
INSERT INTO users (id, email, password_hash, display_name, phone, job_title, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Phone, user.JobTitle, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (user users.User, err error) {
	ctx, finish := r.begin(ctx, "get_user")
	defer func() { err = finish(err) }()

	return scanUser(r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (user users.User, err error) {
	ctx, finish := r.begin(ctx, "get_user_by_email")
	defer func() { err = finish(err) }()

	return scanUser(r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *UserRepository) Update(ctx context.Context, user users.User) (err error) {
	ctx, finish := r.begin(ctx, "update_user")
	defer func() { err = finish(err) }()

	return notFoundIfNone(r.queryer().Exec(ctx, `
UPDATE users
   SET email = $2, password_hash = $3, display_name = $4, phone = $5, job_title = $6, updated_at = $7
 WHERE id = $1`,
		user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Phone, user.JobTitle, user.UpdatedAt,
	))
}

func (r *UserRepository) List(ctx context.Context, filter users.ListFilter) (items []users.User, total int, err error) {
	ctx, finish := r.begin(ctx, "list_users")
	defer func() { err = finish(err) }()

	var pattern *string
	if filter.Query != "" {
		p := likePattern(filter.Query)
		pattern = &p
	}

	rows, err := r.queryer().Query(ctx, `
SELECT `+userColumns+`, count(*) OVER ()
  FROM users
 WHERE ($1::text IS NULL OR email ILIKE $1 OR display_name ILIKE $1)
 ORDER BY created_at ASC, id ASC
 LIMIT $2 OFFSET $3`,
		pattern, filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items = make([]users.User, 0, filter.Limit)
	for rows.Next() {
		var u users.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Phone, &u.JobTitle, &u.CreatedAt, &u.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(items) == 0 && filter.Offset > 0 {
		if err := r.queryer().QueryRow(ctx, `SELECT count(*) FROM users WHERE ($1::text IS NULL OR email ILIKE $1 OR display_name ILIKE $1)`, pattern).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}
