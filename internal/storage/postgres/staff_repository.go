package postgres

import (
	"context"

	"github.com/eventops/server/internal/domain/staff"
	"github.com/jackc/pgx/v5"
)

var _ staff.Repository = (*StaffRepository)(nil)

type StaffRepository struct {
	conn
}

const staffColumns = `id::text, name, email, phone, role, active, notes, created_at, updated_at`

func scanMember(row pgx.Row, extra ...any) (staff.Member, error) {
	var m staff.Member
	dest := append([]any{&m.ID, &m.Name, &m.Email, &m.Phone, &m.Role, &m.Active, &m.Notes, &m.CreatedAt, &m.UpdatedAt}, extra...)
	err := row.Scan(dest...)
	return m, err
}

func (r *StaffRepository) Create(ctx context.Context, m staff.Member) (err error) {
	ctx, finish := r.begin(ctx, "create_staff")
	defer func() { err = finish(err) }()

	_, err = r.queryer().Exec(ctx, `
INSERT INTO staff_members (id, name, email, phone, role, active, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.Name, m.Email, m.Phone, m.Role, m.Active, m.Notes, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *StaffRepository) Get(ctx context.Context, id string) (m staff.Member, err error) {
	ctx, finish := r.begin(ctx, "get_staff")
	defer func() { err = finish(err) }()

	return scanMember(r.queryer().QueryRow(ctx, `SELECT `+staffColumns+` FROM staff_members WHERE id = $1`, id))
}

func (r *StaffRepository) Update(ctx context.Context, m staff.Member) (err error) {
	ctx, finish := r.begin(ctx, "update_staff")
	defer func() { err = finish(err) }()

	return notFoundIfNone(r.queryer().Exec(ctx, `
UPDATE staff_members
   SET name = $2, email = $3, phone = $4, role = $5, active = $6, notes = $7, updated_at = $8
 WHERE id = $1`,
		m.ID, m.Name, m.Email, m.Phone, m.Role, m.Active, m.Notes, m.UpdatedAt,
	))
}

func (r *StaffRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, finish := r.begin(ctx, "delete_staff")
	defer func() { err = finish(err) }()

	return notFoundIfNone(r.queryer().Exec(ctx, `DELETE FROM staff_members WHERE id = $1`, id))
}

func (r *StaffRepository) List(ctx context.Context, filters staff.Filters) (items []staff.Member, total int, err error) {
	ctx, finish := r.begin(ctx, "list_staff")
	defer func() { err = finish(err) }()

	var pattern *string
	if filters.Query != "" {
		p := likePattern(filters.Query)
		pattern = &p
	}

	rows, err := r.queryer().Query(ctx, `
SELECT `+staffColumns+`, count(*) OVER ()
  FROM staff_members
 WHERE ($1::boolean IS NULL OR active = $1)
   AND ($2::text IS NULL OR name ILIKE $2 OR role ILIKE $2)
 ORDER BY name ASC, id ASC
 LIMIT $3 OFFSET $4`,
		filters.Active, pattern, filters.Limit, filters.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items = make([]staff.Member, 0, filters.Limit)
	for rows.Next() {
		m, err := scanMember(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *StaffRepository) Count(ctx context.Context) (counts staff.Counts, err error) {
	ctx, finish := r.begin(ctx, "count_staff")
	defer func() { err = finish(err) }()

	err = r.queryer().QueryRow(ctx, `
SELECT count(*), count(*) FILTER (WHERE active)
  FROM staff_members`,
	).Scan(&counts.Total, &counts.Active)
	return counts, err
}
