package postgres

import (
	"context"

	"github.com/eventops/server/internal/domain/equipment"
	"github.com/jackc/pgx/v5"
)

var _ equipment.Repository = (*EquipmentRepository)(nil)

type EquipmentRepository struct {
	conn
}

const equipmentColumns = `id::text, name, category, serial_number, status, event_id::text, notes, created_at, updated_at`

func scanItem(row pgx.Row, extra ...any) (equipment.Item, error) {
	var (
		item   equipment.Item
		status string
	)
	dest := append([]any{&item.ID, &item.Name, &item.Category, &item.SerialNumber, &status, &item.EventID, &item.Notes, &item.CreatedAt, &item.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return equipment.Item{}, err
	}
	item.Status = equipment.Status(status)
	return item, nil
}

func (r *EquipmentRepository) Create(ctx context.Context, item equipment.Item) (err error) {
	ctx, finish := r.begin(ctx, "create_equipment")
	defer func() { err = finish(err) }()

	_, err = r.queryer().Exec(ctx, `
INSERT INTO equipment (id, name, category, serial_number, status, event_id, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.Name, item.Category, item.SerialNumber, string(item.Status), item.EventID, item.Notes, item.CreatedAt, item.UpdatedAt,
	)
	return err
}

func (r *EquipmentRepository) Get(ctx context.Context, id string) (item equipment.Item, err error) {
	ctx, finish := r.begin(ctx, "get_equipment")
	defer func() { err = finish(err) }()

	return scanItem(r.queryer().QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = $1`, id))
}

func (r *EquipmentRepository) Update(ctx context.Context, item equipment.Item) (err error) {
	ctx, finish := r.begin(ctx, "update_equipment")
	defer func() { err = finish(err) }()

	return notFoundIfNone(r.queryer().Exec(ctx, `
UPDATE equipment
   SET name = $2, category = $3, serial_number = $4, status = $5, event_id = $6, notes = $7, updated_at = $8
 WHERE id = $1`,
		item.ID, item.Name, item.Category, item.SerialNumber, string(item.Status), item.EventID, item.Notes, item.UpdatedAt,
	))
}

func (r *EquipmentRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, finish := r.begin(ctx, "delete_equipment")
	defer func() { err = finish(err) }()

	return notFoundIfNone(r.queryer().Exec(ctx, `DELETE FROM equipment WHERE id = $1`, id))
}

func (r *EquipmentRepository) List(ctx context.Context, filters equipment.Filters) (items []equipment.Item, total int, err error) {
	ctx, finish := r.begin(ctx, "list_equipment")
	defer func() { err = finish(err) }()

	rows, err := r.queryer().Query(ctx, `
SELECT `+equipmentColumns+`, count(*) OVER ()
  FROM equipment
 WHERE ($1::text IS NULL OR status = $1)
   AND ($2::text IS NULL OR category = $2)
   AND ($3::uuid IS NULL OR event_id = $3)
 ORDER BY name ASC, id ASC
 LIMIT $4 OFFSET $5`,
		nullIfEmpty(string(filters.Status)), nullIfEmpty(filters.Category), nullIfEmpty(filters.EventID), filters.Limit, filters.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items = make([]equipment.Item, 0, filters.Limit)
	for rows.Next() {
		item, err := scanItem(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *EquipmentRepository) CountByStatus(ctx context.Context) (counts map[equipment.Status]int, err error) {
	ctx, finish := r.begin(ctx, "count_equipment")
	defer func() { err = finish(err) }()

	rows, err := r.queryer().Query(ctx, `SELECT status, count(*) FROM equipment GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts = map[equipment.Status]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[equipment.Status(status)] = n
	}
	return counts, rows.Err()
}
