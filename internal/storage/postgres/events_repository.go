package postgres

import (
	"context"

	"github.com/eventops/server/internal/domain/events"
	"github.com/jackc/pgx/v5"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	conn
}

const eventColumns = `id::text, title, description, location, starts_at, ends_at, status, created_at, updated_at`

func scanEvent(row pgx.Row, extra ...any) (events.Event, error) {
	var (
		ev     events.Event
		status string
	)
	dest := append([]any{&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.StartsAt, &ev.EndsAt, &status, &ev.CreatedAt, &ev.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return events.Event{}, err
	}
	ev.Status = events.Status(status)
	ev.StartsAt = ev.StartsAt.UTC()
	ev.EndsAt = ev.EndsAt.UTC()
	return ev, nil
}

func (r *EventRepository) Create(ctx context.Context, ev events.Event) (err error) {
	ctx, finish := r.begin(ctx, "create_event")
	defer func() { err = finish(err) }()

	_, err = r.queryer().Exec(ctx, `
INSERT INTO events (id, title, description, location, starts_at, ends_at, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, ev.Title, ev.Description, ev.Location, ev.StartsAt, ev.EndsAt, string(ev.Status), ev.CreatedAt, ev.UpdatedAt,
	)
	return err
}

func (r *EventRepository) Get(ctx context.Context, id string) (ev events.Event, err error) {
	ctx, finish := r.begin(ctx, "get_event")
	defer func() { err = finish(err) }()

	return scanEvent(r.queryer().QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

func (r *EventRepository) Update(ctx context.Context, ev events.Event) (err error) {
	ctx, finish := r.begin(ctx, "update_event")
	defer func() { err = finish(err) }()

	return notFoundIfNone(r.queryer().Exec(ctx, `
UPDATE events
   SET title = $2, description = $3, location = $4, starts_at = $5, ends_at = $6, status = $7, updated_at = $8
 WHERE id = $1`,
		ev.ID, ev.Title, ev.Description, ev.Location, ev.StartsAt, ev.EndsAt, string(ev.Status), ev.UpdatedAt,
	))
}

func (r *EventRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, finish := r.begin(ctx, "delete_event")
	defer func() { err = finish(err) }()

	return notFoundIfNone(r.queryer().Exec(ctx, `DELETE FROM events WHERE id = $1`, id))
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters, page events.Pagination) (result events.ListResult, err error) {
	ctx, finish := r.begin(ctx, "list_events")
	defer func() { err = finish(err) }()

	var pattern *string
	if filters.Query != "" {
		p := likePattern(filters.Query)
		pattern = &p
	}

	rows, err := r.queryer().Query(ctx, `
SELECT `+eventColumns+`, count(*) OVER ()
  FROM events
 WHERE ($1::text IS NULL OR status = $1)
   AND ($2::text IS NULL OR title ILIKE $2 OR location ILIKE $2)
   AND ($3::timestamptz IS NULL OR ends_at > $3)
   AND ($4::timestamptz IS NULL OR starts_at < $4)
 ORDER BY starts_at ASC, id ASC
 LIMIT $5 OFFSET $6`,
		nullIfEmpty(string(filters.Status)), pattern, filters.From, filters.To, page.Limit, page.Offset,
	)
	if err != nil {
		return events.ListResult{}, err
	}
	defer rows.Close()

	result.Events = make([]events.Event, 0, page.Limit)
	for rows.Next() {
		ev, err := scanEvent(rows, &result.Total)
		if err != nil {
			return events.ListResult{}, err
		}
		result.Events = append(result.Events, ev)
	}
	return result, rows.Err()
}

func (r *EventRepository) CountByStatus(ctx context.Context) (counts map[events.Status]int, err error) {
	ctx, finish := r.begin(ctx, "count_events")
	defer func() { err = finish(err) }()

	rows, err := r.queryer().Query(ctx, `SELECT status, count(*) FROM events GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts = map[events.Status]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[events.Status(status)] = n
	}
	return counts, rows.Err()
}
