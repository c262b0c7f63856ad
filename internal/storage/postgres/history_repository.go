package postgres

import (
	"context"
	"time"

	"github.com/eventops/server/internal/domain/history"
)

var _ history.Store = (*HistoryRepository)(nil)

type HistoryRepository struct {
	conn
}

func (r *HistoryRepository) Insert(ctx context.Context, entry history.Entry) (err error) {
	ctx, finish := r.begin(ctx, "insert_history")
	defer func() { err = finish(err) }()

	_, err = r.queryer().Exec(ctx, `
INSERT INTO change_history (id, actor_id, action, entity_type, entity_id, old_values, new_values, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ActorID, string(entry.Action), entry.EntityType, entry.EntityID,
		nullableJSON(entry.OldValues), nullableJSON(entry.NewValues), entry.CreatedAt,
	)
	return err
}

func (r *HistoryRepository) List(ctx context.Context, filter history.Filter) (entries []history.Entry, err error) {
	ctx, finish := r.begin(ctx, "list_history")
	defer func() { err = finish(err) }()

	rows, err := r.queryer().Query(ctx, `
SELECT id, actor_id, action, entity_type, entity_id, old_values, new_values, created_at
  FROM change_history
 WHERE ($1::text IS NULL OR entity_type = $1)
   AND ($2::text IS NULL OR entity_id = $2)
   AND ($3::text IS NULL OR actor_id = $3)
   AND ($4::text IS NULL OR action = $4)
 ORDER BY created_at DESC, id DESC
 LIMIT $5 OFFSET $6`,
		nullIfEmpty(filter.EntityType),
		nullIfEmpty(filter.EntityID),
		nullIfEmpty(filter.ActorID),
		nullIfEmpty(string(filter.Action)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries = make([]history.Entry, 0, filter.Limit)
	for rows.Next() {
		var (
			e      history.Entry
			action string
			oldRaw []byte
			newRaw []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &action, &e.EntityType, &e.EntityID, &oldRaw, &newRaw, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = history.Action(action)
		e.OldValues = oldRaw
		e.NewValues = newRaw
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes entries created strictly before cutoff.
func (r *HistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (deleted int64, err error) {
	ctx, finish := r.begin(ctx, "delete_expired_history")
	defer func() { err = finish(err) }()

	tag, err := r.queryer().Exec(ctx, `DELETE FROM change_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// nullableJSON keeps a missing snapshot as SQL NULL rather than JSON null.
func nullableJSON(raw []byte) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}
