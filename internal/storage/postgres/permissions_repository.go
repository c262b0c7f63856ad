package postgres

import (
	"context"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/access"
)

var _ access.Store = (*PermissionRepository)(nil)

// PermissionRepository stores one row per identity holding the permission
// keys as a text array.
type PermissionRepository struct {
	conn
}

func (r *PermissionRepository) Get(ctx context.Context, userID string) (set access.Set, err error) {
	ctx, finish := r.begin(ctx, "get_permissions")
	defer func() { err = finish(err) }()

	var keys []string
	err = r.queryer().QueryRow(ctx, `
SELECT user_id::text, permissions, updated_at
  FROM user_permissions
 WHERE user_id = $1`, userID,
	).Scan(&set.UserID, &keys, &set.UpdatedAt)
	if err != nil {
		return access.Set{}, err
	}
	// Keys retired from the vocabulary are dropped on read.
	set.Permissions = auth.FilterKnown(keys)
	return set, nil
}

// Replace overwrites the whole set in one upsert.
func (r *PermissionRepository) Replace(ctx context.Context, set access.Set) (err error) {
	ctx, finish := r.begin(ctx, "replace_permissions")
	defer func() { err = finish(err) }()

	_, err = r.queryer().Exec(ctx, `
INSERT INTO user_permissions (user_id, permissions, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE
   SET permissions = EXCLUDED.permissions,
       updated_at = EXCLUDED.updated_at`,
		set.UserID, auth.Keys(set.Permissions), set.UpdatedAt,
	)
	return err
}
