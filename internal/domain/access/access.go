// Package access manages per-identity permission sets: the closed
// vocabulary check used by the auth gate, whole-set replacement and preset
// application.
package access

import (
	"context"
	"time"

	"github.com/eventops/server/internal/auth"
)

// EntityType is the change history entity type for permission set changes.
const EntityType = "permissions"

// Set is the stored permission set of one identity.
type Set struct {
	UserID      string            `json:"userId"`
	Permissions []auth.Permission `json:"permissions"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Store persists permission sets. Get returns domain.ErrNotFound when the
// identity has never been assigned a set. Replace overwrites the whole set
// in a single write.
type Store interface {
	Get(ctx context.Context, userID string) (Set, error)
	Replace(ctx context.Context, set Set) error
}

// Identities answers whether an identity exists.
type Identities interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// Checker is the narrow read side used by the auth gate.
type Checker interface {
	Has(ctx context.Context, userID string, perm auth.Permission) (bool, error)
}
