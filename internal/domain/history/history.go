// Package history implements the append-only change history of tracked
// entities: recording before/after snapshots, querying them newest first and
// expiring entries past the retention window.
package history

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Action is the kind of mutation an entry describes.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether a is one of create, update or delete.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// ParseAction parses a wire value, case-insensitively.
func ParseAction(value string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(value)))
	return a, a.Valid()
}

const (
	// DefaultListLimit applies when a query does not set a limit.
	DefaultListLimit = 100
	// MaxListLimit caps any requested limit.
	MaxListLimit = 1000
	// RetentionWindow is the maximum age of an entry before the sweep removes it.
	RetentionWindow = 365 * 24 * time.Hour
	// DefaultWriteTimeout bounds a best-effort write.
	DefaultWriteTimeout = 5 * time.Second
)

// Entry is an immutable change history record. A nil ActorID means the
// change was made by the system or an unauthenticated caller.
type Entry struct {
	ID         string          `json:"id"`
	ActorID    *string         `json:"actorId"`
	Action     Action          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	OldValues  json.RawMessage `json:"oldValues"`
	NewValues  json.RawMessage `json:"newValues"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Input describes a change to record. OldValues and NewValues may be any
// JSON-serializable value; they are copied when recorded.
type Input struct {
	ActorID    *string
	Action     Action
	EntityType string
	EntityID   string
	OldValues  any
	NewValues  any
}

// Filter narrows a List query. Zero values mean "no constraint".
type Filter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     Action
	Limit      int
	Offset     int
}

// Store persists entries. Implementations must return entries ordered by
// CreatedAt descending, then ID descending, and treat DeleteOlderThan's
// cutoff as exclusive.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Tracker is the narrow interface domain services use to log a change after
// a successful mutation.
type Tracker interface {
	Track(ctx context.Context, in Input)
}
