// Package equipment manages the equipment inventory and its allocation to
// events.
package equipment

import (
	"context"
	"time"
)

// EntityType is the change history entity type for equipment items.
const EntityType = "equipment"

type Status string

const (
	StatusAvailable   Status = "available"
	StatusInUse       Status = "in_use"
	StatusMaintenance Status = "maintenance"
	StatusRetired     Status = "retired"
)

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusAvailable, StatusInUse, StatusMaintenance, StatusRetired}
}

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusMaintenance, StatusRetired:
		return true
	}
	return false
}

type Item struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category,omitempty"`
	SerialNumber string    `json:"serialNumber,omitempty"`
	Status       Status    `json:"status"`
	EventID      *string   `json:"eventId"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Filters struct {
	Status   Status
	Category string
	EventID  string
	Limit    int
	Offset   int
}

// Repository persists equipment. Lookups return domain.ErrNotFound for an
// unknown id. List orders by Name, then ID.
type Repository interface {
	Create(ctx context.Context, item Item) error
	Get(ctx context.Context, id string) (Item, error)
	Update(ctx context.Context, item Item) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters Filters) ([]Item, int, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// EventLookup checks that an event exists before equipment is allocated to it.
type EventLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}
