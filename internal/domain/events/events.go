// Package events manages scheduled events, the primary tracked entity.
package events

import (
	"context"
	"time"
)

// EntityType is the change history entity type for events.
const EntityType = "event"

type Status string

const (
	StatusPlanned   Status = "planned"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusPlanned, StatusConfirmed, StatusCancelled, StatusCompleted}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Filters narrows List. From and To select events overlapping [From, To).
type Filters struct {
	Status Status
	Query  string
	From   *time.Time
	To     *time.Time
}

type Pagination struct {
	Limit  int
	Offset int
}

type ListResult struct {
	Events []Event `json:"items"`
	Total  int     `json:"total"`
}

// Repository persists events. Get, Update and Delete return
// domain.ErrNotFound for an unknown id. List orders by StartsAt, then ID.
type Repository interface {
	Create(ctx context.Context, event Event) error
	Get(ctx context.Context, id string) (Event, error)
	Update(ctx context.Context, event Event) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters Filters, page Pagination) (ListResult, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// EquipmentDetacher releases every equipment item allocated to an event and
// reports how many were released.
type EquipmentDetacher interface {
	DetachFromEvent(ctx context.Context, eventID string) (int, error)
}
