// Package staff manages the staff roster.
package staff

import (
	"context"
	"time"
)

// EntityType is the change history entity type for staff members.
const EntityType = "staff"

type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role,omitempty"`
	Active    bool      `json:"active"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Filters struct {
	Active *bool
	Query  string
	Limit  int
	Offset int
}

type Counts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// Repository persists staff members. Lookups return domain.ErrNotFound for
// an unknown id. List orders by Name, then ID.
type Repository interface {
	Create(ctx context.Context, member Member) error
	Get(ctx context.Context, id string) (Member, error)
	Update(ctx context.Context, member Member) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters Filters) ([]Member, int, error)
	Count(ctx context.Context) (Counts, error)
}
