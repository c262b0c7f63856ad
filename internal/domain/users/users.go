// Package users manages the credential store: registration, login,
// profile changes and the administrator bootstrap.
package users

import (
	"context"
	"time"
)

// EntityType is the change history entity type for user records.
const EntityType = "user"

// User is a registered identity. Users are never hard-deleted.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	Phone        string    `json:"phone,omitempty"`
	JobTitle     string    `json:"jobTitle,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ListFilter narrows List. Query matches email or display name.
type ListFilter struct {
	Query  string
	Limit  int
	Offset int
}

// Repository persists users. Create returns domain.ErrConflict for a
// duplicate email; lookups return domain.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, user User) error
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
}
