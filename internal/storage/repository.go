// Package storage groups the repositories of every domain behind one
// handle so the server can run on PostgreSQL or entirely in memory.
package storage

import (
	"github.com/eventops/server/internal/domain/access"
	"github.com/eventops/server/internal/domain/equipment"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/history"
	"github.com/eventops/server/internal/domain/staff"
	"github.com/eventops/server/internal/domain/users"
)

// Repository groups data access by domain.
type Repository interface {
	Users() users.Repository
	Permissions() access.Store
	History() history.Store
	Events() events.Repository
	Staff() staff.Repository
	Equipment() equipment.Repository
}
