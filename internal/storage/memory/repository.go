package memory

import (
	"github.com/eventops/server/internal/domain/access"
	"github.com/eventops/server/internal/domain/equipment"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/history"
	"github.com/eventops/server/internal/domain/staff"
	"github.com/eventops/server/internal/domain/users"
	"github.com/eventops/server/internal/storage"
)

var _ storage.Repository = (*Repository)(nil)

// Repository holds one in-memory store per domain.
type Repository struct {
	UserStore       *UserStore
	PermissionStore *PermissionStore
	HistoryStore    *HistoryStore
	EventStore      *EventStore
	StaffStore      *StaffStore
	EquipmentStore  *EquipmentStore
}

func NewRepository() *Repository {
	return &Repository{
		UserStore:       NewUserStore(),
		PermissionStore: NewPermissionStore(),
		HistoryStore:    NewHistoryStore(),
		EventStore:      NewEventStore(),
		StaffStore:      NewStaffStore(),
		EquipmentStore:  NewEquipmentStore(),
	}
}

func (r *Repository) Users() users.Repository { return r.UserStore }
func (r *Repository) Permissions() access.Store { return r.PermissionStore }
func (r *Repository) History() history.Store { return r.HistoryStore }
func (r *Repository) Events() events.Repository { return r.EventStore }
func (r *Repository) Staff() staff.Repository { return r.StaffStore }
func (r *Repository) Equipment() equipment.Repository { return r.EquipmentStore }
