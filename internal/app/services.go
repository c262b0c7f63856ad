// Package app assembles the domain services on top of a storage backend.
// The HTTP router and the CLI commands share it.
package app

import (
	"context"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/access"
	"github.com/eventops/server/internal/domain/calendar"
	"github.com/eventops/server/internal/domain/dashboard"
	"github.com/eventops/server/internal/domain/equipment"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/history"
	"github.com/eventops/server/internal/domain/staff"
	"github.com/eventops/server/internal/domain/users"
	"github.com/eventops/server/internal/storage"
	"github.com/rs/zerolog"
)

type Options struct {
	// DefaultPreset is granted to self-registered users.
	DefaultPreset string
	// HistoryWriteTimeout bounds each best-effort history write.
	HistoryWriteTimeout time.Duration
}

type Services struct {
	Repository storage.Repository
	Recorder   *history.Recorder
	Users      *users.Service
	Access     *access.Service
	Events     *events.Service
	Staff      *staff.Service
	Equipment  *equipment.Service
	Calendar   *calendar.Service
	Dashboard  *dashboard.Service
}

func New(repo storage.Repository, opts Options, logger zerolog.Logger) *Services {
	if opts.DefaultPreset == "" {
		opts.DefaultPreset = auth.PresetViewer
	}
	var recorderOpts []history.Option
	if opts.HistoryWriteTimeout > 0 {
		recorderOpts = append(recorderOpts, history.WithWriteTimeout(opts.HistoryWriteTimeout))
	}
	recorder := history.NewRecorder(repo.History(), logger, recorderOpts...)

	identities := &identityLookup{}
	accessService := access.NewService(repo.Permissions(), identities, recorder, logger)
	usersService := users.NewService(repo.Users(), accessService, recorder, opts.DefaultPreset, logger)
	identities.users = usersService

	eventsService := events.NewService(repo.Events(), recorder, logger)
	staffService := staff.NewService(repo.Staff(), recorder, logger)
	equipmentService := equipment.NewService(repo.Equipment(), eventsService, recorder, logger)
	eventsService.SetDetacher(equipmentService)

	return &Services{
		Repository: repo,
		Recorder:   recorder,
		Users:      usersService,
		Access:     accessService,
		Events:     eventsService,
		Staff:      staffService,
		Equipment:  equipmentService,
		Calendar:   calendar.NewService(eventsService),
		Dashboard:  dashboard.NewService(eventsService, staffService, equipmentService),
	}
}

// identityLookup lets the access service check users that are created by
// the users service, which in turn needs access to grant presets.
type identityLookup struct {
	users *users.Service
}

func (l *identityLookup) Exists(ctx context.Context, id string) (bool, error) {
	return l.users.Exists(ctx, id)
}
