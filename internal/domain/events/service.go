package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/history"
	"github.com/eventops/server/internal/domain/ids"
	"github.com/eventops/server/internal/sanitize"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type Service struct {
	repo     Repository
	tracker  history.Tracker
	detacher EquipmentDetacher
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, tracker history.Tracker, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tracker:  tracker,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "events").Logger(),
		now:      time.Now,
	}
}

// SetDetacher sets where Delete releases allocated equipment. Equipment
// looks events up through this service, so it is wired after both exist.
func (s *Service) SetDetacher(d EquipmentDetacher) {
	s.detacher = d
}

// CreateParams holds the fields of a new event.
type CreateParams struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	Location    string    `json:"location" validate:"max=300"`
	StartsAt    time.Time `json:"startsAt" validate:"required"`
	EndsAt      time.Time `json:"endsAt" validate:"required,gtfield=StartsAt"`
	Status      Status    `json:"status" validate:"omitempty,oneof=planned confirmed cancelled completed"`
}

// UpdateParams holds a partial update. Nil fields are left alone.
type UpdateParams struct {
	Title       *string    `json:"title" validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Location    *string    `json:"location" validate:"omitempty,max=300"`
	StartsAt    *time.Time `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt"`
	Status      *Status    `json:"status" validate:"omitempty,oneof=planned confirmed cancelled completed"`
}

func (s *Service) Create(ctx context.Context, params CreateParams) (Event, error) {
	params.Title = sanitize.Text(params.Title)
	params.Description = sanitize.RichText(params.Description)
	params.Location = sanitize.Text(params.Location)
	if params.Status == "" {
		params.Status = StatusPlanned
	}
	if err := s.validate.Struct(params); err != nil {
		return Event{}, domain.FromValidator(err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	event := Event{
		ID:          ids.NewUUID(),
		Title:       params.Title,
		Description: params.Description,
		Location:    params.Location,
		StartsAt:    params.StartsAt.UTC(),
		EndsAt:      params.EndsAt.UTC(),
		Status:      params.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return Event{}, fmt.Errorf("create event: %w", err)
	}

	s.tracker.Track(ctx, history.Input{
		ActorID:    auth.ActorID(ctx),
		Action:     history.ActionCreate,
		EntityType: EntityType,
		EntityID:   event.ID,
		NewValues:  event,
	})
	return event, nil
}

func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	normalized, err := ids.ValidateUUID(id)
	if err != nil {
		return Event{}, fmt.Errorf("event %q: %w", id, domain.ErrNotFound)
	}
	event, err := s.repo.Get(ctx, normalized)
	if err != nil {
		return Event{}, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (Event, error) {
	if err := s.validate.Struct(params); err != nil {
		return Event{}, domain.FromValidator(err)
	}
	before, err := s.Get(ctx, id)
	if err != nil {
		return Event{}, err
	}

	after := before
	if params.Title != nil {
		after.Title = sanitize.Text(*params.Title)
		if after.Title == "" {
			return Event{}, domain.NewValidationError("title", "is required")
		}
	}
	if params.Description != nil {
		after.Description = sanitize.RichText(*params.Description)
	}
	if params.Location != nil {
		after.Location = sanitize.Text(*params.Location)
	}
	if params.StartsAt != nil {
		after.StartsAt = params.StartsAt.UTC()
	}
	if params.EndsAt != nil {
		after.EndsAt = params.EndsAt.UTC()
	}
	if params.Status != nil {
		after.Status = *params.Status
	}
	if !after.EndsAt.After(after.StartsAt) {
		return Event{}, domain.NewValidationError("endsAt", "must be after startsAt")
	}
	after.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)

	if err := s.repo.Update(ctx, after); err != nil {
		return Event{}, fmt.Errorf("update event: %w", err)
	}

	s.tracker.Track(ctx, history.Input{
		ActorID:    auth.ActorID(ctx),
		Action:     history.ActionUpdate,
		EntityType: EntityType,
		EntityID:   after.ID,
		OldValues:  before,
		NewValues:  after,
	})
	return after, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	before, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.detacher != nil {
		released, err := s.detacher.DetachFromEvent(ctx, before.ID)
		if err != nil {
			return fmt.Errorf("detach equipment from event %s: %w", before.ID, err)
		}
		if released > 0 {
			s.logger.Info().Str("event_id", before.ID).Int("released", released).Msg("equipment released from deleted event")
		}
	}
	if err := s.repo.Delete(ctx, before.ID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	s.tracker.Track(ctx, history.Input{
		ActorID:    auth.ActorID(ctx),
		Action:     history.ActionDelete,
		EntityType: EntityType,
		EntityID:   before.ID,
		OldValues:  before,
	})
	return nil
}

func (s *Service) List(ctx context.Context, filters Filters, page Pagination) (ListResult, error) {
	limit, offset, err := domain.NormalizePage(page.Limit, page.Offset, DefaultListLimit, MaxListLimit)
	if err != nil {
		return ListResult{}, err
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return ListResult{}, domain.NewValidationError("status", "must be one of: planned confirmed cancelled completed")
	}
	result, err := s.repo.List(ctx, filters, Pagination{Limit: limit, Offset: offset})
	if err != nil {
		return ListResult{}, fmt.Errorf("list events: %w", err)
	}
	if result.Events == nil {
		result.Events = []Event{}
	}
	return result, nil
}

// InRange returns every event overlapping [from, to), ordered by start.
func (s *Service) InRange(ctx context.Context, from, to time.Time) ([]Event, error) {
	if !to.After(from) {
		return nil, domain.NewValidationError("to", "must be after from")
	}
	result, err := s.repo.List(ctx, Filters{From: &from, To: &to}, Pagination{Limit: MaxListLimit})
	if err != nil {
		return nil, fmt.Errorf("events in range: %w", err)
	}
	if result.Events == nil {
		return []Event{}, nil
	}
	return result.Events, nil
}

// CountByStatus returns the number of events per status. Every status is
// present in the result.
func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	out := make(map[Status]int, len(Statuses()))
	for _, st := range Statuses() {
		out[st] = counts[st]
	}
	return out, nil
}

// ParseFilters reads list filters from query parameters.
func ParseFilters(values url.Values) (Filters, Pagination, error) {
	filters := Filters{
		Status: Status(strings.ToLower(strings.TrimSpace(values.Get("status")))),
		Query:  strings.TrimSpace(values.Get("q")),
	}
	var page Pagination

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filters.From}, {"to", &filters.To}} {
		raw := strings.TrimSpace(values.Get(bound.name))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, page, domain.NewValidationError(bound.name, "must be an RFC 3339 timestamp")
		}
		parsed = parsed.UTC()
		*bound.dst = &parsed
	}
	if filters.From != nil && filters.To != nil && !filters.To.After(*filters.From) {
		return filters, page, domain.NewValidationError("to", "must be after from")
	}

	var err error
	if page.Limit, err = parseIntParam(values, "limit"); err != nil {
		return filters, page, err
	}
	if page.Offset, err = parseIntParam(values, "offset"); err != nil {
		return filters, page, err
	}
	return filters, page, nil
}

func parseIntParam(values url.Values, name string) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(name, "must be a non-negative integer")
	}
	return n, nil
}

// Exists reports whether an event with id exists.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
