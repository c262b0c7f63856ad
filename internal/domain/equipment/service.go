package equipment

import (
	"context"
	"fmt"
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
	events   EventLookup
	tracker  history.Tracker
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, events EventLookup, tracker history.Tracker, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		events:   events,
		tracker:  tracker,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "equipment").Logger(),
		now:      time.Now,
	}
}

type CreateParams struct {
	Name         string  `json:"name" validate:"required,max=200"`
	Category     string  `json:"category" validate:"max=120"`
	SerialNumber string  `json:"serialNumber" validate:"max=120"`
	Status       Status  `json:"status" validate:"omitempty,oneof=available in_use maintenance retired"`
	EventID      *string `json:"eventId"`
	Notes        string  `json:"notes" validate:"max=5000"`
}

// UpdateParams holds a partial update. Nil fields are left alone; set
// ClearEvent to release the item from its event.
type UpdateParams struct {
	Name         *string `json:"name" validate:"omitempty,max=200"`
	Category     *string `json:"category" validate:"omitempty,max=120"`
	SerialNumber *string `json:"serialNumber" validate:"omitempty,max=120"`
	Status       *Status `json:"status" validate:"omitempty,oneof=available in_use maintenance retired"`
	EventID      *string `json:"eventId"`
	ClearEvent   bool    `json:"clearEvent"`
	Notes        *string `json:"notes" validate:"omitempty,max=5000"`
}

func (s *Service) Create(ctx context.Context, params CreateParams) (Item, error) {
	params.Name = sanitize.Text(params.Name)
	params.Category = sanitize.Text(params.Category)
	params.SerialNumber = sanitize.Text(params.SerialNumber)
	params.Notes = sanitize.RichText(params.Notes)
	if params.Status == "" {
		params.Status = StatusAvailable
	}
	if err := s.validate.Struct(params); err != nil {
		return Item{}, domain.FromValidator(err)
	}

	eventID, err := s.resolveEvent(ctx, params.EventID)
	if err != nil {
		return Item{}, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	item := Item{
		ID:           ids.NewUUID(),
		Name:         params.Name,
		Category:     params.Category,
		SerialNumber: params.SerialNumber,
		Status:       params.Status,
		EventID:      eventID,
		Notes:        params.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return Item{}, fmt.Errorf("create equipment: %w", err)
	}

	s.tracker.Track(ctx, history.Input{
		ActorID:    auth.ActorID(ctx),
		Action:     history.ActionCreate,
		EntityType: EntityType,
		EntityID:   item.ID,
		NewValues:  item,
	})
	return item, nil
}

func (s *Service) Get(ctx context.Context, id string) (Item, error) {
	normalized, err := ids.ValidateUUID(id)
	if err != nil {
		return Item{}, fmt.Errorf("equipment %q: %w", id, domain.ErrNotFound)
	}
	item, err := s.repo.Get(ctx, normalized)
	if err != nil {
		return Item{}, fmt.Errorf("get equipment: %w", err)
	}
	return item, nil
}

func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (Item, error) {
	if err := s.validate.Struct(params); err != nil {
		return Item{}, domain.FromValidator(err)
	}
	before, err := s.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}

	after := before
	if params.Name != nil {
		after.Name = sanitize.Text(*params.Name)
		if after.Name == "" {
			return Item{}, domain.NewValidationError("name", "is required")
		}
	}
	if params.Category != nil {
		after.Category = sanitize.Text(*params.Category)
	}
	if params.SerialNumber != nil {
		after.SerialNumber = sanitize.Text(*params.SerialNumber)
	}
	if params.Status != nil {
		after.Status = *params.Status
	}
	if params.Notes != nil {
		after.Notes = sanitize.RichText(*params.Notes)
	}
	switch {
	case params.ClearEvent:
		after.EventID = nil
	case params.EventID != nil:
		if after.EventID, err = s.resolveEvent(ctx, params.EventID); err != nil {
			return Item{}, err
		}
	}
	after.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)

	if err := s.repo.Update(ctx, after); err != nil {
		return Item{}, fmt.Errorf("update equipment: %w", err)
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
	if err := s.repo.Delete(ctx, before.ID); err != nil {
		return fmt.Errorf("delete equipment: %w", err)
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

// DetachFromEvent clears the event of every item allocated to eventID. Each
// release is an ordinary update and is recorded in the change history.
func (s *Service) DetachFromEvent(ctx context.Context, eventID string) (int, error) {
	released := 0
	for {
		items, _, err := s.repo.List(ctx, Filters{EventID: eventID, Limit: MaxListLimit})
		if err != nil {
			return released, fmt.Errorf("list equipment for event: %w", err)
		}
		if len(items) == 0 {
			return released, nil
		}
		for _, item := range items {
			if _, err := s.Update(ctx, item.ID, UpdateParams{ClearEvent: true}); err != nil {
				return released, fmt.Errorf("release equipment %s: %w", item.ID, err)
			}
			released++
		}
	}
}

func (s *Service) List(ctx context.Context, filters Filters) ([]Item, int, error) {
	var err error
	filters.Limit, filters.Offset, err = domain.NormalizePage(filters.Limit, filters.Offset, DefaultListLimit, MaxListLimit)
	if err != nil {
		return nil, 0, err
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, domain.NewValidationError("status", "must be one of: available in_use maintenance retired")
	}
	filters.Category = strings.TrimSpace(filters.Category)
	filters.EventID = strings.TrimSpace(filters.EventID)

	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("list equipment: %w", err)
	}
	if items == nil {
		items = []Item{}
	}
	return items, total, nil
}

// CountByStatus returns the number of items per status. Every status is
// present in the result.
func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count equipment: %w", err)
	}
	out := make(map[Status]int, len(Statuses()))
	for _, st := range Statuses() {
		out[st] = counts[st]
	}
	return out, nil
}

func (s *Service) resolveEvent(ctx context.Context, eventID *string) (*string, error) {
	if eventID == nil || strings.TrimSpace(*eventID) == "" {
		return nil, nil
	}
	normalized, err := ids.ValidateUUID(*eventID)
	if err != nil {
		return nil, domain.NewValidationError("eventId", "must be a valid UUID")
	}
	if s.events == nil {
		return &normalized, nil
	}
	ok, err := s.events.Exists(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("look up event: %w", err)
	}
	if !ok {
		return nil, domain.NewValidationError("eventId", "event does not exist")
	}
	return &normalized, nil
}
