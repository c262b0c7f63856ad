package staff

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
	tracker  history.Tracker
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, tracker history.Tracker, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tracker:  tracker,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "staff").Logger(),
		now:      time.Now,
	}
}

type CreateParams struct {
	Name   string `json:"name" validate:"required,max=200"`
	Email  string `json:"email" validate:"omitempty,email,max=254"`
	Phone  string `json:"phone" validate:"max=40"`
	Role   string `json:"role" validate:"max=120"`
	Active *bool  `json:"active"`
	Notes  string `json:"notes" validate:"max=5000"`
}

type UpdateParams struct {
	Name   *string `json:"name" validate:"omitempty,max=200"`
	Email  *string `json:"email" validate:"omitempty,max=254"`
	Phone  *string `json:"phone" validate:"omitempty,max=40"`
	Role   *string `json:"role" validate:"omitempty,max=120"`
	Active *bool   `json:"active"`
	Notes  *string `json:"notes" validate:"omitempty,max=5000"`
}

func (s *Service) Create(ctx context.Context, params CreateParams) (Member, error) {
	params.Name = sanitize.Text(params.Name)
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Phone = sanitize.Text(params.Phone)
	params.Role = sanitize.Text(params.Role)
	params.Notes = sanitize.RichText(params.Notes)
	if err := s.validate.Struct(params); err != nil {
		return Member{}, domain.FromValidator(err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	member := Member{
		ID:        ids.NewUUID(),
		Name:      params.Name,
		Email:     params.Email,
		Phone:     params.Phone,
		Role:      params.Role,
		Active:    params.Active == nil || *params.Active,
		Notes:     params.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return Member{}, fmt.Errorf("create staff member: %w", err)
	}

	s.tracker.Track(ctx, history.Input{
		ActorID:    auth.ActorID(ctx),
		Action:     history.ActionCreate,
		EntityType: EntityType,
		EntityID:   member.ID,
		NewValues:  member,
	})
	return member, nil
}

func (s *Service) Get(ctx context.Context, id string) (Member, error) {
	normalized, err := ids.ValidateUUID(id)
	if err != nil {
		return Member{}, fmt.Errorf("staff member %q: %w", id, domain.ErrNotFound)
	}
	member, err := s.repo.Get(ctx, normalized)
	if err != nil {
		return Member{}, fmt.Errorf("get staff member: %w", err)
	}
	return member, nil
}

func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (Member, error) {
	if err := s.validate.Struct(params); err != nil {
		return Member{}, domain.FromValidator(err)
	}
	before, err := s.Get(ctx, id)
	if err != nil {
		return Member{}, err
	}

	after := before
	if params.Name != nil {
		after.Name = sanitize.Text(*params.Name)
		if after.Name == "" {
			return Member{}, domain.NewValidationError("name", "is required")
		}
	}
	if params.Email != nil {
		after.Email = strings.ToLower(strings.TrimSpace(*params.Email))
		if after.Email != "" {
			if err := s.validate.Var(after.Email, "email"); err != nil {
				return Member{}, domain.NewValidationError("email", "must be a valid email address")
			}
		}
	}
	if params.Phone != nil {
		after.Phone = sanitize.Text(*params.Phone)
	}
	if params.Role != nil {
		after.Role = sanitize.Text(*params.Role)
	}
	if params.Active != nil {
		after.Active = *params.Active
	}
	if params.Notes != nil {
		after.Notes = sanitize.RichText(*params.Notes)
	}
	after.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)

	if err := s.repo.Update(ctx, after); err != nil {
		return Member{}, fmt.Errorf("update staff member: %w", err)
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
		return fmt.Errorf("delete staff member: %w", err)
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

func (s *Service) List(ctx context.Context, filters Filters) ([]Member, int, error) {
	var err error
	filters.Limit, filters.Offset, err = domain.NormalizePage(filters.Limit, filters.Offset, DefaultListLimit, MaxListLimit)
	if err != nil {
		return nil, 0, err
	}
	filters.Query = strings.TrimSpace(filters.Query)

	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}
	if items == nil {
		items = []Member{}
	}
	return items, total, nil
}

func (s *Service) Count(ctx context.Context) (Counts, error) {
	counts, err := s.repo.Count(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("count staff: %w", err)
	}
	return counts, nil
}
