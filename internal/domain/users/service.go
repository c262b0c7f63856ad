package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
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
	MaxListLimit     = 200
)

// PresetApplier assigns a role preset to an identity.
type PresetApplier interface {
	ApplyPreset(ctx context.Context, userID, presetID string) ([]auth.Permission, error)
}

// Service handles user management operations.
type Service struct {
	repo          Repository
	presets       PresetApplier
	tracker       history.Tracker
	validate      *validator.Validate
	defaultPreset string
	logger        zerolog.Logger
	now           func() time.Time
}

// NewService creates a user service. defaultPreset is applied to every newly
// registered user; an empty value leaves new users without permissions.
func NewService(repo Repository, presets PresetApplier, tracker history.Tracker, defaultPreset string, logger zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		presets:       presets,
		tracker:       tracker,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		defaultPreset: defaultPreset,
		logger:        logger.With().Str("component", "users").Logger(),
		now:           time.Now,
	}
}

// RegisterParams contains the fields needed to create an account.
type RegisterParams struct {
	Email       string `validate:"required,email,max=254"`
	Password    string `validate:"required,min=8,max=72"`
	DisplayName string `validate:"max=120"`
}

// ProfileUpdate holds optional profile changes. Nil fields are left alone.
type ProfileUpdate struct {
	DisplayName *string `validate:"omitempty,max=120"`
	Phone       *string `validate:"omitempty,max=40"`
	JobTitle    *string `validate:"omitempty,max=120"`
}

// Register creates a new user and grants the default preset.
func (s *Service) Register(ctx context.Context, params RegisterParams) (User, error) {
	params.Email = normalizeEmail(params.Email)
	params.DisplayName = sanitize.Text(params.DisplayName)
	if err := s.validate.Struct(params); err != nil {
		return User{}, domain.FromValidator(err)
	}

	user, err := s.create(ctx, params)
	if err != nil {
		return User{}, err
	}

	if s.defaultPreset != "" {
		if _, err := s.presets.ApplyPreset(ctx, user.ID, s.defaultPreset); err != nil {
			// The account stays usable with an empty permission set.
			s.logger.Error().Err(err).
				Str("user_id", user.ID).
				Str("preset", s.defaultPreset).
				Msg("failed to grant default preset")
		}
	}
	return user, nil
}

func (s *Service) create(ctx context.Context, params RegisterParams) (User, error) {
	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	user := User{
		ID:           ids.NewUUID(),
		Email:        params.Email,
		PasswordHash: hash,
		DisplayName:  params.DisplayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.DisplayName == "" {
		user.DisplayName = strings.SplitN(user.Email, "@", 2)[0]
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return User{}, &domain.ValidationError{
				Message: "email is already registered",
				Fields:  map[string]string{"email": "is already registered"},
			}
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	s.tracker.Track(ctx, history.Input{
		ActorID:    auth.ActorID(ctx),
		Action:     history.ActionCreate,
		EntityType: EntityType,
		EntityID:   user.ID,
		NewValues:  user,
	})
	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords both yield domain.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		// Spend the same bcrypt work as a real comparison.
		_ = auth.CheckPassword(dummyHash(), password)
		return User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("look up user: %w", err)
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	normalized, err := ids.ValidateUUID(id)
	if err != nil {
		return User{}, fmt.Errorf("user %q: %w", id, domain.ErrNotFound)
	}
	user, err := s.repo.GetByID(ctx, normalized)
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Exists reports whether a user with id exists.
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

// UpdateProfile applies update to the user with id.
func (s *Service) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error) {
	if err := s.validate.Struct(update); err != nil {
		return User{}, domain.FromValidator(err)
	}
	before, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}

	after := before
	if update.DisplayName != nil {
		after.DisplayName = sanitize.Text(*update.DisplayName)
		if after.DisplayName == "" {
			return User{}, domain.NewValidationError("displayName", "must not be empty")
		}
	}
	if update.Phone != nil {
		after.Phone = sanitize.Text(*update.Phone)
	}
	if update.JobTitle != nil {
		after.JobTitle = sanitize.Text(*update.JobTitle)
	}
	after.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)

	if err := s.repo.Update(ctx, after); err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
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

// ChangePassword replaces the password of id after checking current.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	if len(next) < auth.MinPasswordLength || len(next) > 72 {
		return domain.NewValidationError("newPassword", fmt.Sprintf("must be between %d and 72 characters", auth.MinPasswordLength))
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(user.PasswordHash, current); err != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.tracker.Track(ctx, history.Input{
		ActorID:    auth.ActorID(ctx),
		Action:     history.ActionUpdate,
		EntityType: EntityType,
		EntityID:   user.ID,
		NewValues:  map[string]bool{"passwordChanged": true},
	})
	s.logger.Info().Str("user_id", user.ID).Msg("password changed")
	return nil
}

// List returns users matching filter and the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, domain.NewValidationError("limit", "limit and offset must not be negative")
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	filter.Query = strings.TrimSpace(filter.Query)

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	if items == nil {
		items = []User{}
	}
	return items, total, nil
}

// EnsureAdmin makes sure an account for email exists and holds the
// administrator preset. created reports whether the account was new.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (user User, created bool, err error) {
	email = normalizeEmail(email)
	user, err = s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		params := RegisterParams{Email: email, Password: password, DisplayName: "Administrator"}
		if err := s.validate.Struct(params); err != nil {
			return User{}, false, domain.FromValidator(err)
		}
		user, err = s.create(ctx, params)
		if err != nil {
			return User{}, false, err
		}
		created = true
	default:
		return User{}, false, fmt.Errorf("look up admin: %w", err)
	}

	if _, err := s.presets.ApplyPreset(ctx, user.ID, auth.PresetAdministrator); err != nil {
		return User{}, created, fmt.Errorf("grant administrator preset: %w", err)
	}
	return user, created, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// dummyHash is compared against when the email is unknown.
var dummyHash = sync.OnceValue(func() string {
	hash, _ := auth.HashPassword("eventops-unknown-account")
	return hash
})
