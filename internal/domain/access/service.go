package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/history"
	"github.com/eventops/server/internal/domain/ids"
	"github.com/rs/zerolog"
)

// Service reads and replaces permission sets.
type Service struct {
	store      Store
	identities Identities
	tracker    history.Tracker
	logger     zerolog.Logger
	now        func() time.Time
}

var _ Checker = (*Service)(nil)

func NewService(store Store, identities Identities, tracker history.Tracker, logger zerolog.Logger) *Service {
	return &Service{
		store:      store,
		identities: identities,
		tracker:    tracker,
		logger:     logger.With().Str("component", "access").Logger(),
		now:        time.Now,
	}
}

// CanonicalUserID returns the canonical form of a user id. Ids that are not
// UUIDs cannot name an account and yield domain.ErrNotFound.
func CanonicalUserID(userID string) (string, error) {
	canonical, err := ids.ValidateUUID(userID)
	if err != nil {
		return "", fmt.Errorf("identity %q: %w", userID, domain.ErrNotFound)
	}
	return canonical, nil
}

// GetForIdentity returns the permissions held by userID. An identity with
// no stored set holds nothing, and neither does an id that is not a UUID;
// the result is never nil.
func (s *Service) GetForIdentity(ctx context.Context, userID string) ([]auth.Permission, error) {
	userID, err := CanonicalUserID(userID)
	if err != nil {
		return []auth.Permission{}, nil
	}
	set, err := s.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return []auth.Permission{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get permissions for %s: %w", userID, err)
	}
	return auth.Normalize(set.Permissions), nil
}

// Has reports whether userID holds perm. A key outside the vocabulary is
// never held.
func (s *Service) Has(ctx context.Context, userID string, perm auth.Permission) (bool, error) {
	if !perm.Valid() {
		return false, nil
	}
	perms, err := s.GetForIdentity(ctx, userID)
	if err != nil {
		return false, err
	}
	return auth.Contains(perms, perm), nil
}

// SetForIdentity replaces the whole permission set of userID with the
// vocabulary members of keys. Unknown keys are dropped silently. The stored
// set is returned.
func (s *Service) SetForIdentity(ctx context.Context, userID string, keys []string) ([]auth.Permission, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("userId", "is required")
	}
	userID, err := CanonicalUserID(userID)
	if err != nil {
		return nil, err
	}
	exists, err := s.identities.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("look up identity %s: %w", userID, err)
	}
	if !exists {
		return nil, fmt.Errorf("identity %s: %w", userID, domain.ErrNotFound)
	}

	previous, err := s.GetForIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := auth.FilterKnown(keys)
	if dropped := len(keys) - len(next); dropped > 0 {
		s.logger.Debug().
			Str("user_id", userID).
			Int("ignored_keys", dropped).
			Msg("unknown or duplicate permission keys ignored")
	}

	set := Set{UserID: userID, Permissions: next, UpdatedAt: s.now().UTC()}
	if err := s.store.Replace(ctx, set); err != nil {
		return nil, fmt.Errorf("replace permissions for %s: %w", userID, err)
	}

	s.tracker.Track(ctx, history.Input{
		ActorID:    auth.ActorID(ctx),
		Action:     history.ActionUpdate,
		EntityType: EntityType,
		EntityID:   userID,
		OldValues:  map[string][]string{"permissions": auth.Keys(previous)},
		NewValues:  map[string][]string{"permissions": auth.Keys(next)},
	})

	s.logger.Info().
		Str("user_id", userID).
		Strs("permissions", auth.Keys(next)).
		Msg("permission set replaced")
	return next, nil
}

// ApplyPreset replaces the permission set of userID with the preset's
// permissions.
func (s *Service) ApplyPreset(ctx context.Context, userID, presetID string) ([]auth.Permission, error) {
	preset, ok := auth.PresetByID(presetID)
	if !ok {
		return nil, domain.NewValidationError("preset", "unknown preset "+strings.TrimSpace(presetID))
	}
	return s.SetForIdentity(ctx, userID, auth.Keys(preset.Permissions))
}
