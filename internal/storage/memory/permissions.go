package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/access"
)

type PermissionStore struct {
	mu   sync.RWMutex
	sets map[string]access.Set
}

func NewPermissionStore() *PermissionStore {
	return &PermissionStore{sets: map[string]access.Set{}}
}

func (s *PermissionStore) Get(ctx context.Context, userID string) (access.Set, error) {
	if err := ctx.Err(); err != nil {
		return access.Set{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[userID]
	if !ok {
		return access.Set{}, fmt.Errorf("permissions for %s: %w", userID, domain.ErrNotFound)
	}
	set.Permissions = slices.Clone(set.Permissions)
	return set, nil
}

func (s *PermissionStore) Replace(ctx context.Context, set access.Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	set.Permissions = slices.Clone(set.Permissions)
	s.mu.Lock()
	s.sets[set.UserID] = set
	s.mu.Unlock()
	return nil
}
