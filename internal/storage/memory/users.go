// Package memory provides in-memory implementations of the repository
// interfaces, used by tests and by the server when no database is
// configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/users"
)

type UserStore struct {
	mu    sync.RWMutex
	byID  map[string]users.User
	email map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{byID: map[string]users.User{}, email: map[string]string{}}
}

func (s *UserStore) Create(ctx context.Context, user users.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.email[user.Email]; taken {
		return fmt.Errorf("email %s: %w", user.Email, domain.ErrConflict)
	}
	if _, taken := s.byID[user.ID]; taken {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrConflict)
	}
	s.byID[user.ID] = user
	s.email[user.Email] = user.ID
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (users.User, error) {
	if err := ctx.Err(); err != nil {
		return users.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	if !ok {
		return users.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return user, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (users.User, error) {
	if err := ctx.Err(); err != nil {
		return users.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.email[email]
	if !ok {
		return users.User{}, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	return s.byID[id], nil
}

func (s *UserStore) Update(ctx context.Context, user users.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[user.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrNotFound)
	}
	if existing.Email != user.Email {
		if _, taken := s.email[user.Email]; taken {
			return fmt.Errorf("email %s: %w", user.Email, domain.ErrConflict)
		}
		delete(s.email, existing.Email)
		s.email[user.Email] = user.ID
	}
	s.byID[user.ID] = user
	return nil
}

func (s *UserStore) List(ctx context.Context, filter users.ListFilter) ([]users.User, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	query := strings.ToLower(filter.Query)
	s.mu.RLock()
	matched := make([]users.User, 0, len(s.byID))
	for _, u := range s.byID {
		if query != "" && !strings.Contains(strings.ToLower(u.Email), query) &&
			!strings.Contains(strings.ToLower(u.DisplayName), query) {
			continue
		}
		matched = append(matched, u)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

// paginate returns the [offset, offset+limit) window of items. A
// non-positive limit means no limit.
func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
