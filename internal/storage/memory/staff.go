package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/staff"
)

type StaffStore struct {
	mu    sync.RWMutex
	items map[string]staff.Member
}

func NewStaffStore() *StaffStore {
	return &StaffStore{items: map[string]staff.Member{}}
}

func (s *StaffStore) Create(ctx context.Context, member staff.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[member.ID]; exists {
		return fmt.Errorf("staff member %s: %w", member.ID, domain.ErrConflict)
	}
	s.items[member.ID] = member
	return nil
}

func (s *StaffStore) Get(ctx context.Context, id string) (staff.Member, error) {
	if err := ctx.Err(); err != nil {
		return staff.Member{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.items[id]
	if !ok {
		return staff.Member{}, fmt.Errorf("staff member %s: %w", id, domain.ErrNotFound)
	}
	return member, nil
}

func (s *StaffStore) Update(ctx context.Context, member staff.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[member.ID]; !ok {
		return fmt.Errorf("staff member %s: %w", member.ID, domain.ErrNotFound)
	}
	s.items[member.ID] = member
	return nil
}

func (s *StaffStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("staff member %s: %w", id, domain.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

func (s *StaffStore) List(ctx context.Context, filters staff.Filters) ([]staff.Member, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	query := strings.ToLower(filters.Query)
	s.mu.RLock()
	matched := make([]staff.Member, 0, len(s.items))
	for _, m := range s.items {
		if filters.Active != nil && m.Active != *filters.Active {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(m.Name), query) &&
			!strings.Contains(strings.ToLower(m.Role), query) {
			continue
		}
		matched = append(matched, m)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, filters.Limit, filters.Offset), len(matched), nil
}

func (s *StaffStore) Count(ctx context.Context) (staff.Counts, error) {
	if err := ctx.Err(); err != nil {
		return staff.Counts{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := staff.Counts{Total: len(s.items)}
	for _, m := range s.items {
		if m.Active {
			counts.Active++
		}
	}
	return counts, nil
}
