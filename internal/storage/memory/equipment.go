package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/equipment"
)

type EquipmentStore struct {
	mu    sync.RWMutex
	items map[string]equipment.Item
}

func NewEquipmentStore() *EquipmentStore {
	return &EquipmentStore{items: map[string]equipment.Item{}}
}

func (s *EquipmentStore) Create(ctx context.Context, item equipment.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return fmt.Errorf("equipment %s: %w", item.ID, domain.ErrConflict)
	}
	s.items[item.ID] = cloneItem(item)
	return nil
}

func (s *EquipmentStore) Get(ctx context.Context, id string) (equipment.Item, error) {
	if err := ctx.Err(); err != nil {
		return equipment.Item{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return equipment.Item{}, fmt.Errorf("equipment %s: %w", id, domain.ErrNotFound)
	}
	return cloneItem(item), nil
}

func (s *EquipmentStore) Update(ctx context.Context, item equipment.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return fmt.Errorf("equipment %s: %w", item.ID, domain.ErrNotFound)
	}
	s.items[item.ID] = cloneItem(item)
	return nil
}

func (s *EquipmentStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("equipment %s: %w", id, domain.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

func (s *EquipmentStore) List(ctx context.Context, filters equipment.Filters) ([]equipment.Item, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	matched := make([]equipment.Item, 0, len(s.items))
	for _, item := range s.items {
		if filters.Status != "" && item.Status != filters.Status {
			continue
		}
		if filters.Category != "" && item.Category != filters.Category {
			continue
		}
		if filters.EventID != "" && (item.EventID == nil || *item.EventID != filters.EventID) {
			continue
		}
		matched = append(matched, cloneItem(item))
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

func (s *EquipmentStore) CountByStatus(ctx context.Context) (map[equipment.Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[equipment.Status]int{}
	for _, item := range s.items {
		counts[item.Status]++
	}
	return counts, nil
}

func cloneItem(item equipment.Item) equipment.Item {
	if item.EventID != nil {
		id := *item.EventID
		item.EventID = &id
	}
	return item
}
