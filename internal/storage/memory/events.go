package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/events"
)

type EventStore struct {
	mu    sync.RWMutex
	items map[string]events.Event
}

func NewEventStore() *EventStore {
	return &EventStore{items: map[string]events.Event{}}
}

func (s *EventStore) Create(ctx context.Context, event events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[event.ID]; exists {
		return fmt.Errorf("event %s: %w", event.ID, domain.ErrConflict)
	}
	s.items[event.ID] = event
	return nil
}

func (s *EventStore) Get(ctx context.Context, id string) (events.Event, error) {
	if err := ctx.Err(); err != nil {
		return events.Event{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.items[id]
	if !ok {
		return events.Event{}, fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	return event, nil
}

func (s *EventStore) Update(ctx context.Context, event events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[event.ID]; !ok {
		return fmt.Errorf("event %s: %w", event.ID, domain.ErrNotFound)
	}
	s.items[event.ID] = event
	return nil
}

func (s *EventStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

func (s *EventStore) List(ctx context.Context, filters events.Filters, page events.Pagination) (events.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return events.ListResult{}, err
	}
	query := strings.ToLower(filters.Query)
	s.mu.RLock()
	matched := make([]events.Event, 0, len(s.items))
	for _, ev := range s.items {
		if filters.Status != "" && ev.Status != filters.Status {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(ev.Title), query) &&
			!strings.Contains(strings.ToLower(ev.Location), query) {
			continue
		}
		if filters.To != nil && !ev.StartsAt.Before(*filters.To) {
			continue
		}
		if filters.From != nil && !ev.EndsAt.After(*filters.From) {
			continue
		}
		matched = append(matched, ev)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartsAt.Equal(matched[j].StartsAt) {
			return matched[i].StartsAt.Before(matched[j].StartsAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return events.ListResult{Events: paginate(matched, page.Limit, page.Offset), Total: len(matched)}, nil
}

func (s *EventStore) CountByStatus(ctx context.Context) (map[events.Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[events.Status]int{}
	for _, ev := range s.items {
		counts[ev.Status]++
	}
	return counts, nil
}
