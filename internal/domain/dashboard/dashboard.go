// Package dashboard aggregates the counters shown on the landing page.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/eventops/server/internal/domain/equipment"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/staff"
	"golang.org/x/sync/errgroup"
)

// UpcomingWindow is how far ahead the upcoming events list looks.
const UpcomingWindow = 14 * 24 * time.Hour

type EventSource interface {
	CountByStatus(ctx context.Context) (map[events.Status]int, error)
	InRange(ctx context.Context, from, to time.Time) ([]events.Event, error)
}

type StaffSource interface {
	Count(ctx context.Context) (staff.Counts, error)
}

type EquipmentSource interface {
	CountByStatus(ctx context.Context) (map[equipment.Status]int, error)
}

type Summary struct {
	Events    map[events.Status]int    `json:"events"`
	Staff     staff.Counts             `json:"staff"`
	Equipment map[equipment.Status]int `json:"equipment"`
	Upcoming  []events.Event           `json:"upcoming"`
	Generated time.Time                `json:"generatedAt"`
}

type Service struct {
	events    EventSource
	staff     StaffSource
	equipment EquipmentSource
	now       func() time.Time
}

func NewService(ev EventSource, st StaffSource, eq EquipmentSource) *Service {
	return &Service{events: ev, staff: st, equipment: eq, now: time.Now}
}

// Summary gathers the counters concurrently. The first failing source
// cancels the rest.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	now := s.now().UTC()
	out := Summary{Generated: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.events.CountByStatus(gctx)
		if err != nil {
			return fmt.Errorf("event counts: %w", err)
		}
		out.Events = counts
		return nil
	})
	g.Go(func() error {
		counts, err := s.staff.Count(gctx)
		if err != nil {
			return fmt.Errorf("staff counts: %w", err)
		}
		out.Staff = counts
		return nil
	})
	g.Go(func() error {
		counts, err := s.equipment.CountByStatus(gctx)
		if err != nil {
			return fmt.Errorf("equipment counts: %w", err)
		}
		out.Equipment = counts
		return nil
	})
	g.Go(func() error {
		upcoming, err := s.events.InRange(gctx, now, now.Add(UpcomingWindow))
		if err != nil {
			return fmt.Errorf("upcoming events: %w", err)
		}
		out.Upcoming = upcoming
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return out, nil
}
