// Package calendar builds the day-by-day schedule view over events.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/events"
	"github.com/markusmobius/go-dateparser"
)

const (
	// DefaultSpan is the window used when a query gives no end.
	DefaultSpan = 7 * 24 * time.Hour
	// MaxSpan bounds a single calendar query.
	MaxSpan = 366 * 24 * time.Hour
)

// Range is a half-open interval [From, To).
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Day groups the events starting or running on one UTC date.
type Day struct {
	Date   string         `json:"date"`
	Events []events.Event `json:"events"`
}

type Schedule struct {
	Range Range `json:"range"`
	Days  []Day `json:"days"`
}

// EventSource returns the events overlapping a range.
type EventSource interface {
	InRange(ctx context.Context, from, to time.Time) ([]events.Event, error)
}

type Service struct {
	events EventSource
	now    func() time.Time
}

func NewService(source EventSource) *Service {
	return &Service{events: source, now: time.Now}
}

// Schedule parses the raw bounds and returns the events in the range
// grouped by day.
func (s *Service) Schedule(ctx context.Context, fromRaw, toRaw string) (Schedule, error) {
	r, err := ParseRange(fromRaw, toRaw, s.now())
	if err != nil {
		return Schedule{}, err
	}
	list, err := s.events.InRange(ctx, r.From, r.To)
	if err != nil {
		return Schedule{}, fmt.Errorf("calendar: %w", err)
	}
	return Schedule{Range: r, Days: GroupByDay(list, r)}, nil
}

// ParseRange reads from/to as RFC 3339 timestamps or natural language
// ("today", "next monday", "in 2 weeks"). A missing from defaults to the
// start of the current UTC day, a missing to to from plus DefaultSpan.
func ParseRange(fromRaw, toRaw string, now time.Time) (Range, error) {
	now = now.UTC()
	from := startOfDay(now)
	if strings.TrimSpace(fromRaw) != "" {
		parsed, err := parseBound(fromRaw, now)
		if err != nil {
			return Range{}, domain.NewValidationError("from", "unrecognised date")
		}
		from = parsed
	}

	to := from.Add(DefaultSpan)
	if strings.TrimSpace(toRaw) != "" {
		parsed, err := parseBound(toRaw, now)
		if err != nil {
			return Range{}, domain.NewValidationError("to", "unrecognised date")
		}
		to = parsed
	}

	if !to.After(from) {
		return Range{}, domain.NewValidationError("to", "must be after from")
	}
	if to.Sub(from) > MaxSpan {
		return Range{}, domain.NewValidationError("to", "range must not exceed 366 days")
	}
	return Range{From: from, To: to}, nil
}

func parseBound(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	cfg := &dateparser.Configuration{
		CurrentTime:     now,
		DefaultTimezone: time.UTC,
	}
	parsed, err := dateparser.Parse(cfg, raw)
	if err != nil {
		return time.Time{}, err
	}
	if parsed.Time.IsZero() {
		return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
	}
	return parsed.Time.UTC(), nil
}

// GroupByDay buckets list by each UTC date in r the event overlaps. Days
// without events are omitted.
func GroupByDay(list []events.Event, r Range) []Day {
	byDate := map[string][]events.Event{}
	var order []string
	for day := startOfDay(r.From); day.Before(r.To); day = day.AddDate(0, 0, 1) {
		dayEnd := day.AddDate(0, 0, 1)
		key := day.Format(time.DateOnly)
		for _, ev := range list {
			if ev.StartsAt.Before(dayEnd) && ev.EndsAt.After(day) {
				if _, seen := byDate[key]; !seen {
					order = append(order, key)
				}
				byDate[key] = append(byDate[key], ev)
			}
		}
	}
	days := make([]Day, 0, len(order))
	for _, key := range order {
		days = append(days, Day{Date: key, Events: byDate[key]})
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
