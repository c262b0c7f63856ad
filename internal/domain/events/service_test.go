package events_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/history"
	"github.com/eventops/server/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*events.Service, *history.Recorder) {
	t.Helper()
	rec := history.NewRecorder(memory.NewHistoryStore(), zerolog.Nop())
	return events.NewService(memory.NewEventStore(), rec, zerolog.Nop()), rec
}

func actorCtx() context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{ID: "user-1", Email: "ada@example.com"})
}

func TestCreateRecordsHistoryWithActor(t *testing.T) {
	svc, rec := newService(t)
	ctx := actorCtx()

	ev, err := svc.Create(ctx, events.CreateParams{
		Title:    "Summer <script>alert(1)</script>Gala",
		StartsAt: base,
		EndsAt:   base.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "Summer Gala", ev.Title)
	assert.Equal(t, events.StatusPlanned, ev.Status)

	entries, err := rec.List(ctx, history.Filter{EntityType: events.EntityType, EntityID: ev.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.ActionCreate, entries[0].Action)
	assert.Equal(t, "user-1", *entries[0].ActorID)
	assert.Nil(t, entries[0].OldValues)
	assert.Contains(t, string(entries[0].NewValues), `"title":"Summer Gala"`)
}

func TestCreateValidation(t *testing.T) {
	svc, rec := newService(t)

	_, err := svc.Create(actorCtx(), events.CreateParams{Title: "Backwards", StartsAt: base, EndsAt: base.Add(-time.Hour)})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "endsAt")

	_, err = svc.Create(actorCtx(), events.CreateParams{StartsAt: base, EndsAt: base.Add(time.Hour)})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "title")

	entries, err := rec.List(context.Background(), history.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdateTracksBeforeAndAfter(t *testing.T) {
	svc, rec := newService(t)
	ctx := actorCtx()

	ev, err := svc.Create(ctx, events.CreateParams{Title: "Launch", StartsAt: base, EndsAt: base.Add(time.Hour)})
	require.NoError(t, err)

	title := "Product launch"
	status := events.StatusConfirmed
	updated, err := svc.Update(ctx, ev.ID, events.UpdateParams{Title: &title, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Product launch", updated.Title)
	assert.Equal(t, events.StatusConfirmed, updated.Status)

	entries, err := rec.List(ctx, history.Filter{EntityID: ev.ID, Action: history.ActionUpdate})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, string(entries[0].OldValues), `"title":"Launch"`)
	assert.Contains(t, string(entries[0].NewValues), `"title":"Product launch"`)

	ends := base.Add(-time.Minute)
	_, err = svc.Update(ctx, ev.ID, events.UpdateParams{EndsAt: &ends})
	assert.True(t, domain.IsValidation(err))
}

func TestDeleteTracksOldValues(t *testing.T) {
	svc, rec := newService(t)
	ctx := actorCtx()

	ev, err := svc.Create(ctx, events.CreateParams{Title: "Retro", StartsAt: base, EndsAt: base.Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, ev.ID))

	_, err = svc.Get(ctx, ev.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	entries, err := rec.List(ctx, history.Filter{EntityID: ev.ID, Action: history.ActionDelete})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].NewValues)
	assert.Contains(t, string(entries[0].OldValues), `"title":"Retro"`)
}

type stubDetacher struct {
	released []string
	err      error
}

func (d *stubDetacher) DetachFromEvent(_ context.Context, eventID string) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	d.released = append(d.released, eventID)
	return 1, nil
}

func TestDeleteReleasesEquipmentFirst(t *testing.T) {
	svc, rec := newService(t)
	ctx := actorCtx()
	detacher := &stubDetacher{}
	svc.SetDetacher(detacher)

	ev, err := svc.Create(ctx, events.CreateParams{Title: "Launch", StartsAt: base, EndsAt: base.Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, ev.ID))
	assert.Equal(t, []string{ev.ID}, detacher.released)

	kept, err := svc.Create(ctx, events.CreateParams{Title: "Keynote", StartsAt: base, EndsAt: base.Add(time.Hour)})
	require.NoError(t, err)
	detacher.err = errors.Join(domain.ErrStorage, errors.New("equipment table locked"))
	err = svc.Delete(ctx, kept.ID)
	require.ErrorIs(t, err, domain.ErrStorage)

	_, err = svc.Get(ctx, kept.ID)
	require.NoError(t, err)
	entries, err := rec.List(ctx, history.Filter{EntityID: kept.ID, Action: history.ActionDelete})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFailedMutationRecordsNothing(t *testing.T) {
	svc, rec := newService(t)

	err := svc.Delete(actorCtx(), "6c1f8c61-2c54-4d4c-9d0e-2a7b1fd0a0b1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	entries, err := rec.List(context.Background(), history.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingHistory struct{ history.Store }

func (failingHistory) Insert(context.Context, history.Entry) error {
	return errors.Join(domain.ErrStorage, errors.New("history table locked"))
}

func TestMutationSucceedsWhenHistoryWriteFails(t *testing.T) {
	rec := history.NewRecorder(failingHistory{}, zerolog.Nop())
	svc := events.NewService(memory.NewEventStore(), rec, zerolog.Nop())

	ev, err := svc.Create(actorCtx(), events.CreateParams{Title: "Resilient", StartsAt: base, EndsAt: base.Add(time.Hour)})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Resilient", got.Title)
}

func TestListAndInRange(t *testing.T) {
	svc, _ := newService(t)
	ctx := actorCtx()

	for i, title := range []string{"Day one", "Day two", "Day three"} {
		start := base.Add(time.Duration(i) * 24 * time.Hour)
		_, err := svc.Create(ctx, events.CreateParams{Title: title, StartsAt: start, EndsAt: start.Add(2 * time.Hour)})
		require.NoError(t, err)
	}

	result, err := svc.List(ctx, events.Filters{}, events.Pagination{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Events, 2)
	assert.Equal(t, "Day one", result.Events[0].Title)

	inRange, err := svc.InRange(ctx, base.Add(23*time.Hour), base.Add(25*time.Hour))
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, "Day two", inRange[0].Title)

	_, err = svc.InRange(ctx, base, base)
	assert.True(t, domain.IsValidation(err))

	counts, err := svc.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[events.StatusPlanned])
	assert.Contains(t, counts, events.StatusCancelled)
}

func TestParseFilters(t *testing.T) {
	filters, page, err := events.ParseFilters(url.Values{
		"status": {"Confirmed"},
		"from":   {"2026-07-01T00:00:00Z"},
		"to":     {"2026-07-08T00:00:00Z"},
		"limit":  {"10"},
		"offset": {"20"},
	})
	require.NoError(t, err)
	assert.Equal(t, events.StatusConfirmed, filters.Status)
	require.NotNil(t, filters.From)
	require.NotNil(t, filters.To)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 20, page.Offset)

	_, _, err = events.ParseFilters(url.Values{"from": {"yesterday-ish"}})
	assert.True(t, domain.IsValidation(err))

	_, _, err = events.ParseFilters(url.Values{"limit": {"-5"}})
	assert.True(t, domain.IsValidation(err))

	_, _, err = events.ParseFilters(url.Values{"from": {"2026-07-08T00:00:00Z"}, "to": {"2026-07-01T00:00:00Z"}})
	assert.True(t, domain.IsValidation(err))
}
