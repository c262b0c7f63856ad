package history_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/history"
	"github.com/eventops/server/internal/metrics"
	"github.com/eventops/server/internal/storage/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRecorder(t *testing.T) (*history.Recorder, *memory.HistoryStore, *clock) {
	t.Helper()
	store := memory.NewHistoryStore()
	clk := &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	return history.NewRecorder(store, zerolog.Nop(), history.WithClock(clk.Now)), store, clk
}

func strPtr(s string) *string { return &s }

func TestRecordCreateThenList(t *testing.T) {
	rec, _, _ := newRecorder(t)
	ctx := context.Background()

	entry, err := rec.Record(ctx, history.Input{
		Action:     history.ActionCreate,
		EntityType: "event",
		EntityID:   "evt-1",
		OldValues:  nil,
		NewValues:  map[string]any{"title": "X"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())

	entries, err := rec.List(ctx, history.Filter{EntityType: "event", EntityID: "evt-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.ActionCreate, entries[0].Action)
	assert.Nil(t, entries[0].OldValues)
	assert.JSONEq(t, `{"title":"X"}`, string(entries[0].NewValues))
	assert.Nil(t, entries[0].ActorID)
}

func TestRecordSnapshotIsolation(t *testing.T) {
	rec, _, _ := newRecorder(t)
	ctx := context.Background()

	values := map[string]any{"title": "Before", "tags": []string{"a"}}
	_, err := rec.Record(ctx, history.Input{
		Action:     history.ActionCreate,
		EntityType: "event",
		EntityID:   "evt-1",
		NewValues:  values,
	})
	require.NoError(t, err)

	values["title"] = "After"
	values["tags"].([]string)[0] = "mutated"

	entries, err := rec.List(ctx, history.Filter{EntityID: "evt-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"title":"Before","tags":["a"]}`, string(entries[0].NewValues))
}

func TestRecordRawMessageSnapshotIsCopied(t *testing.T) {
	rec, _, _ := newRecorder(t)
	ctx := context.Background()

	raw := json.RawMessage(`{"name":"Projector"}`)
	_, err := rec.Record(ctx, history.Input{
		Action:     history.ActionUpdate,
		EntityType: "equipment",
		EntityID:   "eq-1",
		OldValues:  raw,
		NewValues:  raw,
	})
	require.NoError(t, err)

	copy(raw, bytes.Repeat([]byte(" "), len(raw)))

	entries, err := rec.List(ctx, history.Filter{EntityID: "eq-1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Projector"}`, string(entries[0].OldValues))
}

func TestRecordUnserializableSnapshotBecomesNull(t *testing.T) {
	rec, _, _ := newRecorder(t)
	ctx := context.Background()

	entry, err := rec.Record(ctx, history.Input{
		Action:     history.ActionUpdate,
		EntityType: "event",
		EntityID:   "evt-1",
		OldValues:  map[string]any{"callback": func() {}},
		NewValues:  map[string]any{"score": 1},
	})
	require.NoError(t, err)
	assert.Nil(t, entry.OldValues)
	assert.JSONEq(t, `{"score":1}`, string(entry.NewValues))

	entry, err = rec.Record(ctx, history.Input{
		Action:     history.ActionUpdate,
		EntityType: "event",
		EntityID:   "evt-2",
		NewValues:  math.Inf(1),
	})
	require.NoError(t, err)
	assert.Nil(t, entry.NewValues)
}

func TestRecordTypedNilSnapshotIsNull(t *testing.T) {
	rec, _, _ := newRecorder(t)

	type event struct{ Title string }
	var missing *event
	entry, err := rec.Record(context.Background(), history.Input{
		Action:     history.ActionDelete,
		EntityType: "event",
		EntityID:   "evt-1",
		OldValues:  &event{Title: "Gone"},
		NewValues:  missing,
	})
	require.NoError(t, err)
	assert.Nil(t, entry.NewValues)
	assert.JSONEq(t, `{"Title":"Gone"}`, string(entry.OldValues))
}

func TestRecordValidation(t *testing.T) {
	rec, store, _ := newRecorder(t)

	tests := []struct {
		name  string
		input history.Input
		field string
	}{
		{name: "unknown action", input: history.Input{Action: "archive", EntityType: "event", EntityID: "1"}, field: "action"},
		{name: "missing entity type", input: history.Input{Action: history.ActionCreate, EntityID: "1"}, field: "entityType"},
		{name: "blank entity id", input: history.Input{Action: history.ActionCreate, EntityType: "event", EntityID: "  "}, field: "entityId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rec.Record(context.Background(), tt.input)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
	assert.Equal(t, 0, store.Len())
}

func TestRecordKeepsActor(t *testing.T) {
	rec, _, _ := newRecorder(t)
	actor := "user-7"

	entry, err := rec.Record(context.Background(), history.Input{
		ActorID:    &actor,
		Action:     history.ActionCreate,
		EntityType: "staff",
		EntityID:   "s-1",
	})
	require.NoError(t, err)
	actor = "someone-else"

	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "user-7", *entry.ActorID)
}

func TestListNewestFirstWithFilters(t *testing.T) {
	rec, _, clk := newRecorder(t)
	ctx := context.Background()

	record := func(actor *string, action history.Action, entityType, entityID string) {
		t.Helper()
		_, err := rec.Record(ctx, history.Input{ActorID: actor, Action: action, EntityType: entityType, EntityID: entityID})
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}

	record(strPtr("alice"), history.ActionCreate, "event", "e1")
	record(strPtr("bob"), history.ActionUpdate, "event", "e1")
	record(nil, history.ActionDelete, "event", "e1")
	record(strPtr("alice"), history.ActionCreate, "staff", "s1")

	all, err := rec.List(ctx, history.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "s1", all[0].EntityID)
	assert.Equal(t, history.ActionDelete, all[1].Action)
	for i := 1; i < len(all); i++ {
		assert.True(t, !all[i].CreatedAt.After(all[i-1].CreatedAt))
	}

	byActor, err := rec.List(ctx, history.Filter{ActorID: "alice"})
	require.NoError(t, err)
	assert.Len(t, byActor, 2)

	byAction, err := rec.List(ctx, history.Filter{EntityType: "event", Action: history.ActionUpdate})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "bob", *byAction[0].ActorID)

	page, err := rec.List(ctx, history.Filter{EntityType: "event", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, history.ActionUpdate, page[0].Action)

	none, err := rec.List(ctx, history.Filter{EntityType: "equipment"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListSameInstantOrderedByID(t *testing.T) {
	rec, _, _ := newRecorder(t)
	ctx := context.Background()

	first, err := rec.Record(ctx, history.Input{Action: history.ActionCreate, EntityType: "event", EntityID: "e1"})
	require.NoError(t, err)
	second, err := rec.Record(ctx, history.Input{Action: history.ActionUpdate, EntityType: "event", EntityID: "e1"})
	require.NoError(t, err)

	entries, err := rec.List(ctx, history.Filter{EntityID: "e1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
}

func TestNormalizeFilter(t *testing.T) {
	f, err := history.NormalizeFilter(history.Filter{})
	require.NoError(t, err)
	assert.Equal(t, history.DefaultListLimit, f.Limit)

	f, err = history.NormalizeFilter(history.Filter{Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, history.MaxListLimit, f.Limit)

	_, err = history.NormalizeFilter(history.Filter{Limit: -1})
	assert.True(t, domain.IsValidation(err))

	_, err = history.NormalizeFilter(history.Filter{Offset: -3})
	assert.True(t, domain.IsValidation(err))

	_, err = history.NormalizeFilter(history.Filter{Action: "archive"})
	assert.True(t, domain.IsValidation(err))
}

func TestListCapsLimit(t *testing.T) {
	rec, _, _ := newRecorder(t)
	ctx := context.Background()
	for i := 0; i < history.MaxListLimit+5; i++ {
		_, err := rec.Record(ctx, history.Input{Action: history.ActionCreate, EntityType: "event", EntityID: "bulk"})
		require.NoError(t, err)
	}

	entries, err := rec.List(ctx, history.Filter{Limit: 100000})
	require.NoError(t, err)
	assert.Len(t, entries, history.MaxListLimit)

	entries, err = rec.List(ctx, history.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, history.DefaultListLimit)
}

func TestCleanupExpiredRetentionBoundary(t *testing.T) {
	rec, _, clk := newRecorder(t)
	ctx := context.Background()
	now := clk.Now()

	recordAt := func(at time.Time, id string) {
		t.Helper()
		clk.Set(at)
		_, err := rec.Record(ctx, history.Input{Action: history.ActionCreate, EntityType: "event", EntityID: id})
		require.NoError(t, err)
	}

	recordAt(now.Add(-history.RetentionWindow-time.Second), "expired")
	recordAt(now.Add(-history.RetentionWindow-400*24*time.Hour), "ancient")
	recordAt(now.Add(-history.RetentionWindow), "boundary")
	recordAt(now.Add(-history.RetentionWindow+time.Second), "recent")
	recordAt(now, "today")
	clk.Set(now)

	deleted, err := rec.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := rec.List(ctx, history.Filter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(remaining))
	for _, e := range remaining {
		ids = append(ids, e.EntityID)
	}
	assert.ElementsMatch(t, []string{"boundary", "recent", "today"}, ids)

	deleted, err = rec.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestCleanupExpiredEmptyStore(t *testing.T) {
	rec, _, _ := newRecorder(t)

	deleted, err := rec.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

type failingStore struct {
	history.Store
	err     error
	sawDone bool
}

func (f *failingStore) Insert(ctx context.Context, entry history.Entry) error {
	if ctx.Err() != nil {
		f.sawDone = true
	}
	return f.err
}

func TestTrackSwallowsStorageFailure(t *testing.T) {
	store := &failingStore{err: errors.Join(domain.ErrStorage, errors.New("connection refused"))}
	rec := history.NewRecorder(store, zerolog.Nop())

	before := testutil.ToFloat64(metrics.HistoryWriteFailures.WithLabelValues("track_failure_test"))

	require.NotPanics(t, func() {
		rec.Track(context.Background(), history.Input{
			Action:     history.ActionCreate,
			EntityType: "track_failure_test",
			EntityID:   "x",
		})
	})

	after := testutil.ToFloat64(metrics.HistoryWriteFailures.WithLabelValues("track_failure_test"))
	assert.Equal(t, before+1, after)
}

func TestRecordSurfacesStorageFailure(t *testing.T) {
	store := &failingStore{err: errors.Join(domain.ErrStorage, errors.New("disk full"))}
	rec := history.NewRecorder(store, zerolog.Nop())

	_, err := rec.Record(context.Background(), history.Input{Action: history.ActionCreate, EntityType: "event", EntityID: "e"})
	require.ErrorIs(t, err, domain.ErrStorage)
}

func TestTrackIgnoresCallerCancellation(t *testing.T) {
	rec, store, _ := newRecorder(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec.Track(ctx, history.Input{Action: history.ActionDelete, EntityType: "event", EntityID: "e1"})

	assert.Equal(t, 1, store.Len())
}

func TestTrackWithCancelledContextReachesStoreLive(t *testing.T) {
	store := &failingStore{}
	rec := history.NewRecorder(store, zerolog.Nop(), history.WithWriteTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Track(ctx, history.Input{Action: history.ActionCreate, EntityType: "event", EntityID: "e1"})

	assert.False(t, store.sawDone)
}
