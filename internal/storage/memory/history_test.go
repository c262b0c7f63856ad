package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/eventops/server/internal/domain/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryStoreReturnsCopies(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()
	actor := "user-1"

	entry := history.Entry{
		ID:         "01J00000000000000000000001",
		ActorID:    &actor,
		Action:     history.ActionCreate,
		EntityType: "event",
		EntityID:   "e1",
		NewValues:  json.RawMessage(`{"a":1}`),
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Insert(ctx, entry))

	entry.NewValues[2] = 'b'
	actor = "changed"

	got, err := store.List(ctx, history.Filter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `{"a":1}`, string(got[0].NewValues))
	assert.Equal(t, "user-1", *got[0].ActorID)

	got[0].NewValues[2] = 'c'
	again, err := store.List(ctx, history.Filter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(again[0].NewValues))
}

func TestHistoryStoreOffsetPastEnd(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, history.Entry{ID: "1", Action: history.ActionCreate, EntityType: "event", EntityID: "e"}))

	got, err := store.List(ctx, history.Filter{Limit: 10, Offset: 5})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHistoryStoreDeleteOlderThanIsExclusive(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, history.Entry{ID: "old", CreatedAt: cutoff.Add(-time.Microsecond)}))
	require.NoError(t, store.Insert(ctx, history.Entry{ID: "edge", CreatedAt: cutoff}))

	deleted, err := store.DeleteOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, 1, store.Len())
}

func TestHistoryStoreHonorsContext(t *testing.T) {
	store := NewHistoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Insert(ctx, history.Entry{ID: "x"}), context.Canceled)
	_, err := store.List(ctx, history.Filter{})
	require.ErrorIs(t, err, context.Canceled)
}
