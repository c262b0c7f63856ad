package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/ids"
	"github.com/eventops/server/internal/metrics"
	"github.com/rs/zerolog"
)

// Recorder is the change history service.
type Recorder struct {
	store        Store
	logger       zerolog.Logger
	now          func() time.Time
	writeTimeout time.Duration
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithWriteTimeout bounds best-effort writes made through Track.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// NewRecorder creates a Recorder on top of store.
func NewRecorder(store Store, logger zerolog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:        store,
		logger:       logger.With().Str("component", "history").Logger(),
		now:          time.Now,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists a new entry for in and returns it.
//
// The before/after values are deep-copied into JSON snapshots so later
// in-place changes to the caller's objects do not leak into the trail. A
// value that cannot be serialized is stored as null and logged; it does not
// fail the record.
//
// Returns a *domain.ValidationError for a bad action, entity type or entity
// id, and an error wrapping domain.ErrStorage if the insert fails.
func (r *Recorder) Record(ctx context.Context, in Input) (*Entry, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	createdAt := r.now().UTC().Truncate(time.Microsecond)
	id, err := ids.NewULID(createdAt)
	if err != nil {
		return nil, fmt.Errorf("generate history id: %w", err)
	}

	entry := Entry{
		ID:         id,
		ActorID:    copyActor(in.ActorID),
		Action:     in.Action,
		EntityType: strings.TrimSpace(in.EntityType),
		EntityID:   strings.TrimSpace(in.EntityID),
		OldValues:  r.snapshot(ctx, in, "old_values", in.OldValues),
		NewValues:  r.snapshot(ctx, in, "new_values", in.NewValues),
		CreatedAt:  createdAt,
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("record %s %s/%s: %w", entry.Action, entry.EntityType, entry.EntityID, err)
	}

	metrics.HistoryEntriesRecorded.WithLabelValues(entry.EntityType, string(entry.Action)).Inc()
	return &entry, nil
}

// Track records in on a best-effort basis. It is called after the primary
// mutation has already succeeded, so it never fails the caller: the write is
// detached from the caller's cancellation, bounded by the write timeout, and
// failures are logged and counted in eventops_history_write_failures_total.
func (r *Recorder) Track(ctx context.Context, in Input) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()

	if _, err := r.Record(writeCtx, in); err != nil {
		metrics.HistoryWriteFailures.WithLabelValues(metricLabel(in.EntityType)).Inc()
		logger := r.loggerFor(ctx)
		logger.Error().
			Err(err).
			Str("entity_type", in.EntityType).
			Str("entity_id", in.EntityID).
			Str("action", string(in.Action)).
			Msg("change history write failed")
	}
}

// List returns entries matching filter, newest first.
//
// Limit defaults to DefaultListLimit and is capped at MaxListLimit. A
// negative limit or offset, or an unknown action, is a validation error.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]Entry, error) {
	normalized, err := NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	entries, err := r.store.List(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// CleanupExpired deletes entries created more than RetentionWindow ago and
// returns how many were removed. Calling it again right away returns 0.
func (r *Recorder) CleanupExpired(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().Add(-RetentionWindow)

	deleted, err := r.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired history: %w", err)
	}

	metrics.HistoryEntriesPruned.Add(float64(deleted))
	r.logger.Info().
		Int64("deleted_count", deleted).
		Time("cutoff", cutoff).
		Msg("expired change history removed")
	return deleted, nil
}

// NormalizeFilter applies defaults and bounds to filter.
func NormalizeFilter(filter Filter) (Filter, error) {
	filter.EntityType = strings.TrimSpace(filter.EntityType)
	filter.EntityID = strings.TrimSpace(filter.EntityID)
	filter.ActorID = strings.TrimSpace(filter.ActorID)

	if filter.Action != "" && !filter.Action.Valid() {
		return Filter{}, domain.NewValidationError("action", "must be one of: create update delete")
	}
	if filter.Limit < 0 {
		return Filter{}, domain.NewValidationError("limit", "must not be negative")
	}
	if filter.Offset < 0 {
		return Filter{}, domain.NewValidationError("offset", "must not be negative")
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	return filter, nil
}

func validateInput(in Input) error {
	fields := map[string]string{}
	if !in.Action.Valid() {
		fields["action"] = "must be one of: create update delete"
	}
	if strings.TrimSpace(in.EntityType) == "" {
		fields["entityType"] = "is required"
	}
	if strings.TrimSpace(in.EntityID) == "" {
		fields["entityId"] = "is required"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Message: "invalid history entry", Fields: fields}
	}
	return nil
}

// snapshot deep-copies value by serializing it. nil (or a value that
// serializes to null) yields a nil snapshot.
func (r *Recorder) snapshot(ctx context.Context, in Input, field string, value any) json.RawMessage {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		logger := r.loggerFor(ctx)
		logger.Warn().
			Err(err).
			Str("entity_type", in.EntityType).
			Str("entity_id", in.EntityID).
			Str("field", field).
			Msg("history snapshot not serializable, storing null")
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	return json.RawMessage(data)
}

func (r *Recorder) loggerFor(ctx context.Context) *zerolog.Logger {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		return &r.logger
	}
	return logger
}

func copyActor(actor *string) *string {
	if actor == nil {
		return nil
	}
	value := strings.TrimSpace(*actor)
	if value == "" {
		return nil
	}
	return &value
}

func metricLabel(entityType string) string {
	entityType = strings.TrimSpace(entityType)
	if entityType == "" {
		return "unknown"
	}
	return entityType
}
