package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventops/server/internal/metrics"
	"github.com/riverqueue/river"
)

const historyRetentionTimeout = 10 * time.Minute

// HistoryCleaner removes change history past the retention window.
type HistoryCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// HistoryRetentionArgs defines the job that prunes expired change history.
type HistoryRetentionArgs struct{}

func (HistoryRetentionArgs) Kind() string { return JobKindHistoryRetention }

// InsertOpts keeps at most one sweep per hour in the queue.
func (HistoryRetentionArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: HistoryRetentionMaxAttempts,
		UniqueOpts:  river.UniqueOpts{ByPeriod: time.Hour},
	}
}

// HistoryRetentionWorker deletes change history entries older than the
// retention window. Running it twice in a row is harmless; the second run
// deletes nothing.
type HistoryRetentionWorker struct {
	river.WorkerDefaults[HistoryRetentionArgs]
	Cleaner HistoryCleaner
	Logger  *slog.Logger
}

func (HistoryRetentionWorker) Timeout(*river.Job[HistoryRetentionArgs]) time.Duration {
	return historyRetentionTimeout
}

func (w HistoryRetentionWorker) Work(ctx context.Context, job *river.Job[HistoryRetentionArgs]) error {
	if w.Cleaner == nil {
		return fmt.Errorf("history cleaner not configured")
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	deleted, err := w.Cleaner.CleanupExpired(ctx)
	metrics.HistoryCleanupDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HistoryCleanupErrors.Inc()
		logger.ErrorContext(ctx, "history retention sweep failed",
			"job_id", job.ID,
			"attempt", job.Attempt,
			"error", err,
		)
		return fmt.Errorf("history retention: %w", err)
	}

	logger.InfoContext(ctx, "history retention sweep completed",
		"job_id", job.ID,
		"deleted", deleted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// NewWorkers registers every worker the server runs.
func NewWorkers(cleaner HistoryCleaner, logger *slog.Logger) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[HistoryRetentionArgs](workers, HistoryRetentionWorker{Cleaner: cleaner, Logger: logger})
	return workers
}
