package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// AlertFunc is invoked when a job fails or panics.
type AlertFunc func(ctx context.Context, job *rivertype.JobRow, err error)

// AlertingErrorHandler logs job failures and forwards them to Notify. A job
// on its last attempt is logged as discarded.
type AlertingErrorHandler struct {
	Logger *slog.Logger
	Notify AlertFunc
}

func NewAlertingErrorHandler(logger *slog.Logger, notify AlertFunc) *AlertingErrorHandler {
	return &AlertingErrorHandler{Logger: logger, Notify: notify}
}

func (h *AlertingErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	h.report(ctx, job, err, "job failed")
	return nil
}

func (h *AlertingErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	panicErr := fmt.Errorf("panic: %v", panicVal)
	if h.Logger != nil {
		h.Logger.ErrorContext(ctx, "job panicked", "job_id", job.ID, "kind", job.Kind, "trace", trace)
	}
	h.report(ctx, job, panicErr, "job failed after panic")
	return nil
}

func (h *AlertingErrorHandler) report(ctx context.Context, job *rivertype.JobRow, err error, msg string) {
	if h.Logger != nil {
		level := slog.LevelWarn
		if job.Attempt >= job.MaxAttempts {
			level = slog.LevelError
			msg += "; no attempts left"
		}
		h.Logger.Log(ctx, level, msg,
			"job_id", job.ID,
			"kind", job.Kind,
			"attempt", job.Attempt,
			"max_attempts", job.MaxAttempts,
			"error", err,
		)
	}
	if h.Notify != nil {
		h.Notify(ctx, job, err)
	}
}
