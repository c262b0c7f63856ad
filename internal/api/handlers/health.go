package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eventops/server/internal/domain/history"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
)

// Check statuses. A failing check makes the instance unready; a warning
// only degrades it.
const (
	checkPass = "pass"
	checkWarn = "warn"
	checkFail = "fail"
)

const (
	checkTimeout = 2 * time.Second
	readyTimeout = 5 * time.Second

	// retentionGrace is how long expired history may linger before the
	// sweep is reported as behind. The sweep runs daily.
	retentionGrace = 48 * time.Hour
)

// HealthCheck is the /readyz body.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult is the outcome of one readiness probe.
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type namedCheck struct {
	name string
	run  func(ctx context.Context) CheckResult
}

// HealthChecker reports readiness of storage, schema, job queue and history
// retention. A nil pool means the server runs on in-memory stores and only
// the storage check is reported.
type HealthChecker struct {
	pool        *pgxpool.Pool
	riverClient *river.Client[pgx.Tx]
	version     string
	gitCommit   string
	now         func() time.Time
}

func NewHealthChecker(pool *pgxpool.Pool, riverClient *river.Client[pgx.Tx], version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		pool:        pool,
		riverClient: riverClient,
		version:     version,
		gitCommit:   gitCommit,
		now:         time.Now,
	}
}

func (h *HealthChecker) checks() []namedCheck {
	if h.pool == nil {
		return []namedCheck{{name: "storage", run: func(context.Context) CheckResult {
			return CheckResult{Status: checkPass, Message: "in-memory storage"}
		}}}
	}
	return []namedCheck{
		{name: "database", run: h.checkDatabase},
		{name: "migrations", run: h.checkMigrations},
		{name: "job_queue", run: h.checkJobQueue},
		{name: "history_retention", run: h.checkRetention},
	}
}

// Readyz runs every check and answers 503 if any fails.
func (h *HealthChecker) Readyz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Err() != nil {
			respondHealth(w, http.StatusServiceUnavailable, "shutting_down")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		report := HealthCheck{
			Status:    "healthy",
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    map[string]CheckResult{},
			Timestamp: h.now().UTC().Format(time.RFC3339),
		}
		code := http.StatusOK
		for _, c := range h.checks() {
			result := timed(ctx, c.run)
			report.Checks[c.name] = result
			switch {
			case result.Status == checkFail:
				report.Status = "unhealthy"
				code = http.StatusServiceUnavailable
			case result.Status == checkWarn && report.Status == "healthy":
				report.Status = "degraded"
			}
		}

		writeJSON(w, code, report)
	}
}

// timed runs check under checkTimeout and fills in its latency.
func timed(ctx context.Context, check func(context.Context) CheckResult) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	result := check(checkCtx)
	result.LatencyMs = time.Since(start).Milliseconds()
	return result
}

func failed(message string, err error) CheckResult {
	return CheckResult{Status: checkFail, Message: message, Details: map[string]any{"error": err.Error()}}
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if err := h.pool.Ping(ctx); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return failed("database ping timed out", err)
		case strings.Contains(err.Error(), "connection refused"):
			return failed("database connection refused", err)
		case strings.Contains(err.Error(), "authentication failed"):
			return failed("database authentication failed", err)
		}
		return failed("database ping failed", err)
	}

	stats := h.pool.Stat()
	return CheckResult{
		Status:  checkPass,
		Message: "postgres reachable",
		Details: map[string]any{
			"max_connections":      stats.MaxConns(),
			"total_connections":    stats.TotalConns(),
			"idle_connections":     stats.IdleConns(),
			"acquired_connections": stats.AcquiredConns(),
		},
	}
}

// checkMigrations reads the schema_migrations bookkeeping row.
func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	var version int64
	var dirty bool
	err := h.pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || strings.Contains(err.Error(), "does not exist") {
			return failed("schema not migrated; run: server migrate up", err)
		}
		return failed("schema version unreadable", err)
	}

	details := map[string]any{"version": version, "dirty": dirty}
	if dirty {
		return CheckResult{Status: checkFail, Message: "schema left dirty by a failed migration", Details: details}
	}
	return CheckResult{Status: checkPass, Message: fmt.Sprintf("schema at version %d", version), Details: details}
}

func (h *HealthChecker) checkJobQueue(ctx context.Context) CheckResult {
	if h.riverClient == nil {
		return CheckResult{Status: checkWarn, Message: "job queue disabled"}
	}

	var pending int64
	err := h.pool.QueryRow(ctx,
		`SELECT count(*) FROM river_job WHERE state = ANY($1)`,
		[]string{"available", "running", "retryable"},
	).Scan(&pending)
	if err != nil {
		return failed("job queue unreadable", err)
	}
	return CheckResult{Status: checkPass, Message: "job queue running", Details: map[string]any{"pending_jobs": pending}}
}

// checkRetention warns when change history older than the retention window
// plus retentionGrace is still present, which means the sweep is not running.
// History is not on the request path, so this never fails readiness.
func (h *HealthChecker) checkRetention(ctx context.Context) CheckResult {
	cutoff := h.now().UTC().Add(-history.RetentionWindow - retentionGrace)

	var overdue int64
	err := h.pool.QueryRow(ctx, `SELECT count(*) FROM change_history WHERE created_at < $1`, cutoff).Scan(&overdue)
	if err != nil {
		return CheckResult{Status: checkWarn, Message: "change history unreadable", Details: map[string]any{"error": err.Error()}}
	}
	if overdue > 0 {
		return CheckResult{
			Status:  checkWarn,
			Message: "retention sweep behind",
			Details: map[string]any{"overdue_entries": overdue},
		}
	}
	return CheckResult{Status: checkPass, Message: "retention sweep current"}
}

// Healthz is the liveness probe.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
