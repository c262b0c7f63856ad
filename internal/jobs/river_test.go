package jobs

import (
	"testing"
	"time"

	"github.com/eventops/server/internal/config"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

func TestNewRetryPolicy(t *testing.T) {
	policy := NewRetryPolicy(0)

	if policy.Default.MaxAttempts != defaultMaxAttempts {
		t.Errorf("Default.MaxAttempts = %d, want %d", policy.Default.MaxAttempts, defaultMaxAttempts)
	}
	if policy.Default.BaseDelay != 30*time.Second {
		t.Errorf("Default.BaseDelay = %v, want 30s", policy.Default.BaseDelay)
	}

	retention, ok := policy.ByKind[JobKindHistoryRetention]
	if !ok {
		t.Fatalf("no retry config for %q", JobKindHistoryRetention)
	}
	if retention.MaxAttempts != HistoryRetentionMaxAttempts {
		t.Errorf("retention MaxAttempts = %d, want %d", retention.MaxAttempts, HistoryRetentionMaxAttempts)
	}
}

func TestNewRetryPolicyOverridesDefaultAttempts(t *testing.T) {
	policy := NewRetryPolicy(9)
	if policy.Default.MaxAttempts != 9 {
		t.Errorf("Default.MaxAttempts = %d, want 9", policy.Default.MaxAttempts)
	}
}

func TestRetryPolicy_NextRetry(t *testing.T) {
	policy := NewRetryPolicy(0)
	attemptedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		kind    string
		attempt int
		want    time.Duration
	}{
		{name: "retention first attempt", kind: JobKindHistoryRetention, attempt: 1, want: time.Minute},
		{name: "retention third attempt", kind: JobKindHistoryRetention, attempt: 3, want: 4 * time.Minute},
		{name: "retention capped", kind: JobKindHistoryRetention, attempt: 12, want: time.Hour},
		{name: "unknown kind uses default", kind: "other", attempt: 2, want: time.Minute},
		{name: "zero attempt treated as first", kind: "other", attempt: 0, want: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &rivertype.JobRow{Kind: tt.kind, Attempt: tt.attempt, AttemptedAt: &attemptedAt}
			got := policy.NextRetry(job)
			if want := attemptedAt.Add(tt.want); !got.Equal(want) {
				t.Errorf("NextRetry() = %v, want %v", got, want)
			}
		})
	}
}

func TestRetryPolicy_NilUsesFallback(t *testing.T) {
	var policy *RetryPolicy
	cfg := policy.configFor(JobKindHistoryRetention)
	if cfg.MaxAttempts != defaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.MaxAttempts, defaultMaxAttempts)
	}
}

func TestInsertOptsForKind(t *testing.T) {
	opts := InsertOptsForKind(JobKindHistoryRetention)
	if opts.MaxAttempts != HistoryRetentionMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", opts.MaxAttempts, HistoryRetentionMaxAttempts)
	}
}

func TestNewClientConfig(t *testing.T) {
	workers := river.NewWorkers()
	cfg := NewClientConfig(config.JobsConfig{Workers: 4, MaxAttempts: 3}, workers, nil, nil, nil)

	if cfg.Workers != workers {
		t.Error("Workers not set")
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if got := cfg.Queues[river.QueueDefault].MaxWorkers; got != 4 {
		t.Errorf("default queue MaxWorkers = %d, want 4", got)
	}
	if cfg.ErrorHandler != nil {
		t.Error("ErrorHandler set without a logger")
	}

	cfg = NewClientConfig(config.JobsConfig{}, workers, nil, nil, nil)
	if got := cfg.Queues[river.QueueDefault].MaxWorkers; got != defaultWorkers {
		t.Errorf("default queue MaxWorkers = %d, want %d", got, defaultWorkers)
	}
}

func TestNewPeriodicJobs(t *testing.T) {
	jobs := NewPeriodicJobs(config.JobsConfig{})
	if len(jobs) != 1 {
		t.Fatalf("len(NewPeriodicJobs()) = %d, want 1", len(jobs))
	}
}
