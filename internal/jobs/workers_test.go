package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

type fakeCleaner struct {
	deleted int64
	err     error
	calls   int
}

func (f *fakeCleaner) CleanupExpired(context.Context) (int64, error) {
	f.calls++
	return f.deleted, f.err
}

func retentionJob() *river.Job[HistoryRetentionArgs] {
	return &river.Job[HistoryRetentionArgs]{
		JobRow: &rivertype.JobRow{ID: 7, Kind: JobKindHistoryRetention, Attempt: 1, MaxAttempts: HistoryRetentionMaxAttempts},
	}
}

func TestHistoryRetentionArgs(t *testing.T) {
	args := HistoryRetentionArgs{}
	if args.Kind() != JobKindHistoryRetention {
		t.Errorf("Kind() = %q, want %q", args.Kind(), JobKindHistoryRetention)
	}
	opts := args.InsertOpts()
	if opts.MaxAttempts != HistoryRetentionMaxAttempts {
		t.Errorf("InsertOpts().MaxAttempts = %d, want %d", opts.MaxAttempts, HistoryRetentionMaxAttempts)
	}
	if opts.UniqueOpts.ByPeriod == 0 {
		t.Error("InsertOpts() should deduplicate by period")
	}
}

func TestHistoryRetentionWorker_Work(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	cleaner := &fakeCleaner{deleted: 12}

	worker := HistoryRetentionWorker{Cleaner: cleaner, Logger: logger}
	if err := worker.Work(context.Background(), retentionJob()); err != nil {
		t.Fatalf("Work() error = %v", err)
	}
	if cleaner.calls != 1 {
		t.Errorf("CleanupExpired calls = %d, want 1", cleaner.calls)
	}
	if !strings.Contains(buf.String(), "deleted=12") {
		t.Errorf("log output missing deleted count: %s", buf.String())
	}
}

func TestHistoryRetentionWorker_CleanerError(t *testing.T) {
	cause := errors.New("connection reset")
	worker := HistoryRetentionWorker{Cleaner: &fakeCleaner{err: cause}, Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}

	err := worker.Work(context.Background(), retentionJob())
	if !errors.Is(err, cause) {
		t.Fatalf("Work() error = %v, want wrapped %v", err, cause)
	}
}

func TestHistoryRetentionWorker_NoCleaner(t *testing.T) {
	if err := (HistoryRetentionWorker{}).Work(context.Background(), retentionJob()); err == nil {
		t.Fatal("Work() without a cleaner should fail")
	}
}

func TestHistoryRetentionWorker_Timeout(t *testing.T) {
	if got := (HistoryRetentionWorker{}).Timeout(retentionJob()); got != historyRetentionTimeout {
		t.Errorf("Timeout() = %v, want %v", got, historyRetentionTimeout)
	}
}

func TestNewWorkers(t *testing.T) {
	if NewWorkers(&fakeCleaner{}, nil) == nil {
		t.Fatal("NewWorkers() returned nil")
	}
}

func TestAlertingErrorHandler(t *testing.T) {
	var buf bytes.Buffer
	var notified []error
	handler := NewAlertingErrorHandler(slog.New(slog.NewTextHandler(&buf, nil)), func(_ context.Context, _ *rivertype.JobRow, err error) {
		notified = append(notified, err)
	})

	row := &rivertype.JobRow{ID: 3, Kind: JobKindHistoryRetention, Attempt: 1, MaxAttempts: 2}
	if res := handler.HandleError(context.Background(), row, errors.New("boom")); res != nil {
		t.Errorf("HandleError() = %v, want nil", res)
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("retryable failure should log at warn: %s", buf.String())
	}

	buf.Reset()
	row.Attempt = 2
	handler.HandlePanic(context.Background(), row, "nil map", "trace")
	if !strings.Contains(buf.String(), "no attempts left") {
		t.Errorf("final failure should be reported: %s", buf.String())
	}
	if len(notified) != 2 {
		t.Errorf("notify calls = %d, want 2", len(notified))
	}
}
