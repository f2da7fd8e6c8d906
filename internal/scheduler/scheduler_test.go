package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddRejectsInvalidExpression(t *testing.T) {
	s := New(time.Second)
	err := s.Add("bad", "not a cron expr", func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestTriggerRunsImmediately(t *testing.T) {
	s := New(time.Hour)
	var calls int32
	if err := s.Add("nightly", "0 0 * * *", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.Trigger(context.Background(), "nightly"); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestTriggerUnknownJob(t *testing.T) {
	s := New(time.Hour)
	if err := s.Trigger(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestListReportsNextRunForEnabledJob(t *testing.T) {
	s := New(time.Hour)
	if err := s.Add("nightly", "0 0 * * *", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}

	infos := s.List()
	if len(infos) != 1 {
		t.Fatalf("expected 1 job, got %d", len(infos))
	}
	if infos[0].NextRun == nil {
		t.Error("expected a non-nil nextRun for an enabled job")
	}
}

func TestDisabledJobHasNilNextRun(t *testing.T) {
	s := New(time.Hour)
	if err := s.Add("nightly", "0 0 * * *", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	s.Disable("nightly")

	infos := s.List()
	if infos[0].NextRun != nil {
		t.Error("expected nil nextRun for a disabled job")
	}
}
