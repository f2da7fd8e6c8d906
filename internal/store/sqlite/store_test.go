package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/opslane/agentd/internal/agent"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadLatestCheckpoint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cp := &agent.Checkpoint{
		SessionId:   "sess-1",
		AdapterName: "test-adapter",
		Task:        "demo",
		Messages:    []agent.Message{{Role: "user", Content: "hi"}},
		Metrics:     agent.Metrics{Turns: 2},
		State:       agent.StatePaused,
	}
	if err := s.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LatestCheckpoint(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("expected a checkpoint, got nil")
	}
	if got.AdapterName != "test-adapter" || got.Task != "demo" {
		t.Errorf("got = %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hi" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestLatestCheckpointReturnsMostRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, turns := range []int{1, 2, 3} {
		cp := &agent.Checkpoint{SessionId: "sess-1", AdapterName: "a", Metrics: agent.Metrics{Turns: turns}}
		if err := s.SaveCheckpoint(ctx, cp); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.LatestCheckpoint(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Metrics.Turns != 3 {
		t.Errorf("turns = %d, want 3 (most recent)", got.Metrics.Turns)
	}
}

func TestLatestCheckpointUnknownSessionReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.LatestCheckpoint(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown session, got %+v", got)
	}
}

func TestListCheckpointsReturnsAllOldestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, turns := range []int{1, 2} {
		cp := &agent.Checkpoint{SessionId: "sess-2", AdapterName: "a", Metrics: agent.Metrics{Turns: turns}}
		if err := s.SaveCheckpoint(ctx, cp); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListCheckpoints(ctx, "sess-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(list))
	}
	if list[0].Metrics.Turns != 1 || list[1].Metrics.Turns != 2 {
		t.Errorf("order = %+v", list)
	}
}

func TestSchedulerRunRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.RecordSchedulerRun(ctx, "nightly", time.Now(), "ok"); err != nil {
		t.Fatal(err)
	}
	runs, err := s.LoadSchedulerRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].JobName != "nightly" || runs[0].LastResult != "ok" {
		t.Errorf("runs = %+v", runs)
	}
}
