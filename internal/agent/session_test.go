package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/opslane/agentd/internal/durable"
)

type scriptedAdapter struct {
	name  string
	steps []StepResult
	idx   int
}

func (a *scriptedAdapter) Name() string { return a.name }

func (a *scriptedAdapter) Step(ctx context.Context, req StepRequest) (StepResult, error) {
	if a.idx >= len(a.steps) {
		return StepResult{Done: true}, nil
	}
	r := a.steps[a.idx]
	a.idx++
	return r, nil
}

func drain(t *testing.T, s *Session, timeout time.Duration) []OutputEvent {
	t.Helper()
	var got []OutputEvent
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for {
		ev, ok := s.Events().Next(ctx)
		if !ok {
			return got
		}
		got = append(got, ev)
		if _, isDone := ev.(Done); isDone {
			return got
		}
	}
}

func TestSessionRunCompletesAndCountsTurns(t *testing.T) {
	adapter := &scriptedAdapter{name: "test-adapter", steps: []StepResult{
		{Output: "hello", Final: true, Done: true},
	}}
	s := Create(Config{Adapter: adapter, InitialInput: "hi"})

	go s.Run(context.Background())

	events := drain(t, s, 2*time.Second)
	var finals int
	for _, ev := range events {
		if out, ok := ev.(Output); ok && out.Final {
			finals++
		}
	}
	if finals != 1 {
		t.Fatalf("expected 1 final output event, got %d", finals)
	}
	if s.metrics.Turns != 1 {
		t.Errorf("turns = %d, want 1", s.metrics.Turns)
	}
	if s.State() != StateCompleted {
		t.Errorf("state = %v, want completed", s.State())
	}
}

func TestSessionAbortShortCircuits(t *testing.T) {
	adapter := &scriptedAdapter{name: "test-adapter"}
	s := Create(Config{Adapter: adapter})
	s.Abort()

	go s.Run(context.Background())

	events := drain(t, s, 2*time.Second)
	if len(events) == 0 {
		t.Fatal("expected at least a done event")
	}
	last := events[len(events)-1].(Done)
	if last.Status != StateAborted {
		t.Errorf("status = %v, want aborted", last.Status)
	}
}

func TestSessionPauseResume(t *testing.T) {
	adapter := &scriptedAdapter{name: "test-adapter", steps: []StepResult{
		{Output: "a", Done: false},
		{Output: "b", Final: true, Done: true},
	}}
	s := Create(Config{Adapter: adapter, InitialInput: "first"})
	s.Pause()

	go s.Run(context.Background())

	time.Sleep(50 * time.Millisecond)
	if s.State() != StatePaused {
		t.Fatalf("state = %v, want paused", s.State())
	}

	s.Send("second")
	s.Resume()

	events := drain(t, s, 2*time.Second)
	var outputs int
	for _, ev := range events {
		if _, ok := ev.(Output); ok {
			outputs++
		}
	}
	if outputs != 2 {
		t.Errorf("outputs = %d, want 2", outputs)
	}
}

type echoTool struct{}

func (echoTool) Name() string { return "echo" }
func (echoTool) Execute(dctx *durable.Context, args json.RawMessage) (interface{}, error) {
	return string(args), nil
}

type approvalTool struct{}

func (approvalTool) Name() string { return "needs_approval" }
func (approvalTool) Execute(dctx *durable.Context, args json.RawMessage) (interface{}, error) {
	approval, err := dctx.WaitForApproval(durable.ApprovalRequest{Summary: "proceed?"})
	if err != nil {
		return nil, err
	}
	return approval, nil
}

func TestRunToolSuccessEmitsToolEnd(t *testing.T) {
	adapter := &scriptedAdapter{name: "test-adapter", steps: []StepResult{
		{ToolCalls: []ToolCall{{Id: "call-1", Name: "echo", Args: json.RawMessage(`"hi"`)}}, Output: "done", Final: true, Done: true},
	}}
	s := Create(Config{Adapter: adapter, Tools: []Tool{echoTool{}}, InitialInput: "go"})

	go s.Run(context.Background())
	events := drain(t, s, 2*time.Second)

	var sawEnd bool
	for _, ev := range events {
		if te, ok := ev.(ToolEnd); ok && te.ToolCallId == "call-1" {
			sawEnd = true
			if te.Err != "" {
				t.Errorf("unexpected tool error: %s", te.Err)
			}
		}
	}
	if !sawEnd {
		t.Error("expected a ToolEnd event for call-1")
	}
}

func TestToolSuspendThenResume(t *testing.T) {
	adapter := &scriptedAdapter{name: "test-adapter", steps: []StepResult{
		{ToolCalls: []ToolCall{{Id: "call-1", Name: "needs_approval"}}, Output: "waiting", Done: false},
		{Output: "done", Final: true, Done: true},
	}}
	s := Create(Config{Adapter: adapter, Tools: []Tool{approvalTool{}}, InitialInput: "go"})

	go s.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var sawProgress bool
	var stepId string
	for {
		ev, ok := s.Events().Next(ctx)
		if !ok {
			break
		}
		if tp, ok := ev.(ToolProgress); ok && tp.ToolCallId == "call-1" {
			sawProgress = true
			stepId = tp.StepId
			break
		}
	}
	if !sawProgress {
		t.Fatal("expected a ToolProgress event")
	}

	if err := s.ResumeTool("call-1", stepId, map[string]bool{"approved": true}); err != nil {
		t.Fatalf("ResumeTool: %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	var sawEnd bool
	for {
		ev, ok := s.Events().Next(ctx2)
		if !ok {
			break
		}
		if te, ok := ev.(ToolEnd); ok && te.ToolCallId == "call-1" {
			sawEnd = true
			break
		}
	}
	if !sawEnd {
		t.Fatal("expected a ToolEnd event after resume")
	}
}

func TestCheckpointRestoreRoundTrip(t *testing.T) {
	adapter := &scriptedAdapter{name: "test-adapter"}
	s := Create(Config{Adapter: adapter, Task: "demo", InitialInput: "hello"})
	s.messages = append(s.messages, Message{Role: "assistant", Content: "hi there"})
	s.metrics.Turns = 3

	cp := s.Checkpoint()
	if cp.Task != "demo" {
		t.Errorf("task = %q", cp.Task)
	}

	restored, err := Restore(cp, Config{Adapter: adapter})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Id() != s.Id() {
		t.Errorf("restored id = %q, want %q", restored.Id(), s.Id())
	}
	if restored.metrics.Turns != 3 {
		t.Errorf("restored turns = %d, want 3", restored.metrics.Turns)
	}
	if len(restored.inputQ) != 1 || restored.inputQ[0] != "hello" {
		t.Errorf("restored pending input = %v", restored.inputQ)
	}
}

func TestRestoreRejectsAdapterMismatch(t *testing.T) {
	cp := &Checkpoint{SessionId: "s1", AdapterName: "adapter-a"}
	_, err := Restore(cp, Config{Adapter: &scriptedAdapter{name: "adapter-b"}})
	if err == nil {
		t.Fatal("expected adapter mismatch error")
	}
}
