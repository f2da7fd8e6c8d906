package durable

import (
	"testing"

	"github.com/opslane/agentd/internal/rpcerr"
)

func TestRunMemoizesAcrossCalls(t *testing.T) {
	ctx := NewContext(nil, "", nil)
	calls := 0
	fn := func() (interface{}, error) {
		calls++
		return "result", nil
	}

	v1, err := ctx.Run("a", fn)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != "result" {
		t.Errorf("v1 = %v", v1)
	}

	// Simulate a fresh execution resuming from the snapshot: a new Context
	// with "a" already completed must not re-invoke fn.
	resumed := NewContext(ctx.Snapshot(), "", nil)
	v2, err := resumed.Run("a", fn)
	if err != nil {
		t.Fatal(err)
	}
	if v2 != "result" {
		t.Errorf("v2 = %v", v2)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRunTwiceSameStepIdIsDuplicateStep(t *testing.T) {
	ctx := NewContext(nil, "", nil)
	fn := func() (interface{}, error) { return nil, nil }

	if _, err := ctx.Run("x", fn); err != nil {
		t.Fatal(err)
	}
	_, err := ctx.Run("x", fn)
	classified, ok := rpcerr.As(err)
	if !ok || classified.Code != rpcerr.DuplicateStep {
		t.Errorf("expected DUPLICATE_STEP, got %v", err)
	}
}

func TestWaitForApprovalSuspendsThenResumes(t *testing.T) {
	ctx := NewContext(nil, "", nil)
	_, err := ctx.WaitForApproval(ApprovalRequest{Summary: "deploy?"})
	susp, ok := AsSuspension(err)
	if !ok {
		t.Fatalf("expected suspension, got %v", err)
	}
	if susp.StepId != "__suspension:approval:0" {
		t.Errorf("stepId = %q", susp.StepId)
	}
}

// TestDurableResumeScenario implements the run(a)/waitForApproval/run(b)
// sequence: first execution completes step "a" then suspends at the
// approval; on resume, "a" is not re-run, the approval call returns the
// supplied result, and "b" runs exactly once.
func TestDurableResumeScenario(t *testing.T) {
	callsA, callsB := 0, 0
	fa := func() (interface{}, error) { callsA++; return "a-result", nil }
	fb := func() (interface{}, error) { callsB++; return "b-result", nil }

	run := func(ctx *Context) (string, error) {
		if _, err := ctx.Run("a", fa); err != nil {
			return "", err
		}
		approval, err := ctx.WaitForApproval(ApprovalRequest{Summary: "go?"})
		if err != nil {
			return "", err
		}
		if _, err := ctx.Run("b", fb); err != nil {
			return "", err
		}
		approved, _ := approval.(map[string]bool)
		if approved["approved"] {
			return "done", nil
		}
		return "rejected", nil
	}

	first := NewContext(nil, "", nil)
	_, err := run(first)
	susp, ok := AsSuspension(err)
	if !ok {
		t.Fatalf("expected suspension on first run, got %v", err)
	}
	if susp.StepId != "__suspension:approval:0" {
		t.Fatalf("stepId = %q", susp.StepId)
	}

	resumed := NewContext(first.Snapshot(), susp.StepId, map[string]bool{"approved": true})
	result, err := run(resumed)
	if err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}
	if result != "done" {
		t.Errorf("result = %q", result)
	}
	if callsA != 1 {
		t.Errorf("fa called %d times, want 1", callsA)
	}
	if callsB != 1 {
		t.Errorf("fb called %d times, want 1", callsB)
	}
}
