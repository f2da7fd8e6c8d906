// Package durable implements the memoised, resumable step context that
// tool implementations run inside. Suspension (waitForUserInput,
// waitForApproval, waitForEvent, sleep) is encoded as a distinguished error
// value that unwinds the tool's call stack; the session's tool runner
// catches exactly that value and treats anything else as a tool failure.
package durable

import (
	"encoding/json"
	"fmt"

	"github.com/opslane/agentd/internal/rpcerr"
)

// SuspensionKind names which wait* primitive produced a Suspension.
type SuspensionKind string

const (
	KindUserInput SuspensionKind = "user_input"
	KindApproval  SuspensionKind = "approval"
	KindEvent     SuspensionKind = "event"
	KindSleep     SuspensionKind = "sleep"
)

// Suspension is the sentinel value that unwinds a tool call stack. It must
// never escape the public API boundary: the session's tool runner is the
// only code permitted to observe it.
type Suspension struct {
	StepId  string
	Kind    SuspensionKind
	Request interface{}
}

func (s *Suspension) Error() string {
	return fmt.Sprintf("durable: suspended at step %q (%s)", s.StepId, s.Kind)
}

// AsSuspension reports whether err is a *Suspension.
func AsSuspension(err error) (*Suspension, bool) {
	s, ok := err.(*Suspension)
	return s, ok
}

// completedStep is one entry in the memoisation record.
type completedStep struct {
	StepId string
	Result interface{}
}

// Context is the per-execution durable step context. A fresh Context is
// built for every tool invocation, whether it is a first run or a resume;
// completedSteps carries over forward progress, resumeStepId/resumeData
// carry the value a suspended step is now allowed to return.
type Context struct {
	completed     map[string]interface{}
	order         []string
	resumeStepId  string
	resumeData    interface{}
	ordinals      map[SuspensionKind]int

	ran map[string]bool
}

// NewContext builds a fresh Context. completedSteps is the memoised record
// carried over from a prior (possibly suspended) execution; pass nil for a
// first run. resumeStepId/resumeData supply the value the step that
// previously suspended should now return; pass "" / nil when this is not a
// resume.
func NewContext(completedSteps map[string]interface{}, resumeStepId string, resumeData interface{}) *Context {
	c := &Context{
		completed:    make(map[string]interface{}, len(completedSteps)),
		resumeStepId: resumeStepId,
		resumeData:   resumeData,
		ordinals:     make(map[SuspensionKind]int),
		ran:          make(map[string]bool),
	}
	for k, v := range completedSteps {
		c.completed[k] = v
	}
	return c
}

// Snapshot returns the completed-step record for checkpointing.
func (c *Context) Snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(c.completed))
	for k, v := range c.completed {
		out[k] = v
	}
	return out
}

// Run executes fn memoised under stepId. If stepId already has a completed
// record, fn is not invoked and the recorded value is returned. If stepId
// equals the resume step id, the supplied resume result is returned and
// recorded instead of invoking fn. Calling Run twice with the same stepId
// within one execution is DUPLICATE_STEP.
func (c *Context) Run(stepId string, fn func() (interface{}, error)) (interface{}, error) {
	if c.ran[stepId] {
		return nil, rpcerr.New(rpcerr.DuplicateStep, "step %q already ran in this execution", stepId)
	}
	c.ran[stepId] = true

	if v, ok := c.completed[stepId]; ok {
		return v, nil
	}
	if stepId == c.resumeStepId && c.resumeStepId != "" {
		c.completed[stepId] = c.resumeData
		return c.resumeData, nil
	}
	v, err := fn()
	if err != nil {
		return nil, err
	}
	c.completed[stepId] = v
	return v, nil
}

func (c *Context) nextStepId(kind SuspensionKind) string {
	ordinal := c.ordinals[kind]
	c.ordinals[kind] = ordinal + 1
	return fmt.Sprintf("__suspension:%s:%d", kind, ordinal)
}

// suspend either resolves a prior completion/resume for the auto-generated
// stepId (via the same memoisation as Run) or returns a *Suspension to
// unwind the call stack.
func (c *Context) suspend(kind SuspensionKind, request interface{}) (interface{}, error) {
	stepId := c.nextStepId(kind)
	if c.ran[stepId] {
		return nil, rpcerr.New(rpcerr.DuplicateStep, "step %q already ran in this execution", stepId)
	}
	c.ran[stepId] = true

	if v, ok := c.completed[stepId]; ok {
		return v, nil
	}
	if stepId == c.resumeStepId && c.resumeStepId != "" {
		c.completed[stepId] = c.resumeData
		return c.resumeData, nil
	}
	return nil, &Suspension{StepId: stepId, Kind: kind, Request: request}
}

// UserInputRequest describes what waitForUserInput is asking the operator
// for.
type UserInputRequest struct {
	Prompt string          `json:"prompt"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// WaitForUserInput suspends until a resume supplies the user's reply.
func (c *Context) WaitForUserInput(req UserInputRequest) (interface{}, error) {
	return c.suspend(KindUserInput, req)
}

// ApprovalRequest describes what waitForApproval is asking the operator to
// approve.
type ApprovalRequest struct {
	Summary string `json:"summary"`
}

// WaitForApproval suspends until a resume supplies an approval decision.
func (c *Context) WaitForApproval(req ApprovalRequest) (interface{}, error) {
	return c.suspend(KindApproval, req)
}

// EventWaitOptions configures WaitForEvent.
type EventWaitOptions struct {
	TimeoutMs int64 `json:"timeoutMs,omitempty"`
}

// WaitForEvent suspends until a resume supplies the named event's payload.
func (c *Context) WaitForEvent(name string, opts EventWaitOptions) (interface{}, error) {
	return c.suspend(KindEvent, struct {
		Name string           `json:"name"`
		Opts EventWaitOptions `json:"opts,omitempty"`
	}{Name: name, Opts: opts})
}

// Sleep suspends with a request carrying durationMs. Like the other wait
// operations it resumes only when a resume supplies a result for its step;
// nothing re-invokes the tool when the duration has passed.
func (c *Context) Sleep(durationMs int64) (interface{}, error) {
	return c.suspend(KindSleep, struct {
		DurationMs int64 `json:"durationMs"`
	}{DurationMs: durationMs})
}
