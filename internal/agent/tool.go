package agent

import (
	"encoding/json"

	"github.com/opslane/agentd/internal/durable"
)

// ToolError wraps a tool-layer failure with an explicit retry hint. A
// plain error defaults to non-retryable.
type ToolError struct {
	Message   string
	Retryable bool
}

func (e *ToolError) Error() string { return e.Message }

// Tool is one callable the adapter may invoke. Execute receives the
// durable step context for this invocation attempt; if it (or anything it
// calls) triggers a wait*/sleep suspension, Execute must return that error
// unmodified so the session can recognise it via durable.AsSuspension.
type Tool interface {
	Name() string
	Execute(dctx *durable.Context, args json.RawMessage) (interface{}, error)
}

// ToolCall is one adapter-requested invocation.
type ToolCall struct {
	Id   string
	Name string
	Args json.RawMessage
}

// pendingTool tracks one suspended tool call, keyed by ToolCallId, so a
// later ResumeTool call can rebuild its durable.Context.
type pendingTool struct {
	call          ToolCall
	completedSteps map[string]interface{}
	suspendedAt   *durable.Suspension
}
