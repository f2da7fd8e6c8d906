package agent

import "encoding/json"

// OutputEvent is the canonical event stream a session emits: thought,
// output (streamed or final), tool_start, tool_end, tool_progress, status,
// error, done. Every variant implements Kind so a consumer can switch
// exhaustively and fall back gracefully on an event type it doesn't
// recognise.
type OutputEvent interface {
	Kind() string
}

// Thought carries an intermediate reasoning fragment, never the final
// answer.
type Thought struct {
	Text string `json:"text"`
}

func (Thought) Kind() string { return "thought" }

// Output carries one chunk of the agent's reply. Final marks the last
// chunk of the current turn.
type Output struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

func (Output) Kind() string { return "output" }

// ToolStart announces the beginning of one tool invocation.
type ToolStart struct {
	ToolCallId string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args,omitempty"`
}

func (ToolStart) Kind() string { return "tool_start" }

// ToolProgress is emitted while a tool is suspended on a wait* operation:
// the session keeps accepting further input even though this tool call has
// not completed.
type ToolProgress struct {
	ToolCallId string `json:"toolCallId"`
	StepId     string `json:"stepId"`
	Kind_      string `json:"kind"`
}

func (ToolProgress) Kind() string { return "tool_progress" }

// ToolEnd carries a tool's outcome. Errors are captured here rather than
// aborting the session; Retryable signals whether the caller may retry.
type ToolEnd struct {
	ToolCallId string      `json:"toolCallId"`
	Result     interface{} `json:"result,omitempty"`
	Err        string      `json:"error,omitempty"`
	Retryable  bool        `json:"retryable,omitempty"`
}

func (ToolEnd) Kind() string { return "tool_end" }

// StatusEvent announces a state transition.
type StatusEvent struct {
	Status State `json:"status"`
}

func (StatusEvent) Kind() string { return "status" }

// ErrorEvent announces an adapter-layer failure. Fatal errors are always
// followed by a Done{Status: Failed}.
type ErrorEvent struct {
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

func (ErrorEvent) Kind() string { return "error" }

// Metrics accumulates session-lifetime counters.
type Metrics struct {
	DurationMs int64 `json:"durationMs"`
	Turns      int   `json:"turns"`
	ToolCalls  int   `json:"toolCalls"`
}

// Done is the terminal event of a session run, or of one call to Run when
// the session stops iterating.
type Done struct {
	Status  State       `json:"status"`
	Result  interface{} `json:"result,omitempty"`
	Metrics Metrics     `json:"metrics"`
}

func (Done) Kind() string { return "done" }
