package canon

import (
	"encoding/json"
	"fmt"
)

// OutboundIntent is implemented by every outbound intent variant.
// Each carries a destination and a millisecond timestamp.
type OutboundIntent interface {
	Kind() string
	IntentDestination() Destination
	IntentTimestampMs() int64
}

type baseOutbound struct {
	Destination Destination `json:"destination"`
	TimestampMs int64       `json:"timestampMs"`
}

func (b baseOutbound) IntentDestination() Destination { return b.Destination }
func (b baseOutbound) IntentTimestampMs() int64       { return b.TimestampMs }

type AgentThinking struct {
	baseOutbound
}

func (AgentThinking) Kind() string { return "agent_thinking" }

type AgentStreaming struct {
	baseOutbound
	Partial string `json:"partial,omitempty"`
}

func (AgentStreaming) Kind() string { return "agent_streaming" }

type AgentResponding struct {
	baseOutbound
	Content OutboundContent `json:"-"`
}

func (AgentResponding) Kind() string { return "agent_responding" }

type AgentToolCall struct {
	baseOutbound
	ToolName  string          `json:"toolName"`
	ToolInput json.RawMessage `json:"toolInput,omitempty"`
}

func (AgentToolCall) Kind() string { return "agent_tool_call" }

type AgentToolProgress struct {
	baseOutbound
	ToolName   string  `json:"toolName"`
	ToolCallId string  `json:"toolCallId"`
	Progress   *float64 `json:"progress,omitempty"`
}

func (AgentToolProgress) Kind() string { return "agent_tool_progress" }

type AgentError struct {
	baseOutbound
	Error       string `json:"error"`
	Recoverable bool   `json:"recoverable"`
}

func (AgentError) Kind() string { return "agent_error" }

// IdempotentIntent reports whether repeated delivery of this intent type is
// safe to retry: informational intents are idempotent, agent_responding
// and agent_error are not.
func IdempotentIntent(i OutboundIntent) bool {
	switch i.Kind() {
	case "agent_thinking", "agent_streaming", "agent_tool_call", "agent_tool_progress":
		return true
	default:
		return false
	}
}

// Confirmation is the wire shape of a report on whether an intent was
// delivered. Channel.Process returns channels.Confirmation, not this type.
type Confirmation struct {
	IntentType  string `json:"intentType"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	TimestampMs int64  `json:"timestampMs"`
}

type intentWire struct {
	Type        string          `json:"type"`
	Destination Destination     `json:"destination"`
	TimestampMs int64           `json:"timestampMs"`
	Partial     string          `json:"partial,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	ToolName    string          `json:"toolName,omitempty"`
	ToolInput   json.RawMessage `json:"toolInput,omitempty"`
	ToolCallId  string          `json:"toolCallId,omitempty"`
	Progress    *float64        `json:"progress,omitempty"`
	Error       string          `json:"error,omitempty"`
	Recoverable bool            `json:"recoverable,omitempty"`
}

// DecodeOutboundIntent dispatches on the wire "type" tag. An unrecognised
// tag is returned as an error.
func DecodeOutboundIntent(raw json.RawMessage) (OutboundIntent, error) {
	var w intentWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}
	base := baseOutbound{Destination: w.Destination, TimestampMs: w.TimestampMs}
	switch w.Type {
	case "agent_thinking":
		return AgentThinking{baseOutbound: base}, nil
	case "agent_streaming":
		return AgentStreaming{baseOutbound: base, Partial: w.Partial}, nil
	case "agent_responding":
		var content OutboundContent
		if len(w.Content) > 0 {
			c, err := DecodeOutboundContent(w.Content)
			if err != nil {
				return nil, err
			}
			content = c
		}
		return AgentResponding{baseOutbound: base, Content: content}, nil
	case "agent_tool_call":
		return AgentToolCall{baseOutbound: base, ToolName: w.ToolName, ToolInput: w.ToolInput}, nil
	case "agent_tool_progress":
		return AgentToolProgress{baseOutbound: base, ToolName: w.ToolName, ToolCallId: w.ToolCallId, Progress: w.Progress}, nil
	case "agent_error":
		return AgentError{baseOutbound: base, Error: w.Error, Recoverable: w.Recoverable}, nil
	default:
		return nil, fmt.Errorf("unknown intent type %q", w.Type)
	}
}

// EncodeOutboundIntent marshals any intent variant into its wire shape.
func EncodeOutboundIntent(i OutboundIntent) ([]byte, error) {
	w := intentWire{Type: i.Kind(), Destination: i.IntentDestination(), TimestampMs: i.IntentTimestampMs()}
	switch v := i.(type) {
	case AgentStreaming:
		w.Partial = v.Partial
	case AgentResponding:
		if v.Content != nil {
			raw, err := EncodeOutboundContent(v.Content)
			if err != nil {
				return nil, err
			}
			w.Content = raw
		}
	case AgentToolCall:
		w.ToolName = v.ToolName
		w.ToolInput = v.ToolInput
	case AgentToolProgress:
		w.ToolName = v.ToolName
		w.ToolCallId = v.ToolCallId
		w.Progress = v.Progress
	case AgentError:
		w.Error = v.Error
		w.Recoverable = v.Recoverable
	}
	return json.Marshal(w)
}
