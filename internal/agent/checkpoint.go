package agent

import (
	"time"

	"github.com/opslane/agentd/internal/durable"
	"github.com/opslane/agentd/internal/rpcerr"
)

// PendingToolSnapshot captures one in-flight suspended tool call so it can
// survive a checkpoint/restore round trip.
type PendingToolSnapshot struct {
	Call           ToolCall
	CompletedSteps map[string]interface{}
	SuspendedStepId string
}

// Checkpoint is a point-in-time snapshot of a session, safe to capture at
// any time; it reflects state as of capture, modulo in-flight work.
type Checkpoint struct {
	SessionId     string
	AdapterName   string
	Task          string
	Tags          []string
	Metadata      map[string]interface{}
	SystemPrompt  string
	Messages      []Message
	Metrics       Metrics
	State         State
	PendingInput  []string
	PendingTools  []PendingToolSnapshot
}

// Checkpoint captures the session's current state.
func (s *Session) Checkpoint() *Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	pendingInput := make([]string, len(s.inputQ))
	copy(pendingInput, s.inputQ)

	var pendingTools []PendingToolSnapshot
	for _, p := range s.pending {
		pendingTools = append(pendingTools, PendingToolSnapshot{
			Call:            p.call,
			CompletedSteps:  p.completedSteps,
			SuspendedStepId: p.suspendedAt.StepId,
		})
	}

	metrics := s.metrics
	metrics.DurationMs = s.baseDurationMs
	if !s.startedAt.IsZero() {
		metrics.DurationMs += time.Since(s.startedAt).Milliseconds()
	}

	return &Checkpoint{
		SessionId:    s.id,
		AdapterName:  s.adapterName,
		Task:         s.task,
		Tags:         s.tags,
		Metadata:     s.metadata,
		SystemPrompt: s.systemPrompt,
		Messages:     messages,
		Metrics:      metrics,
		State:        s.state,
		PendingInput: pendingInput,
		PendingTools: pendingTools,
	}
}

// Restore reconstructs a session from a checkpoint: message history,
// metrics, pending input, and in-flight tool-execution resume data. A
// mismatched adapter name is a hard error.
func Restore(cp *Checkpoint, cfg Config) (*Session, error) {
	if cfg.Adapter.Name() != cp.AdapterName {
		return nil, rpcerr.New(rpcerr.AgentAdapterMismatch, "checkpoint adapter %q does not match restore adapter %q", cp.AdapterName, cfg.Adapter.Name())
	}

	restoreCfg := cfg
	restoreCfg.Id = cp.SessionId
	restoreCfg.Task = cp.Task
	restoreCfg.Tags = cp.Tags
	restoreCfg.Metadata = cp.Metadata
	restoreCfg.SystemPrompt = cp.SystemPrompt
	restoreCfg.InitialInput = ""

	s := Create(restoreCfg)
	s.messages = append([]Message(nil), cp.Messages...)
	s.metrics = cp.Metrics
	s.baseDurationMs = cp.Metrics.DurationMs
	s.inputQ = append([]string(nil), cp.PendingInput...)
	for _, pt := range cp.PendingTools {
		s.pending[pt.Call.Id] = &pendingTool{
			call:           pt.Call,
			completedSteps: pt.CompletedSteps,
			suspendedAt:    &durable.Suspension{StepId: pt.SuspendedStepId},
		}
	}
	return s, nil
}
