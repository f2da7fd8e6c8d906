// Package agent implements the session run-loop: an adapter-driven
// conversation loop with a pause gate, an abort signal, a durable
// tool-execution tracker, and checkpoint/restore for continuation.
package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/opslane/agentd/internal/bus"
	"github.com/opslane/agentd/internal/durable"
	"github.com/opslane/agentd/internal/rpcerr"
)

// State is a session's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateAborted    State = "aborted"
	StateTerminated State = "terminated"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StepRequest is handed to the Adapter once per turn.
type StepRequest struct {
	Messages     []Message
	SystemPrompt string
}

// StepResult is what the Adapter produced for one turn.
type StepResult struct {
	Thought   string
	ToolCalls []ToolCall
	Output    string
	Final     bool
	// Done signals that the adapter has nothing further to contribute once
	// the input queue drains.
	Done bool
}

// Adapter drives one turn of a session. Implementations wrap a specific
// model/provider; this daemon is adapter-agnostic.
type Adapter interface {
	Name() string
	Step(ctx context.Context, req StepRequest) (StepResult, error)
}

// Config describes a new or restored session.
type Config struct {
	Id           string
	Adapter      Adapter
	Tools        []Tool
	Task         string
	Tags         []string
	Metadata     map[string]interface{}
	SystemPrompt string
	InitialInput string
	ModelOverride string

	// CheckpointSink, if set, is called with a fresh checkpoint on pause and
	// on every terminal transition, so a Manager can persist it without the
	// run-loop knowing anything about storage.
	CheckpointSink func(*Checkpoint)
}

// Session is a single agent run-loop.
type Session struct {
	id          string
	adapterName string
	adapter     Adapter
	tools       map[string]Tool
	task        string
	tags        []string
	metadata    map[string]interface{}
	systemPrompt string

	events *bus.Bus[OutputEvent]

	checkpointSink func(*Checkpoint)

	mu       sync.Mutex
	state    State
	messages []Message
	inputQ   []string
	metrics  Metrics
	startedAt time.Time
	baseDurationMs int64

	paused       bool
	resumeSignal chan struct{}
	inputSignal  chan struct{}

	aborted  atomic.Bool
	abortCh  chan struct{}
	abortOnce sync.Once

	pending map[string]*pendingTool
}

// Create allocates a new session in StateIdle, queuing cfg.InitialInput if
// present.
func Create(cfg Config) *Session {
	id := cfg.Id
	if id == "" {
		id = uuid.NewString()
	}
	tools := make(map[string]Tool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		tools[t.Name()] = t
	}
	s := &Session{
		id:           id,
		adapterName:  cfg.Adapter.Name(),
		adapter:      cfg.Adapter,
		tools:        tools,
		task:         cfg.Task,
		tags:         cfg.Tags,
		metadata:     cfg.Metadata,
		systemPrompt: cfg.SystemPrompt,
		checkpointSink: cfg.CheckpointSink,
		events:       bus.New[OutputEvent](256, bus.Block),
		state:        StateIdle,
		resumeSignal: make(chan struct{}, 1),
		inputSignal:  make(chan struct{}, 1),
		abortCh:      make(chan struct{}),
		pending:      make(map[string]*pendingTool),
	}
	if cfg.InitialInput != "" {
		s.inputQ = append(s.inputQ, cfg.InitialInput)
	}
	return s
}

func (s *Session) Id() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.events.Emit(StatusEvent{Status: st})
}

// Events exposes the canonical output stream.
func (s *Session) Events() *bus.Bus[OutputEvent] { return s.events }

// Send appends message to the input queue. Legal in any non-terminal
// state; non-blocking.
func (s *Session) Send(message string) {
	s.mu.Lock()
	s.inputQ = append(s.inputQ, message)
	s.mu.Unlock()
	s.signalInput()
}

func (s *Session) signalInput() {
	select {
	case s.inputSignal <- struct{}{}:
	default:
	}
}

func (s *Session) popInput() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inputQ) == 0 {
		return "", false
	}
	v := s.inputQ[0]
	s.inputQ = s.inputQ[1:]
	return v, true
}

// Pause closes the gate; effective at the next turn boundary. Idempotent.
func (s *Session) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume opens the gate. Idempotent.
func (s *Session) Resume() {
	s.mu.Lock()
	wasPaused := s.paused
	s.paused = false
	s.mu.Unlock()
	if wasPaused {
		select {
		case s.resumeSignal <- struct{}{}:
		default:
		}
	}
}

// Abort sets the abort signal; the next run-loop iteration observes it.
func (s *Session) Abort() {
	if s.aborted.CompareAndSwap(false, true) {
		s.abortOnce.Do(func() { close(s.abortCh) })
	}
}

func (s *Session) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Run iterates turns until the input queue is empty and the adapter
// signals done, or the session aborts or fails.
func (s *Session) Run(ctx context.Context) {
	s.mu.Lock()
	if s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}
	s.mu.Unlock()
	s.setState(StateRunning)
	done := false

	for {
		if s.aborted.Load() {
			s.setState(StateAborted)
			s.persistCheckpoint()
			s.events.Emit(Done{Status: StateAborted, Metrics: s.finalMetrics()})
			s.events.Complete()
			return
		}

		if s.isPaused() {
			s.setState(StatePaused)
			s.persistCheckpoint()
			if !s.waitForResume(ctx) {
				if s.aborted.Load() {
					continue
				}
				return
			}
			s.setState(StateRunning)
			continue
		}

		input, ok := s.popInput()
		if !ok {
			if done {
				break
			}
			select {
			case <-ctx.Done():
				if s.aborted.Load() {
					continue
				}
				return
			case <-s.abortCh:
				continue
			case <-s.inputSignal:
				continue
			}
		}

		s.messages = append(s.messages, Message{Role: "user", Content: input})
		result, err := s.adapter.Step(ctx, StepRequest{Messages: s.messages, SystemPrompt: s.systemPrompt})
		if err != nil {
			s.events.Emit(ErrorEvent{Message: err.Error(), Fatal: true})
			s.setState(StateFailed)
			s.persistCheckpoint()
			s.events.Emit(Done{Status: StateFailed, Metrics: s.finalMetrics()})
			s.events.Complete()
			return
		}

		if result.Thought != "" {
			s.events.Emit(Thought{Text: result.Thought})
		}
		for _, tc := range result.ToolCalls {
			s.runTool(tc)
		}
		if result.Output != "" {
			s.events.Emit(Output{Text: result.Output, Final: result.Final})
			s.messages = append(s.messages, Message{Role: "assistant", Content: result.Output})
		}
		s.mu.Lock()
		s.metrics.Turns++
		s.metrics.ToolCalls += len(result.ToolCalls)
		s.mu.Unlock()
		if result.Done {
			done = true
		}
	}

	s.setState(StateCompleted)
	s.persistCheckpoint()
	s.events.Emit(Done{Status: StateCompleted, Metrics: s.finalMetrics()})
	s.events.Complete()
}

// persistCheckpoint hands a fresh checkpoint to the configured sink, if any.
// It is a no-op when the session was created without one (e.g. in tests).
func (s *Session) persistCheckpoint() {
	if s.checkpointSink != nil {
		s.checkpointSink(s.Checkpoint())
	}
}

// finalMetrics returns a copy of the session's accumulated metrics with
// DurationMs computed against startedAt, for inclusion in a Done event or a
// checkpoint snapshot.
func (s *Session) finalMetrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.metrics
	m.DurationMs = s.baseDurationMs
	if !s.startedAt.IsZero() {
		m.DurationMs += time.Since(s.startedAt).Milliseconds()
	}
	return m
}

// waitForResume blocks until Resume is called, the session aborts, or ctx
// is cancelled. Returns false when the caller should stop running.
func (s *Session) waitForResume(ctx context.Context) bool {
	for s.isPaused() {
		select {
		case <-ctx.Done():
			return false
		case <-s.abortCh:
			return false
		case <-s.resumeSignal:
		}
	}
	return true
}

func (s *Session) runTool(tc ToolCall) {
	tool, ok := s.tools[tc.Name]
	if !ok {
		s.events.Emit(ToolEnd{ToolCallId: tc.Id, Err: "unknown tool: " + tc.Name, Retryable: false})
		return
	}
	s.events.Emit(ToolStart{ToolCallId: tc.Id, ToolName: tc.Name, Args: tc.Args})

	dctx := durable.NewContext(nil, "", nil)
	result, err := tool.Execute(dctx, tc.Args)
	s.finishToolAttempt(tc, dctx, result, err)
}

// ResumeTool re-invokes a previously suspended tool call from the top, with
// its memoised steps carried forward and the supplied result bound to the
// step that suspended.
func (s *Session) ResumeTool(toolCallId, stepId string, result interface{}) error {
	s.mu.Lock()
	p, ok := s.pending[toolCallId]
	s.mu.Unlock()
	if !ok {
		return rpcerr.New(rpcerr.AgentStateInvalid, "no pending tool call %q", toolCallId)
	}
	tool, ok := s.tools[p.call.Name]
	if !ok {
		return rpcerr.New(rpcerr.AgentStateInvalid, "tool %q no longer registered", p.call.Name)
	}

	dctx := durable.NewContext(p.completedSteps, stepId, result)
	out, err := tool.Execute(dctx, p.call.Args)
	s.finishToolAttempt(p.call, dctx, out, err)
	return nil
}

func (s *Session) finishToolAttempt(call ToolCall, dctx *durable.Context, result interface{}, err error) {
	if susp, ok := durable.AsSuspension(err); ok {
		s.mu.Lock()
		s.pending[call.Id] = &pendingTool{call: call, completedSteps: dctx.Snapshot(), suspendedAt: susp}
		s.mu.Unlock()
		s.events.Emit(ToolProgress{ToolCallId: call.Id, StepId: susp.StepId, Kind_: string(susp.Kind)})
		return
	}

	s.mu.Lock()
	delete(s.pending, call.Id)
	s.mu.Unlock()

	if err != nil {
		var retryable bool
		var msg string
		if te, ok := err.(*ToolError); ok {
			retryable = te.Retryable
			msg = te.Message
		} else {
			msg = err.Error()
		}
		s.events.Emit(ToolEnd{ToolCallId: call.Id, Err: msg, Retryable: retryable})
		return
	}
	s.events.Emit(ToolEnd{ToolCallId: call.Id, Result: result})
}
