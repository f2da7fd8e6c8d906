package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/opslane/agentd/internal/rpcerr"
)

// CheckpointStore persists and retrieves session checkpoints, implemented
// by internal/store/sqlite.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error
	LatestCheckpoint(ctx context.Context, sessionId string) (*Checkpoint, error)
	ListCheckpoints(ctx context.Context, sessionId string) ([]*Checkpoint, error)
}

// AdapterFactory builds a fresh Adapter instance per spawn/restore, keyed
// by adapter name.
type AdapterFactory func(name string, modelOverride string) (Adapter, error)

// Manager owns every live session and wires spawn/continue/terminate to a
// CheckpointStore for durability.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cancels  map[string]context.CancelFunc

	store    CheckpointStore
	adapters AdapterFactory
}

// NewManager constructs a Manager backed by store for persistence and
// adapters for adapter instantiation.
func NewManager(store CheckpointStore, adapters AdapterFactory) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		cancels:  make(map[string]context.CancelFunc),
		store:    store,
		adapters: adapters,
	}
}

// Spawn creates and starts a new session.
func (m *Manager) Spawn(ctx context.Context, adapterName, modelOverride string, cfg Config) (*Session, error) {
	adapter, err := m.adapters(adapterName, modelOverride)
	if err != nil {
		return nil, err
	}
	cfg.Adapter = adapter
	cfg.CheckpointSink = m.persistCheckpoint

	s := Create(cfg)
	m.track(ctx, s)
	return s, nil
}

// persistCheckpoint is wired into every session's CheckpointSink so pause
// and terminal transitions are durable: without this, agent.continue and
// agent.listCheckpoints would never see any checkpoint at all.
func (m *Manager) persistCheckpoint(cp *Checkpoint) {
	if err := m.store.SaveCheckpoint(context.Background(), cp); err != nil {
		slog.Error("agent: persist checkpoint", "session", cp.SessionId, "error", err)
	}
}

func (m *Manager) track(ctx context.Context, s *Session) {
	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.sessions[s.Id()] = s
	m.cancels[s.Id()] = cancel
	m.mu.Unlock()
	go s.Run(runCtx)
}

// Get returns the live session for id, or false if not found.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns every live session.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Terminate cancels a session's run context and removes it from the
// manager. The run-loop still observes the abort and persists a final
// checkpoint for the Aborted transition before it exits, so a terminated
// session remains resumable via agent.continue.
func (m *Manager) Terminate(id string) error {
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	s := m.sessions[id]
	delete(m.sessions, id)
	delete(m.cancels, id)
	m.mu.Unlock()
	if !ok {
		return rpcerr.New(rpcerr.AgentNotFound, "session %q not found", id)
	}
	s.Abort()
	cancel()
	return nil
}

// ListCheckpoints returns every persisted checkpoint for id, most recent
// last.
func (m *Manager) ListCheckpoints(ctx context.Context, id string) ([]*Checkpoint, error) {
	return m.store.ListCheckpoints(ctx, id)
}

// Continue implements agent.continue: restores from the most recent
// checkpoint for sessionId, applies modelOverride, enqueues input, and
// returns the restored (not fresh) session.
func (m *Manager) Continue(ctx context.Context, sessionId, input, modelOverride string) (*Session, error) {
	cp, err := m.store.LatestCheckpoint(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, rpcerr.New(rpcerr.AgentNotFound, "no checkpoint for session %q", sessionId)
	}

	adapter, err := m.adapters(cp.AdapterName, modelOverride)
	if err != nil {
		return nil, err
	}

	restored, err := Restore(cp, Config{Adapter: adapter, ModelOverride: modelOverride, CheckpointSink: m.persistCheckpoint})
	if err != nil {
		return nil, err
	}
	if input != "" {
		restored.Send(input)
	}
	m.track(ctx, restored)
	return restored, nil
}
