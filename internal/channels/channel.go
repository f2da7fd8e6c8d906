// Package channels defines the platform-neutral Channel contract and the
// registry that multiplexes inbound events and outbound intents across every
// connected adapter.
package channels

import (
	"context"
	"io"
	"sync"

	"github.com/opslane/agentd/internal/bus"
	"github.com/opslane/agentd/internal/canon"
)

// Status is a channel's connection lifecycle state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
)

// LifecycleEvent is delivered through onLifecycle when a channel's status
// changes, optionally carrying an error (e.g. a recoverable polling error).
type LifecycleEvent struct {
	ChannelId string
	Status    Status
	Err       error
}

// Confirmation is the result of dispatching one outbound intent.
type Confirmation struct {
	Success     bool
	MessageId   string
	Err         error
}

// Channel is implemented by every platform adapter (telegram, mock, ...).
// process is idempotent only for informational intents (agent_thinking,
// agent_streaming, agent_tool_call, agent_tool_progress): agent_responding
// and agent_error are not, so duplicate calls send duplicate messages. For
// a given destination, intents submitted to a channel complete in
// submission order; across destinations no ordering is guaranteed.
type Channel interface {
	Id() string
	Adapter() string
	Status() Status

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	Process(ctx context.Context, intent canon.OutboundIntent) (Confirmation, error)
	FetchMedia(ctx context.Context, ref canon.Reference) (io.ReadCloser, error)

	// Subscribe registers a handler invoked synchronously for every inbound
	// event this channel produces, returning a disposer.
	Subscribe(handler bus.Handler[canon.InboundEvent]) bus.Disposer
	// Events exposes the same stream as a bounded async sequence.
	Events() *bus.Bus[canon.InboundEvent]

	OnLifecycle(handler bus.Handler[LifecycleEvent]) bus.Disposer
}

// BaseChannel centralises the bookkeeping common to every adapter: id,
// adapter name, status, the inbound event bus, and the lifecycle bus. Embed
// it and implement Connect/Disconnect/Process/FetchMedia on top.
type BaseChannel struct {
	id      string
	adapter string

	statusMu sync.RWMutex
	status   Status

	inbound   *bus.Bus[canon.InboundEvent]
	lifecycle *bus.Bus[LifecycleEvent]
}

// NewBaseChannel constructs a BaseChannel starting in StatusDisconnected.
func NewBaseChannel(id, adapter string) *BaseChannel {
	return &BaseChannel{
		id:        id,
		adapter:   adapter,
		status:    StatusDisconnected,
		inbound:   bus.New[canon.InboundEvent](256, bus.DropOldest),
		lifecycle: bus.New[LifecycleEvent](16, bus.DropOldest),
	}
}

func (b *BaseChannel) Id() string      { return b.id }
func (b *BaseChannel) Adapter() string { return b.adapter }

func (b *BaseChannel) Status() Status {
	b.statusMu.RLock()
	defer b.statusMu.RUnlock()
	return b.status
}

// SetStatus updates status and, if it changed, emits a lifecycle event.
func (b *BaseChannel) SetStatus(s Status, err error) {
	b.statusMu.Lock()
	changed := b.status != s
	b.status = s
	b.statusMu.Unlock()
	if changed {
		b.lifecycle.Emit(LifecycleEvent{ChannelId: b.id, Status: s, Err: err})
	}
}

// EmitInbound pushes an inbound event to every subscriber and async
// consumer.
func (b *BaseChannel) EmitInbound(ev canon.InboundEvent) {
	b.inbound.Emit(ev)
}

func (b *BaseChannel) Subscribe(handler bus.Handler[canon.InboundEvent]) bus.Disposer {
	return b.inbound.On(handler)
}

func (b *BaseChannel) Events() *bus.Bus[canon.InboundEvent] {
	return b.inbound
}

func (b *BaseChannel) OnLifecycle(handler bus.Handler[LifecycleEvent]) bus.Disposer {
	return b.lifecycle.On(handler)
}
