// Package bus implements a typed in-process event bus: a
// synchronous on/once/emit/complete emitter plus a buffered async sequence,
// used by channels, agent sessions, and the RPC subscription layer.
package bus

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// OverflowPolicy controls what happens when the bounded async sequence
// buffer is full.
type OverflowPolicy int

const (
	// DropOldest discards the oldest buffered value to make room (used for
	// "logs" and "events.*" subscriptions).
	DropOldest OverflowPolicy = iota
	// Block makes the producer wait for room (used for "agent.output" bound
	// to a specific agent, so tail consumers never miss output).
	Block
)

// Handler is invoked synchronously by Emit, in registration order. A
// handler that returns an error is reported to the logger; the remaining
// handlers still run.
type Handler[T any] func(T) error

// Disposer removes a previously registered handler.
type Disposer func()

// Bus[T] is a typed, in-process emitter. The zero value is not usable; call
// New.
type Bus[T any] struct {
	mu        sync.Mutex
	handlers  map[int]Handler[T]
	nextId    int
	completed bool

	// async sequence support
	policy  OverflowPolicy
	cap     int
	queue   []T
	notify  chan struct{}
	drops   int64
}

// New constructs a Bus with the given async-sequence buffer capacity and
// overflow policy. capacity <= 0 defaults to 64.
func New[T any](capacity int, policy OverflowPolicy) *Bus[T] {
	if capacity <= 0 {
		capacity = 64
	}
	return &Bus[T]{
		handlers: make(map[int]Handler[T]),
		policy:   policy,
		cap:      capacity,
		notify:   make(chan struct{}, 1),
	}
}

// On registers handler, returning a Disposer. Registering on a completed
// bus is a no-op that returns a disposer doing nothing: once Complete has
// been called, no new registration ever receives a delivery.
func (b *Bus[T]) On(h Handler[T]) Disposer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.completed {
		return func() {}
	}
	id := b.nextId
	b.nextId++
	b.handlers[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Once registers a handler that auto-disposes after its first delivery.
func (b *Bus[T]) Once(h Handler[T]) Disposer {
	var dispose Disposer
	var fired bool
	var mu sync.Mutex
	wrapped := func(v T) error {
		mu.Lock()
		if fired {
			mu.Unlock()
			return nil
		}
		fired = true
		mu.Unlock()
		dispose()
		return h(v)
	}
	dispose = b.On(wrapped)
	return dispose
}

// Emit synchronously invokes every live handler in registration order, then
// pushes v into the async-sequence buffer. Emitting on a completed bus is a
// no-op.
func (b *Bus[T]) Emit(v T) {
	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler[T], len(ids))
	for i, id := range ids {
		handlers[i] = b.handlers[id]
	}
	b.mu.Unlock()

	// Handlers never run while holding the subscribers lock.
	for _, h := range handlers {
		if err := h(v); err != nil {
			slog.Error("bus handler error", "error", err)
		}
	}

	b.pushAsync(v)
}

// pushAsync enqueues v for async-sequence consumers, applying the
// configured overflow policy when the bounded ring is full.
func (b *Bus[T]) pushAsync(v T) {
	b.mu.Lock()
	if len(b.queue) >= b.cap {
		switch b.policy {
		case DropOldest:
			b.queue = append(b.queue[1:], v)
			b.drops++
		case Block:
			// Release the lock and spin-wait for room; the bus is small
			// and short-lived enough that a notify-channel wait is
			// sufficient here.
			for len(b.queue) >= b.cap && !b.completed {
				b.mu.Unlock()
				<-b.roomSignal()
				b.mu.Lock()
			}
			if !b.completed {
				b.queue = append(b.queue, v)
			}
		}
	} else {
		b.queue = append(b.queue, v)
	}
	b.mu.Unlock()
	b.signal()
}

func (b *Bus[T]) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// roomSignal returns a channel that fires the next time Next() drains an
// item, so a blocked producer can retry without busy-spinning tightly.
func (b *Bus[T]) roomSignal() <-chan struct{} {
	return b.notify
}

// Complete marks the bus terminal: no further On registrations will ever
// receive deliveries, and any blocked async-sequence consumer unblocks with
// ok=false.
func (b *Bus[T]) Complete() {
	b.mu.Lock()
	b.completed = true
	b.handlers = map[int]Handler[T]{}
	b.mu.Unlock()
	b.signal()
}

// Next blocks until a value is available, the bus completes, or ctx is
// cancelled. ok is false once the bus is drained and completed.
func (b *Bus[T]) Next(ctx context.Context) (v T, ok bool) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			v = b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			b.signal() // wake any blocked producer waiting for room
			return v, true
		}
		if b.completed {
			b.mu.Unlock()
			var zero T
			return zero, false
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-b.notify:
		}
	}
}

// Dropped reports how many async-sequence values were discarded by the
// DropOldest policy, for operator-facing back-pressure metrics.
func (b *Bus[T]) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drops
}
