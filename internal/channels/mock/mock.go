// Package mock implements a Channel adapter that never touches the
// network: it records every processed intent with a timestamp, supports
// configurable per-intent-type synthetic failure and delay, and exposes
// entry points to simulate inbound events and lifecycle transitions
// directly, for use in tests and local development.
package mock

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/opslane/agentd/internal/canon"
	"github.com/opslane/agentd/internal/channels"
)

// Recorded is one intent processed by the channel, with the wall-clock
// time it was recorded.
type Recorded struct {
	Intent      canon.OutboundIntent
	TimestampMs int64
}

// Channel is the mock adapter.
type Channel struct {
	*channels.BaseChannel

	mu        sync.Mutex
	recorded  []Recorded
	failures  map[string]error
	delays    map[string]time.Duration
}

// New constructs a mock channel with the given id.
func New(id string) *Channel {
	return &Channel{
		BaseChannel: channels.NewBaseChannel(id, "mock"),
		failures:    make(map[string]error),
		delays:      make(map[string]time.Duration),
	}
}

// FailNextFor configures every future Process call for the given intent
// kind to fail with err, until cleared.
func (c *Channel) FailNextFor(intentKind string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[intentKind] = err
}

// ClearFailure removes a configured synthetic failure for intentKind.
func (c *Channel) ClearFailure(intentKind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.failures, intentKind)
}

// DelayFor configures every future Process call for the given intent kind
// to sleep for d before completing.
func (c *Channel) DelayFor(intentKind string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays[intentKind] = d
}

// Connect marks the channel connected; there is no real endpoint to dial.
func (c *Channel) Connect(ctx context.Context) error {
	c.SetStatus(channels.StatusConnected, nil)
	return nil
}

// Disconnect marks the channel disconnected.
func (c *Channel) Disconnect(ctx context.Context) error {
	c.SetStatus(channels.StatusDisconnected, nil)
	return nil
}

// Process records intent, applying any configured synthetic delay/failure
// for its kind.
func (c *Channel) Process(ctx context.Context, intent canon.OutboundIntent) (channels.Confirmation, error) {
	kind := intent.Kind()

	c.mu.Lock()
	delay := c.delays[kind]
	failErr := c.failures[kind]
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return channels.Confirmation{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if failErr != nil {
		return channels.Confirmation{Success: false, Err: failErr}, failErr
	}

	c.mu.Lock()
	c.recorded = append(c.recorded, Recorded{Intent: intent, TimestampMs: time.Now().UnixMilli()})
	c.mu.Unlock()

	return channels.Confirmation{Success: true}, nil
}

// FetchMedia always returns an empty reader whose Close is a no-op: the
// mock adapter has no real media store.
func (c *Channel) FetchMedia(ctx context.Context, ref canon.Reference) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

// Recorded returns every intent processed so far, in submission order.
func (c *Channel) Recorded() []Recorded {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Recorded, len(c.recorded))
	copy(out, c.recorded)
	return out
}

// SimulateInbound injects ev directly into the channel's inbound stream,
// bypassing any network layer.
func (c *Channel) SimulateInbound(ev canon.InboundEvent) {
	c.EmitInbound(ev)
}

// SimulateLifecycle injects a lifecycle transition directly.
func (c *Channel) SimulateLifecycle(status channels.Status, err error) {
	c.SetStatus(status, err)
}
