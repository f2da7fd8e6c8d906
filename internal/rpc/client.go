package rpc

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/opslane/agentd/internal/bus"
	"github.com/opslane/agentd/internal/transport"
	"github.com/opslane/agentd/pkg/protocol"
)

// outboxCapacity bounds the per-connection, per-subscription notification
// buffer.
const outboxCapacity = 256

// Client represents one connected RPC peer: its framed connection, its
// outstanding subscriptions, and its in-flight request cancel funcs.
type Client struct {
	Id   string
	conn *transport.Conn

	mu            sync.Mutex
	subscriptions map[string]*subscription
	inflight      map[string]context.CancelFunc

	closed bool
}

// subscription binds a stream type + optional filter to a bounded
// notification outbox that a dedicated goroutine drains to the socket.
type subscription struct {
	id     string
	typ    string
	filter map[string]interface{}
	box    *bus.Bus[*protocol.Notification]
	cancel context.CancelFunc
}

func newClient(conn *transport.Conn) *Client {
	return &Client{
		Id:            uuid.NewString(),
		conn:          conn,
		subscriptions: make(map[string]*subscription),
		inflight:      make(map[string]context.CancelFunc),
	}
}

// trackRequest registers a cancel func for an in-flight request id so a
// disconnect (or a server-side timeout) can abort it.
func (c *Client) trackRequest(id string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[id] = cancel
}

func (c *Client) untrackRequest(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
}

// cancelAll aborts every in-flight request and releases every subscription
// on disconnect.
func (c *Client) cancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, cancel := range c.inflight {
		cancel()
	}
	c.inflight = map[string]context.CancelFunc{}
	for _, sub := range c.subscriptions {
		sub.cancel()
		sub.box.Complete()
	}
	c.subscriptions = map[string]*subscription{}
}

func (c *Client) addSubscription(sub *subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[sub.id] = sub
}

// removeSubscription disposes a subscription by id. Returns true if one
// existed. Unsubscribe is idempotent: unknown/foreign ids succeed silently,
// and callers should not surface "false" as an error.
func (c *Client) removeSubscription(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subscriptions[id]
	if !ok {
		return false
	}
	delete(c.subscriptions, id)
	sub.cancel()
	sub.box.Complete()
	return true
}

// deliver pushes a notification to every subscription matching typ,
// honouring each subscription's back-pressure policy.
func (c *Client) deliver(typ string, matches func(filter map[string]interface{}) bool, n *protocol.Notification) {
	c.mu.Lock()
	var targets []*subscription
	for _, sub := range c.subscriptions {
		if sub.typ == typ && matches(sub.filter) {
			targets = append(targets, sub)
		}
	}
	c.mu.Unlock()
	for _, sub := range targets {
		sub.box.Emit(n)
	}
}

// writeLoop drains a subscription's outbox to the wire until it completes
// or the connection closes.
func (c *Client) writeLoop(ctx context.Context, sub *subscription) {
	for {
		n, ok := sub.box.Next(ctx)
		if !ok {
			return
		}
		if err := c.conn.WriteFrame(n); err != nil {
			slog.Debug("rpc: notification write failed", "client", c.Id, "error", err)
			return
		}
	}
}
