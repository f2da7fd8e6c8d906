package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/opslane/agentd/internal/bus"
	"github.com/opslane/agentd/pkg/protocol"
)

// LogEntry is the payload shape for "logs" subscriptions.
type LogEntry struct {
	TimestampMs int64  `json:"timestampMs"`
	Level       string `json:"level"`
	Component   string `json:"component"`
	Message     string `json:"message"`
}

// Hub fans out process-wide notification streams (logs, channel events,
// lifecycle events) to every subscribing client, applying each
// subscription's filter and a drop-oldest back-pressure policy (none of
// these streams are agent-output).
//
// agent.output is intentionally not modelled here: cmd/agentd registers it
// as its own stream, which needs the block-on-full policy instead of
// drop-oldest.
type Hub struct {
	mu     sync.RWMutex
	logSub map[string]filteredSub
	chanSub map[string]filteredSub
	lifeSub map[string]filteredSub

	recentMu sync.Mutex
	recent   []LogEntry
	recentCap int
}

type filteredSub struct {
	box    *bus.Bus[*protocol.Notification]
	filter map[string]interface{}
}

// NewHub constructs an empty Hub with a recent-log ring of the given
// capacity (used to serve "includeRecent" on a fresh "logs" subscription).
func NewHub(recentCap int) *Hub {
	if recentCap <= 0 {
		recentCap = 200
	}
	return &Hub{
		logSub:    make(map[string]filteredSub),
		chanSub:   make(map[string]filteredSub),
		lifeSub:   make(map[string]filteredSub),
		recentCap: recentCap,
	}
}

// RegisterStreams wires the hub's three process-wide stream types into a
// Router's generic subscribe/unsubscribe machinery.
func (h *Hub) RegisterStreams(r *Router) {
	r.Stream(protocol.StreamLogs, h.subscribeLogs)
	r.Stream(protocol.StreamEventsChannel, h.subscribeChannelEvents)
	r.Stream(protocol.StreamEventsLifecycle, h.subscribeLifecycleEvents)
}

func (h *Hub) subscribeLogs(ctx context.Context, client *Client, filter map[string]interface{}) (*bus.Bus[*protocol.Notification], string, error) {
	box := bus.New[*protocol.Notification](256, bus.DropOldest)
	id := client.Id + ":logs:" + time.Now().Format(time.RFC3339Nano)
	h.mu.Lock()
	h.logSub[id] = filteredSub{box: box, filter: filter}
	h.mu.Unlock()
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.logSub, id)
		h.mu.Unlock()
	}()

	if includeRecent, _ := filter["includeRecent"].(bool); includeRecent {
		h.recentMu.Lock()
		snapshot := append([]LogEntry(nil), h.recent...)
		h.recentMu.Unlock()
		for i := range snapshot {
			entry := snapshot[i]
			if !logMatchesFilter(entry, filter) {
				continue
			}
			n, err := protocol.NewNotification(protocol.NotifyLog, entry)
			if err == nil {
				box.Emit(n)
			}
		}
	}
	return box, id, nil
}

func (h *Hub) subscribeChannelEvents(ctx context.Context, client *Client, filter map[string]interface{}) (*bus.Bus[*protocol.Notification], string, error) {
	box := bus.New[*protocol.Notification](256, bus.DropOldest)
	id := client.Id + ":events.channel:" + time.Now().Format(time.RFC3339Nano)
	h.mu.Lock()
	h.chanSub[id] = filteredSub{box: box, filter: filter}
	h.mu.Unlock()
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.chanSub, id)
		h.mu.Unlock()
	}()
	return box, id, nil
}

func (h *Hub) subscribeLifecycleEvents(ctx context.Context, client *Client, filter map[string]interface{}) (*bus.Bus[*protocol.Notification], string, error) {
	box := bus.New[*protocol.Notification](256, bus.DropOldest)
	id := client.Id + ":events.lifecycle:" + time.Now().Format(time.RFC3339Nano)
	h.mu.Lock()
	h.lifeSub[id] = filteredSub{box: box, filter: filter}
	h.mu.Unlock()
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.lifeSub, id)
		h.mu.Unlock()
	}()
	return box, id, nil
}

// PublishLog broadcasts a log entry to every matching "logs" subscription
// and retains it in the recent-log ring.
func (h *Hub) PublishLog(entry LogEntry) {
	h.recentMu.Lock()
	h.recent = append(h.recent, entry)
	if len(h.recent) > h.recentCap {
		h.recent = h.recent[len(h.recent)-h.recentCap:]
	}
	h.recentMu.Unlock()

	n, err := protocol.NewNotification(protocol.NotifyLog, entry)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.logSub {
		if logMatchesFilter(entry, sub.filter) {
			sub.box.Emit(n)
		}
	}
}

// ChannelEventPayload is the payload for "events.channel" notifications.
type ChannelEventPayload struct {
	ChannelId string      `json:"channelId"`
	Event     interface{} `json:"event"`
}

// PublishChannelEvent broadcasts an inbound channel event to every
// "events.channel" subscription (there is no filter dimension beyond the
// stream type itself).
func (h *Hub) PublishChannelEvent(channelId string, event interface{}) {
	n, err := protocol.NewNotification(protocol.NotifyEventChannel, ChannelEventPayload{ChannelId: channelId, Event: event})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.chanSub {
		sub.box.Emit(n)
	}
}

// PublishLifecycleEvent broadcasts a channel or session lifecycle
// transition to every "events.lifecycle" subscription.
func (h *Hub) PublishLifecycleEvent(payload interface{}) {
	n, err := protocol.NewNotification(protocol.NotifyEventLifecycle, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.lifeSub {
		sub.box.Emit(n)
	}
}

// SubscriptionCount reports the number of live logs/events.* subscriptions
// across every client, for daemon.status. It does not include agent.output
// subscriptions, which the daemon tracks separately (see cmd/agentd).
func (h *Hub) SubscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.logSub) + len(h.chanSub) + len(h.lifeSub)
}

func logMatchesFilter(entry LogEntry, filter map[string]interface{}) bool {
	if filter == nil {
		return true
	}
	if lvl, ok := filter["level"].(string); ok && lvl != "" && lvl != entry.Level {
		return false
	}
	if comp, ok := filter["component"].(string); ok && comp != "" && comp != entry.Component {
		return false
	}
	if since, ok := filter["since"].(float64); ok && float64(entry.TimestampMs) < since {
		return false
	}
	return true
}
