package channels

import (
	"context"
	"sync"
	"time"

	"github.com/opslane/agentd/internal/bus"
	"github.com/opslane/agentd/internal/canon"
	"github.com/opslane/agentd/internal/rpcerr"
)

// AggregateEvent is delivered by Registry.Subscribe: one inbound event
// tagged with the channel it arrived on.
type AggregateEvent struct {
	ChannelId string
	Event     canon.InboundEvent
}

// ConversationInfo is one known conversation: a destination the registry
// has seen traffic on, with the wall-clock time it was last seen.
type ConversationInfo struct {
	ChannelId  string
	Ref        string
	Metadata   canon.DestinationMetadata
	LastSeenMs int64
}

func conversationKey(channelId, ref string) string { return channelId + "\x00" + ref }

// Registry multiplexes every connected Channel. register rejects duplicate
// ids; unregister disposes the channel's inbound subscription; subscribe
// delivers an aggregate stream across every registered channel; process
// fails with CHANNEL_NOT_FOUND if the id is unknown.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	dispose  map[string]bus.Disposer

	aggregate *bus.Bus[AggregateEvent]

	convMu sync.RWMutex
	convs  map[string]ConversationInfo
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		channels:  make(map[string]Channel),
		dispose:   make(map[string]bus.Disposer),
		aggregate: bus.New[AggregateEvent](512, bus.DropOldest),
		convs:     make(map[string]ConversationInfo),
	}
}

// Register adds ch to the registry and forwards its inbound events into the
// aggregate stream. Returns CHANNEL_DUPLICATE if the id is already present.
func (r *Registry) Register(ch Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[ch.Id()]; exists {
		return rpcerr.New(rpcerr.ChannelDuplicate, "channel %q already registered", ch.Id())
	}
	id := ch.Id()
	disposer := ch.Subscribe(func(ev canon.InboundEvent) error {
		r.trackConversation(id, ev.EventOrigin())
		r.aggregate.Emit(AggregateEvent{ChannelId: id, Event: ev})
		return nil
	})
	r.channels[id] = ch
	r.dispose[id] = disposer
	return nil
}

// Unregister removes a channel and disposes its inbound subscription. A
// no-op if the id is unknown.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if disposer, ok := r.dispose[id]; ok {
		disposer()
	}
	delete(r.channels, id)
	delete(r.dispose, id)
}

// Get returns the channel for id, or false if unknown.
func (r *Registry) Get(id string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// List returns every registered channel, in no particular order.
func (r *Registry) List() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// Subscribe registers handler on the aggregate stream (every registered
// channel's inbound events, tagged with channelId).
func (r *Registry) Subscribe(handler bus.Handler[AggregateEvent]) bus.Disposer {
	return r.aggregate.On(handler)
}

// Process dispatches intent to channelId's Process method.
func (r *Registry) Process(ctx context.Context, channelId string, intent canon.OutboundIntent) (Confirmation, error) {
	ch, ok := r.Get(channelId)
	if !ok {
		return Confirmation{}, rpcerr.New(rpcerr.ChannelNotFound, "channel %q not found", channelId)
	}
	return ch.Process(ctx, intent)
}

// Connect connects channelId, returning CHANNEL_NOT_FOUND if unknown.
func (r *Registry) Connect(ctx context.Context, channelId string) error {
	ch, ok := r.Get(channelId)
	if !ok {
		return rpcerr.New(rpcerr.ChannelNotFound, "channel %q not found", channelId)
	}
	return ch.Connect(ctx)
}

// Disconnect disconnects channelId, returning CHANNEL_NOT_FOUND if unknown.
func (r *Registry) Disconnect(ctx context.Context, channelId string) error {
	ch, ok := r.Get(channelId)
	if !ok {
		return rpcerr.New(rpcerr.ChannelNotFound, "channel %q not found", channelId)
	}
	return ch.Disconnect(ctx)
}

// Reconnect disconnects then connects channelId. It surfaces an
// intermediate "reconnecting" lifecycle status (when the channel embeds
// BaseChannel) so events.lifecycle observers can tell this apart from an
// operator-initiated disconnect.
func (r *Registry) Reconnect(ctx context.Context, channelId string) error {
	ch, ok := r.Get(channelId)
	if !ok {
		return rpcerr.New(rpcerr.ChannelNotFound, "channel %q not found", channelId)
	}
	if setter, ok := ch.(interface{ SetStatus(Status, error) }); ok {
		setter.SetStatus(StatusReconnecting, nil)
	}
	if err := ch.Disconnect(ctx); err != nil {
		return err
	}
	return ch.Connect(ctx)
}

// trackConversation records dest as last seen now, under channelId. A
// destination with an empty ref (a malformed or synthetic event) is not
// tracked.
func (r *Registry) trackConversation(channelId string, dest canon.Destination) {
	if dest.Ref == "" {
		return
	}
	r.convMu.Lock()
	defer r.convMu.Unlock()
	r.convs[conversationKey(channelId, dest.Ref)] = ConversationInfo{
		ChannelId:  channelId,
		Ref:        dest.Ref,
		Metadata:   dest.Metadata,
		LastSeenMs: time.Now().UnixMilli(),
	}
}

// Conversations returns every known conversation, in no particular order.
func (r *Registry) Conversations() []ConversationInfo {
	r.convMu.RLock()
	defer r.convMu.RUnlock()
	out := make([]ConversationInfo, 0, len(r.convs))
	for _, c := range r.convs {
		out = append(out, c)
	}
	return out
}

// ConversationGet returns the known conversation for channelId/ref, or
// false if none has been seen.
func (r *Registry) ConversationGet(channelId, ref string) (ConversationInfo, bool) {
	r.convMu.RLock()
	defer r.convMu.RUnlock()
	c, ok := r.convs[conversationKey(channelId, ref)]
	return c, ok
}

// UnbindConversation forgets a known conversation. Returns true if one
// existed.
func (r *Registry) UnbindConversation(channelId, ref string) bool {
	r.convMu.Lock()
	defer r.convMu.Unlock()
	key := conversationKey(channelId, ref)
	if _, ok := r.convs[key]; !ok {
		return false
	}
	delete(r.convs, key)
	return true
}
