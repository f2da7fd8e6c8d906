package channels

import (
	"context"
	"io"
	"testing"

	"github.com/opslane/agentd/internal/canon"
	"github.com/opslane/agentd/internal/rpcerr"
)

type stubChannel struct {
	*BaseChannel
	processed []canon.OutboundIntent
}

func newStubChannel(id string) *stubChannel {
	return &stubChannel{BaseChannel: NewBaseChannel(id, "stub")}
}

func (s *stubChannel) Connect(ctx context.Context) error    { s.SetStatus(StatusConnected, nil); return nil }
func (s *stubChannel) Disconnect(ctx context.Context) error { s.SetStatus(StatusDisconnected, nil); return nil }
func (s *stubChannel) Process(ctx context.Context, intent canon.OutboundIntent) (Confirmation, error) {
	s.processed = append(s.processed, intent)
	return Confirmation{Success: true}, nil
}
func (s *stubChannel) FetchMedia(ctx context.Context, ref canon.Reference) (io.ReadCloser, error) {
	return nil, nil
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newStubChannel("a")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(newStubChannel("a"))
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	classified, ok := rpcerr.As(err)
	if !ok || classified.Code != rpcerr.ChannelDuplicate {
		t.Errorf("code = %v", err)
	}
}

func TestProcessUnknownChannel(t *testing.T) {
	r := NewRegistry()
	_, err := r.Process(context.Background(), "missing", nil)
	classified, ok := rpcerr.As(err)
	if !ok || classified.Code != rpcerr.ChannelNotFound {
		t.Errorf("expected CHANNEL_NOT_FOUND, got %v", err)
	}
}

func TestUnregisterDisposesSubscription(t *testing.T) {
	r := NewRegistry()
	ch := newStubChannel("a")
	if err := r.Register(ch); err != nil {
		t.Fatal(err)
	}

	var received []AggregateEvent
	r.Subscribe(func(ev AggregateEvent) error {
		received = append(received, ev)
		return nil
	})

	ch.EmitInbound(canon.MessageReceived{})
	r.Unregister("a")
	ch.EmitInbound(canon.MessageReceived{})

	if len(received) != 1 {
		t.Fatalf("expected 1 aggregate event before unregister, got %d", len(received))
	}
}

func TestSubscribeDeliversChannelId(t *testing.T) {
	r := NewRegistry()
	ch := newStubChannel("tg-1")
	if err := r.Register(ch); err != nil {
		t.Fatal(err)
	}

	done := make(chan AggregateEvent, 1)
	r.Subscribe(func(ev AggregateEvent) error {
		done <- ev
		return nil
	})

	ch.EmitInbound(canon.MessageReceived{})
	ev := <-done
	if ev.ChannelId != "tg-1" {
		t.Errorf("channelId = %q", ev.ChannelId)
	}
}

func TestConversationTrackedOnInbound(t *testing.T) {
	r := NewRegistry()
	ch := newStubChannel("tg-1")
	if err := r.Register(ch); err != nil {
		t.Fatal(err)
	}

	dest := canon.Destination{ChannelId: "tg-1", Ref: "1:2:", Metadata: canon.DestinationMetadata{Title: "room"}}
	ev := canon.MessageReceived{}
	// EmitInbound is synchronous, so this blocks until trackConversation runs.
	ch.EmitInbound(withOrigin(ev, dest))

	info, ok := r.ConversationGet("tg-1", "1:2:")
	if !ok || info.Metadata.Title != "room" {
		t.Fatalf("got %+v, %v", info, ok)
	}
	if len(r.Conversations()) != 1 {
		t.Errorf("expected 1 known conversation")
	}
	if !r.UnbindConversation("tg-1", "1:2:") {
		t.Error("expected unbind to succeed")
	}
	if _, ok := r.ConversationGet("tg-1", "1:2:"); ok {
		t.Error("expected conversation to be forgotten after unbind")
	}
}

func withOrigin(ev canon.MessageReceived, dest canon.Destination) canon.MessageReceived {
	ev.Origin = dest
	return ev
}
