package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opslane/agentd/internal/canon"
	"github.com/opslane/agentd/internal/channels"
)

func TestProcessRecordsIntent(t *testing.T) {
	ch := New("m1")
	intent := canon.AgentResponding{}
	conf, err := ch.Process(context.Background(), intent)
	if err != nil || !conf.Success {
		t.Fatalf("process failed: %v", err)
	}
	recorded := ch.Recorded()
	if len(recorded) != 1 {
		t.Fatalf("expected 1 recorded intent, got %d", len(recorded))
	}
}

func TestFailNextForMakesProcessFail(t *testing.T) {
	ch := New("m1")
	wantErr := errors.New("synthetic failure")
	ch.FailNextFor("agent_responding", wantErr)

	_, err := ch.Process(context.Background(), canon.AgentResponding{})
	if err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if len(ch.Recorded()) != 0 {
		t.Error("a failed process call should not be recorded")
	}
}

func TestDelayForDelaysProcess(t *testing.T) {
	ch := New("m1")
	ch.DelayFor("agent_responding", 30*time.Millisecond)

	start := time.Now()
	if _, err := ch.Process(context.Background(), canon.AgentResponding{}); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Error("expected Process to respect the configured delay")
	}
}

func TestSimulateInboundDoesNotTouchNetwork(t *testing.T) {
	ch := New("m1")
	received := make(chan canon.InboundEvent, 1)
	ch.Subscribe(func(ev canon.InboundEvent) error {
		received <- ev
		return nil
	})

	ch.SimulateInbound(canon.MessageReceived{})
	select {
	case ev := <-received:
		if ev.Kind() != "message_received" {
			t.Errorf("kind = %q", ev.Kind())
		}
	case <-time.After(time.Second):
		t.Fatal("expected simulated inbound event to be delivered")
	}
}

func TestSimulateLifecycleUpdatesStatus(t *testing.T) {
	ch := New("m1")
	ch.SimulateLifecycle(channels.StatusConnected, nil)
	if ch.Status() != channels.StatusConnected {
		t.Errorf("status = %v", ch.Status())
	}
}
