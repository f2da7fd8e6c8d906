package transport

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"
)

func TestServeEchoesFrames(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "test.sock")

	srv, err := NewServer(sockPath, func(ctx context.Context, conn *Conn) {
		for {
			frame, err := conn.ReadFrame()
			if err != nil {
				return
			}
			if err := conn.WriteFrame(json.RawMessage(frame)); err != nil {
				return
			}
		}
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	time.Sleep(20 * time.Millisecond)

	rawClient, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client := newConn(rawClient)
	defer client.Close()

	if err := client.WriteFrame(map[string]string{"id": "1", "method": "daemon.ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(frame) == "" {
		t.Error("expected echoed frame, got empty")
	}
}

func TestSocketPathResolution(t *testing.T) {
	if got := SocketPath("/explicit/path.sock"); got != "/explicit/path.sock" {
		t.Errorf("override not honored: %s", got)
	}
	t.Setenv("AGENTD_SOCKET", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	if got := SocketPath(""); got != "/run/user/1000/agentd-daemon.sock" {
		t.Errorf("XDG_RUNTIME_DIR path = %s", got)
	}
	t.Setenv("XDG_RUNTIME_DIR", "")
	if got := SocketPath(""); got != "/tmp/agentd-daemon.sock" {
		t.Errorf("fallback path = %s", got)
	}
}
