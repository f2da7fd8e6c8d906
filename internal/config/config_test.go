package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "agentd.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{"daemon":{"requestTimeoutMs":5000},"telegram":{"token":"abc"}}`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := m.Get()
	if cfg.Daemon.RequestTimeoutMs != 5000 {
		t.Errorf("requestTimeoutMs = %d", cfg.Daemon.RequestTimeoutMs)
	}
	if cfg.Telegram.Token != "abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
}

func TestLoadRejectsInvalidSchedulerJob(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{"scheduler":[{"name":"","schedule":"0 0 * * *"}]}`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for missing job name")
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"telegram":{"token":"v1"}}`)
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(`{"telegram":{"token":"v2"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := m.Get().Telegram.Token; got != "v2" {
		t.Errorf("token after reload = %q", got)
	}
}

func TestWatchTriggersOnReloadCallback(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"telegram":{"token":"v1"}}`)
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	called := make(chan struct{}, 1)
	stop, err := m.Watch(func() {
		_ = m.Reload()
		select {
		case called <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"telegram":{"token":"v2"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("onReload callback was not invoked after file write")
	}
}
