package inject

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPipelineConcatenatesInOrder(t *testing.T) {
	p := NewPipeline(stubInjector{name: "a", system: "first"}, stubInjector{name: "b", system: "second"})
	out := p.RunSystemContext(context.Background(), Context{Now: time.Now()})
	if out != "first\n\nsecond" {
		t.Errorf("got %q", out)
	}
}

func TestPulseInjectorInactiveWithoutMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.txt")
	if err := os.WriteFile(path, []byte("pulse body"), 0o644); err != nil {
		t.Fatal(err)
	}
	inj := PulseInjector{FilePath: path}
	out, err := inj.InjectSystemContext(context.Background(), Context{Metadata: map[string]interface{}{}})
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("expected empty contribution, got %q", out)
	}
}

func TestPulseInjectorActiveWithBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.txt")
	if err := os.WriteFile(path, []byte("pulse body"), 0o644); err != nil {
		t.Fatal(err)
	}
	inj := PulseInjector{FilePath: path}
	out, err := inj.InjectSystemContext(context.Background(), Context{Metadata: map[string]interface{}{"isPulse": true}})
	if err != nil {
		t.Fatal(err)
	}
	if out == "" {
		t.Error("expected a non-empty contribution when isPulse is set")
	}
}

func TestPulseInjectorMissingFileProceedsEmpty(t *testing.T) {
	inj := PulseInjector{FilePath: "/nonexistent/pulse.txt"}
	out, err := inj.InjectSystemContext(context.Background(), Context{Metadata: map[string]interface{}{"isPulse": true}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "" {
		t.Errorf("expected empty contribution for missing file, got %q", out)
	}
}

func TestDatetimeInjectorRendersTimestamp(t *testing.T) {
	inj := DatetimeInjector{}
	out, err := inj.InjectSystemContext(context.Background(), Context{Now: time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatal(err)
	}
	if out == "" {
		t.Error("expected non-empty timestamp contribution")
	}
}

type stubInjector struct {
	name   string
	system string
}

func (s stubInjector) Name() string { return s.name }
func (s stubInjector) InjectSystemContext(ctx context.Context, ictx Context) (string, error) {
	return s.system, nil
}
func (s stubInjector) InjectResumeContext(ctx context.Context, ictx Context) ([]CheckpointMessage, error) {
	return nil, nil
}
