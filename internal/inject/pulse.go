package inject

import (
	"context"
	"os"
)

// PulseInjector activates only when metadata.isPulse is set, concatenating
// the contents of a configured file with a response-mode or silent-mode
// instruction block.
type PulseInjector struct {
	FilePath string
}

func (PulseInjector) Name() string { return "pulse" }

func (p PulseInjector) InjectSystemContext(ctx context.Context, ictx Context) (string, error) {
	if !isPulse(ictx) {
		return "", nil
	}
	body, err := os.ReadFile(p.FilePath)
	if err != nil {
		return "", nil // optional file: proceed with empty contribution
	}

	mode := "silent-mode: acknowledge internally; do not produce user-facing output unless the pulse body requires a reply."
	if responseRequired(ictx) {
		mode = "response-mode: reply to the user as you would for a normal turn."
	}
	return string(body) + "\n\n" + mode, nil
}

func (p PulseInjector) InjectResumeContext(ctx context.Context, ictx Context) ([]CheckpointMessage, error) {
	if !isPulse(ictx) {
		return nil, nil
	}
	body, err := os.ReadFile(p.FilePath)
	if err != nil {
		return nil, nil
	}
	return []CheckpointMessage{{Role: "system", Content: string(body)}}, nil
}

func isPulse(ictx Context) bool {
	v, ok := ictx.Metadata["isPulse"].(bool)
	return ok && v
}

func responseRequired(ictx Context) bool {
	v, ok := ictx.Metadata["pulseResponseRequired"].(bool)
	return ok && v
}
