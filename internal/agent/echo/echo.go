// Package echo provides the daemon's bootstrap Adapter: a trivial,
// deterministic stand-in for the real LLM inference the daemon never
// implements (spec non-goal — see §1). It lets the session run-loop,
// checkpoint/restore, and durable-step machinery run end-to-end without an
// inference backend wired in, exactly the "opaque producer of a canonical
// event stream" role §1 assigns to the adapter boundary.
package echo

import (
	"context"
	"fmt"

	"github.com/opslane/agentd/internal/agent"
)

// Adapter echoes back each input message as its final output for the
// turn, optionally annotated with a model override label. It never calls
// a tool and always signals Done after a single turn, so it is only
// useful for exercising the daemon's control plane and session lifecycle,
// not for anything resembling real reasoning.
type Adapter struct {
	name          string
	modelOverride string
}

// New constructs an echo Adapter. name distinguishes it from other
// registered adapters (e.g. in multi-tenant configurations); modelOverride
// is recorded but only ever surfaces in the echoed text.
func New(name, modelOverride string) *Adapter {
	if name == "" {
		name = "echo"
	}
	return &Adapter{name: name, modelOverride: modelOverride}
}

func (a *Adapter) Name() string { return a.name }

// Step returns the latest user message, prefixed with the adapter name and
// (if set) the model override, as the turn's final output.
func (a *Adapter) Step(ctx context.Context, req agent.StepRequest) (agent.StepResult, error) {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}

	label := a.name
	if a.modelOverride != "" {
		label = fmt.Sprintf("%s(%s)", a.name, a.modelOverride)
	}

	return agent.StepResult{
		Thought: "echoing input",
		Output:  fmt.Sprintf("[%s] %s", label, last),
		Final:   true,
		Done:    true,
	}, nil
}
