// Package inject implements the pluggable context-injector pipeline run for
// every new or resumed agent session.
package inject

import (
	"context"
	"time"
)

// Context is the value handed to every injector hook.
type Context struct {
	Timezone     *time.Location
	Now          time.Time
	SessionId    string
	GuidancePath string
	Metadata     map[string]interface{}
}

// CheckpointMessage is one message an injector contributes to the message
// history before the next turn.
type CheckpointMessage struct {
	Role    string
	Content string
}

// Injector contributes to a session's system prompt and/or resume message
// history. An injector that fails to read an optional resource proceeds
// with an empty contribution rather than failing the pipeline.
type Injector interface {
	Name() string
	InjectSystemContext(ctx context.Context, ictx Context) (string, error)
	InjectResumeContext(ctx context.Context, ictx Context) ([]CheckpointMessage, error)
}

// Pipeline runs an ordered list of injectors and concatenates their
// contributions.
type Pipeline struct {
	injectors []Injector
}

// NewPipeline builds a Pipeline from injectors, run in the given order.
func NewPipeline(injectors ...Injector) *Pipeline {
	return &Pipeline{injectors: injectors}
}

// RunSystemContext concatenates every injector's system-context
// contribution, in declared order, separated by blank lines. An injector
// error yields an empty contribution for that injector rather than
// aborting the pipeline.
func (p *Pipeline) RunSystemContext(ctx context.Context, ictx Context) string {
	var out string
	for _, inj := range p.injectors {
		part, err := inj.InjectSystemContext(ctx, ictx)
		if err != nil || part == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += part
	}
	return out
}

// RunResumeContext concatenates every injector's resume-context
// contribution, in declared order.
func (p *Pipeline) RunResumeContext(ctx context.Context, ictx Context) []CheckpointMessage {
	var out []CheckpointMessage
	for _, inj := range p.injectors {
		msgs, err := inj.InjectResumeContext(ctx, ictx)
		if err != nil {
			continue
		}
		out = append(out, msgs...)
	}
	return out
}
