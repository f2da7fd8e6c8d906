package inject

import "context"

// DatetimeInjector renders a fixed human-readable timestamp with timezone
// abbreviation for both hooks.
type DatetimeInjector struct{}

func (DatetimeInjector) Name() string { return "datetime" }

func (DatetimeInjector) InjectSystemContext(ctx context.Context, ictx Context) (string, error) {
	return render(ictx), nil
}

func (DatetimeInjector) InjectResumeContext(ctx context.Context, ictx Context) ([]CheckpointMessage, error) {
	return []CheckpointMessage{{Role: "system", Content: render(ictx)}}, nil
}

func render(ictx Context) string {
	now := ictx.Now
	if ictx.Timezone != nil {
		now = now.In(ictx.Timezone)
	}
	return "Current time: " + now.Format("Mon Jan 2 2006 15:04:05 MST")
}
