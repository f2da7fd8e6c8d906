// Package scheduler holds named cron jobs and runs a single timer-tick
// loop that fires each job at its configured cadence, alongside an
// explicit trigger() entry point for immediate, off-cycle execution.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/opslane/agentd/internal/rpcerr"
)

// JobFunc is the work a scheduled job performs.
type JobFunc func(ctx context.Context) error

// JobInfo is the list() projection of one job.
type JobInfo struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	NextRun    *time.Time `json:"nextRun"`
	LastRun    *time.Time `json:"lastRun,omitempty"`
	LastResult string     `json:"lastResult,omitempty"`
	Enabled    bool       `json:"enabled"`
}

type job struct {
	name     string
	schedule string
	fn       JobFunc
	enabled  bool

	lastRun    *time.Time
	lastResult string
}

// Scheduler holds named cron jobs, each described by a cron-style
// expression, and drives them from a single tick loop.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	gron    gronx.Gronx
	tick    time.Duration
}

// New constructs an empty Scheduler. tick controls how often the
// background loop checks job due-ness; 0 defaults to one minute.
func New(tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Scheduler{
		jobs: make(map[string]*job),
		gron: gronx.New(),
		tick: tick,
	}
}

// Add registers a named job. schedule must be a valid cron expression.
func (s *Scheduler) Add(name, schedule string, fn JobFunc) error {
	if !s.gron.IsValid(schedule) {
		return rpcerr.New(rpcerr.ConfigInvalid, "invalid cron expression %q for job %q", schedule, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = &job{name: name, schedule: schedule, fn: fn, enabled: true}
	return nil
}

// Disable marks a job as not currently scheduled; list() reports a nil
// nextRun for it, but trigger() still works.
func (s *Scheduler) Disable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		j.enabled = false
	}
}

// Enable re-enables a previously disabled job.
func (s *Scheduler) Enable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		j.enabled = true
	}
}

// SetLastRun seeds a job's lastRun/lastResult from persisted state (e.g. on
// daemon start-up), so scheduler.list reports history across restarts even
// though the scheduler itself holds no durable queue.
func (s *Scheduler) SetLastRun(name string, at time.Time, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		t := at
		j.lastRun = &t
		j.lastResult = result
	}
}

// List returns {name, schedule, nextRun} for every job. nextRun is nil
// when the job is disabled.
func (s *Scheduler) List() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		info := JobInfo{
			Name:       j.name,
			Schedule:   j.schedule,
			Enabled:    j.enabled,
			LastRun:    j.lastRun,
			LastResult: j.lastResult,
		}
		if j.enabled {
			if next, err := s.gron.NextTick(j.schedule, false); err == nil {
				info.NextRun = &next
			}
		}
		out = append(out, info)
	}
	return out
}

// Trigger executes a job immediately, outside its scheduled cadence.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return rpcerr.New(rpcerr.InvalidParams, "unknown scheduler job %q", name)
	}
	s.runJob(ctx, j)
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	err := j.fn(ctx)
	now := time.Now()
	s.mu.Lock()
	j.lastRun = &now
	if err != nil {
		j.lastResult = "error: " + err.Error()
	} else {
		j.lastResult = "ok"
	}
	s.mu.Unlock()
	if err != nil {
		slog.Error("scheduler: job failed", "job", j.name, "error", err)
	}
}

// Run drives the single timer-tick loop until ctx is cancelled, firing
// every enabled job whose cron expression is due at each tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.checkDue(ctx, now)
		}
	}
}

func (s *Scheduler) checkDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]*job, 0)
	for _, j := range s.jobs {
		if !j.enabled {
			continue
		}
		if ok, err := s.gron.IsDue(j.schedule, now); err == nil && ok {
			due = append(due, j)
		}
	}
	s.mu.Unlock()
	for _, j := range due {
		go s.runJob(ctx, j)
	}
}
