package cron

import (
	"context"
	"fmt"
)

// Job is one unit of scheduled work. Runs must be safe to repeat and safe to
// run concurrently with API traffic. Run reports how many rows it acted on.
type Job interface {
	Name() string
	Run(ctx context.Context) (int64, error)
}

// Registry holds the jobs a worker executes each tick, in registration order.
type Registry struct {
	jobs  []Job
	names map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]bool{}}
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("job required")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if r.names[name] {
		return fmt.Errorf("job %q already registered", name)
	}
	r.names[name] = true
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Registry) Jobs() []Job {
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}
