package cron

import (
	"context"
	"fmt"
	"slices"
)

// Job is one maintenance task run by the cron worker each cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps the jobs of a cycle in run order. Names are unique so that
// metrics and logs keyed by job name stay unambiguous.
type Registry struct {
	jobs     []Job
	disabled map[string]bool
}

// NewRegistry registers jobs in order, skipping nil entries. It panics on a
// duplicate name since that is a wiring mistake.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{disabled: map[string]bool{}}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if err := r.Register(job); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("cron: nil job")
	}
	name := job.Name()
	if slices.ContainsFunc(r.jobs, func(j Job) bool { return j.Name() == name }) {
		return fmt.Errorf("cron: job %q registered twice", name)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Disable keeps the named jobs registered but out of every cycle. Unknown
// names are reported so a typo in configuration is not silently ignored.
func (r *Registry) Disable(names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		if !slices.ContainsFunc(r.jobs, func(j Job) bool { return j.Name() == name }) {
			return fmt.Errorf("cron: unknown job %q", name)
		}
		r.disabled[name] = true
	}
	return nil
}

// Jobs returns a copy of the enabled jobs in registration order.
func (r *Registry) Jobs() []Job {
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if !r.disabled[job.Name()] {
			out = append(out, job)
		}
	}
	return out
}
