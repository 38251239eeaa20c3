package task

import "context"

// Registry holds all registered tasks, preserving registration order for
// listing and bulk runs. Go maps do not iterate deterministically, so the
// order is tracked separately and RunAll returns an ordered slice.
type Registry struct {
	order []string
	tasks map[string]*Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Register adds a task. Registering a duplicate name overwrites the previous
// task silently and keeps its original position.
func (r *Registry) Register(t *Task) {
	if _, exists := r.tasks[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tasks[t.Name()] = t
}

// Get returns the task with the given name, or nil.
func (r *Registry) Get(name string) *Task {
	return r.tasks[name]
}

// All returns the tasks in registration order.
func (r *Registry) All() []*Task {
	out := make([]*Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name])
	}
	return out
}

// Names returns the task names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// RunAll executes every task's health checks sequentially, in registration
// order, and returns one report per task in that same order.
func (r *Registry) RunAll(ctx context.Context) []Report {
	reports := make([]Report, 0, len(r.order))
	for _, name := range r.order {
		reports = append(reports, r.tasks[name].RunHealthChecks(ctx))
	}
	return reports
}
