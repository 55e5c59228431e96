package main

import (
	"context"
	"fmt"
)

// Handler executes one task invocation. arg is the text after "name:" in the task spec.
type Handler func(ctx context.Context, s *Session, arg string) error

// Task describes a named task the operator can invoke.
type Task struct {
	Name     string
	Help     string
	NeedsArg bool
	Handler  Handler
}

// Registry maps task names to tasks, preserving registration order for --list.
type Registry struct {
	tasks map[string]Task
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Register adds t. It panics if a task with the same name already exists.
func (r *Registry) Register(t Task) {
	if _, exists := r.tasks[t.Name]; exists {
		panic(fmt.Sprintf("task %s already registered", t.Name))
	}
	r.tasks[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Lookup returns the task and whether it exists.
func (r *Registry) Lookup(name string) (Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Tasks returns every task in registration order.
func (r *Registry) Tasks() []Task {
	out := make([]Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name])
	}
	return out
}
