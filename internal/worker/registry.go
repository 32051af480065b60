// Package worker claims due jobs from the store and dispatches them to
// registered processors.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Handler executes one claimed job. It receives the job's canonical JSON
// payload and returns an error if the execution failed. Wrap the error with
// NonRetryable to fail the job without further attempts.
type Handler func(ctx context.Context, payload string) error

// Registry maps job types to their handlers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs the handler for a job type, replacing any previous one.
func (r *Registry) Register(jobType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
	slog.Debug("Registry.Register", "jobType", jobType)
}

// Handler returns the handler for a job type.
func (r *Registry) Handler(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types returns the registered job types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Dispatch runs the handler registered for jobType. A panicking handler is
// recovered and reported as an ordinary error so one bad job cannot take the
// worker down.
func (r *Registry) Dispatch(ctx context.Context, jobType, payload string) (err error) {
	h, ok := r.Handler(jobType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler for %s panicked: %v", jobType, p)
		}
	}()
	return h(ctx, payload)
}
