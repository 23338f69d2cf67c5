package runwriter

import (
	"context"
	"sync"

	"github.com/choir-run/choir/internal/obs"
)

// Registry ensures at most one Writer exists per run_id within a process
// (spec §5, "a registry that creates at most one RunWriter per run_id").
type Registry struct {
	mu      sync.Mutex
	writers map[string]*Writer
	pathFor func(runID string) string
	pub     obs.Publisher
}

// NewRegistry builds a Registry. pathFor maps a run_id to its document's
// on-disk path.
func NewRegistry(pathFor func(runID string) string, pub obs.Publisher) *Registry {
	return &Registry{
		writers: make(map[string]*Writer),
		pathFor: pathFor,
		pub:     pub,
	}
}

// EnsureRunWriter returns the existing Writer for runID, or starts and
// registers a new one if none exists yet. Idempotent: calling it twice for
// the same run_id returns the same *Writer and only runs Start once.
func (r *Registry) EnsureRunWriter(ctx context.Context, runID, objective string, scope Scope) (*Writer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.writers[runID]; ok {
		return w, nil
	}

	w, err := Start(ctx, r.pathFor(runID), objective, scope, r.pub)
	if err != nil {
		return nil, err
	}
	r.writers[runID] = w
	return w, nil
}

// Get returns the Writer for runID if one has been started, without
// creating it.
func (r *Registry) Get(runID string) (*Writer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.writers[runID]
	return w, ok
}
