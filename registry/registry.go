// Package registry maintains the catalog of known executors. The catalog
// is seeded from static configuration at startup, appended to at runtime
// by the discovery tier, and read by the scorer through copy-on-read
// snapshots. Entries are never deleted mid-process, only marked inactive.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/toolroute/toolroute/core"
)

// Registry is the in-process executor catalog. It is thread-safe for
// concurrent access; all reads return copies so callers can never mutate
// shared state. An optional RegistrySource provides durability.
type Registry struct {
	// executors maps executor ids to their descriptors
	executors map[string]*core.ExecutorDescriptor
	// categoryIndex provides fast lookup of executor ids by category
	categoryIndex map[core.Category][]string
	// mu protects concurrent access to the catalog
	mu sync.RWMutex
	// source is the optional durable backing store
	source core.RegistrySource

	logger core.Logger
}

// New creates a registry. source may be nil for a purely in-memory
// catalog.
func New(source core.RegistrySource) *Registry {
	return &Registry{
		executors:     make(map[string]*core.ExecutorDescriptor),
		categoryIndex: make(map[core.Category][]string),
		source:        source,
		logger:        &core.NoOpLogger{},
	}
}

// SetLogger sets the logger provider.
func (r *Registry) SetLogger(logger core.Logger) {
	if logger == nil {
		r.logger = &core.NoOpLogger{}
	} else {
		r.logger = logger
	}
}

// Seed loads the static catalog entries. Called once at startup; entries
// are written through to the backing source when one is configured.
func (r *Registry) Seed(ctx context.Context, descriptors []*core.ExecutorDescriptor) error {
	for _, d := range descriptors {
		if err := r.Append(ctx, d); err != nil {
			return fmt.Errorf("failed to seed executor %s: %w", d.ID, err)
		}
	}

	r.logger.Info("Registry seeded", map[string]interface{}{
		"operation":      "registry_seed",
		"executor_count": len(descriptors),
	})
	return nil
}

// Sync replaces the in-memory catalog from the backing source. It is a
// no-op without a source. The swap is atomic so concurrent readers see
// either the old or the new catalog, never a mix.
func (r *Registry) Sync(ctx context.Context) error {
	if r.source == nil {
		return nil
	}
	syncStart := time.Now()

	descriptors, err := r.source.ListActive(ctx)
	if err != nil {
		r.logger.Error("Failed to list executors from source", map[string]interface{}{
			"operation":   "registry_sync",
			"error":       err.Error(),
			"duration_ms": time.Since(syncStart).Milliseconds(),
		})
		return fmt.Errorf("failed to sync registry: %w", err)
	}

	next := make(map[string]*core.ExecutorDescriptor, len(descriptors))
	nextIndex := make(map[core.Category][]string)
	for _, d := range descriptors {
		copied := *d
		next[d.ID] = &copied
		for cat := range d.Affinities {
			nextIndex[cat] = append(nextIndex[cat], d.ID)
		}
	}

	r.mu.Lock()
	r.executors = next
	r.categoryIndex = nextIndex
	r.mu.Unlock()

	r.logger.Info("Registry synced", map[string]interface{}{
		"operation":      "registry_sync",
		"executor_count": len(next),
		"duration_ms":    time.Since(syncStart).Milliseconds(),
	})
	return nil
}

// Append adds or replaces an executor descriptor. Used for both static
// seeding and runtime additions from the discovery tier.
func (r *Registry) Append(ctx context.Context, d *core.ExecutorDescriptor) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("descriptor missing id: %w", core.ErrInvalidConfiguration)
	}

	if r.source != nil {
		if err := r.source.Append(ctx, d); err != nil {
			r.logger.Error("Failed to persist executor", map[string]interface{}{
				"operation":   "registry_append",
				"executor_id": d.ID,
				"error":       err.Error(),
			})
			return fmt.Errorf("failed to persist executor %s: %w", d.ID, err)
		}
	}

	copied := *d
	r.mu.Lock()
	_, existed := r.executors[d.ID]
	r.executors[d.ID] = &copied
	if !existed {
		for cat := range d.Affinities {
			r.categoryIndex[cat] = append(r.categoryIndex[cat], d.ID)
		}
	}
	r.mu.Unlock()

	r.logger.Debug("Executor registered", map[string]interface{}{
		"operation":   "registry_append",
		"executor_id": d.ID,
		"kind":        d.Kind,
		"replaced":    existed,
	})
	return nil
}

// MarkInactive marks an executor as no longer eligible without removing
// it from the catalog.
func (r *Registry) MarkInactive(ctx context.Context, id string) error {
	r.mu.Lock()
	d, ok := r.executors[id]
	if ok {
		d.Active = false
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("executor %s: %w", id, core.ErrExecutorNotFound)
	}

	if r.source != nil {
		copied := *d
		if err := r.source.Append(ctx, &copied); err != nil {
			return fmt.Errorf("failed to persist inactive state for %s: %w", id, err)
		}
	}

	r.logger.Info("Executor marked inactive", map[string]interface{}{
		"operation":   "registry_deactivate",
		"executor_id": id,
	})
	return nil
}

// Get returns a copy of one executor descriptor.
func (r *Registry) Get(id string) (*core.ExecutorDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.executors[id]
	if !ok {
		return nil, false
	}
	copied := *d
	return &copied, true
}

// IsActive reports whether an executor exists and is active.
func (r *Registry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.executors[id]
	return ok && d.Active
}

// Snapshot returns copies of all active executors. This is the scorer's
// read path; the copies make scoring safe to run concurrently with
// registry updates.
func (r *Registry) Snapshot() []*core.ExecutorDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*core.ExecutorDescriptor, 0, len(r.executors))
	for _, d := range r.executors {
		if !d.Active {
			continue
		}
		copied := *d
		out = append(out, &copied)
	}
	return out
}

// ActiveByCategory returns copies of active executors with a declared
// affinity for the category.
func (r *Registry) ActiveByCategory(c core.Category) []*core.ExecutorDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*core.ExecutorDescriptor
	for _, id := range r.categoryIndex[c] {
		d, ok := r.executors[id]
		if !ok || !d.Active {
			continue
		}
		copied := *d
		out = append(out, &copied)
	}
	return out
}

// Len returns the total number of catalog entries, active or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}
