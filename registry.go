package studygraph

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds one engine per corpus so a single process can serve
// several courses. Engines are created on demand by the factory and
// reused afterwards.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	factory func(ctx context.Context, corpusID string) (Engine, error)
}

// NewRegistry creates a registry. The factory builds an engine for a
// corpus ID on first use; a nil factory makes Get fail for corpora
// that were never Put.
func NewRegistry(factory func(ctx context.Context, corpusID string) (Engine, error)) *Registry {
	return &Registry{
		engines: make(map[string]Engine),
		factory: factory,
	}
}

// Get returns the engine for corpusID, creating it through the
// factory if needed.
func (r *Registry) Get(ctx context.Context, corpusID string) (Engine, error) {
	r.mu.RLock()
	engine, ok := r.engines[corpusID]
	r.mu.RUnlock()
	if ok {
		return engine, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if engine, ok := r.engines[corpusID]; ok {
		return engine, nil
	}
	if r.factory == nil {
		return nil, fmt.Errorf("no engine registered for corpus %q", corpusID)
	}
	engine, err := r.factory(ctx, corpusID)
	if err != nil {
		return nil, fmt.Errorf("creating engine for corpus %q: %w", corpusID, err)
	}
	r.engines[corpusID] = engine
	return engine, nil
}

// Put registers an engine for corpusID, replacing any existing one.
// The replaced engine is returned so the caller can close it.
func (r *Registry) Put(corpusID string, engine Engine) Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.engines[corpusID]
	r.engines[corpusID] = engine
	return old
}

// Corpora lists the registered corpus IDs in sorted order.
func (r *Registry) Corpora() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every registered engine and empties the registry. The
// first error is returned.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing engine for corpus %q: %w", id, err)
		}
		delete(r.engines, id)
	}
	return firstErr
}
