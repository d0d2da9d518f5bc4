package registry

import "sync"

// Assert that InMemoryRegistry implements the Registry interface
var _ Registry = (*InMemoryRegistry)(nil)

// InMemoryRegistry is a Registry backed by a map. A later Set for the same
// id replaces the earlier entry.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	configs map[string]Config
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		configs: make(map[string]Config),
	}
}

func (r *InMemoryRegistry) Set(id string, cfg Config) {
	cfg = cfg.clone()
	if cfg.MimeType == "" {
		cfg.MimeType = DefaultMimeType
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[id] = cfg
}

func (r *InMemoryRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, id)
}

// Get returns a copy of the entry so callers cannot alter registered key material.
func (r *InMemoryRegistry) Get(id string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[id]
	if !ok {
		return Config{}, ErrNotFound
	}
	return cfg.clone(), nil
}

func (r *InMemoryRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.configs)
}

func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.configs)
}
