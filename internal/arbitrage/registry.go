package arbitrage

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds named tier tables so several pairs can share one table.
type Registry struct {
	tables map[string]*TierTable
	mu     sync.RWMutex
}

// NewRegistry returns an empty registry. Call Register to add tables.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*TierTable)}
}

// Register adds a table under its own name. Registering a name twice is an
// error.
func (r *Registry) Register(t *TierTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tables[t.name]; dup {
		return fmt.Errorf("tier table %q already registered", t.name)
	}
	r.tables[t.name] = t
	return nil
}

// Get returns the table by name, or an error if not found.
func (r *Registry) Get(name string) (*TierTable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("tier table %q not found", name)
	}
	return t, nil
}

// List returns all registered table names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for n := range r.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
