package composition

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds compositions by their stable identifier.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Composition
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Composition)}
}

// Register adds a composition. IDs are unique.
func (r *Registry) Register(c Composition) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[c.ID]; exists {
		return fmt.Errorf("composition %q already registered", c.ID)
	}
	r.items[c.ID] = c
	return nil
}

func (r *Registry) Lookup(id string) (Composition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return Composition{}, fmt.Errorf("unknown composition: %s", id)
	}
	return c, nil
}

// List returns compositions sorted by ID.
func (r *Registry) List() []Composition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Composition, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) IDs() []string {
	list := r.List()
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	return ids
}
