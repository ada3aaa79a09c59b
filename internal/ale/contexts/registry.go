package contexts

import "fmt"

// Registry is a read-only lookup of contexts by id. It is built once during
// setup and never mutated afterwards, so the engine can read it from the
// audio thread without synchronization.
type Registry struct {
	byID map[string]*Context
}

// NewRegistry builds a registry from the given contexts. Duplicate ids are
// an authoring error.
func NewRegistry(ctxs ...*Context) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Context, len(ctxs))}
	for _, c := range ctxs {
		if c.ID == "" {
			return nil, fmt.Errorf("context with empty id")
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate context id %q", c.ID)
		}
		r.byID[c.ID] = c
	}
	return r, nil
}

// Get returns the context for id, or nil when unknown. Unknown contexts are
// a normal outcome (the engine ignores switches to them), not an error.
func (r *Registry) Get(id string) *Context {
	if r == nil {
		return nil
	}
	return r.byID[id]
}

// Len returns the number of registered contexts.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byID)
}

// IDs returns the registered context ids in unspecified order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}
