package transition

import "fmt"

// Registry is a read-only lookup of transition profiles. A registry is never
// empty: construction fails unless a profile with id "default" is present,
// so Get can always fall back.
type Registry struct {
	byID map[string]*Profile
}

// NewRegistry builds a registry from the given profiles. A "default"
// profile is required; duplicate ids are an authoring error.
func NewRegistry(profiles ...*Profile) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("transition profile with empty id")
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate transition profile id %q", p.ID)
		}
		r.byID[p.ID] = p
	}
	if _, ok := r.byID[DefaultProfileID]; !ok {
		return nil, fmt.Errorf("transition registry requires a %q profile", DefaultProfileID)
	}
	return r, nil
}

// WithBuiltins returns a registry seeded with the stock profiles.
func WithBuiltins() *Registry {
	r, err := NewRegistry(Builtins()...)
	if err != nil {
		// Builtins always include "default"; this is unreachable short of a
		// programming error in Builtins itself.
		panic(err)
	}
	return r
}

// Get returns the profile for id, falling back to the default profile when
// id is unknown or empty. It never returns nil.
func (r *Registry) Get(id string) *Profile {
	if p, ok := r.byID[id]; ok {
		return p
	}
	return r.byID[DefaultProfileID]
}

// DefaultProfile returns the registry's default profile.
func (r *Registry) DefaultProfile() *Profile {
	return r.byID[DefaultProfileID]
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int { return len(r.byID) }
