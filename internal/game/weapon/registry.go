package weapon

import (
	"fmt"
	"sort"

	"github.com/cory-johannsen/melee/internal/game/anim"
)

// Registry holds weapon profiles indexed by ID.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*Profile)}
}

// Register adds p to the registry.
//
// Precondition: p must not be nil.
// Postcondition: Get(p.ID) returns p; returns an error if p.ID is already registered.
func (r *Registry) Register(p *Profile) error {
	if _, exists := r.profiles[p.ID]; exists {
		return fmt.Errorf("weapon: Registry.Register: weapon ID %q already registered", p.ID)
	}
	r.profiles[p.ID] = p
	return nil
}

// Get returns the profile for id.
func (r *Registry) Get(id string) (*Profile, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// All returns every registered profile sorted by ID.
func (r *Registry) All() []*Profile {
	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Load builds a Registry from the profiles in dir.
//
// Postcondition: Returns a populated Registry or the first load error.
func Load(dir string, catalog *anim.Catalog) (*Registry, error) {
	profiles, err := LoadProfiles(dir, catalog)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	for _, p := range profiles {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
