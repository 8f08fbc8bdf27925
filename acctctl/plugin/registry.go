package plugin

import (
	"fmt"
	"sort"

	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/record"
)

// Registry holds the installed plugins by id.
type Registry struct {
	plugins map[string]Plugin
	owners  map[string]string // attribute -> plugin id
}

func NewRegistry() *Registry {
	return &Registry{plugins: map[string]Plugin{}, owners: map[string]string{}}
}

// DefaultRegistry returns a registry with the built-in plugins.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range []Plugin{&Quota{}, &PasswordPolicy{}, &SSHKeys{}} {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds p. Duplicate ids and keys claimed by the core schema or by
// another plugin are rejected.
func (r *Registry) Register(p Plugin) error {
	id := p.ID()
	if id == "" {
		return fmt.Errorf("plugin without id")
	}
	if _, ok := r.plugins[id]; ok {
		return fmt.Errorf("plugin %s is already registered", id)
	}
	for _, key := range p.Keys() {
		if record.IsCoreKey(key) || key == "plugins" {
			return fmt.Errorf("plugin %s: attribute %s belongs to the core schema", id, key)
		}
		if owner, ok := r.owners[key]; ok {
			return fmt.Errorf("plugin %s: attribute %s already belongs to plugin %s", id, key, owner)
		}
	}
	for _, key := range p.Keys() {
		r.owners[key] = id
	}
	r.plugins[id] = p
	return nil
}

func (r *Registry) Get(id string) (Plugin, error) {
	p, ok := r.plugins[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", accterr.ErrUnknownPlugin, id)
	}
	return p, nil
}

// All returns the registered plugins ordered by id.
func (r *Registry) All() []Plugin {
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Owner returns the plugin id owning attribute key.
func (r *Registry) Owner(key string) (string, bool) {
	id, ok := r.owners[key]
	return id, ok
}
