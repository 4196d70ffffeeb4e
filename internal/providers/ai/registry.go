package ai

import (
	"sort"
	"strings"
)

// Registry indexes providers by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider with the same name. Nil is ignored.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.providers[strings.ToLower(p.Name())] = p
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	return len(r.providers)
}
