package planner

import "github.com/wondertwin-ai/hdtest/internal/descriptor"

// Registry resolves producer lookups during insertion: Lookup finds an API
// by its exact descriptor name (used for var_new's Get/Delete satellites),
// and Producer finds any API that either lists varName in its Produces set
// or constructs it via var_new.
type Registry interface {
	Lookup(name string) (*descriptor.ConcreteAPI, bool)
	Producer(varName string) (*descriptor.ConcreteAPI, bool)
}

// MapRegistry is the in-memory Registry built from a flat slice of concrete
// APIs (the output of internal/descriptor.Expand across every descriptor in
// a loaded project).
type MapRegistry struct {
	byName     map[string]*descriptor.ConcreteAPI
	byProduces map[string]*descriptor.ConcreteAPI
}

// NewMapRegistry indexes apis by name and by produced variable. When more
// than one API produces the same variable, the first one encountered (in
// slice order) wins; callers should pass APIs in a stable, deterministic
// order (e.g. sorted by descriptor name) for reproducible plans.
func NewMapRegistry(apis []*descriptor.ConcreteAPI) *MapRegistry {
	r := &MapRegistry{
		byName:     map[string]*descriptor.ConcreteAPI{},
		byProduces: map[string]*descriptor.ConcreteAPI{},
	}
	for _, api := range apis {
		r.byName[api.Name] = api
		for v := range api.Produces {
			if _, ok := r.byProduces[v]; !ok {
				r.byProduces[v] = api
			}
		}
		if api.VarNew != nil && api.VarNew.Name != "" {
			if _, ok := r.byProduces[api.VarNew.Name]; !ok {
				r.byProduces[api.VarNew.Name] = api
			}
		}
	}
	return r
}

func (r *MapRegistry) Lookup(name string) (*descriptor.ConcreteAPI, bool) {
	api, ok := r.byName[name]
	return api, ok
}

func (r *MapRegistry) Producer(varName string) (*descriptor.ConcreteAPI, bool) {
	api, ok := r.byProduces[varName]
	return api, ok
}
