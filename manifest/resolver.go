package manifest

import (
	"fmt"

	"github.com/chazu/valence/object"
)

// Resolver creates the classes a manifest declares. Declarations may
// reference each other in any order; the resolver creates ancestors
// before descendants and rejects inheritance cycles.
type Resolver struct {
	manifest *Manifest
}

// NewResolver creates a resolver for the given manifest.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// applyState tracks one Apply pass.
type applyState struct {
	reg      *object.Registry
	decls    map[string]*ClassDecl
	created  map[string]*object.Class
	visiting map[string]bool
	order    []*object.Class
}

// Apply creates every declared class in reg and returns them in creation
// order (ancestors before dependents). Ancestor names that are not declared
// in the manifest must already exist in reg; declared names must not.
func (r *Resolver) Apply(reg *object.Registry) ([]*object.Class, error) {
	st := &applyState{
		reg:      reg,
		decls:    make(map[string]*ClassDecl, len(r.manifest.Classes)),
		created:  make(map[string]*object.Class, len(r.manifest.Classes)),
		visiting: make(map[string]bool),
	}

	// Validate the declaration set before creating anything.
	for i := range r.manifest.Classes {
		decl := &r.manifest.Classes[i]
		if decl.Name == "" {
			return nil, fmt.Errorf("class declaration %d has no name", i)
		}
		if _, ok := st.decls[decl.Name]; ok {
			return nil, fmt.Errorf("class %q declared twice", decl.Name)
		}
		if reg.Has(decl.Name) {
			return nil, fmt.Errorf("class %q is already registered", decl.Name)
		}
		for name := range decl.Members {
			if _, reserved := object.HookNamed(name); reserved || name == object.InitializerName {
				return nil, fmt.Errorf("class %q declares callable slot %q; hooks and initializers are registered by the host", decl.Name, name)
			}
		}
		st.decls[decl.Name] = decl
	}

	for i := range r.manifest.Classes {
		if _, err := r.createOne(st, r.manifest.Classes[i].Name); err != nil {
			return nil, err
		}
	}
	return st.order, nil
}

// createOne creates the named class, recursing into undeclared-but-needed
// ancestors first.
func (r *Resolver) createOne(st *applyState, name string) (*object.Class, error) {
	if c, ok := st.created[name]; ok {
		return c, nil
	}
	decl, declared := st.decls[name]
	if !declared {
		// Not in the manifest: the registry must already know it.
		if c := st.reg.Lookup(name); c != nil {
			return c, nil
		}
		return nil, fmt.Errorf("unknown ancestor %q", name)
	}
	if st.visiting[name] {
		return nil, fmt.Errorf("inheritance cycle through %q", name)
	}
	st.visiting[name] = true

	var ancestors []*object.Class
	for _, a := range decl.Ancestors {
		c, err := r.createOne(st, a)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", name, err)
		}
		ancestors = append(ancestors, c)
	}
	delete(st.visiting, name)

	c, err := st.reg.NewClass(decl.Name, ancestors...)
	if err != nil {
		return nil, fmt.Errorf("creating class %q: %w", decl.Name, err)
	}
	for member, value := range decl.Members {
		if err := c.Set(member, value); err != nil {
			return nil, fmt.Errorf("class %q member %q: %w", decl.Name, member, err)
		}
	}

	st.created[name] = c
	st.order = append(st.order, c)
	return c, nil
}
