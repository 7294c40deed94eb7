package object

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Registry: arena of classes
// ---------------------------------------------------------------------------

// Registry owns every class created through it. Classes live in an arena
// indexed by a stable integer id and are never unregistered. A single
// read-write lock guards the class graph: creation and member mutation take
// the write side, lookups and dispatch the read side.
type Registry struct {
	mu      sync.RWMutex
	classes []*Class
	byName  map[string]*Class
}

// NewRegistry creates a new empty class registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Class),
	}
}

// NewClass creates and registers a class with the given direct ancestors.
// Every ancestor must be a class previously created by this registry,
// otherwise NewClass fails with ErrInvalidClass and registers nothing.
//
// The new class's ancestor list is linearized width first: direct ancestors
// at distance 1 in declaration order, then their direct ancestors at
// distance 2, and so on. A class reachable along several paths appears once,
// at its minimal distance. The initial member table is flattened from the
// ancestors at the same time, so lookups never walk the graph afterwards.
func (r *Registry) NewClass(name string, ancestors ...*Class) (*Class, error) {
	// Validate before touching any state.
	for i, a := range ancestors {
		if a == nil {
			return nil, fmt.Errorf("object: class %q: ancestor %d is nil: %w", name, i, ErrInvalidClass)
		}
		if a.reg != r {
			return nil, fmt.Errorf("object: class %q: ancestor %s belongs to a different registry: %w", name, a.name, ErrInvalidClass)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Class{
		reg:         r,
		id:          len(r.classes) + 1,
		name:        name,
		directs:     make([]*Class, len(ancestors)),
		descendants: make(map[int]int),
		members:     make(map[string]any),
		effective:   make(map[string]any),
	}
	copy(c.directs, ancestors)
	c.ancestors = linearize(ancestors)

	// Flatten inherited members farthest first so that nearer ancestors
	// overwrite farther ones and declaration order wins at equal distance.
	for i := len(c.ancestors) - 1; i >= 0; i-- {
		for k, v := range c.ancestors[i].Class.members {
			c.effective[k] = v
		}
	}

	// Record this class in every ancestor's descendant map with the
	// symmetric distance, so distance queries stay O(1) both ways.
	for _, a := range c.ancestors {
		a.Class.descendants[c.id] = a.Distance
	}

	r.classes = append(r.classes, c)
	r.byName[name] = c
	return c, nil
}

// linearize builds the width-first ancestor list for the given direct
// ancestors. Level order guarantees distances are non-decreasing, so
// keeping the first occurrence of a class also keeps its minimal distance.
func linearize(directs []*Class) []Ancestor {
	type entry struct {
		class    *Class
		distance int
	}

	queue := make([]entry, 0, len(directs))
	for _, d := range directs {
		queue = append(queue, entry{d, 1})
	}

	var result []Ancestor
	seen := make(map[*Class]bool, len(directs))
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if seen[e.class] {
			continue
		}
		seen[e.class] = true
		result = append(result, Ancestor{Class: e.class, Distance: e.distance})
		for _, p := range e.class.directs {
			queue = append(queue, entry{p, e.distance + 1})
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// Lookup finds a class by name. Returns nil if no class has this name.
// When several classes were created with the same name, the most recent
// one wins.
func (r *Registry) Lookup(name string) *Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Has returns true if a class with this name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// ByID returns the class with the given id, or nil.
func (r *Registry) ByID(id int) *Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classByIDLocked(id)
}

// All returns every registered class in creation order. Ancestors always
// precede their descendants.
func (r *Registry) All() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Class, len(r.classes))
	copy(result, r.classes)
	return result
}

// Len returns the number of registered classes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes)
}

// classByIDLocked returns the class for an arena id. Callers must hold the
// registry lock.
func (r *Registry) classByIDLocked(id int) *Class {
	if id < 1 || id > len(r.classes) {
		return nil
	}
	return r.classes[id-1]
}
