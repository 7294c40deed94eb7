package object

import "sort"

// ---------------------------------------------------------------------------
// Class: tag plus inheritance bookkeeping
// ---------------------------------------------------------------------------

// Ancestor is one entry in a class's linearized ancestor list.
type Ancestor struct {
	Class    *Class
	Distance int
}

// Class represents a registered class. Classes are created through
// Registry.NewClass and are owned by their registry for its whole lifetime.
//
// The ancestor list is fixed at creation time. Member tables and hook slots
// are mutable and guarded by the registry lock, so every read goes through
// an accessor rather than a field.
type Class struct {
	reg  *Registry
	id   int
	name string

	// directs holds the declared ancestors in declaration order.
	// ancestors holds the width-first linearization, nearest first,
	// one entry per distinct ancestor at its minimal distance.
	directs   []*Class
	ancestors []Ancestor

	// descendants maps a descendant class id to the distance from that
	// class up to this one. Maintained by Registry.NewClass.
	descendants map[int]int

	members   map[string]any
	effective map[string]any

	hooks   [hookCount]any
	hookSet [hookCount]bool
	init    Func
}

// ID returns the class's stable registry id.
func (c *Class) ID() int {
	return c.id
}

// Name returns the class name given at creation.
func (c *Class) Name() string {
	return c.name
}

// String implements the Stringer interface.
func (c *Class) String() string {
	return c.name
}

// Registry returns the registry that owns this class.
func (c *Class) Registry() *Registry {
	return c.reg
}

// ---------------------------------------------------------------------------
// Hierarchy accessors
// ---------------------------------------------------------------------------

// DirectAncestors returns the declared ancestors in declaration order.
func (c *Class) DirectAncestors() []*Class {
	result := make([]*Class, len(c.directs))
	copy(result, c.directs)
	return result
}

// Ancestors returns the linearized ancestor list, nearest first. The list
// excludes the class itself and carries the inheritance distance for each
// entry.
func (c *Class) Ancestors() []Ancestor {
	result := make([]Ancestor, len(c.ancestors))
	copy(result, c.ancestors)
	return result
}

// Descendants returns every class that transitively inherits from this one,
// ordered by registry id.
func (c *Class) Descendants() []*Class {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()

	ids := make([]int, 0, len(c.descendants))
	for id := range c.descendants {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	result := make([]*Class, len(ids))
	for i, id := range ids {
		result[i] = c.reg.classByIDLocked(id)
	}
	return result
}

// DistanceTo returns the inheritance distance from c up to other: 0 if the
// classes are identical, otherwise the minimal number of direct-ancestor
// hops. The second result is false when other is not an ancestor of c.
func (c *Class) DistanceTo(other *Class) (int, bool) {
	if other == nil || other.reg != c.reg {
		return 0, false
	}
	if other == c {
		return 0, true
	}

	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	d, ok := other.descendants[c.id]
	return d, ok
}

// IsKindOf returns true if c is other or inherits from other.
func (c *Class) IsKindOf(other *Class) bool {
	_, ok := c.DistanceTo(other)
	return ok
}

// Depth returns the longest ancestor distance (0 for a root class).
func (c *Class) Depth() int {
	if len(c.ancestors) == 0 {
		return 0
	}
	// The linearization is level ordered, so the last entry is deepest.
	return c.ancestors[len(c.ancestors)-1].Distance
}
