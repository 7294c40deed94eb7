package object

import "fmt"

// ---------------------------------------------------------------------------
// Members: own tables and flattened lookup
// ---------------------------------------------------------------------------

// InitializerName is the reserved member name for lifecycle initializers.
// A member set under this name lives in a separate slot: it never appears
// in any effective table and is consulted only by Class.New.
const InitializerName = "__init__"

// Set defines or redefines a member on this class.
//
// Three name families route to three places:
//   - InitializerName stores a Func in the initializer slot,
//   - a reserved hook name (see Hook) fills that hook slot, failing with
//     ErrDuplicateHook if the class already defined it,
//   - any other name lands in the member table.
//
// A plain member update refreshes the flattened lookup tables of this class
// and of every descendant before Set returns, so no caller can observe a
// half-propagated state. Setting a plain member to nil removes it.
func (c *Class) Set(name string, value any) error {
	if h, ok := HookNamed(name); ok {
		return c.setHook(h, value)
	}
	if name == InitializerName {
		return c.setInitializer(value)
	}

	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()

	if value == nil {
		delete(c.members, name)
	} else {
		c.members[name] = value
	}
	c.propagateLocked(name)
	return nil
}

// Remove deletes a member from this class's own table. Descendants and the
// class itself fall back to the nearest ancestor definition, or lose the
// member entirely. Removing the initializer clears the slot; hooks cannot
// be removed once defined.
func (c *Class) Remove(name string) error {
	if h, ok := HookNamed(name); ok {
		return fmt.Errorf("object: class %s: hook %s cannot be removed", c.name, h)
	}
	if name == InitializerName {
		return c.setInitializer(nil)
	}

	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()

	delete(c.members, name)
	c.propagateLocked(name)
	return nil
}

// setInitializer stores or clears the reserved initializer slot. Only Func
// values (or nil) are accepted.
func (c *Class) setInitializer(value any) error {
	var fn Func
	switch v := value.(type) {
	case nil:
	case Func:
		fn = v
	case func(*Object, ...any) (any, error):
		fn = v
	default:
		return fmt.Errorf("object: class %s: initializer must be a Func, got %T", c.name, value)
	}

	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()
	c.init = fn
	return nil
}

// Initializer returns the class's own initializer, or nil. Initializers are
// never inherited.
func (c *Class) Initializer() Func {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	return c.init
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// Own returns the member defined directly on this class, ignoring
// inheritance.
func (c *Class) Own(name string) (any, bool) {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	v, ok := c.members[name]
	return v, ok
}

// Members returns a copy of the class's own member table.
func (c *Class) Members() map[string]any {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()

	result := make(map[string]any, len(c.members))
	for k, v := range c.members {
		result[k] = v
	}
	return result
}

// Lookup resolves a member through the flattened table: the class's own
// definition if present, otherwise the nearest ancestor's. Reads are O(1)
// and never walk the inheritance graph.
func (c *Class) Lookup(name string) (any, bool) {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	v, ok := c.effective[name]
	return v, ok
}

// Effective returns a copy of the whole flattened member table.
func (c *Class) Effective() map[string]any {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()

	result := make(map[string]any, len(c.effective))
	for k, v := range c.effective {
		result[k] = v
	}
	return result
}

// ---------------------------------------------------------------------------
// Propagation
// ---------------------------------------------------------------------------

// propagateLocked re-resolves one member name on this class and every
// registered descendant. Callers must hold the registry write lock.
func (c *Class) propagateLocked(name string) {
	c.recomputeLocked(name)
	for id := range c.descendants {
		c.reg.classByIDLocked(id).recomputeLocked(name)
	}
}

// recomputeLocked re-resolves one member name against this class's own
// table and its fixed ancestor order. Callers must hold the registry write
// lock.
func (c *Class) recomputeLocked(name string) {
	if v, ok := c.members[name]; ok {
		c.effective[name] = v
		return
	}
	for _, a := range c.ancestors {
		if v, ok := a.Class.members[name]; ok {
			c.effective[name] = v
			return
		}
	}
	delete(c.effective, name)
}
