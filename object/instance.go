package object

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// Func is the signature for callable members, operator hooks and lifecycle
// initializers. The receiver is the object the call applies to.
type Func func(recv *Object, args ...any) (any, error)

// Object is an identity tagged with exactly one owning class. Field state
// is per-object bookkeeping; behavior always comes from the owning class's
// flattened member table.
type Object struct {
	id string

	mu     sync.RWMutex
	class  *Class
	fields map[string]any
}

// newObjectID generates an instance id of the form classname_uuid.
func newObjectID(className string) string {
	return strings.ToLower(className) + "_" + uuid.New().String()
}

// New constructs an instance of this class. If the class defined an
// initializer it is invoked with the fresh object and the construction
// arguments; ancestor initializers are never chained in. When the
// initializer fails the object is discarded and the error propagates.
func (c *Class) New(args ...any) (*Object, error) {
	if c == nil {
		return nil, fmt.Errorf("object: construct: %w", ErrInvalidClass)
	}

	o := &Object{
		id:     newObjectID(c.name),
		class:  c,
		fields: make(map[string]any),
	}

	if fn := c.Initializer(); fn != nil {
		if _, err := fn(o, args...); err != nil {
			return nil, fmt.Errorf("object: construct %s: %w", c.name, err)
		}
	}
	return o, nil
}

// Restore re-creates a previously persisted instance with a known id. The
// initializer does not run; field state is expected to follow from storage.
// An empty id gets a fresh one.
func (c *Class) Restore(id string) (*Object, error) {
	if c == nil {
		return nil, fmt.Errorf("object: restore: %w", ErrInvalidClass)
	}
	if id == "" {
		id = newObjectID(c.name)
	}
	return &Object{
		id:     id,
		class:  c,
		fields: make(map[string]any),
	}, nil
}

// ID returns the object's instance id.
func (o *Object) ID() string {
	return o.id
}

// Class returns the object's owning class.
func (o *Object) Class() *Class {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.class
}

// Retag replaces the object's owning class without running any
// construction. The target must be a class from the same registry.
func (o *Object) Retag(c *Class) error {
	if c == nil {
		return fmt.Errorf("object: retag %s: %w", o.id, ErrInvalidClass)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if c.reg != o.class.reg {
		return fmt.Errorf("object: retag %s: class %s belongs to a different registry: %w", o.id, c.name, ErrInvalidClass)
	}
	o.class = c
	return nil
}

// String implements the Stringer interface.
func (o *Object) String() string {
	return o.id
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

// Set stores a field value on the object. A nil value removes the field.
func (o *Object) Set(name string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if value == nil {
		delete(o.fields, name)
		return
	}
	o.fields[name] = value
}

// Get returns a field value stored on the object.
func (o *Object) Get(name string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.fields[name]
	return v, ok
}

// Fields returns a copy of the object's field map.
func (o *Object) Fields() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()

	result := make(map[string]any, len(o.fields))
	for k, v := range o.fields {
		result[k] = v
	}
	return result
}

// Resolve looks up a name on the object first, then through the owning
// class's flattened member table.
func (o *Object) Resolve(name string) (any, bool) {
	if v, ok := o.Get(name); ok {
		return v, true
	}
	return o.Class().Lookup(name)
}

// ---------------------------------------------------------------------------
// Class queries on arbitrary values
// ---------------------------------------------------------------------------

// ClassOf returns the class tag for a value: the owning class for objects,
// the class itself for class handles, nil for everything else.
func ClassOf(v any) *Class {
	switch x := v.(type) {
	case *Object:
		return x.Class()
	case *Class:
		return x
	}
	return nil
}

// Distance returns the inheritance distance from a value's class tag up to
// the given class. Values without a class tag report false.
func Distance(v any, to *Class) (int, bool) {
	c := ClassOf(v)
	if c == nil {
		return 0, false
	}
	return c.DistanceTo(to)
}
