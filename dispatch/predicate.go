package dispatch

import (
	"errors"
	"fmt"

	"github.com/chazu/valence/object"
)

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

type predicateKind uint8

const (
	predClass predicateKind = iota
	predKind
	predWhere
)

// Predicate decides whether an argument is eligible at one dispatch
// position and at what cost. Class predicates charge the inheritance
// distance between the argument's class and the target; kind and custom
// predicates match at cost zero or not at all.
type Predicate struct {
	kind  predicateKind
	class *object.Class
	name  string
	test  func(any) bool
}

// Isa matches arguments tagged with the given class or any class that
// inherits from it. The cost is the recorded inheritance distance, 0 for an
// exact class match.
func Isa(c *object.Class) Predicate {
	return Predicate{kind: predClass, class: c}
}

// Kind matches arguments whose primitive kind equals name exactly, at cost
// 0. Kind names come from the object package (object.KindInt and friends).
func Kind(name string) Predicate {
	return Predicate{kind: predKind, name: name}
}

// Where matches arguments for which test returns true, at cost 0. The test
// runs against the live value during overload resolution. The label names
// the predicate in signatures and error messages.
func Where(label string, test func(any) bool) Predicate {
	return Predicate{kind: predWhere, name: label, test: test}
}

// String implements the Stringer interface.
func (p Predicate) String() string {
	switch p.kind {
	case predClass:
		if p.class == nil {
			return "isa(?)"
		}
		return fmt.Sprintf("isa(%s)", p.class.Name())
	case predKind:
		return fmt.Sprintf("kind(%s)", p.name)
	case predWhere:
		return fmt.Sprintf("where(%s)", p.name)
	}
	return "predicate(?)"
}

// cost scores one argument: the per-position cost and whether the argument
// is eligible at all.
func (p Predicate) cost(v any) (int, bool) {
	switch p.kind {
	case predClass:
		c := object.ClassOf(v)
		if c == nil {
			return 0, false
		}
		return c.DistanceTo(p.class)
	case predKind:
		return 0, object.KindOf(v) == p.name
	case predWhere:
		return 0, p.test != nil && p.test(v)
	}
	return 0, false
}

// validate rejects predicates that can never match anything.
func (p Predicate) validate() error {
	switch p.kind {
	case predClass:
		if p.class == nil {
			return fmt.Errorf("isa predicate requires a class: %w", object.ErrInvalidClass)
		}
	case predKind:
		if p.name == "" {
			return errors.New("kind predicate requires a kind name")
		}
	case predWhere:
		if p.test == nil {
			return errors.New("where predicate requires a test function")
		}
	}
	return nil
}
