package object

import "fmt"

// ---------------------------------------------------------------------------
// Operator hooks: fixed define-once slots
// ---------------------------------------------------------------------------

// Hook identifies one of the fixed operator hook slots. Hooks customize how
// a host interprets operators applied to instances of a class. Unlike
// members they are never inherited and never redefined: each class gets one
// shot at each slot.
type Hook uint8

const (
	HookAdd Hook = iota
	HookSub
	HookMul
	HookDiv
	HookEq
	HookLt
	HookLe
	HookStr
	HookIter
	HookDel
	HookGetItem
	HookSetItem

	hookCount = int(HookSetItem) + 1
)

// hookNames maps hook slots to their reserved member names.
var hookNames = [hookCount]string{
	HookAdd:     "__add__",
	HookSub:     "__sub__",
	HookMul:     "__mul__",
	HookDiv:     "__div__",
	HookEq:      "__eq__",
	HookLt:      "__lt__",
	HookLe:      "__le__",
	HookStr:     "__str__",
	HookIter:    "__iter__",
	HookDel:     "__del__",
	HookGetItem: "__getitem__",
	HookSetItem: "__setitem__",
}

var hookByName = make(map[string]Hook, hookCount)

func init() {
	for h, name := range hookNames {
		hookByName[name] = Hook(h)
	}
}

// String returns the hook's reserved member name.
func (h Hook) String() string {
	if int(h) < hookCount {
		return hookNames[h]
	}
	return fmt.Sprintf("Hook(%d)", uint8(h))
}

// HookNamed returns the hook slot for a reserved name, if the name is one
// of the fixed hook names.
func HookNamed(name string) (Hook, bool) {
	h, ok := hookByName[name]
	return h, ok
}

// setHook fills a hook slot. A slot can be written exactly once per class.
func (c *Class) setHook(h Hook, value any) error {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()

	if c.hookSet[h] {
		return fmt.Errorf("object: class %s: hook %s: %w", c.name, h, ErrDuplicateHook)
	}
	c.hookSet[h] = true
	c.hooks[h] = value
	return nil
}

// Hook returns this class's own definition for a hook slot. There is no
// ancestor fallback: a hook a class did not define itself reports false.
func (c *Class) Hook(h Hook) (any, bool) {
	if int(h) >= hookCount {
		return nil, false
	}

	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	if !c.hookSet[h] {
		return nil, false
	}
	return c.hooks[h], true
}

// Hooks returns the hook slots this class has defined, in slot order.
func (c *Class) Hooks() []Hook {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()

	var result []Hook
	for i := 0; i < hookCount; i++ {
		if c.hookSet[i] {
			result = append(result, Hook(i))
		}
	}
	return result
}
