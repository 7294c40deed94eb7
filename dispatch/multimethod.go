package dispatch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chazu/valence/object"
)

// ---------------------------------------------------------------------------
// Multimethod
// ---------------------------------------------------------------------------

// Func is the callable target of an overload. It receives every call
// argument, dispatched positions included.
type Func func(args ...any) (any, error)

// overload pairs one predicate per dispatch position with its target.
type overload struct {
	preds []Predicate
	fn    Func
}

// signature renders the predicate tuple for error messages.
func (ov overload) signature() string {
	parts := make([]string, len(ov.preds))
	for i, p := range ov.preds {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Multimethod selects among registered overloads by total dispatch cost.
// Each call is scored per declared position: class predicates charge the
// inheritance distance, kind and custom predicates charge zero. The
// overload with the unique minimal total wins; ties are ambiguous, and are
// detected lazily, only when a call actually reaches the tied candidates.
//
// A Multimethod is safe for concurrent use. Resolution results are cached
// per discriminator tuple and invalidated whenever the overload set
// changes.
type Multimethod struct {
	name      string
	positions []int
	maxPos    int

	mu        sync.RWMutex
	overloads []overload
	cache     *dispatchCache
}

// New creates a multimethod dispatching on the given 0-based argument
// positions. New panics when no position is given or a position is
// negative; both are programming errors, not call-time conditions.
func New(name string, positions ...int) *Multimethod {
	if len(positions) == 0 {
		panic("dispatch: multimethod needs at least one dispatch position")
	}
	maxPos := 0
	for _, p := range positions {
		if p < 0 {
			panic(fmt.Sprintf("dispatch: negative dispatch position %d", p))
		}
		if p > maxPos {
			maxPos = p
		}
	}

	m := &Multimethod{
		name:      name,
		positions: make([]int, len(positions)),
		maxPos:    maxPos,
		cache:     newDispatchCache(len(positions)),
	}
	copy(m.positions, positions)
	return m
}

// Name returns the multimethod's name.
func (m *Multimethod) Name() string {
	return m.name
}

// Positions returns the declared dispatch positions.
func (m *Multimethod) Positions() []int {
	result := make([]int, len(m.positions))
	copy(result, m.positions)
	return result
}

// Len returns the number of registered overloads.
func (m *Multimethod) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.overloads)
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// Register adds an overload: one predicate per declared dispatch position
// plus the function to call when the overload wins. A predicate count that
// does not match the declared positions fails with ErrArityMismatch before
// anything is recorded. Registration clears the dispatch cache, so calls
// that previously resolved (or tied) see the new overload set.
func (m *Multimethod) Register(fn Func, preds ...Predicate) error {
	if fn == nil {
		return fmt.Errorf("dispatch: %s: register: nil function", m.name)
	}
	if len(preds) != len(m.positions) {
		return fmt.Errorf("dispatch: %s: register: %d predicates for %d dispatch positions: %w",
			m.name, len(preds), len(m.positions), ErrArityMismatch)
	}
	for i, p := range preds {
		if err := p.validate(); err != nil {
			return fmt.Errorf("dispatch: %s: register: predicate %d: %w", m.name, i, err)
		}
	}

	ov := overload{preds: make([]Predicate, len(preds)), fn: fn}
	copy(ov.preds, preds)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.overloads = append(m.overloads, ov)
	m.cache.clear()
	return nil
}

// Reset removes every overload, clears the cache and zeroes its counters.
func (m *Multimethod) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overloads = nil
	m.cache.clear()
	m.cache.resetStats()
}

// CacheStats reports the dispatch cache's counters and current size.
func (m *Multimethod) CacheStats() CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CacheStats{
		Hits:    m.cache.hits.Load(),
		Misses:  m.cache.misses.Load(),
		Entries: m.cache.size,
	}
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// Invoke dispatches a call. The discriminator tuple for the declared
// positions is probed in the cache first; on a hit the cached overload runs
// immediately with all arguments. On a miss every overload is scored
// against the live arguments, the unique cheapest one wins and is cached
// under the tuple, then called.
//
// Invoke fails with ErrNoMatchingOverload when no overload is eligible
// (including calls too short to cover the dispatch positions) and with
// ErrAmbiguousOverload when the minimum is tied. Neither outcome is cached,
// and a failed call leaves no partial state behind.
func (m *Multimethod) Invoke(args ...any) (any, error) {
	if len(args) <= m.maxPos {
		return nil, fmt.Errorf("dispatch: %s: call has %d arguments, dispatch needs index %d: %w",
			m.name, len(args), m.maxPos, ErrNoMatchingOverload)
	}

	keys := make([]any, len(m.positions))
	for i, pos := range m.positions {
		keys[i] = discriminator(args[pos])
	}

	m.mu.RLock()
	fn, ok := m.cache.lookup(keys)
	m.mu.RUnlock()
	if ok {
		m.cache.hits.Add(1)
		return fn(args...)
	}

	m.mu.Lock()
	// Re-probe: another goroutine may have resolved this tuple while we
	// waited for the write lock.
	if fn, ok := m.cache.lookup(keys); ok {
		m.mu.Unlock()
		m.cache.hits.Add(1)
		return fn(args...)
	}
	m.cache.misses.Add(1)
	fn, err := m.resolveLocked(args, keys)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return fn(args...)
}

// resolveLocked scores all overloads for one call and caches a unique
// winner. Callers must hold the write lock.
func (m *Multimethod) resolveLocked(args, keys []any) (Func, error) {
	best := -1
	var winner Func
	var winnerSig string
	var tied []string

	for _, ov := range m.overloads {
		total := 0
		eligible := true
		for i, pos := range m.positions {
			cost, ok := ov.preds[i].cost(args[pos])
			if !ok {
				eligible = false
				break
			}
			total += cost
		}
		if !eligible {
			continue
		}
		switch {
		case best < 0 || total < best:
			best = total
			winner = ov.fn
			winnerSig = ov.signature()
			tied = tied[:0]
		case total == best:
			tied = append(tied, ov.signature())
		}
	}

	if best < 0 {
		return nil, fmt.Errorf("dispatch: %s: no overload matches (%s): %w",
			m.name, describeKeys(keys), ErrNoMatchingOverload)
	}
	if len(tied) > 0 {
		all := append([]string{winnerSig}, tied...)
		return nil, fmt.Errorf("dispatch: %s: %s tie at cost %d for (%s): %w",
			m.name, strings.Join(all, " and "), best, describeKeys(keys), ErrAmbiguousOverload)
	}

	m.cache.insert(keys, winner)
	return winner, nil
}

// discriminator computes the cache key for one argument: class identity
// when the value is class tagged, its primitive kind name otherwise.
func discriminator(v any) any {
	if c := object.ClassOf(v); c != nil {
		return c
	}
	return object.KindOf(v)
}

// describeKeys renders a discriminator tuple for error messages.
func describeKeys(keys []any) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		switch x := k.(type) {
		case *object.Class:
			parts[i] = x.Name()
		case string:
			parts[i] = x
		default:
			parts[i] = fmt.Sprintf("%v", k)
		}
	}
	return strings.Join(parts, ", ")
}
