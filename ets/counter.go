package ets

import "golang.org/x/exp/constraints"

// Number is the set of value types UpdateCounter can add a delta to. No
// third-party numeric-constraint package beyond x/exp/constraints appears
// in the corpus; x/exp is already an indirect dependency of the teacher
// (pulled in transitively), so this promotes it to direct rather than
// hand-rolling an equivalent constraint interface.
type Number interface {
	constraints.Integer | constraints.Float
}

// UpdateCounter atomically adds delta to the value stored under k in a
// Set or OrderedSet table and returns the new value, matching Erlang's
// ets:update_counter/3. It is a package-level function rather than a
// Table method because only Set/OrderedSet tables hold one counter value
// per key, and the Number constraint only makes sense for that shape —
// Table[K,V] itself stays unconstrained so it can store any value type.
func UpdateCounter[K comparable, V Number](t *Table[K, V], k K, delta V) (V, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero V

	if t.closed {
		return zero, ErrClosed
	}
	if t.kind != Set && t.kind != OrderedSet {
		return zero, ErrNotCounterTable
	}

	existing := t.values[k]
	var next V
	if len(existing) == 1 {
		next = existing[0] + delta
	} else {
		next = delta
		if t.kind == OrderedSet {
			t.insertOrdered(k)
		}
	}
	t.values[k] = []V{next}

	return next, nil
}
