// Package ets implements in-process keyed tables modeled on Erlang's ETS:
// set, ordered_set, bag, and duplicate_bag container semantics over a
// comparable key and an arbitrary value, owned by a single actor but safe
// for concurrent reads (spec §4.4). No sorted-container library appears
// anywhere in the retrieved corpus, so ordered_set keeps a sorted []K
// probed with the standard library's sort.Search rather than a dropped
// dependency — documented in the module's DESIGN.md.
package ets

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Kind selects a table's container semantics.
type Kind int

const (
	// Set enforces key uniqueness; insert replaces the existing value.
	Set Kind = iota
	// OrderedSet is a Set that additionally maintains key order for
	// First/Last/Next/Prev.
	OrderedSet
	// Bag enforces (key,value) pair uniqueness; insert is a no-op if the
	// pair already exists.
	Bag
	// DuplicateBag allows repeated (key,value) pairs; insert always
	// appends.
	DuplicateBag
)

func (k Kind) String() string {
	switch k {
	case Set:
		return "set"
	case OrderedSet:
		return "ordered_set"
	case Bag:
		return "bag"
	case DuplicateBag:
		return "duplicate_bag"
	default:
		return "unknown"
	}
}

func (k Kind) ordered() bool { return k == OrderedSet }

func (k Kind) allowsDuplicateValues() bool { return k == DuplicateBag }

// Comparator orders two keys, returning a negative number if a < b, zero
// if equal, and a positive number if a > b. Required for OrderedSet tables
// whose key type has no obvious default order (anything but a number or a
// string).
type Comparator[K comparable] func(a, b K) int

// ErrClosed is returned by any operation on a Table after Close.
var ErrClosed = fmt.Errorf("ets: table closed")

// ErrNotCounterTable is returned by UpdateCounter on a bag or duplicate_bag
// table, which has no single value per key to update atomically.
var ErrNotCounterTable = fmt.Errorf("ets: updateCounter only applies to set/ordered_set tables")

// Table is a single in-process keyed store. The zero value is not usable;
// construct with New.
type Table[K comparable, V any] struct {
	mu sync.RWMutex

	name   string
	kind   Kind
	cmp    Comparator[K]
	closed bool

	// values holds every value currently stored per key. For Set and
	// OrderedSet this slice never exceeds length 1.
	values map[K][]V

	// order holds keys in ascending order, maintained only for
	// OrderedSet tables.
	order []K
}

// New creates a table of the given kind. cmp is only consulted for
// OrderedSet tables; pass nil to use the default order (numeric types by
// value, strings by UTF-16 code unit, i.e. Go's native string ordering).
func New[K comparable, V any](name string, kind Kind, cmp Comparator[K]) *Table[K, V] {
	return &Table[K, V]{
		name:   name,
		kind:   kind,
		cmp:    cmp,
		values: make(map[K][]V),
	}
}

// Name returns the table's identifying name.
func (t *Table[K, V]) Name() string { return t.name }

// Kind returns the table's container semantics.
func (t *Table[K, V]) Kind() Kind { return t.kind }

func (t *Table[K, V]) compare(a, b K) int {
	if t.cmp != nil {
		return t.cmp(a, b)
	}
	return defaultCompare(a, b)
}

// Insert stores v under k per the table's container semantics: Set and
// OrderedSet replace any existing value, Bag ignores the insert if the
// exact (k,v) pair already exists, and DuplicateBag always appends.
func (t *Table[K, V]) Insert(k K, v V) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	switch t.kind {
	case Set, OrderedSet:
		_, exists := t.values[k]
		t.values[k] = []V{v}
		if t.kind == OrderedSet && !exists {
			t.insertOrdered(k)
		}

	case Bag:
		existing := t.values[k]
		if !containsValue(existing, v) {
			t.values[k] = append(existing, v)
		}

	case DuplicateBag:
		t.values[k] = append(t.values[k], v)
	}

	return nil
}

func (t *Table[K, V]) insertOrdered(k K) {
	idx := sort.Search(len(t.order), func(i int) bool {
		return t.compare(t.order[i], k) >= 0
	})
	t.order = append(t.order, k)
	copy(t.order[idx+1:], t.order[idx:])
	t.order[idx] = k
}

func (t *Table[K, V]) removeOrdered(k K) {
	idx := sort.Search(len(t.order), func(i int) bool {
		return t.compare(t.order[i], k) >= 0
	})
	if idx < len(t.order) && t.order[idx] == k {
		t.order = append(t.order[:idx], t.order[idx+1:]...)
	}
}

// Lookup returns every value stored under k. For Set/OrderedSet tables the
// result has length 0 or 1; use LookupOne for that common case.
func (t *Table[K, V]) Lookup(k K) ([]V, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return nil, ErrClosed
	}

	vals := t.values[k]
	out := make([]V, len(vals))
	copy(out, vals)
	return out, nil
}

// LookupOne is a convenience for Set/OrderedSet tables: it returns the
// single stored value and true, or the zero value and false if absent.
func (t *Table[K, V]) LookupOne(k K) (V, bool, error) {
	var zero V

	vals, err := t.Lookup(k)
	if err != nil {
		return zero, false, err
	}
	if len(vals) == 0 {
		return zero, false, nil
	}
	return vals[0], true, nil
}

// DeleteObject removes one occurrence of the exact (k,v) pair. For
// DuplicateBag it removes the first matching occurrence; it reports
// whether anything was removed. v is compared with reflect.DeepEqual.
func (t *Table[K, V]) DeleteObject(k K, v V) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false, ErrClosed
	}

	existing, ok := t.values[k]
	if !ok {
		return false, nil
	}

	for i, have := range existing {
		if reflect.DeepEqual(have, v) {
			existing = append(existing[:i], existing[i+1:]...)
			if len(existing) == 0 {
				delete(t.values, k)
				if t.kind == OrderedSet {
					t.removeOrdered(k)
				}
			} else {
				t.values[k] = existing
			}
			return true, nil
		}
	}

	return false, nil
}

// Delete removes every value stored under k.
func (t *Table[K, V]) Delete(k K) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	if _, ok := t.values[k]; !ok {
		return nil
	}
	delete(t.values, k)
	if t.kind == OrderedSet {
		t.removeOrdered(k)
	}
	return nil
}

// First returns the smallest key in an OrderedSet table.
func (t *Table[K, V]) First() (K, bool, error) {
	return t.boundaryKey(false)
}

// Last returns the largest key in an OrderedSet table.
func (t *Table[K, V]) Last() (K, bool, error) {
	return t.boundaryKey(true)
}

func (t *Table[K, V]) boundaryKey(last bool) (K, bool, error) {
	var zero K

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return zero, false, ErrClosed
	}
	if !t.kind.ordered() {
		return zero, false, fmt.Errorf("ets: First/Last only apply to ordered_set tables")
	}
	if len(t.order) == 0 {
		return zero, false, nil
	}
	if last {
		return t.order[len(t.order)-1], true, nil
	}
	return t.order[0], true, nil
}

// Next returns the key immediately after k in an OrderedSet table.
func (t *Table[K, V]) Next(k K) (K, bool, error) {
	return t.adjacentKey(k, 1)
}

// Prev returns the key immediately before k in an OrderedSet table.
func (t *Table[K, V]) Prev(k K) (K, bool, error) {
	return t.adjacentKey(k, -1)
}

func (t *Table[K, V]) adjacentKey(k K, step int) (K, bool, error) {
	var zero K

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return zero, false, ErrClosed
	}
	if !t.kind.ordered() {
		return zero, false, fmt.Errorf("ets: Next/Prev only apply to ordered_set tables")
	}

	idx := sort.Search(len(t.order), func(i int) bool {
		return t.compare(t.order[i], k) >= 0
	})

	if step > 0 {
		if idx < len(t.order) && t.order[idx] == k {
			idx++
		}
		if idx >= len(t.order) {
			return zero, false, nil
		}
		return t.order[idx], true, nil
	}

	if idx == 0 || (idx == len(t.order) && len(t.order) == 0) {
		return zero, false, nil
	}
	idx--
	if idx < 0 || idx >= len(t.order) {
		return zero, false, nil
	}
	return t.order[idx], true, nil
}

// Size reports the total number of stored entries, counting duplicate
// values under DuplicateBag individually (not unique keys).
func (t *Table[K, V]) Size() (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return 0, ErrClosed
	}

	n := 0
	for _, vals := range t.values {
		n += len(vals)
	}
	return n, nil
}

// Close releases the table. Every subsequent operation returns ErrClosed.
// Matches the teacher's Stoppable convention (OnStop-shaped lifecycle
// hook) so a Table can be closed from an actor's Terminate callback.
func (t *Table[K, V]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.values = nil
	t.order = nil
	return nil
}

func containsValue[V any](haystack []V, needle V) bool {
	for _, v := range haystack {
		if reflect.DeepEqual(v, needle) {
			return true
		}
	}
	return false
}

// defaultCompare implements spec §4.4's default ordered_set order: numbers
// compared by value, strings by UTF-16 code unit (Go's native string
// comparison already does this for the BMP). Any other key type without an
// explicit Comparator panics at table-construction-adjacent call sites,
// surfacing the missing comparator immediately rather than silently
// falling back to an undefined order.
func defaultCompare[K comparable](a, b K) int {
	av, bv := any(a), any(b)

	if as, ok := av.(string); ok {
		return strings.Compare(as, bv.(string))
	}

	ra, rb := reflect.ValueOf(av), reflect.ValueOf(bv)
	switch ra.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		x, y := ra.Int(), rb.Int()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		x, y := ra.Uint(), rb.Uint()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case reflect.Float32, reflect.Float64:
		x, y := ra.Float(), rb.Float()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	default:
		panic(fmt.Sprintf(
			"ets: no default comparator for key type %T; pass an explicit Comparator to New",
			av))
	}
}
