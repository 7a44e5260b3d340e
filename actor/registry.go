package actor

import (
	"context"
	"regexp"
	"strings"
	"sync"
)

// RegistryMode selects a Registry's conflict semantics (spec §4.2).
type RegistryMode int

const (
	// Unique mode is a name -> single ref map.
	Unique RegistryMode = iota

	// Duplicate mode is a name -> multiset of refs, for pub/sub style
	// dispatch.
	Duplicate
)

// Registry is the local name registry (C2). Two independently
// constructed instances typically exist per System: a Unique-mode
// registry used by Start's name registration, and zero or more
// Duplicate-mode registries applications create directly for pub/sub
// groups.
type Registry struct {
	mode RegistryMode

	mu      sync.RWMutex
	unique  map[string]Ref
	dup     map[string][]Ref
	pattern map[string]*regexp.Regexp
}

// NewRegistry creates an empty Registry in the given mode.
func NewRegistry(mode RegistryMode) *Registry {
	r := &Registry{
		mode:    mode,
		pattern: make(map[string]*regexp.Regexp),
	}
	if mode == Unique {
		r.unique = make(map[string]Ref)
	} else {
		r.dup = make(map[string][]Ref)
	}
	return r
}

// Register binds name to ref. In Unique mode, re-registering the same
// name with a different ref fails with ErrAlreadyRegistered; with the
// same ref it is a no-op. In Duplicate mode, registering the same
// (name, ref) pair twice is a no-op; distinct refs under the same name
// coexist.
func (r *Registry) Register(name string, ref Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == Unique {
		existing, ok := r.unique[name]
		if ok {
			if refEqual(existing, ref) {
				return nil
			}
			return ErrAlreadyRegistered
		}
		r.unique[name] = ref
		return nil
	}

	for _, existing := range r.dup[name] {
		if refEqual(existing, ref) {
			return nil
		}
	}
	r.dup[name] = append(r.dup[name], ref)
	return nil
}

// Unregister removes a binding. In Duplicate mode, ref selects which
// entry under name to remove; in Unique mode, ref is ignored (any
// binding for name is removed) when ref is nil, otherwise it must match.
func (r *Registry) Unregister(name string, ref Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == Unique {
		if ref == nil || refEqual(r.unique[name], ref) {
			delete(r.unique, name)
		}
		return
	}

	list := r.dup[name]
	out := list[:0]
	for _, existing := range list {
		if ref != nil && refEqual(existing, ref) {
			continue
		}
		out = append(out, existing)
	}
	if len(out) == 0 {
		delete(r.dup, name)
	} else {
		r.dup[name] = out
	}
}

// Lookup returns the ref(s) bound to name, or ErrNotRegistered if absent.
// In Duplicate mode the returned slice has len>=1 on success.
func (r *Registry) Lookup(name string) ([]Ref, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.mode == Unique {
		ref, ok := r.unique[name]
		if !ok {
			return nil, ErrNotRegistered
		}
		return []Ref{ref}, nil
	}

	refs, ok := r.dup[name]
	if !ok || len(refs) == 0 {
		return nil, ErrNotRegistered
	}
	out := make([]Ref, len(refs))
	copy(out, refs)
	return out, nil
}

// Whereis is the nullable form of Lookup for Unique mode: it returns
// (ref, true) or (nil, false). In Duplicate mode it returns the first
// entry, if any.
func (r *Registry) Whereis(name string) (Ref, bool) {
	refs, err := r.Lookup(name)
	if err != nil || len(refs) == 0 {
		return nil, false
	}
	return refs[0], true
}

// IsRegistered reports whether name has any binding.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.Whereis(name)
	return ok
}

// GetNames returns every currently registered name.
func (r *Registry) GetNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	if r.mode == Unique {
		for name := range r.unique {
			names = append(names, name)
		}
	} else {
		for name := range r.dup {
			names = append(names, name)
		}
	}
	return names
}

// Match returns every registered name matching a glob-like pattern where
// '*' matches any run not containing ':', '**' matches any run including
// ':', and '?' matches exactly one character (spec §4.2). If predicate is
// non-nil, a name must also satisfy it (evaluated against its first bound
// ref) to be included.
func (r *Registry) Match(pattern string, predicate func(name string, ref Ref) bool) ([]string, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, name := range r.GetNames() {
		if !re.MatchString(name) {
			continue
		}
		if predicate != nil {
			ref, ok := r.Whereis(name)
			if !ok || !predicate(name, ref) {
				continue
			}
		}
		matched = append(matched, name)
	}
	return matched, nil
}

// Dispatch iterates every ref bound to name and invokes fn on each. If fn
// is nil, the default behavior is to Cast msg to every entry.
func (r *Registry) Dispatch(ctx context.Context, name string, msg any,
	fn func(ref Ref, msg any),
) {
	refs, err := r.Lookup(name)
	if err != nil {
		return
	}

	for _, ref := range refs {
		if fn != nil {
			fn(ref, msg)
		} else {
			ref.Cast(ctx, msg)
		}
	}
}

// purge removes every binding pointing at ref, across both unique and
// duplicate storage, implementing the registry's "whereis never returns
// a dead ref" guarantee (spec §4.2) once System wires this to actor
// termination.
func (r *Registry) purge(ref Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == Unique {
		for name, existing := range r.unique {
			if refEqual(existing, ref) {
				delete(r.unique, name)
			}
		}
		return
	}

	for name, list := range r.dup {
		out := list[:0]
		for _, existing := range list {
			if !refEqual(existing, ref) {
				out = append(out, existing)
			}
		}
		if len(out) == 0 {
			delete(r.dup, name)
		} else {
			r.dup[name] = out
		}
	}
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(".*")
				i += 2
				continue
			}
			sb.WriteString("[^:]*")
			i++
		case '?':
			sb.WriteString(".")
			i++
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	sb.WriteString("$")

	return regexp.Compile(sb.String())
}
