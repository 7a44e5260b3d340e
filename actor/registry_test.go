package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRef struct {
	id     string
	nodeID string
	casts  []any
}

func (r *fakeRef) ID() string     { return r.id }
func (r *fakeRef) NodeID() string { return r.nodeID }
func (r *fakeRef) Call(ctx context.Context, msg any, opts CallOptions) (any, error) {
	return nil, nil
}
func (r *fakeRef) Cast(ctx context.Context, msg any) { r.casts = append(r.casts, msg) }
func (r *fakeRef) Stop(ctx context.Context, reason error) {}
func (r *fakeRef) Equal(other Ref) bool               { return refEqual(r, other) }

func TestRegistryUniqueModeConflict(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Unique)
	a := &fakeRef{id: "a", nodeID: "n1"}
	b := &fakeRef{id: "b", nodeID: "n1"}

	require.NoError(t, reg.Register("svc", a))
	// Re-registering the same ref is a no-op.
	require.NoError(t, reg.Register("svc", a))
	require.ErrorIs(t, reg.Register("svc", b), ErrAlreadyRegistered)

	ref, ok := reg.Whereis("svc")
	require.True(t, ok)
	require.True(t, refEqual(ref, a))

	_, err := reg.Lookup("missing")
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistryDuplicateModeCoexists(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Duplicate)
	a := &fakeRef{id: "a", nodeID: "n1"}
	b := &fakeRef{id: "b", nodeID: "n1"}

	require.NoError(t, reg.Register("topic", a))
	require.NoError(t, reg.Register("topic", a))
	require.NoError(t, reg.Register("topic", b))

	refs, err := reg.Lookup("topic")
	require.NoError(t, err)
	require.Len(t, refs, 2)

	reg.Unregister("topic", a)
	refs, err = reg.Lookup("topic")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.True(t, refEqual(refs[0], b))
}

func TestRegistryDispatchDefaultCastsEveryEntry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Duplicate)
	a := &fakeRef{id: "a", nodeID: "n1"}
	b := &fakeRef{id: "b", nodeID: "n1"}
	require.NoError(t, reg.Register("topic", a))
	require.NoError(t, reg.Register("topic", b))

	reg.Dispatch(context.Background(), "topic", "hello", nil)

	require.Equal(t, []any{"hello"}, a.casts)
	require.Equal(t, []any{"hello"}, b.casts)
}

func TestRegistryMatchPatterns(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Unique)
	names := []string{"worker:1", "worker:2", "sup:a:b", "other"}
	for _, n := range names {
		require.NoError(t, reg.Register(n, &fakeRef{id: n, nodeID: "n1"}))
	}

	matched, err := reg.Match("worker:?", nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"worker:1", "worker:2"}, matched)

	matched, err = reg.Match("worker*", nil)
	require.NoError(t, err)
	require.Empty(t, matched)

	matched, err = reg.Match("sup**", nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"sup:a:b"}, matched)
}

func TestRegistryPurgeRemovesDeadRef(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Unique)
	a := &fakeRef{id: "a", nodeID: "n1"}
	require.NoError(t, reg.Register("svc", a))

	reg.purge(a)

	require.False(t, reg.IsRegistered("svc"))
}
