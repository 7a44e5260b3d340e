package actor

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidMessageType is returned by Ref.Call/Ref.Cast when the supplied
// msg does not assert to the target actor's declared CallMsg/CastMsg type.
// It only arises from misuse of the untyped Ref surface directly; callers
// going through a TypedRef can never trigger it.
var ErrInvalidMessageType = errors.New("message does not match actor's declared type")

// CallOptions configures a Call.
type CallOptions struct {
	// TimeoutMs bounds how long Call blocks waiting for a reply. Zero
	// means 5000ms (spec §4.1 default).
	TimeoutMs int
}

func (o CallOptions) timeout() time.Duration {
	if o.TimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// Ref is the uniform external handle to an actor: the same shape whether
// the actor is local or lives on a remote cluster node. Identity is the
// (ID, NodeID) pair (spec §3, "ActorRef ... Same shape locally or
// remotely; identity is id+nodeId"). Local refs are backed directly by a
// *server; remote refs (cluster/remote) implement the same interface over
// the wire protocol.
type Ref interface {
	// ID returns the actor's unique id.
	ID() string

	// NodeID returns the id of the node that owns this actor.
	NodeID() string

	// Call sends msg and blocks for a reply or error, bounded by
	// opts.TimeoutMs.
	Call(ctx context.Context, msg any, opts CallOptions) (any, error)

	// Cast sends msg without waiting for any acknowledgement. It is
	// silently dropped if the actor is unknown, terminated, or
	// unreachable.
	Cast(ctx context.Context, msg any)

	// Stop requests termination with the given reason.
	Stop(ctx context.Context, reason error)

	// Equal reports whether other identifies the same actor.
	Equal(other Ref) bool
}

// refEqual implements the (ID, NodeID) equality spec.md calls for,
// shared by every Ref implementation.
func refEqual(a, b Ref) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID() == b.ID() && a.NodeID() == b.NodeID()
}

// TypedRef wraps a Ref with compile-time message types, mirroring the
// teacher's ActorRef[M,R]/TellOnlyRef[M] split (interface.go) but over the
// call/cast pair a Behavior declares instead of a single message type.
type TypedRef[CallMsg, CastMsg, Reply any] struct {
	ref Ref
}

// NewTypedRef wraps an untyped Ref with the compile-time types of a
// specific Behavior. Used by Start and by cluster/remote when resolving a
// known behavior name to a typed handle.
func NewTypedRef[CallMsg, CastMsg, Reply any](ref Ref) *TypedRef[CallMsg, CastMsg, Reply] {
	return &TypedRef[CallMsg, CastMsg, Reply]{ref: ref}
}

// Ref returns the untyped handle underlying this typed wrapper.
func (t *TypedRef[CallMsg, CastMsg, Reply]) Ref() Ref { return t.ref }

// ID returns the actor's unique id.
func (t *TypedRef[CallMsg, CastMsg, Reply]) ID() string { return t.ref.ID() }

// NodeID returns the owning node's id.
func (t *TypedRef[CallMsg, CastMsg, Reply]) NodeID() string { return t.ref.NodeID() }

// Call sends a typed CallMsg and returns the typed Reply.
func (t *TypedRef[CallMsg, CastMsg, Reply]) Call(ctx context.Context, msg CallMsg,
	opts CallOptions,
) (Reply, error) {

	var zero Reply

	reply, err := t.ref.Call(ctx, msg, opts)
	if err != nil {
		return zero, err
	}

	typed, ok := reply.(Reply)
	if !ok {
		return zero, ErrInvalidMessageType
	}
	return typed, nil
}

// Cast sends a typed CastMsg.
func (t *TypedRef[CallMsg, CastMsg, Reply]) Cast(ctx context.Context, msg CastMsg) {
	t.ref.Cast(ctx, msg)
}

// Stop requests termination with the given reason.
func (t *TypedRef[CallMsg, CastMsg, Reply]) Stop(ctx context.Context, reason error) {
	t.ref.Stop(ctx, reason)
}
