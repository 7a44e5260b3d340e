package actorutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/orbitrt/orbit/actor"
)

// PoolConfig configures a Pool of identically-behaved actors fronted by
// one round-robin Ref. Each pool member is an ordinary actor started
// directly on System by NewPool (not under a supervisor); the pool only
// adds the round-robin selection policy on top.
type PoolConfig[State, CallMsg, CastMsg, Reply any] struct {
	// ID identifies the pool and is returned by Pool.ID and PoolRef.ID.
	// Members are started unnamed.
	ID string

	// Size is the number of actor instances to create. Defaults to 1.
	Size int

	// Factory builds the behavior for pool member idx.
	Factory func(idx int) actor.Behavior[State, CallMsg, CastMsg, Reply]

	// MailboxSize bounds each member's mailbox. Defaults to 100.
	MailboxSize int

	// System is the actor.System new members are started on. Required.
	System *actor.System
}

// Pool distributes Call/Cast across a fixed set of actor instances using
// round-robin scheduling, generalized from the teacher's
// Pool[M,R]/PoolConfig[M,R] (internal/actorutil/pool.go) to the new
// call/cast-split Behavior.
type Pool[State, CallMsg, CastMsg, Reply any] struct {
	id string

	members []*actor.TypedRef[CallMsg, CastMsg, Reply]

	next atomic.Uint64
}

// NewPool creates a pool with cfg.Size actor instances, each started
// immediately on cfg.System. If any member fails to start, the members
// already started are stopped and the error is returned.
func NewPool[State, CallMsg, CastMsg, Reply any](
	cfg PoolConfig[State, CallMsg, CastMsg, Reply],
) (*Pool[State, CallMsg, CastMsg, Reply], error) {

	if cfg.System == nil {
		return nil, fmt.Errorf("actorutil: pool %q requires a System", cfg.ID)
	}
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 100
	}

	p := &Pool[State, CallMsg, CastMsg, Reply]{id: cfg.ID}

	for i := 0; i < cfg.Size; i++ {
		behavior := cfg.Factory(i)

		ref, err := actor.Start(cfg.System, actor.StartOptions{
			MailboxSize: cfg.MailboxSize,
		}, behavior)
		if err != nil {
			p.Stop(context.Background())
			return nil, fmt.Errorf(
				"actorutil: pool %q member %d failed to start: %w",
				cfg.ID, i, err)
		}

		p.members = append(p.members, ref)
	}

	return p, nil
}

// ID returns the pool's identifier.
func (p *Pool[State, CallMsg, CastMsg, Reply]) ID() string { return p.id }

// Size returns the number of members in the pool.
func (p *Pool[State, CallMsg, CastMsg, Reply]) Size() int { return len(p.members) }

// Members returns a copy of the pool's member refs.
func (p *Pool[State, CallMsg, CastMsg, Reply]) Members() []*actor.TypedRef[CallMsg, CastMsg, Reply] {
	out := make([]*actor.TypedRef[CallMsg, CastMsg, Reply], len(p.members))
	copy(out, p.members)
	return out
}

func (p *Pool[State, CallMsg, CastMsg, Reply]) pick() *actor.TypedRef[CallMsg, CastMsg, Reply] {
	idx := p.next.Add(1) % uint64(len(p.members))
	return p.members[idx]
}

// Call sends msg to the next member in round-robin order and blocks for
// its reply.
func (p *Pool[State, CallMsg, CastMsg, Reply]) Call(ctx context.Context,
	msg CallMsg, opts actor.CallOptions,
) (Reply, error) {

	return p.pick().Call(ctx, msg, opts)
}

// Cast sends msg to the next member in round-robin order, fire-and-forget.
func (p *Pool[State, CallMsg, CastMsg, Reply]) Cast(ctx context.Context, msg CastMsg) {
	p.pick().Cast(ctx, msg)
}

// Broadcast sends msg to every member in the pool.
func (p *Pool[State, CallMsg, CastMsg, Reply]) Broadcast(ctx context.Context, msg CastMsg) {
	for _, m := range p.members {
		m.Cast(ctx, msg)
	}
}

// BroadcastCall sends msg to every member concurrently and collects every
// result, in member order.
func (p *Pool[State, CallMsg, CastMsg, Reply]) BroadcastCall(ctx context.Context,
	msg CallMsg, opts actor.CallOptions,
) []fn.Result[Reply] {

	results := make([]fn.Result[Reply], len(p.members))
	done := make(chan struct{}, len(p.members))

	for i, m := range p.members {
		go func(i int, m *actor.TypedRef[CallMsg, CastMsg, Reply]) {
			reply, err := m.Call(ctx, msg, opts)
			if err != nil {
				results[i] = fn.Err[Reply](err)
			} else {
				results[i] = fn.Ok(reply)
			}
			done <- struct{}{}
		}(i, m)
	}

	for range p.members {
		<-done
	}

	return results
}

// Stop requests a graceful stop (reason actor.ErrShutdown) of every
// member. It returns without waiting for the members to exit.
func (p *Pool[State, CallMsg, CastMsg, Reply]) Stop(ctx context.Context) {
	for _, m := range p.members {
		m.Stop(ctx, actor.ErrShutdown)
	}
}

// PoolRef adapts a Pool to the untyped actor.Ref interface, so a pool can
// be registered, linked, monitored, or handed to generic fan-out helpers
// exactly like a single actor.
type PoolRef[State, CallMsg, CastMsg, Reply any] struct {
	pool *Pool[State, CallMsg, CastMsg, Reply]
}

// NewPoolRef wraps pool as an actor.Ref.
func NewPoolRef[State, CallMsg, CastMsg, Reply any](
	pool *Pool[State, CallMsg, CastMsg, Reply],
) actor.Ref {

	return &PoolRef[State, CallMsg, CastMsg, Reply]{pool: pool}
}

func (r *PoolRef[State, CallMsg, CastMsg, Reply]) ID() string { return r.pool.ID() }

// NodeID returns the node id of the pool's first member, since every
// member of a pool lives on the same node by construction.
func (r *PoolRef[State, CallMsg, CastMsg, Reply]) NodeID() string {
	if len(r.pool.members) == 0 {
		return ""
	}
	return r.pool.members[0].NodeID()
}

func (r *PoolRef[State, CallMsg, CastMsg, Reply]) Call(ctx context.Context, msg any,
	opts actor.CallOptions,
) (any, error) {

	callMsg, ok := msg.(CallMsg)
	if !ok {
		return nil, actor.ErrInvalidMessageType
	}
	return r.pool.Call(ctx, callMsg, opts)
}

func (r *PoolRef[State, CallMsg, CastMsg, Reply]) Cast(ctx context.Context, msg any) {
	castMsg, ok := msg.(CastMsg)
	if !ok {
		return
	}
	r.pool.Cast(ctx, castMsg)
}

func (r *PoolRef[State, CallMsg, CastMsg, Reply]) Stop(ctx context.Context, reason error) {
	r.pool.Stop(ctx)
}

func (r *PoolRef[State, CallMsg, CastMsg, Reply]) Equal(other actor.Ref) bool {
	o, ok := other.(*PoolRef[State, CallMsg, CastMsg, Reply])
	return ok && o.pool == r.pool
}
