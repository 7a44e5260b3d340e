package observer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/orbitrt/orbit/actor"
	"github.com/orbitrt/orbit/actorutil"
	"github.com/orbitrt/orbit/cluster"
	"github.com/orbitrt/orbit/cluster/registry"
	"github.com/orbitrt/orbit/cluster/remote"
)

const (
	snapshotBehaviorName = "observer.snapshot"

	defaultPerNodeTimeoutMs = 5000
	defaultCacheTTL         = 2 * time.Second
)

// observerName is the cluster-wide global-registry name this node's
// observer actor is registered under: one per node, so - unlike a
// cluster-wide singleton name - registrations for distinct nodeIDs never
// race each other (spec §4.11's priority rule is never even consulted).
func observerName(nodeID string) string { return "observer@" + nodeID }

// ClusterObserver coordinates Observer instances across every node in
// the cluster: it starts a local actor that answers SnapshotRequest with
// this node's own Snapshot, globally registers it under
// observerName(node.NodeID()) so peers can resolve it, and fans a
// get_snapshot-equivalent remote call out to every connected peer on
// demand, caching the aggregated result briefly (spec §4.12). Grounded
// on the teacher's actorutil.ParallelAsk-family fan-out helpers
// (actorutil.ParallelCallSame in this repo), generalized from "same
// message to N local actors" to "same remote call to N cluster nodes".
//
// There is no dedicated get_snapshot wire tag in spec §6's payload set;
// this is deliberate - the snapshot actor is addressed through the
// ordinary call/call_reply envelope, the same path any other remote
// actor call uses, with cluster/registry.GlobalRegistry supplying the
// per-node actor id a generic Remote.Call needs in place of a name.
type ClusterObserver struct {
	node     *cluster.Node
	remote   *remote.Remote
	registry *registry.GlobalRegistry
	local    *Observer
	selfRef  actor.Ref

	perNodeTimeoutMs int
	cacheTTL         time.Duration

	mu       sync.Mutex
	cached   *ClusterSnapshot
	cachedAt time.Time
}

// NewClusterObserver starts local's snapshot-serving actor, registers
// its behavior on rt and its name on reg, and returns a ClusterObserver
// ready to fan queries out across node's connected peers. Close stops
// the local actor and unregisters its name.
func NewClusterObserver(node *cluster.Node, rt *remote.Remote,
	reg *registry.GlobalRegistry, local *Observer,
) (*ClusterObserver, error) {

	c := &ClusterObserver{
		node:             node,
		remote:           rt,
		registry:         reg,
		local:            local,
		perNodeTimeoutMs: defaultPerNodeTimeoutMs,
		cacheTTL:         defaultCacheTTL,
	}

	behavior := actor.Behavior[*Observer, SnapshotRequest, any, SnapshotReply]{
		Init: func(ctx context.Context) (*Observer, error) { return local, nil },
		HandleCall: func(ctx context.Context, _ SnapshotRequest, st *Observer) (SnapshotReply, *Observer, error) {
			snap, err := st.Snapshot(ctx)
			if err != nil {
				return SnapshotReply{}, st, err
			}
			return SnapshotReply{Snapshot: snap}, st, nil
		},
		HandleCast: func(ctx context.Context, _ any, st *Observer) (*Observer, error) { return st, nil },
	}

	ref, err := actor.Start(local.System(), actor.StartOptions{}, behavior)
	if err != nil {
		return nil, err
	}

	if _, already := rt.Behaviors().Lookup(snapshotBehaviorName); !already {
		if err := rt.Behaviors().Register(remote.Registration{
			Name:       snapshotBehaviorName,
			NewCallMsg: func() any { return new(SnapshotRequest) },
			NewReply:   func() any { return new(SnapshotReply) },
		}); err != nil {
			ref.Stop(context.Background(), actor.ErrShutdown)
			return nil, err
		}
	}
	rt.Behaviors().BindActor(ref.ID(), snapshotBehaviorName)

	if err := reg.Register(observerName(node.NodeID()), ref.Ref()); err != nil {
		ref.Stop(context.Background(), actor.ErrShutdown)
		return nil, err
	}
	c.selfRef = ref.Ref()

	return c, nil
}

// SetPerNodeTimeout overrides the default 5000ms per-node fan-out
// timeout (spec §4.12's "configurable timeout, default 5000 ms").
func (c *ClusterObserver) SetPerNodeTimeout(d time.Duration) {
	c.mu.Lock()
	c.perNodeTimeoutMs = int(d.Milliseconds())
	c.mu.Unlock()
}

// SetCacheTTL overrides the default ~2s result cache.
func (c *ClusterObserver) SetCacheTTL(d time.Duration) {
	c.mu.Lock()
	c.cacheTTL = d
	c.mu.Unlock()
}

// Close stops this node's snapshot-serving actor and removes its global
// registration.
func (c *ClusterObserver) Close() {
	c.registry.Unregister(observerName(c.node.NodeID()))
	if c.selfRef != nil {
		c.selfRef.Stop(context.Background(), actor.ErrShutdown)
	}
}

// Snapshot returns the cluster-wide aggregated snapshot: this node's own
// (gathered directly, no network round trip) plus one NodeSnapshot per
// currently-connected peer. A cached result younger than cacheTTL is
// returned without re-querying anything.
func (c *ClusterObserver) Snapshot(ctx context.Context) (ClusterSnapshot, error) {
	c.mu.Lock()
	if c.cached != nil && time.Since(c.cachedAt) < c.cacheTTL {
		cached := *c.cached
		c.mu.Unlock()
		return cached, nil
	}
	perNodeTimeoutMs := c.perNodeTimeoutMs
	c.mu.Unlock()

	localSnap, err := c.local.Snapshot(ctx)
	if err != nil {
		return ClusterSnapshot{}, err
	}

	nodes := []NodeSnapshot{{NodeID: c.node.NodeID(), Status: NodeOK, Snapshot: &localSnap}}
	nodes = append(nodes, c.fanOut(ctx, perNodeTimeoutMs)...)

	snap := ClusterSnapshot{Nodes: nodes, GatheredAt: time.Now()}

	c.mu.Lock()
	c.cached = &snap
	c.cachedAt = time.Now()
	c.mu.Unlock()

	return snap, nil
}

// fanOut resolves and queries every currently-connected peer. Peers this
// node has not yet discovered the observer name of (the global registry
// sync has not reached this node yet, or the peer has no ClusterObserver
// running) are reported NodeError rather than silently dropped - spec
// §4.12 calls a partial snapshot normal, not silent.
func (c *ClusterObserver) fanOut(ctx context.Context, perNodeTimeoutMs int) []NodeSnapshot {
	peerIDs := c.node.Connected()
	if len(peerIDs) == 0 {
		return nil
	}

	type target struct {
		nodeID string
		ref    actor.Ref
		resErr error
	}
	targets := make([]target, len(peerIDs))
	for i, id := range peerIDs {
		resolvedNode, actorID, err := c.registry.Lookup(observerName(id))
		if err != nil {
			targets[i] = target{nodeID: id, resErr: err}
			continue
		}
		targets[i] = target{nodeID: id, ref: c.remote.Ref(resolvedNode, actorID, snapshotBehaviorName)}
	}

	refs := make([]actor.Ref, 0, len(targets))
	refIdx := make([]int, 0, len(targets))
	for i, t := range targets {
		if t.ref != nil {
			refs = append(refs, t.ref)
			refIdx = append(refIdx, i)
		}
	}

	results := actorutil.ParallelCallSame[SnapshotReply](ctx, refs, SnapshotRequest{},
		actor.CallOptions{TimeoutMs: perNodeTimeoutMs})

	callResult := make(map[int]NodeSnapshot, len(results))
	for i, res := range results {
		idx := refIdx[i]
		reply, err := res.Unpack()
		if err == nil {
			snap := reply.Snapshot
			callResult[idx] = NodeSnapshot{NodeID: targets[idx].nodeID, Status: NodeOK, Snapshot: &snap}
			continue
		}
		callResult[idx] = NodeSnapshot{NodeID: targets[idx].nodeID, Status: classifyErr(err), Err: err.Error()}
	}

	out := make([]NodeSnapshot, len(targets))
	for i, t := range targets {
		if ns, ok := callResult[i]; ok {
			out[i] = ns
			continue
		}
		out[i] = NodeSnapshot{NodeID: t.nodeID, Status: NodeError, Err: t.resErr.Error()}
	}
	return out
}

func classifyErr(err error) NodeStatus {
	var notReachable *remote.NodeNotReachableError
	var timeout *remote.RemoteCallTimeoutError
	switch {
	case errors.As(err, &notReachable):
		return NodeDisconnected
	case errors.As(err, &timeout):
		return NodeTimeout
	default:
		return NodeError
	}
}
