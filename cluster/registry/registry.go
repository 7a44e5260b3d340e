// Package registry implements C11, the replicated global registry: a
// name -> actor binding visible cluster-wide, kept eventually consistent
// by full sync on join and incremental deltas on every mutation
// thereafter, with conflicts resolved by a deterministic priority rule
// (spec §4.11).
package registry

import (
	"sync"
	"time"

	"github.com/orbitrt/orbit/actor"
	"github.com/orbitrt/orbit/cluster"
	"github.com/orbitrt/orbit/cluster/wire"
)

// defaultConflictWindow is how long Register waits after broadcasting
// an optimistic registration before confirming it was not immediately
// beaten by a higher-priority concurrent registration elsewhere. The
// winning peer's counter-broadcast (applyEntry's resend branch) normally
// arrives well inside this window on a healthy LAN.
const defaultConflictWindow = 150 * time.Millisecond

// GlobalRegistry is a cluster.Node-backed actor.GlobalRegistrar (spec
// §4.11): it satisfies System.SetGlobalRegistrar's narrow interface
// while replicating every mutation to every connected peer.
type GlobalRegistry struct {
	node *cluster.Node

	conflictWindow time.Duration

	mu        sync.Mutex
	entries   map[string]Entry
	localRefs map[string]actor.Ref

	unsubscribeMsg  cluster.Unsubscribe
	unsubscribeJoin cluster.Unsubscribe
}

// New creates a GlobalRegistry bound to node, subscribing to its
// messages and join events immediately.
func New(node *cluster.Node) *GlobalRegistry {
	g := &GlobalRegistry{
		node:           node,
		conflictWindow: defaultConflictWindow,
		entries:        make(map[string]Entry),
		localRefs:      make(map[string]actor.Ref),
	}
	g.unsubscribeMsg = node.OnMessage(g.handle)
	g.unsubscribeJoin = node.OnJoin(g.handleJoin)
	return g
}

// SetConflictWindow overrides the default post-broadcast wait Register
// uses to detect a losing race against a concurrent remote
// registration. Exposed for tests; production callers should leave the
// default.
func (g *GlobalRegistry) SetConflictWindow(d time.Duration) {
	g.mu.Lock()
	g.conflictWindow = d
	g.mu.Unlock()
}

// Close stops observing node.
func (g *GlobalRegistry) Close() {
	g.unsubscribeMsg()
	g.unsubscribeJoin()
}

// Register implements actor.GlobalRegistrar. It applies the binding
// optimistically, broadcasts the delta, then waits one conflictWindow
// to see whether a higher-priority concurrent registration elsewhere
// beat it; if so it returns *AlreadyRegisteredError and the binding is
// already gone by the time the caller observes the error (spec §4.11:
// "the losing side removes its entry and surfaces an
// AlreadyRegisteredError to the caller of the losing registration").
func (g *GlobalRegistry) Register(name string, ref actor.Ref) error {
	entry := Entry{
		Name:         name,
		ActorID:      ref.ID(),
		NodeID:       ref.NodeID(),
		RegisteredAt: time.Now().UnixMilli(),
	}

	g.mu.Lock()
	if existing, ok := g.entries[name]; ok && !existing.Removed && !entry.winsOver(existing) {
		g.mu.Unlock()
		return &AlreadyRegisteredError{Name: name}
	}
	g.entries[name] = entry
	g.localRefs[name] = ref
	window := g.conflictWindow
	g.mu.Unlock()

	g.node.Broadcast(wire.RegistrySync{Entries: []wire.RegistryEntry{entry.toWire()}})

	if window > 0 {
		time.Sleep(window)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	current, stillPresent := g.entries[name]
	if !stillPresent || current.Removed || !current.sameRegistration(entry) {
		delete(g.localRefs, name)
		return &AlreadyRegisteredError{Name: name}
	}
	return nil
}

// Unregister implements actor.GlobalRegistrar, broadcasting a tombstone
// delta for name's current entry (spec §4.11's owner-driven GC).
func (g *GlobalRegistry) Unregister(name string) {
	g.mu.Lock()
	entry, ok := g.entries[name]
	delete(g.localRefs, name)
	if ok {
		entry.Removed = true
		g.entries[name] = entry
	}
	g.mu.Unlock()

	if ok {
		g.node.Broadcast(wire.RegistrySync{Entries: []wire.RegistryEntry{entry.toWire()}})
	}
}

// Lookup returns the (nodeId, actorId) a name currently resolves to.
// Callers construct an actor.Ref from this themselves (e.g. via
// cluster/remote.Remote.Ref), keeping this package free of a dependency
// on cluster/remote.
func (g *GlobalRegistry) Lookup(name string) (nodeID, actorID string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.entries[name]
	if !ok || entry.Removed {
		return "", "", &NotRegisteredError{Name: name}
	}
	return entry.NodeID, entry.ActorID, nil
}

// Snapshot returns every live (non-tombstoned) entry, for diagnostics
// and tests.
func (g *GlobalRegistry) Snapshot() []Entry {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Entry, 0, len(g.entries))
	for _, e := range g.entries {
		if !e.Removed {
			out = append(out, e)
		}
	}
	return out
}

// handle services every inbound ClusterMessage this node's Node
// delivers, reacting to registry_sync deltas and node_down GC.
func (g *GlobalRegistry) handle(from string, msg wire.ClusterMessage) {
	switch m := msg.(type) {
	case *wire.RegistrySync:
		for _, e := range m.Entries {
			g.applyEntry(entryFromWire(e))
		}
	case *wire.NodeDown:
		g.purgeNode(m.NodeID)
	}
}

// handleJoin pushes a full snapshot to a newly discovered peer, the
// push-model implementation of spec §4.11's join-time full sync (both
// sides push to each other as each discovers the other, so there is no
// separate "request" wire tag to maintain).
func (g *GlobalRegistry) handleJoin(peerID string) {
	snapshot := g.Snapshot()
	wireEntries := make([]wire.RegistryEntry, len(snapshot))
	for i, e := range snapshot {
		wireEntries[i] = e.toWire()
	}
	_ = g.node.Send(peerID, wire.RegistrySync{FullSync: true, Entries: wireEntries})
}

// applyEntry merges one inbound delta against local state per spec
// §4.11's priority rule. A tombstone only removes the registration it
// names (sameRegistration), never a newer one that has since superseded
// it. A losing non-tombstone delta triggers a one-shot counter-
// broadcast of our own winning entry, so the loser's Register call
// notices within its conflictWindow that it lost, even though the
// winning side never directly heard the losing attempt.
func (g *GlobalRegistry) applyEntry(incoming Entry) {
	g.mu.Lock()
	existing, ok := g.entries[incoming.Name]

	if incoming.Removed {
		if ok && existing.sameRegistration(incoming) {
			delete(g.entries, incoming.Name)
			delete(g.localRefs, incoming.Name)
		}
		g.mu.Unlock()
		return
	}

	if !ok || existing.Removed || incoming.winsOver(existing) {
		g.entries[incoming.Name] = incoming
		if local, isLocal := g.localRefs[incoming.Name]; isLocal &&
			(local.ID() != incoming.ActorID || local.NodeID() != incoming.NodeID) {
			// Our own registration under this name just lost to a
			// different, higher-priority one from elsewhere.
			delete(g.localRefs, incoming.Name)
		}
		g.mu.Unlock()
		return
	}

	// incoming lost to our existing entry: if it is a genuinely
	// different registration (not a re-delivery of what we already
	// hold), let the loser know by re-announcing our winner.
	resend := !existing.sameRegistration(incoming)
	g.mu.Unlock()

	if resend {
		g.node.Broadcast(wire.RegistrySync{Entries: []wire.RegistryEntry{existing.toWire()}})
	}
}

// purgeNode drops every entry owned by a node that was just declared
// down (spec §4.11: "If the owning node is declared down, peers remove
// all entries whose ref.nodeId equals the down node").
func (g *GlobalRegistry) purgeNode(nodeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for name, e := range g.entries {
		if e.NodeID == nodeID {
			delete(g.entries, name)
			delete(g.localRefs, name)
		}
	}
}
