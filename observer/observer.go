// Package observer implements C12: a per-node Observer exposing process
// count, per-actor stats, and supervisor stats as a derived process
// tree, plus a ClusterObserver that fans a snapshot query out to every
// connected node (spec §4.12). Grounded on the teacher's
// internal/actorutil fan-out helpers (github.com/orbitrt/orbit/actorutil
// in this repo), generalized from "send the same message to N actors" to
// "send the same remote call to N nodes".
package observer

import (
	"context"
	"sync"

	"github.com/orbitrt/orbit/actor"
	"github.com/orbitrt/orbit/supervisor"
)

// Observer reads one actor.System's live state and a set of
// explicitly-watched top-level supervisors, producing a Snapshot on
// demand. There is no automatic supervisor discovery - a supervisor is,
// from the System's point of view, just another actor.Ref - so callers
// register the ones they want included in the process tree.
type Observer struct {
	sys *actor.System

	mu          sync.RWMutex
	supervisors map[string]actor.Ref // id -> ref, insertion order not preserved
}

// New creates an Observer bound to sys.
func New(sys *actor.System) *Observer {
	return &Observer{
		sys:         sys,
		supervisors: make(map[string]actor.Ref),
	}
}

// System returns the actor.System this Observer reads from, for callers
// (e.g. ClusterObserver) that need to start a collocated actor.
func (o *Observer) System() *actor.System { return o.sys }

// WatchSupervisor adds ref to the set of supervisors this Observer
// reports on. Calling it more than once for the same id is a no-op.
func (o *Observer) WatchSupervisor(ref actor.Ref) {
	o.mu.Lock()
	o.supervisors[ref.ID()] = ref
	o.mu.Unlock()
}

// UnwatchSupervisor removes a supervisor from the watched set, typically
// called once it terminates.
func (o *Observer) UnwatchSupervisor(id string) {
	o.mu.Lock()
	delete(o.supervisors, id)
	o.mu.Unlock()
}

func (o *Observer) watchedSupervisors() []actor.Ref {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]actor.Ref, 0, len(o.supervisors))
	for _, ref := range o.supervisors {
		out = append(out, ref)
	}
	return out
}

func (o *Observer) isWatched(id string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.supervisors[id]
	return ok
}

// Snapshot gathers this node's process count, every live actor's stats,
// every watched supervisor's stats, and the derived process tree. Each
// supervisor's GetStats/GetChildren call is bounded by ctx.
func (o *Observer) Snapshot(ctx context.Context) (Snapshot, error) {
	actors := o.sys.ActorStats()
	actorsByID := make(map[string]actor.ActorStats, len(actors))
	for _, a := range actors {
		actorsByID[a.ID] = a
	}

	sups := o.watchedSupervisors()

	// A supervisor that turns up as another watched supervisor's child
	// is nested: it gets a tree entry under its parent, not a second
	// root of its own.
	nestedIDs := make(map[string]bool, len(sups))
	for _, sup := range sups {
		children, err := supervisor.GetChildren(ctx, sup)
		if err != nil {
			continue
		}
		for id := range children {
			if o.isWatched(id) {
				nestedIDs[id] = true
			}
		}
	}

	covered := make(map[string]bool, len(sups))
	supStats := make([]SupervisorStats, 0, len(sups))
	tree := make([]TreeNode, 0, len(sups))

	for _, sup := range sups {
		stats, err := supervisor.GetStats(ctx, sup)
		if err != nil {
			log.DebugS(ctx, "observer: supervisor stats query failed",
				"supervisor_id", sup.ID(), "err", err)
			continue
		}
		supStats = append(supStats, SupervisorStats{ID: sup.ID(), Stats: stats})

		if nestedIDs[sup.ID()] {
			// Covered when its parent's subtree is built, below.
			continue
		}

		covered[sup.ID()] = true
		node, childIDs := o.supervisorNode(ctx, sup, actorsByID)
		tree = append(tree, node)
		for _, id := range childIDs {
			covered[id] = true
		}
	}

	for _, a := range actors {
		if covered[a.ID] {
			continue
		}
		tree = append(tree, TreeNode{ID: a.ID, Name: a.Name, Kind: "actor"})
	}

	return Snapshot{
		NodeID:       o.sys.NodeID(),
		ProcessCount: o.sys.ProcessCount(),
		Actors:       actors,
		Supervisors:  supStats,
		Tree:         tree,
	}, nil
}

// supervisorNode builds one supervisor's TreeNode, recursing into any
// child that is itself a currently-watched supervisor. It returns the
// node plus the flat list of every descendant actor id it covers, so the
// caller can exclude them from the standalone-actor pass.
func (o *Observer) supervisorNode(ctx context.Context, sup actor.Ref,
	actorsByID map[string]actor.ActorStats,
) (TreeNode, []string) {

	node := TreeNode{ID: sup.ID(), Kind: "supervisor"}
	var covered []string

	children, err := supervisor.GetChildren(ctx, sup)
	if err != nil {
		log.DebugS(ctx, "observer: supervisor children query failed",
			"supervisor_id", sup.ID(), "err", err)
		return node, covered
	}

	o.mu.RLock()
	nested := make(map[string]actor.Ref, len(children))
	for id, child := range children {
		if ref, ok := o.supervisors[id]; ok {
			nested[id] = ref
		}
	}
	o.mu.RUnlock()

	for id, child := range children {
		covered = append(covered, id)

		if nestedSup, ok := nested[id]; ok {
			childNode, nestedCovered := o.supervisorNode(ctx, nestedSup, actorsByID)
			node.Children = append(node.Children, childNode)
			covered = append(covered, nestedCovered...)
			continue
		}

		name := ""
		if a, ok := actorsByID[child.ID()]; ok {
			name = a.Name
		}
		node.Children = append(node.Children, TreeNode{ID: id, Name: name, Kind: "actor"})
	}

	return node, covered
}
