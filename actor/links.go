package actor

import (
	"sync"

	"github.com/google/uuid"
)

// linkEntry records one side of a symmetric link.
type linkEntry struct {
	id   string
	peer Ref
}

// monitorEntry records one outgoing monitor: monitor watches target.
type monitorEntry struct {
	id      string
	target  Ref
	monitor Ref
}

// linkMonitorTable is the System-wide bookkeeping for C3 (Links &
// Monitors). It is keyed by actor id rather than embedded in each server
// so that cascade termination (spec §4.3) can walk a peer's links without
// reaching into that peer's internals - only its Ref is needed, since
// Ref.Stop is part of the uniform actor surface.
type linkMonitorTable struct {
	mu sync.Mutex

	// links maps an actor id to every link entry touching it. A link
	// between a and b appears once in links[a] and once in links[b],
	// sharing the same linkEntry.id.
	links map[string][]linkEntry

	// monitorsByTarget maps a monitored actor's id to the set of
	// monitors watching it.
	monitorsByTarget map[string][]monitorEntry

	// monitorsByID indexes the same entries by monitorID for O(1)
	// Demonitor.
	monitorsByID map[string]monitorEntry
}

func newLinkMonitorTable() *linkMonitorTable {
	return &linkMonitorTable{
		links:            make(map[string][]linkEntry),
		monitorsByTarget: make(map[string][]monitorEntry),
		monitorsByID:     make(map[string]monitorEntry),
	}
}

// Link establishes a symmetric link between a and b. Idempotent per
// (a.ID(), b.ID()): calling it again returns the existing linkID.
func (t *linkMonitorTable) Link(a, b Ref) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.links[a.ID()] {
		if e.peer.ID() == b.ID() {
			return e.id
		}
	}

	id := uuid.NewString()
	t.links[a.ID()] = append(t.links[a.ID()], linkEntry{id: id, peer: b})
	t.links[b.ID()] = append(t.links[b.ID()], linkEntry{id: id, peer: a})

	return id
}

// Unlink removes the link between aID and bID, if any.
func (t *linkMonitorTable) Unlink(aID, bID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.links[aID] = removeLinkPeer(t.links[aID], bID)
	t.links[bID] = removeLinkPeer(t.links[bID], aID)
}

func removeLinkPeer(entries []linkEntry, peerID string) []linkEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.peer.ID() != peerID {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Monitor registers monitor as watching target. Returns the new
// monitorID.
func (t *linkMonitorTable) Monitor(monitor, target Ref) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	entry := monitorEntry{id: id, target: target, monitor: monitor}

	t.monitorsByTarget[target.ID()] = append(t.monitorsByTarget[target.ID()], entry)
	t.monitorsByID[id] = entry

	return id
}

// Demonitor removes exactly the matching monitorID. Fire-and-forget: a
// miss is not an error (spec §4.3).
func (t *linkMonitorTable) Demonitor(monitorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.monitorsByID[monitorID]
	if !ok {
		return
	}
	delete(t.monitorsByID, monitorID)

	targetID := entry.target.ID()
	list := t.monitorsByTarget[targetID]
	for i, e := range list {
		if e.id == monitorID {
			t.monitorsByTarget[targetID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(t.monitorsByTarget[targetID]) == 0 {
		delete(t.monitorsByTarget, targetID)
	}
}

// OnTerminate removes and returns every link entry and monitor entry that
// referenced actorID, so the caller (System) can deliver process_down /
// exit_signal notifications and cascade termination per spec §4.3.
func (t *linkMonitorTable) OnTerminate(actorID string) ([]linkEntry, []monitorEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	links := t.links[actorID]
	delete(t.links, actorID)

	for _, e := range links {
		t.links[e.peer.ID()] = removeLinkPeer(t.links[e.peer.ID()], actorID)
	}

	monitors := t.monitorsByTarget[actorID]
	delete(t.monitorsByTarget, actorID)
	for _, e := range monitors {
		delete(t.monitorsByID, e.id)
	}

	return links, monitors
}
