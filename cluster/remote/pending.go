package remote

import (
	"encoding/json"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/orbitrt/orbit/actor"
)

// pendingEntry is one outstanding correlation: a call, spawn, monitor, or
// link setup round-trip waiting for its reply envelope. It is completed
// exactly once, either by a matching reply arriving (resolve) or by a
// node_down sweep for targetNode (failNode).
type pendingEntry struct {
	targetNode string
	promise    actor.Promise[json.RawMessage]
}

// pendingTable correlates outgoing call/spawn/monitor/link requests with
// their eventual reply, grounded on the teacher's Future/Promise
// completion-handle idiom (actor/future.go) rather than a bespoke
// channel-per-request type: each entry is just an
// actor.Promise[json.RawMessage], generalized from "complete when the
// local actor replies" to "complete on reply envelope, timeout, or
// node_down sweep" (spec §9's Design Notes on pending tables).
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingEntry)}
}

// register creates a fresh correlation id's waiting entry.
func (t *pendingTable) register(id, targetNode string) actor.Future[json.RawMessage] {
	entry := &pendingEntry{
		targetNode: targetNode,
		promise:    actor.NewPromise[json.RawMessage](),
	}

	t.mu.Lock()
	t.entries[id] = entry
	t.mu.Unlock()

	return entry.promise.Future()
}

// resolve completes id's promise with either raw (success) or err
// (failure), whichever arrived. Returns false if id is unknown (already
// resolved, cancelled, or never registered).
func (t *pendingTable) resolve(id string, raw json.RawMessage, err error) bool {
	t.mu.Lock()
	entry, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}

	if err != nil {
		entry.promise.Complete(fn.Err[json.RawMessage](err))
	} else {
		entry.promise.Complete(fn.Ok(raw))
	}
	return true
}

// cancel drops id without completing its promise (used once the waiter
// itself has already stopped watching, e.g. after a local timeout).
func (t *pendingTable) cancel(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// failNode completes, with err, every entry registered against
// targetNode - spec §4.8/§4.10's "on node_down for the target node,
// every pending call/monitor/link targeting that node is failed".
func (t *pendingTable) failNode(targetNode string, err error) {
	t.mu.Lock()
	var matched []*pendingEntry
	for id, entry := range t.entries {
		if entry.targetNode == targetNode {
			matched = append(matched, entry)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()

	for _, entry := range matched {
		entry.promise.Complete(fn.Err[json.RawMessage](err))
	}
}
