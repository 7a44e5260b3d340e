package remote

import (
	"sync"

	"github.com/orbitrt/orbit/actor"
)

// outgoingMonitor is this node's record of a monitor it set up against an
// actor on another node: watcher is the local actor that should receive
// process_down.
type outgoingMonitor struct {
	correlation string
	targetNode  string
	targetID    string
	watcher     actor.Ref
}

// incomingMonitor is this node's record of a remote actor monitoring one
// of our local actors: internalID is the actor.System monitorID returned
// by sys.Monitor(forwarder, target), used to tear the local side down on
// demonitor_request.
type incomingMonitor struct {
	watcherNode string
	internalID  string
}

// outgoingLink/incomingLink mirror the monitor tables for C10's
// symmetric links. A link is tracked on both sides under the same
// linkID.
type outgoingLink struct {
	peerNode string
	peerID   string
	local    actor.Ref
}

type incomingLink struct {
	peerNode    string
	correlation string
	local       actor.Ref
}

// remoteTables is the per-Remote bookkeeping for C10 (cross-node
// monitors and links), keyed by the correlation id each request/ack
// round-trip established. One mutex, mirroring linkMonitorTable's
// single-writer discipline (actor/links.go).
type remoteTables struct {
	mu sync.Mutex

	outgoingMonitors map[string]outgoingMonitor
	incomingMonitors map[string]incomingMonitor

	outgoingLinks map[string]outgoingLink
	incomingLinks map[string]incomingLink
}

func newRemoteTables() *remoteTables {
	return &remoteTables{
		outgoingMonitors: make(map[string]outgoingMonitor),
		incomingMonitors: make(map[string]incomingMonitor),
		outgoingLinks:    make(map[string]outgoingLink),
		incomingLinks:    make(map[string]incomingLink),
	}
}

func (t *remoteTables) addOutgoingMonitor(id, targetNode, targetID string, watcher actor.Ref) {
	t.mu.Lock()
	t.outgoingMonitors[id] = outgoingMonitor{
		correlation: id,
		targetNode:  targetNode,
		targetID:    targetID,
		watcher:     watcher,
	}
	t.mu.Unlock()
}

func (t *remoteTables) popOutgoingMonitor(id string) (outgoingMonitor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.outgoingMonitors[id]
	if ok {
		delete(t.outgoingMonitors, id)
	}
	return m, ok
}

func (t *remoteTables) addIncomingMonitor(id, watcherNode, internalID string) {
	t.mu.Lock()
	t.incomingMonitors[id] = incomingMonitor{watcherNode: watcherNode, internalID: internalID}
	t.mu.Unlock()
}

func (t *remoteTables) popIncomingMonitor(id string) (incomingMonitor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.incomingMonitors[id]
	if ok {
		delete(t.incomingMonitors, id)
	}
	return m, ok
}

// outgoingMonitorsForNode returns (and removes) every outgoing monitor
// targeting downNode, for node_down resolution (spec §4.10).
func (t *remoteTables) popOutgoingMonitorsForNode(downNode string) []outgoingMonitor {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []outgoingMonitor
	for id, m := range t.outgoingMonitors {
		if m.targetNode == downNode {
			out = append(out, m)
			delete(t.outgoingMonitors, id)
		}
	}
	return out
}

// incomingMonitorsForNode returns (and removes) every incoming monitor
// whose watcher lived on downNode, for silent erasure (spec §4.10).
func (t *remoteTables) popIncomingMonitorsForNode(downNode string) []incomingMonitor {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []incomingMonitor
	for id, m := range t.incomingMonitors {
		if m.watcherNode == downNode {
			out = append(out, m)
			delete(t.incomingMonitors, id)
		}
	}
	return out
}

func (t *remoteTables) addOutgoingLink(id, peerNode, peerID string, local actor.Ref) {
	t.mu.Lock()
	t.outgoingLinks[id] = outgoingLink{peerNode: peerNode, peerID: peerID, local: local}
	t.mu.Unlock()
}

func (t *remoteTables) popOutgoingLink(id string) (outgoingLink, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.outgoingLinks[id]
	if ok {
		delete(t.outgoingLinks, id)
	}
	return l, ok
}

func (t *remoteTables) addIncomingLink(id, peerNode string, local actor.Ref) {
	t.mu.Lock()
	t.incomingLinks[id] = incomingLink{peerNode: peerNode, correlation: id, local: local}
	t.mu.Unlock()
}

func (t *remoteTables) popIncomingLink(id string) (incomingLink, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.incomingLinks[id]
	if ok {
		delete(t.incomingLinks, id)
	}
	return l, ok
}

// getIncomingLink looks up id without removing it, for exit_signal
// delivery, which does not by itself end the link.
func (t *remoteTables) getIncomingLink(id string) (incomingLink, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.incomingLinks[id]
	return l, ok
}

func (t *remoteTables) popOutgoingLinksForNode(downNode string) []outgoingLink {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []outgoingLink
	for id, l := range t.outgoingLinks {
		if l.peerNode == downNode {
			out = append(out, l)
			delete(t.outgoingLinks, id)
		}
	}
	return out
}

func (t *remoteTables) popIncomingLinksForNode(downNode string) []incomingLink {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []incomingLink
	for id, l := range t.incomingLinks {
		if l.peerNode == downNode {
			out = append(out, l)
			delete(t.incomingLinks, id)
		}
	}
	return out
}
