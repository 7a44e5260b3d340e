package cluster

import (
	"sync"
	"time"

	"github.com/orbitrt/orbit/cluster/wire"
)

// memberState is a member's locally-observed liveness.
type memberState int

const (
	memberUp memberState = iota
	memberDown
)

type member struct {
	info            wire.NodeInfo
	state           memberState
	lastHeartbeatAt time.Time
}

// membership is the single-writer membership table (spec §4.6: "a
// single-writer structure behind a lock ... membership mutations happen
// only in the membership component"), grounded on the teacher's
// ActorSystem.mu-guarded actors map discipline (system.go) generalized
// from actor ids to node ids.
type membership struct {
	mu   sync.Mutex
	self wire.NodeInfo
	nodes map[string]*member
}

func newMembership(self wire.NodeInfo) *membership {
	return &membership{
		self:  self,
		nodes: make(map[string]*member),
	}
}

// upsert records or refreshes a peer's NodeInfo and marks it up, and
// reports whether this node id was previously unknown (the caller then
// fires its OnJoin handlers for it).
func (m *membership) upsert(info wire.NodeInfo) (isNew bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if info.ID == m.self.ID {
		return false
	}

	existing, ok := m.nodes[info.ID]
	if !ok {
		m.nodes[info.ID] = &member{info: info, state: memberUp, lastHeartbeatAt: time.Now()}
		return true
	}

	existing.info = info
	existing.state = memberUp
	existing.lastHeartbeatAt = time.Now()
	return false
}

// touch refreshes the heartbeat timestamp for an already-known node.
func (m *membership) touch(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n, ok := m.nodes[id]; ok {
		n.lastHeartbeatAt = at
		n.state = memberUp
	}
}

// staleIDs returns every currently-up node whose last heartbeat is
// older than the spec §4.6 threshold (heartbeatInterval *
// missThreshold), without mutating their state.
func (m *membership) staleIDs(now time.Time, heartbeatInterval time.Duration, missThreshold int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	threshold := time.Duration(missThreshold) * heartbeatInterval

	var stale []string
	for id, n := range m.nodes {
		if n.state == memberUp && now.Sub(n.lastHeartbeatAt) > threshold {
			stale = append(stale, id)
		}
	}
	return stale
}

// markDown transitions id to down and reports whether it was previously
// up (so the caller only emits one node_down per actual transition).
func (m *membership) markDown(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok || n.state == memberDown {
		return false
	}
	n.state = memberDown
	return true
}

// isKnown reports whether id is a tracked node (up or down).
func (m *membership) isKnown(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.nodes[id]
	return ok
}

// isUp reports whether id is currently tracked and up.
func (m *membership) isUp(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	return ok && n.state == memberUp
}

// knownNodes returns the NodeInfo of every node currently considered up,
// for inclusion in an outgoing heartbeat's knownNodes list.
func (m *membership) knownNodes() []wire.NodeInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]wire.NodeInfo, 0, len(m.nodes))
	for _, n := range m.nodes {
		if n.state == memberUp {
			out = append(out, n.info)
		}
	}
	return out
}

// snapshot returns every tracked node id mapped to whether it is
// currently up.
func (m *membership) snapshot() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]bool, len(m.nodes))
	for id, n := range m.nodes {
		out[id] = n.state == memberUp
	}
	return out
}
