package observer

import (
	"time"

	"github.com/orbitrt/orbit/actor"
	"github.com/orbitrt/orbit/supervisor"
)

// SupervisorStats pairs a watched supervisor's id with its point-in-time
// supervisor.Stats (spec §4.12).
type SupervisorStats struct {
	ID string
	supervisor.Stats
}

// TreeNode is one node of the derived process tree (spec §4.12:
// "supervisors with children first, then standalone actors").
type TreeNode struct {
	ID       string
	Name     string
	Kind     string // "supervisor" or "actor"
	Children []TreeNode `json:",omitempty"`
}

// Snapshot is one node's local observer state: process count, every
// locally-running actor's stats, every watched supervisor's stats, and
// the derived process tree.
type Snapshot struct {
	NodeID       string
	ProcessCount int
	Actors       []actor.ActorStats
	Supervisors  []SupervisorStats
	Tree         []TreeNode
}

// NodeStatus classifies one node's contribution to a ClusterSnapshot
// (spec §4.12: "unreachable or slow nodes are surfaced as
// disconnected|error|timeout").
type NodeStatus string

const (
	NodeOK           NodeStatus = "ok"
	NodeDisconnected NodeStatus = "disconnected"
	NodeError        NodeStatus = "error"
	NodeTimeout      NodeStatus = "timeout"
)

// NodeSnapshot is one node's entry in a ClusterSnapshot.
type NodeSnapshot struct {
	NodeID   string
	Status   NodeStatus
	Snapshot *Snapshot `json:",omitempty"`
	Err      string    `json:",omitempty"`
}

// ClusterSnapshot is ClusterObserver's aggregated result: one NodeSnapshot
// per node fanned out to, in no particular order. A partial snapshot -
// some nodes NodeOK, others not - is a normal result (spec §4.12).
type ClusterSnapshot struct {
	Nodes     []NodeSnapshot
	GatheredAt time.Time
}

// SnapshotRequest is the Call message ClusterObserver sends to a remote
// node's observer actor. It carries no fields; the request itself is the
// entire payload (spec §4.12's get_snapshot has no parameters).
type SnapshotRequest struct{}

// SnapshotReply is the Call reply a node's observer actor sends back.
type SnapshotReply struct {
	Snapshot Snapshot
}
