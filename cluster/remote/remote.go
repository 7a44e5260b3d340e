// Package remote implements C8/C9/C10: remote call/cast, the behavior
// registry and remote spawn, and cross-node monitor/link propagation,
// layered on top of cluster.Node's envelope transport.
package remote

import (
	"context"
	"encoding/json"

	"github.com/orbitrt/orbit/actor"
	"github.com/orbitrt/orbit/cluster"
	"github.com/orbitrt/orbit/cluster/wire"
)

// Remote wires one cluster.Node to one actor.System: it decodes inbound
// ClusterMessages into local actor.System operations (call, cast, spawn,
// monitor, link) and encodes outbound ones, using pendingTable to
// correlate replies and BehaviorRegistry to recover concrete Go types a
// generic transport can't otherwise name.
type Remote struct {
	node      *cluster.Node
	sys       *actor.System
	behaviors *BehaviorRegistry

	pending *pendingTable
	tables  *remoteTables

	unsubscribe cluster.Unsubscribe
}

// New creates a Remote bound to node and sys, immediately subscribing to
// node's inbound messages. behaviors may be nil if this node never
// accepts remote spawn/call/cast requests (e.g. a pure client).
func New(node *cluster.Node, sys *actor.System, behaviors *BehaviorRegistry) *Remote {
	if behaviors == nil {
		behaviors = NewBehaviorRegistry()
	}

	r := &Remote{
		node:      node,
		sys:       sys,
		behaviors: behaviors,
		pending:   newPendingTable(),
		tables:    newRemoteTables(),
	}
	r.unsubscribe = node.OnMessage(r.handle)
	return r
}

// Close stops observing node's inbound messages. It does not stop node
// or sys.
func (r *Remote) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// Behaviors returns the BehaviorRegistry wired to this Remote, for
// callers that want to Register on it before the node starts (spec
// §4.9's "registration must occur before cluster start").
func (r *Remote) Behaviors() *BehaviorRegistry { return r.behaviors }

func (r *Remote) handle(from string, msg wire.ClusterMessage) {
	ctx := context.Background()

	switch m := msg.(type) {
	case *wire.Call:
		r.handleCall(ctx, from, m)
	case *wire.CallReply:
		r.pending.resolve(m.CallID, m.Result, nil)
	case *wire.CallError:
		r.pending.resolve(m.CallID, nil, rebuildCallError("", m.ErrorType, m.Message))
	case *wire.Cast:
		r.handleCast(ctx, from, m)
	case *wire.SpawnRequest:
		r.handleSpawnRequest(ctx, from, m)
	case *wire.SpawnReply:
		raw, _ := json.Marshal(m)
		r.pending.resolve(m.SpawnID, raw, nil)
	case *wire.SpawnError:
		r.pending.resolve(m.SpawnID, nil, rebuildSpawnError("", m.ErrorType, m.Message))
	case *wire.MonitorRequest:
		r.handleMonitorRequest(ctx, from, m)
	case *wire.MonitorAck:
		r.handleMonitorAck(m)
	case *wire.DemonitorRequest:
		r.handleDemonitorRequest(m)
	case *wire.ProcessDown:
		r.handleProcessDown(m)
	case *wire.LinkRequest:
		r.handleLinkRequest(ctx, from, m)
	case *wire.LinkAck:
		r.handleLinkAck(m)
	case *wire.UnlinkRequest:
		r.handleUnlinkRequest(m)
	case *wire.ExitSignal:
		r.handleExitSignal(ctx, m)
	case *wire.NodeDown:
		r.handleNodeDown(m.NodeID)
	}
}

// handleNodeDown implements spec §4.8/§4.10's node_down resolution:
// every pending call/spawn/monitor/link-setup targeting the lost node
// fails with NodeNotReachableError; every outgoing monitor/link to it
// resolves locally with a noconnection process_down/exit_signal; every
// incoming monitor/link from it is erased silently.
func (r *Remote) handleNodeDown(nodeID string) {
	r.pending.failNode(nodeID, &NodeNotReachableError{NodeID: nodeID})

	for _, m := range r.tables.popOutgoingMonitorsForNode(nodeID) {
		m.watcher.Cast(context.Background(), actor.ProcessDown{
			MonitorID: m.correlation,
			Monitored: newRemoteRef(r, m.targetID, m.targetNode, nil),
			Reason:    errNoConnection,
		})
	}
	for _, m := range r.tables.popIncomingMonitorsForNode(nodeID) {
		r.sys.Demonitor(m.internalID)
	}

	for _, l := range r.tables.popOutgoingLinksForNode(nodeID) {
		peerRef := newRemoteRef(r, l.peerID, nodeID, nil)
		deliverLinkExit(context.Background(), l.local, peerRef, "", errNoConnection)
	}
	for _, l := range r.tables.popIncomingLinksForNode(nodeID) {
		r.sys.Unlink(l.local.ID(), "remote-link:"+l.correlation)
	}
}

// errNoConnection is the reason value reported to local watchers/links
// when their remote peer's node is declared down (spec §4.10's
// `reason: noconnection`).
var errNoConnection = &noConnectionError{}

type noConnectionError struct{}

func (*noConnectionError) Error() string { return "noconnection" }
