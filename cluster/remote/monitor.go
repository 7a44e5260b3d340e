package remote

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/orbitrt/orbit/actor"
	"github.com/orbitrt/orbit/cluster/wire"
)

// Monitor implements spec §4.10's cross-node monitor setup: a
// monitor_request/monitor_ack round-trip establishing watcher (local to
// this node) as monitoring the actor targetID on targetNode.
func (r *Remote) Monitor(ctx context.Context, watcher actor.Ref, targetNode, targetID string) (string, error) {
	monitorID := newCorrelationID()
	future := r.pending.register(monitorID, targetNode)

	if err := r.node.Send(targetNode, wire.MonitorRequest{
		MonitorID:   monitorID,
		WatcherID:   watcher.ID(),
		WatcherNode: watcher.NodeID(),
		TargetID:    targetID,
	}); err != nil {
		r.pending.cancel(monitorID)
		return "", &NodeNotReachableError{NodeID: targetNode}
	}

	setupCtx, cancel := context.WithTimeout(ctx, callTimeout(10000))
	defer cancel()

	result := future.Await(setupCtx)
	raw, err := result.Unpack()
	if err != nil {
		r.pending.cancel(monitorID)
		if setupCtx.Err() != nil {
			return "", &RemoteMonitorTimeoutError{TargetID: targetID}
		}
		return "", err
	}

	var ack wire.MonitorAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return "", &MessageSerializationError{Cause: err}
	}
	if !ack.Success {
		return "", errors.New("remote: monitor request refused: " + ack.Reason)
	}

	r.tables.addOutgoingMonitor(monitorID, targetNode, targetID, watcher)
	return monitorID, nil
}

// Demonitor fires a fire-and-forget demonitor_request and drops the
// local outgoing-monitor entry (spec §4.10).
func (r *Remote) Demonitor(monitorID string) {
	if m, ok := r.tables.popOutgoingMonitor(monitorID); ok {
		_ = r.node.Send(m.targetNode, wire.DemonitorRequest{MonitorID: monitorID})
	}
}

// handleMonitorRequest services an inbound monitor_request: if the
// target actor exists locally, register a synthetic watcher with
// actor.System.Monitor so its eventual ProcessDown forwards to the
// requesting peer as a process_down envelope.
func (r *Remote) handleMonitorRequest(ctx context.Context, from string, m *wire.MonitorRequest) {
	target, ok := r.sys.Lookup(m.TargetID)
	if !ok {
		_ = r.node.Send(from, wire.MonitorAck{MonitorID: m.MonitorID, Success: false, Reason: "noproc"})
		return
	}

	forwarder := &monitorForwarder{remote: r, watcherNode: from, correlation: m.MonitorID}
	internalID := r.sys.Monitor(forwarder, target)
	r.tables.addIncomingMonitor(m.MonitorID, from, internalID)

	_ = r.node.Send(from, wire.MonitorAck{MonitorID: m.MonitorID, Success: true})
}

func (r *Remote) handleMonitorAck(m *wire.MonitorAck) {
	raw, _ := json.Marshal(m)
	r.pending.resolve(m.MonitorID, raw, nil)
}

// handleDemonitorRequest tears down the local side of an incoming
// monitor on demonitor_request. Fire-and-forget, so a miss is not an
// error (spec §4.10).
func (r *Remote) handleDemonitorRequest(m *wire.DemonitorRequest) {
	if entry, ok := r.tables.popIncomingMonitor(m.MonitorID); ok {
		r.sys.Demonitor(entry.internalID)
	}
}

// sendProcessDown forwards a locally-fired ProcessDown to the remote
// watcher, as a process_down envelope carrying correlation (the
// monitorId the original monitor_request established).
func (r *Remote) sendProcessDown(watcherNode, correlation string, down actor.ProcessDown) {
	reason := ""
	if down.Reason != nil {
		reason = down.Reason.Error()
	}
	_ = r.node.Send(watcherNode, wire.ProcessDown{
		MonitorID:     correlation,
		MonitoredID:   down.Monitored.ID(),
		MonitoredNode: down.Monitored.NodeID(),
		Reason:        reason,
	})
}

// handleProcessDown delivers an inbound process_down to the local
// watcher that originally issued the matching monitor_request.
func (r *Remote) handleProcessDown(m *wire.ProcessDown) {
	entry, ok := r.tables.popOutgoingMonitor(m.MonitorID)
	if !ok {
		return
	}

	var reason error
	if m.Reason != "" {
		reason = errors.New(m.Reason)
	}

	entry.watcher.Cast(context.Background(), actor.ProcessDown{
		MonitorID: m.MonitorID,
		Monitored: newRemoteRef(r, m.MonitoredID, m.MonitoredNode, nil),
		Reason:    reason,
	})
}
