package remote

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/orbitrt/orbit/actor"
	"github.com/orbitrt/orbit/cluster/wire"
)

// Link implements spec §4.10's cross-node link setup for the symmetric
// link pattern: a link_request/link_ack round-trip, after which an
// abnormal exit on either side cascades to the other via exit_signal.
func (r *Remote) Link(ctx context.Context, local actor.Ref, peerNode, peerID string) (string, error) {
	linkID := newCorrelationID()
	future := r.pending.register(linkID, peerNode)

	if err := r.node.Send(peerNode, wire.LinkRequest{
		LinkID:   linkID,
		PeerAID:  local.ID(),
		PeerANode: local.NodeID(),
		PeerBID:  peerID,
	}); err != nil {
		r.pending.cancel(linkID)
		return "", &NodeNotReachableError{NodeID: peerNode}
	}

	setupCtx, cancel := context.WithTimeout(ctx, callTimeout(10000))
	defer cancel()

	result := future.Await(setupCtx)
	raw, err := result.Unpack()
	if err != nil {
		r.pending.cancel(linkID)
		if setupCtx.Err() != nil {
			return "", &RemoteLinkTimeoutError{PeerID: peerID}
		}
		return "", err
	}

	var ack wire.LinkAck
	if jsonErr := json.Unmarshal(raw, &ack); jsonErr != nil {
		return "", &MessageSerializationError{Cause: jsonErr}
	}
	if !ack.Success {
		return "", errors.New("remote: link request refused: " + ack.Reason)
	}

	forwarder := &linkForwarder{remote: r, peerNode: peerNode, correlation: linkID, localID: local.ID()}
	r.sys.Link(local, forwarder)
	r.tables.addOutgoingLink(linkID, peerNode, peerID, local)

	return linkID, nil
}

// Unlink fires a fire-and-forget unlink_request and removes the local
// symmetric link.
func (r *Remote) Unlink(linkID string) {
	entry, ok := r.tables.popOutgoingLink(linkID)
	if !ok {
		return
	}
	r.sys.Unlink(entry.local.ID(), "remote-link:"+linkID)
	_ = r.node.Send(entry.peerNode, wire.UnlinkRequest{LinkID: linkID})
}

// handleLinkRequest services an inbound link_request: if PeerBID exists
// locally, register a synthetic peer with actor.System.Link so an
// abnormal exit on either side cascades over the wire via exit_signal.
func (r *Remote) handleLinkRequest(ctx context.Context, from string, m *wire.LinkRequest) {
	local, ok := r.sys.Lookup(m.PeerBID)
	if !ok {
		_ = r.node.Send(from, wire.LinkAck{LinkID: m.LinkID, Success: false, Reason: "noproc"})
		return
	}

	forwarder := &linkForwarder{remote: r, peerNode: from, correlation: m.LinkID, localID: local.ID()}
	r.sys.Link(local, forwarder)
	r.tables.addIncomingLink(m.LinkID, from, local)

	_ = r.node.Send(from, wire.LinkAck{LinkID: m.LinkID, Success: true})
}

func (r *Remote) handleLinkAck(m *wire.LinkAck) {
	raw, _ := json.Marshal(m)
	r.pending.resolve(m.LinkID, raw, nil)
}

// handleUnlinkRequest tears down the local side of an incoming link.
func (r *Remote) handleUnlinkRequest(m *wire.UnlinkRequest) {
	entry, ok := r.tables.popIncomingLink(m.LinkID)
	if !ok {
		return
	}
	r.sys.Unlink(entry.local.ID(), "remote-link:"+m.LinkID)
}

// sendExitSignal forwards a local abnormal exit to peerNode as an
// exit_signal envelope.
func (r *Remote) sendExitSignal(peerNode, linkID, fromID string, reason error) {
	message := ""
	if reason != nil {
		message = reason.Error()
	}
	_ = r.node.Send(peerNode, wire.ExitSignal{
		LinkID:   linkID,
		FromID:   fromID,
		FromNode: r.sys.NodeID(),
		Reason:   message,
	})
}

// handleExitSignal delivers an inbound exit_signal to the local linked
// actor: if it traps exits, it receives an ExitSignal lifecycle cast and
// survives; otherwise it is stopped with the carried reason, continuing
// any further local cascade through its own links (spec §4.10, mirroring
// actor.System.deliverExit's local-link logic on the receiving side).
func (r *Remote) handleExitSignal(ctx context.Context, m *wire.ExitSignal) {
	entry, ok := r.tables.getIncomingLink(m.LinkID)
	if !ok {
		return
	}

	var reason error
	if m.Reason != "" {
		reason = errors.New(m.Reason)
	}

	deliverLinkExit(ctx, entry.local, newRemoteRef(r, m.FromID, m.FromNode, nil), m.LinkID, reason)
}

// deliverLinkExit applies the same trap-exit-or-terminate decision
// actor.System.deliverExit makes for a local link peer (actor/system.go),
// against a link whose other side now lives over the wire: if local
// traps exits it receives an info-level ExitSignal and keeps running,
// otherwise it is stopped with reason.
func deliverLinkExit(ctx context.Context, local actor.Ref, from actor.Ref, linkID string, reason error) {
	if trapper, ok := local.(interface{ TrapsExit() bool }); ok && trapper.TrapsExit() {
		local.Cast(ctx, actor.ExitSignal{From: from, Reason: reason, LinkID: linkID})
		return
	}
	local.Stop(ctx, reason)
}
