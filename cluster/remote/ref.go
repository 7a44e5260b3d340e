package remote

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"

	"github.com/orbitrt/orbit/actor"
)

// remoteRef implements actor.Ref over the wire protocol for an actor
// living on another node - the generalized analogue of the teacher's
// uniform ActorRef shape, extended so "remote" is just another
// implementation of the same interface (spec §3's "Same shape locally or
// remotely; identity is id+nodeId").
type remoteRef struct {
	remote *Remote

	id     string
	nodeID string

	// decodeReply, when non-nil, returns a fresh pointer to the
	// behavior's declared Reply type, used to decode a call_reply's
	// raw result into the concrete type TypedRef.Call's type
	// assertion expects. A ref obtained without a known behavior
	// (e.g. via a bare Lookup helper) leaves this nil, and Call
	// instead returns the raw json.RawMessage.
	decodeReply func() any
}

func newRemoteRef(r *Remote, id, nodeID string, decodeReply func() any) *remoteRef {
	return &remoteRef{remote: r, id: id, nodeID: nodeID, decodeReply: decodeReply}
}

func (r *remoteRef) ID() string     { return r.id }
func (r *remoteRef) NodeID() string { return r.nodeID }

func (r *remoteRef) Call(ctx context.Context, msg any, opts actor.CallOptions) (any, error) {
	raw, err := r.remote.callRaw(ctx, r.nodeID, r.id, msg, opts)
	if err != nil {
		return nil, err
	}
	if r.decodeReply == nil {
		return raw, nil
	}

	replyPtr := r.decodeReply()
	if err := json.Unmarshal(raw, replyPtr); err != nil {
		return nil, &MessageSerializationError{Cause: err}
	}
	return reflect.ValueOf(replyPtr).Elem().Interface(), nil
}

func (r *remoteRef) Cast(ctx context.Context, msg any) {
	r.remote.castRaw(ctx, r.nodeID, r.id, msg)
}

// Stop has no wire representation in spec §6's payload tag set - remote
// actors are torn down by their owning node's own supervision, not by a
// peer's direct request. This is a documented limitation, not a silent
// no-op: callers that need remote lifecycle control use a Supervisor
// collocated with the target actor instead.
func (r *remoteRef) Stop(ctx context.Context, reason error) {}

func (r *remoteRef) Equal(other actor.Ref) bool {
	if other == nil {
		return false
	}
	return r.ID() == other.ID() && r.NodeID() == other.NodeID()
}

// monitorForwarder is a synthetic actor.Ref used as the "watcher" passed
// to actor.System.Monitor on behalf of a remote peer: sys.Monitor only
// knows how to notify a Ref, so incoming monitor_request handling wraps
// the requesting peer in one of these instead of teaching System about
// the wire protocol. Only Cast carries real behavior; the identity
// methods exist solely to satisfy the interface.
type monitorForwarder struct {
	remote      *Remote
	watcherNode string
	correlation string
}

func (f *monitorForwarder) ID() string     { return "remote-monitor:" + f.correlation }
func (f *monitorForwarder) NodeID() string { return f.remote.node.NodeID() }

func (f *monitorForwarder) Call(ctx context.Context, msg any, opts actor.CallOptions) (any, error) {
	return nil, actor.ErrServerNotRunning
}

func (f *monitorForwarder) Cast(ctx context.Context, msg any) {
	down, ok := msg.(actor.ProcessDown)
	if !ok {
		return
	}
	f.remote.sendProcessDown(f.watcherNode, f.correlation, down)
}

func (f *monitorForwarder) Stop(ctx context.Context, reason error) {}

func (f *monitorForwarder) Equal(other actor.Ref) bool {
	o, ok := other.(*monitorForwarder)
	return ok && o.correlation == f.correlation
}

// linkForwarder is the link analogue of monitorForwarder: it stands in
// for a remote peer inside actor.System's linkMonitorTable, so that a
// local actor's abnormal exit cascades an exit_signal over the wire
// instead of the cascade silently stopping at the process boundary.
// linkForwarder deliberately does not implement TrapsExit, so
// System.deliverExit always takes its Stop branch - the decision of
// whether the *actual* remote peer traps the exit is made on the
// receiving node, against its own local ref (see Remote.handleExitSignal).
type linkForwarder struct {
	remote      *Remote
	peerNode    string
	correlation string

	// localID is the id of the actual local actor on this node's side
	// of the link, reported as FromID in the exit_signal this
	// forwarder sends.
	localID string
}

func (f *linkForwarder) ID() string     { return "remote-link:" + f.correlation }
func (f *linkForwarder) NodeID() string { return f.remote.node.NodeID() }

func (f *linkForwarder) Call(ctx context.Context, msg any, opts actor.CallOptions) (any, error) {
	return nil, actor.ErrServerNotRunning
}

func (f *linkForwarder) Cast(ctx context.Context, msg any) {}

func (f *linkForwarder) Stop(ctx context.Context, reason error) {
	if reason == nil {
		reason = errors.New("")
	}
	f.remote.sendExitSignal(f.peerNode, f.correlation, f.localID, reason)
}

func (f *linkForwarder) Equal(other actor.Ref) bool {
	o, ok := other.(*linkForwarder)
	return ok && o.correlation == f.correlation
}
