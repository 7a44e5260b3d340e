package remote

import (
	"context"
	"encoding/json"

	"github.com/orbitrt/orbit/actor"
	"github.com/orbitrt/orbit/cluster/wire"
)

// Ref returns an actor.Ref for an actor known to live on nodeID with the
// given id, decoding call replies as the behavior named behaviorName
// declares (via its registered Registration.NewReply). Pass an empty
// behaviorName (or one not registered) to get a Ref whose Call returns
// raw json.RawMessage instead of a decoded value.
func (r *Remote) Ref(nodeID, id, behaviorName string) actor.Ref {
	var decode func() any
	if reg, ok := r.behaviors.Lookup(behaviorName); ok && reg.NewReply != nil {
		decode = reg.NewReply
	}
	return newRemoteRef(r, id, nodeID, decode)
}

// callRaw implements spec §4.8's call(remoteRef, msg, timeoutMs): marshal
// msg, register a fresh callId, send a call envelope, and wait for
// call_reply/call_error/timeout/node_down.
func (r *Remote) callRaw(ctx context.Context, targetNode, targetID string, msg any,
	opts actor.CallOptions,
) (json.RawMessage, error) {

	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, &MessageSerializationError{Cause: err}
	}

	callID := newCorrelationID()
	future := r.pending.register(callID, targetNode)

	timeoutMs := opts.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}

	if err := r.node.Send(targetNode, wire.Call{
		CallID:    callID,
		TargetID:  targetID,
		Msg:       raw,
		TimeoutMs: timeoutMs,
	}); err != nil {
		r.pending.cancel(callID)
		return nil, &NodeNotReachableError{NodeID: targetNode}
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout(timeoutMs))
	defer cancel()

	result := future.Await(callCtx)
	value, err := result.Unpack()
	if err != nil {
		r.pending.cancel(callID)
		if callCtx.Err() != nil {
			return nil, &RemoteCallTimeoutError{TargetID: targetID}
		}
		return nil, err
	}
	return value, nil
}

// castRaw implements spec §4.8's fire-and-forget remote cast: best
// effort, silently dropped if the target node is disconnected.
func (r *Remote) castRaw(ctx context.Context, targetNode, targetID string, msg any) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = r.node.Send(targetNode, wire.Cast{TargetID: targetID, Msg: raw})
}

// handleCall services an inbound call envelope against this node's local
// actor.System, replying with call_reply or call_error.
func (r *Remote) handleCall(ctx context.Context, from string, m *wire.Call) {
	reg, haveBehavior := r.behaviors.BehaviorFor(m.TargetID)
	ref, ok := r.sys.Lookup(m.TargetID)
	if !ok {
		r.replyCallError(from, m.CallID, "", "actor not found")
		return
	}

	var callMsg any = json.RawMessage(m.Msg)
	if haveBehavior && reg.NewCallMsg != nil {
		ptr := reg.NewCallMsg()
		if err := json.Unmarshal(m.Msg, ptr); err != nil {
			log.DebugS(ctx, "remote: call payload decode failed", "target", m.TargetID, "err", err)
			r.replyCallError(from, m.CallID, "", err.Error())
			return
		}
		callMsg = dereference(ptr)
	}

	reply, err := ref.Call(ctx, callMsg, actor.CallOptions{TimeoutMs: m.TimeoutMs})
	if err != nil {
		r.replyCallError(from, m.CallID, errorTypeFor(err), err.Error())
		return
	}

	replyRaw, err := json.Marshal(reply)
	if err != nil {
		r.replyCallError(from, m.CallID, errTypeUnknown, err.Error())
		return
	}

	_ = r.node.Send(from, wire.CallReply{CallID: m.CallID, Result: replyRaw})
}

func (r *Remote) replyCallError(to, callID, errorType, message string) {
	if errorType == "" {
		errorType = errTypeUnknown
	}
	_ = r.node.Send(to, wire.CallError{CallID: callID, ErrorType: errorType, Message: message})
}

// handleCast services an inbound cast envelope, silently dropping it if
// the target is unknown (spec §4.8: "on arrival, invoked via local
// cast", and local cast is itself silently-dropped-on-mismatch).
func (r *Remote) handleCast(ctx context.Context, from string, m *wire.Cast) {
	ref, ok := r.sys.Lookup(m.TargetID)
	if !ok {
		return
	}

	reg, haveBehavior := r.behaviors.BehaviorFor(m.TargetID)

	var castMsg any = json.RawMessage(m.Msg)
	if haveBehavior && reg.NewCastMsg != nil {
		ptr := reg.NewCastMsg()
		if err := json.Unmarshal(m.Msg, ptr); err != nil {
			log.DebugS(ctx, "remote: cast payload decode failed, dropping", "target", m.TargetID, "err", err)
			return
		}
		castMsg = dereference(ptr)
	}

	ref.Cast(ctx, castMsg)
}
