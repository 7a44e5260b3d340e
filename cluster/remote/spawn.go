package remote

import (
	"context"
	"encoding/json"

	"github.com/orbitrt/orbit/actor"
	"github.com/orbitrt/orbit/cluster/wire"
)

// SpawnOptions configures a remote Spawn call.
type SpawnOptions struct {
	// Name, if non-empty, is the name to register the spawned actor
	// under on the target node.
	Name string

	// Registration selects local-only or cluster-wide registration
	// for Name, mirroring actor.StartOptions.Registration.
	Registration actor.RegistrationMode

	// InitTimeoutMs bounds the target node's Init call. Zero means the
	// spec's 10000ms remote default.
	InitTimeoutMs int

	// Args is marshaled to JSON and passed to the target behavior's
	// Registration.Start as decodedArgs.
	Args any

	// TimeoutMs bounds how long Spawn itself waits for spawn_reply/
	// spawn_error. Zero means the spec's 10000ms remote default.
	TimeoutMs int
}

func registrationToWire(mode actor.RegistrationMode) string {
	switch mode {
	case actor.RegistrationGlobal:
		return "global"
	case actor.RegistrationLocal:
		return "local"
	default:
		return "none"
	}
}

func registrationFromWire(s string) actor.RegistrationMode {
	switch s {
	case "global":
		return actor.RegistrationGlobal
	case "local":
		return actor.RegistrationLocal
	default:
		return actor.RegistrationNone
	}
}

// Spawn implements spec §4.9's remote spawn: send spawn_request to
// targetNode for behaviorName, wait for spawn_reply/spawn_error, and
// return an actor.Ref over the new remote actor.
func (r *Remote) Spawn(ctx context.Context, targetNode, behaviorName string,
	opts SpawnOptions,
) (actor.Ref, error) {

	argsRaw, err := json.Marshal(opts.Args)
	if err != nil {
		return nil, &MessageSerializationError{Cause: err}
	}

	spawnID := newCorrelationID()
	future := r.pending.register(spawnID, targetNode)

	initTimeoutMs := opts.InitTimeoutMs
	if initTimeoutMs <= 0 {
		initTimeoutMs = 10000
	}

	if err := r.node.Send(targetNode, wire.SpawnRequest{
		SpawnID:       spawnID,
		BehaviorName:  behaviorName,
		Name:          opts.Name,
		Registration:  registrationToWire(opts.Registration),
		InitTimeoutMs: initTimeoutMs,
		Args:          argsRaw,
	}); err != nil {
		r.pending.cancel(spawnID)
		return nil, &NodeNotReachableError{NodeID: targetNode}
	}

	timeoutMs := opts.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}
	spawnCtx, cancel := context.WithTimeout(ctx, callTimeout(timeoutMs))
	defer cancel()

	result := future.Await(spawnCtx)
	raw, err := result.Unpack()
	if err != nil {
		r.pending.cancel(spawnID)
		if spawnCtx.Err() != nil {
			return nil, &RemoteSpawnTimeoutError{BehaviorName: behaviorName}
		}
		return nil, err
	}

	var reply wire.SpawnReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, &MessageSerializationError{Cause: err}
	}

	return r.Ref(reply.NodeID, reply.ServerID, behaviorName), nil
}

// handleSpawnRequest services an inbound spawn_request: locate the
// behavior, start it, apply registration, and reply spawn_reply or
// spawn_error. On registration failure the spawned actor is stopped
// before replying (spec §4.9).
func (r *Remote) handleSpawnRequest(ctx context.Context, from string, m *wire.SpawnRequest) {
	reg, ok := r.behaviors.Lookup(m.BehaviorName)
	if !ok {
		r.replySpawnError(from, m.SpawnID, errTypeBehaviorNotFound, "behavior not registered")
		return
	}

	var decodedArgs any
	if len(m.Args) > 0 {
		if err := json.Unmarshal(m.Args, &decodedArgs); err != nil {
			r.replySpawnError(from, m.SpawnID, errTypeInitFailed, err.Error())
			return
		}
	}

	initCtx, cancel := context.WithTimeout(ctx, callTimeout(m.InitTimeoutMs))
	defer cancel()

	ref, err := reg.Start(initCtx, r.sys, actor.StartOptions{
		InitTimeoutMs: m.InitTimeoutMs,
	}, decodedArgs)
	if err != nil {
		errType := errTypeInitFailed
		if initCtx.Err() != nil {
			errType = errTypeInitTimeout
		}
		r.replySpawnError(from, m.SpawnID, errType, err.Error())
		return
	}

	r.behaviors.BindActor(ref.ID(), m.BehaviorName)

	if m.Name != "" {
		mode := registrationFromWire(m.Registration)
		if err := r.sys.Register(m.Name, ref, mode); err != nil {
			log.WarnS(ctx, "remote: spawned actor registration failed, stopping it", err,
				"behavior", m.BehaviorName, "name", m.Name)
			r.behaviors.UnbindActor(ref.ID())
			ref.Stop(ctx, actor.ErrShutdown)
			r.replySpawnError(from, m.SpawnID, errTypeRegistrationFailed, err.Error())
			return
		}
	}

	_ = r.node.Send(from, wire.SpawnReply{
		SpawnID:  m.SpawnID,
		ServerID: ref.ID(),
		NodeID:   r.sys.NodeID(),
	})
}

func (r *Remote) replySpawnError(to, spawnID, errorType, message string) {
	_ = r.node.Send(to, wire.SpawnError{SpawnID: spawnID, ErrorType: errorType, Message: message})
}
