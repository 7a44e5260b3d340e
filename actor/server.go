package actor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// newID generates a fresh correlation/actor id. Grounded on the
// teacher's use of github.com/google/uuid as its direct id-generation
// dependency.
func newID() string {
	return uuid.NewString()
}

type status int32

const (
	statusInitializing status = iota
	statusRunning
	statusStopping
	statusStopped
)

// server is the concrete runtime for one actor: it owns the mailbox, the
// current State, and the dispatcher goroutine that drains it. It is the
// generalized analogue of the teacher's Actor[M,R] (actor.go), split into
// call/cast dispatch instead of a single Receive method, and extended
// with the lifecycle state machine, trapExit, and link/monitor
// integration spec §4.1/§4.3 require.
type server[State, CallMsg, CastMsg, Reply any] struct {
	id     string
	nodeID string
	name   string

	system *System

	behavior Behavior[State, CallMsg, CastMsg, Reply]
	state    State

	mailbox *channelMailbox[CallMsg, CastMsg, Reply]

	ctx    context.Context
	cancel context.CancelFunc

	status atomic.Int32

	startedAt     time.Time
	totalMessages atomic.Uint64

	trapExit atomic.Bool

	shutdownTimeout time.Duration

	// recordedStopReason holds the error passed to an explicit Stop
	// call, if any, so process() can report the right Terminated
	// reason instead of a generic context-cancelled error.
	recordedStopReason atomic.Value

	done chan struct{}

	ref *localRef[State, CallMsg, CastMsg, Reply]
}

// Start spawns a new actor under sys running behavior b, per spec §4.1.
// It blocks until Init completes (or fails/times out), then returns a
// TypedRef for in-process, compile-time-typed use. The underlying
// untyped Ref is registered with sys and reachable via sys.Lookup.
func Start[State, CallMsg, CastMsg, Reply any](
	sys *System, opts StartOptions, b Behavior[State, CallMsg, CastMsg, Reply],
) (*TypedRef[CallMsg, CastMsg, Reply], error) {

	if opts.Name != "" && opts.Registration != RegistrationNone {
		if sys.registry.IsRegistered(opts.Name) {
			return nil, &NameConflictError{Name: opts.Name}
		}
	}

	id := newID()
	ctx, cancel := context.WithCancel(sys.ctx)

	s := &server[State, CallMsg, CastMsg, Reply]{
		id:              id,
		nodeID:          sys.cfg.NodeID,
		name:            opts.Name,
		system:          sys,
		behavior:        b,
		mailbox:         newChannelMailbox[CallMsg, CastMsg, Reply](ctx, opts.MailboxSize),
		ctx:             ctx,
		cancel:          cancel,
		shutdownTimeout: time.Duration(opts.shutdownTimeout()) * time.Millisecond,
		done:            make(chan struct{}),
	}
	s.status.Store(int32(statusInitializing))
	s.trapExit.Store(opts.TrapExit)

	ref := &localRef[State, CallMsg, CastMsg, Reply]{srv: s}
	s.ref = ref

	initTimeout := time.Duration(opts.initTimeout()) * time.Millisecond
	initCtx, initCancel := context.WithTimeout(ctx, initTimeout)
	defer initCancel()

	initResult := make(chan fn.Result[State], 1)
	go func() {
		state, err := b.Init(initCtx)
		if err != nil {
			initResult <- fn.Err[State](err)
			return
		}
		initResult <- fn.Ok(state)
	}()

	select {
	case res := <-initResult:
		state, err := res.Unpack()
		if err != nil {
			cancel()
			sys.events.Publish(Crashed{ActorID: id, Err: err})
			return nil, &InitError{ActorID: id, Cause: err}
		}
		s.state = state

	case <-initCtx.Done():
		cancel()
		sys.events.Publish(Crashed{ActorID: id, Err: initCtx.Err()})
		return nil, &InitTimeoutError{ActorID: id, Timeout: initTimeout}
	}

	s.status.Store(int32(statusRunning))
	s.startedAt = time.Now()
	sys.registerActor(id, ref)

	if opts.Name != "" && opts.Registration != RegistrationNone {
		// Guaranteed to succeed: the conflict check above ran under
		// no intervening yield point between check and registration
		// apart from Init, which does not touch the registry.
		_ = sys.registry.Register(opts.Name, ref)
		if opts.Registration == RegistrationGlobal {
			if reg := sys.globalRegistrarOrNil(); reg != nil {
				if err := reg.Register(opts.Name, ref); err != nil {
					// The cluster-wide name lost its priority race
					// against a concurrent registration elsewhere
					// (spec §4.11). The actor never ran its process
					// loop, so it is torn down the same way an Init
					// failure is: purge bookkeeping, cancel, report.
					sys.registry.Unregister(opts.Name, ref)
					sys.mu.Lock()
					delete(sys.actors, id)
					sys.mu.Unlock()
					cancel()
					sys.events.Publish(Crashed{ActorID: id, Err: err})
					return nil, err
				}
			}
		}
	}

	sys.actorWg.Add(1)
	go s.process()

	sys.events.Publish(Started{ActorID: id})

	return NewTypedRef[CallMsg, CastMsg, Reply](ref), nil
}

// dispatchCall invokes HandleCall, recovering a panic into an error so a
// single misbehaving handler invocation cannot take down the process
// (spec §9, "internal panics in handlers are captured ... and do not
// corrupt the runtime"). panicked distinguishes a recovered panic from
// an ordinary returned error, since only the former is unexpected enough
// to warrant a Crashed event (spec §7's handleCall propagation policy
// covers the latter: it goes to the caller, nothing else).
func (s *server[State, CallMsg, CastMsg, Reply]) dispatchCall(
	msg CallMsg,
) (reply Reply, newState State, err error, panicked bool) {

	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = fmt.Errorf("handleCall panicked: %v", r)
			newState = s.state
		}
	}()

	reply, newState, err = s.behavior.HandleCall(s.ctx, msg, s.state)
	return
}

// dispatchCast invokes HandleCast, recovering a panic the same way
// dispatchCall does. Unlike a call error, a cast error and a recovered
// cast panic are reported identically: spec §7 swallows every handleCast
// failure and surfaces it only via a Crashed event, so the two cases
// don't need to be told apart by the caller.
func (s *server[State, CallMsg, CastMsg, Reply]) dispatchCast(
	msg CastMsg,
) (newState State, err error) {

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handleCast panicked: %v", r)
			newState = s.state
		}
	}()

	newState, err = s.behavior.HandleCast(s.ctx, msg, s.state)
	return
}

// process is the dispatcher loop: single reader, single active handler
// at a time (spec §3's "at most one handler active" invariant).
func (s *server[State, CallMsg, CastMsg, Reply]) process() {
	defer s.system.actorWg.Done()
	defer close(s.done)

	var terminateReason error = ErrNormal

	for env := range s.mailbox.Receive(s.ctx) {
		s.totalMessages.Add(1)
		switch env.msg.kind {
		case kindCall:
			reply, newState, err, panicked := s.dispatchCall(env.msg.call)
			if panicked {
				s.system.events.Publish(Crashed{ActorID: s.id, Err: err})
			}
			if err != nil {
				if env.replyTo != nil {
					env.replyTo.Complete(fn.Err[Reply](err))
				}
				log.DebugS(s.ctx, "handleCall returned error, actor continues",
					"actor_id", s.id, "error", err)
				continue
			}
			s.state = newState
			if env.replyTo != nil {
				env.replyTo.Complete(fn.Ok(reply))
			}

		case kindCast:
			newState, err := s.dispatchCast(env.msg.cast)
			if err != nil {
				s.system.events.Publish(Crashed{ActorID: s.id, Err: err})
				log.DebugS(s.ctx, "handleCast error, actor continues",
					"actor_id", s.id, "error", err)
				continue
			}
			s.state = newState
		}
	}

	// ctx was cancelled: this is either Stop(), a link cascade
	// termination, or System.Shutdown. Use whatever Stop recorded,
	// falling back to ErrShutdown when only the context was cancelled.
	if stopReason, ok := s.stopReason(); ok {
		terminateReason = stopReason
	} else if s.ctx.Err() != nil {
		terminateReason = ErrShutdown
	}

	s.status.Store(int32(statusStopping))
	s.mailbox.Close()

	for env := range s.mailbox.Drain() {
		if env.replyTo != nil {
			env.replyTo.Complete(fn.Err[Reply](ErrActorTerminated))
		}
	}

	termCtx, termCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	if s.behavior.Terminate != nil {
		s.behavior.Terminate(termCtx, terminateReason, s.state)
	}
	if stoppable, ok := any(s.state).(Stoppable); ok {
		if err := stoppable.OnStop(termCtx); err != nil {
			log.WarnS(s.ctx, "actor OnStop cleanup error", err, "actor_id", s.id)
		}
	}
	termCancel()

	s.status.Store(int32(statusStopped))

	s.system.onTerminate(s.id, s.ref, s.name, terminateReason)
}

// stopReason returns the reason recorded by an explicit Stop call, if
// that is what ended the process loop.
func (s *server[State, CallMsg, CastMsg, Reply]) stopReason() (error, bool) {
	v := s.recordedStopReason.Load()
	if v == nil {
		return nil, false
	}
	return v.(error), true
}

// localRef is the Ref implementation backing a locally-started actor. It
// type-asserts the untyped any payload of Call/Cast down to the server's
// declared CallMsg/CastMsg, matching spec §3's "same shape locally or
// remotely" by making the untyped Ref the primary interface and the
// TypedRef a thin, compile-time-checked wrapper over it.
type localRef[State, CallMsg, CastMsg, Reply any] struct {
	srv *server[State, CallMsg, CastMsg, Reply]
}

func (r *localRef[State, CallMsg, CastMsg, Reply]) ID() string     { return r.srv.id }
func (r *localRef[State, CallMsg, CastMsg, Reply]) NodeID() string { return r.srv.nodeID }

// TrapsExit reports whether this actor currently traps link exits. Used
// by System.deliverExit via an unexported interface assertion.
func (r *localRef[State, CallMsg, CastMsg, Reply]) TrapsExit() bool {
	return r.srv.trapExit.Load()
}

// Stats implements StatsProvider, observer's per-actor snapshot source
// (spec §4.12).
func (r *localRef[State, CallMsg, CastMsg, Reply]) Stats() ActorStats {
	s := r.srv
	var uptimeMs int64
	if !s.startedAt.IsZero() {
		uptimeMs = time.Since(s.startedAt).Milliseconds()
	}
	return ActorStats{
		ID:            s.id,
		Name:          s.name,
		Status:        status(s.status.Load()).String(),
		MailboxLen:    s.mailbox.Len(),
		TotalMessages: s.totalMessages.Load(),
		StartedAt:     s.startedAt,
		UptimeMs:      uptimeMs,
	}
}

func (r *localRef[State, CallMsg, CastMsg, Reply]) Call(ctx context.Context, msg any,
	opts CallOptions,
) (any, error) {

	if status(r.srv.status.Load()) != statusRunning {
		return nil, ErrServerNotRunning
	}

	callMsg, ok := msg.(CallMsg)
	if !ok {
		return nil, ErrInvalidMessageType
	}

	promise := NewPromise[Reply]()

	callCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	sent := r.srv.mailbox.Send(callCtx, mailboxEnvelope[CallMsg, CastMsg, Reply]{
		msg:     serverEnvelope[CallMsg, CastMsg]{kind: kindCall, call: callMsg},
		replyTo: promise,
	})
	if !sent {
		if status(r.srv.status.Load()) != statusRunning {
			return nil, ErrServerNotRunning
		}
		return nil, &CallTimeoutError{ActorID: r.srv.id, Timeout: opts.timeout()}
	}

	result := promise.Future().Await(callCtx)
	reply, err := result.Unpack()
	if err != nil {
		if callCtx.Err() != nil {
			return nil, &CallTimeoutError{ActorID: r.srv.id, Timeout: opts.timeout()}
		}
		return nil, err
	}
	return reply, nil
}

func (r *localRef[State, CallMsg, CastMsg, Reply]) Cast(ctx context.Context, msg any) {
	castMsg, ok := msg.(CastMsg)
	if !ok {
		log.DebugS(ctx, "cast dropped, message type mismatch",
			"actor_id", r.srv.id)
		return
	}

	r.srv.mailbox.Send(ctx, mailboxEnvelope[CallMsg, CastMsg, Reply]{
		msg: serverEnvelope[CallMsg, CastMsg]{kind: kindCast, cast: castMsg},
	})
}

func (r *localRef[State, CallMsg, CastMsg, Reply]) Stop(ctx context.Context, reason error) {
	if reason == nil {
		reason = ErrNormal
	}
	r.srv.recordedStopReason.CompareAndSwap(nil, reason)
	r.srv.cancel()
}

func (r *localRef[State, CallMsg, CastMsg, Reply]) Equal(other Ref) bool {
	return refEqual(r, other)
}
