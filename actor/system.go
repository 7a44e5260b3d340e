package actor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// GlobalRegistrar is the narrow interface a cluster-wide registry
// (cluster/registry) implements so System.Start can honor
// RegistrationGlobal without this package importing the cluster layer.
// Wired via System.SetGlobalRegistrar.
type GlobalRegistrar interface {
	Register(name string, ref Ref) error
	Unregister(name string)
}

// SystemConfig configures a System.
type SystemConfig struct {
	// NodeID identifies this node for locally-started actors' Ref.NodeID.
	// Defaults to "local" if empty.
	NodeID string

	// ShutdownTimeout bounds System.Shutdown's wait for in-flight
	// actors to drain. Zero means 10s.
	ShutdownTimeout time.Duration
}

// DefaultSystemConfig returns the teacher-style zero-value-safe default
// configuration.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		NodeID:          "local",
		ShutdownTimeout: 10 * time.Second,
	}
}

// System owns every actor on one node: the local Registry, the link and
// monitor tables (C3), the event bus, and deterministic shutdown
// bookkeeping. It is the generalized, untyped analogue of the teacher's
// ActorSystem (system.go), which was keyed by typed ServiceKey instead of
// plain string names.
type System struct {
	cfg SystemConfig

	ctx    context.Context
	cancel context.CancelFunc

	actorWg sync.WaitGroup

	mu     sync.RWMutex
	actors map[string]Ref

	registry *Registry
	lm       *linkMonitorTable
	events   *eventBus

	globalRegistrarMu sync.RWMutex
	globalRegistrar   GlobalRegistrar

	deadLetter Ref
}

// NewSystem creates a System ready to Start actors on it.
func NewSystem(cfg SystemConfig) *System {
	if cfg.NodeID == "" {
		cfg.NodeID = "local"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	sys := &System{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		actors:   make(map[string]Ref),
		registry: NewRegistry(Unique),
		lm:       newLinkMonitorTable(),
		events:   newEventBus(),
	}

	sys.deadLetter = newDeadLetterRef(sys)

	return sys
}

// NodeID returns this system's node id.
func (sys *System) NodeID() string { return sys.cfg.NodeID }

// Registry returns the System's default Unique-mode name registry, used
// by Start's RegistrationLocal/RegistrationGlobal.
func (sys *System) Registry() *Registry { return sys.registry }

// Links exposes the link/monitor table for packages (e.g. supervisor)
// that need to establish links outside of Start's opts.
func (sys *System) Links() *linkMonitorTable { return sys.lm }

// SetGlobalRegistrar wires a cluster-wide registry. Until called,
// RegistrationGlobal behaves identically to RegistrationLocal.
func (sys *System) SetGlobalRegistrar(r GlobalRegistrar) {
	sys.globalRegistrarMu.Lock()
	sys.globalRegistrar = r
	sys.globalRegistrarMu.Unlock()
}

func (sys *System) globalRegistrarOrNil() GlobalRegistrar {
	sys.globalRegistrarMu.RLock()
	defer sys.globalRegistrarMu.RUnlock()
	return sys.globalRegistrar
}

// Register binds name to ref in the local registry and, if mode is
// RegistrationGlobal, the wired cluster-wide registry, surfacing any
// conflict instead of swallowing it. Start uses this same path for its
// own opts.Name handling; cluster/remote calls it directly for a remote
// spawn request that supplies a name after the actor is already running,
// so that a registration conflict can stop the newly spawned actor
// before replying (spec's remote-spawn registration-failure handling).
func (sys *System) Register(name string, ref Ref, mode RegistrationMode) error {
	if mode == RegistrationNone || name == "" {
		return nil
	}
	if err := sys.registry.Register(name, ref); err != nil {
		return err
	}
	if mode == RegistrationGlobal {
		if reg := sys.globalRegistrarOrNil(); reg != nil {
			if err := reg.Register(name, ref); err != nil {
				sys.registry.Unregister(name, ref)
				return err
			}
		}
	}
	return nil
}

// OnLifecycleEvent subscribes handler to every actor's lifecycle events
// on this System (spec §4.1 "onLifecycleEvent").
func (sys *System) OnLifecycleEvent(handler LifecycleHandler) Unsubscribe {
	return sys.events.Subscribe(handler)
}

// DeadLetter returns a Ref that accepts and discards any Cast. A
// terminating server's mailbox drain does not route anything to it.
func (sys *System) DeadLetter() Ref { return sys.deadLetter }

// ProcessCount returns the number of actors currently running on this
// System, the simplest of observer's per-node stats (spec §4.12).
func (sys *System) ProcessCount() int {
	sys.mu.RLock()
	defer sys.mu.RUnlock()
	return len(sys.actors)
}

// Lookup returns the live Ref for an actor id known to this System, or
// false if it has terminated or never existed.
func (sys *System) Lookup(id string) (Ref, bool) {
	sys.mu.RLock()
	defer sys.mu.RUnlock()
	ref, ok := sys.actors[id]
	return ref, ok
}

func (sys *System) registerActor(id string, ref Ref) {
	sys.mu.Lock()
	sys.actors[id] = ref
	sys.mu.Unlock()
}

// onTerminate is invoked exactly once by a server's process loop as its
// final act. It implements C3's termination cascade (spec §4.3), purges
// registry entries, and publishes the Terminated event.
//
// The sys.actors deletion and the sys.lm.OnTerminate call are made under
// the same sys.mu critical section as Monitor's dead-check-and-insert, so
// the two can never interleave: either Monitor observes the target still
// alive and registers before lm.OnTerminate collects monitors (and so is
// included), or it observes the target already gone and never registers
// at all. Without this, a Monitor racing a concurrent termination could
// insert an entry after lm.OnTerminate already ran, leaving a monitor that
// is never told its target died.
func (sys *System) onTerminate(id string, ref Ref, name string, reason error) {
	sys.mu.Lock()
	delete(sys.actors, id)
	links, monitors := sys.lm.OnTerminate(id)
	sys.mu.Unlock()

	if name != "" {
		sys.registry.Unregister(name, ref)
		if reg := sys.globalRegistrarOrNil(); reg != nil {
			reg.Unregister(name)
		}
	}
	sys.registry.purge(ref)

	for _, m := range monitors {
		sys.events.Publish(ProcessDown{
			MonitorID: m.id,
			Monitored: ref,
			Reason:    reason,
		})
		m.monitor.Cast(sys.ctx, ProcessDown{
			MonitorID: m.id,
			Monitored: ref,
			Reason:    reason,
		})
	}

	if reason != nil && reason != ErrNormal && reason != ErrShutdown {
		for _, l := range links {
			sys.deliverExit(ref, l, reason)
		}
	}

	sys.events.Publish(Terminated{ActorID: id, Reason: reason})
}

// deliverExit implements the per-peer half of link cascade: if the peer
// traps exits, it receives an info-level ExitSignal cast (the same value
// is published as a lifecycle event) and keeps running; otherwise it is
// terminated with the same reason, which - via its own onTerminate call -
// continues the cascade through its own links.
func (sys *System) deliverExit(from Ref, l linkEntry, reason error) {
	if trapper, ok := l.peer.(interface{ TrapsExit() bool }); ok && trapper.TrapsExit() {
		ev := ExitSignal{From: from, Reason: reason, LinkID: l.id}
		l.peer.Cast(sys.ctx, ev)
		sys.events.Publish(ev)
		return
	}
	l.peer.Stop(sys.ctx, reason)
}

// Link establishes a symmetric link between a and b (spec §4.3).
// Idempotent per (a.ID(), b.ID()).
func (sys *System) Link(a, b Ref) string {
	return sys.lm.Link(a, b)
}

// Unlink removes the link between the two actor ids, if any.
func (sys *System) Unlink(aID, bID string) {
	sys.lm.Unlink(aID, bID)
}

// Monitor registers watcher as monitoring target. If target is already
// dead, a process_down{reason: noproc} is delivered to watcher
// immediately (spec §4.3) and the returned monitorID is not tracked
// further.
//
// The liveness check and the table insertion happen under one sys.mu
// critical section, the same lock onTerminate holds across its actors-map
// deletion and its sys.lm.OnTerminate call. That shared critical section
// is what prevents a target from terminating between the check and the
// insert: this call either completes entirely before the target's
// onTerminate runs (so lm.OnTerminate below still finds and fires the
// entry just inserted) or entirely after it (so the liveness check
// observes the target already gone and takes the noproc path instead).
func (sys *System) Monitor(watcher, target Ref) string {
	sys.mu.Lock()
	_, alive := sys.actors[target.ID()]
	if !alive {
		sys.mu.Unlock()
		id := newID()
		ev := ProcessDown{MonitorID: id, Monitored: target, Reason: ErrNoProc}
		watcher.Cast(sys.ctx, ev)
		sys.events.Publish(ev)
		return id
	}
	id := sys.lm.Monitor(watcher, target)
	sys.mu.Unlock()
	return id
}

// Demonitor removes exactly the matching monitorID. Fire-and-forget.
func (sys *System) Demonitor(monitorID string) {
	sys.lm.Demonitor(monitorID)
}

// Shutdown cancels every actor's context and waits up to
// cfg.ShutdownTimeout for their process loops to finish.
func (sys *System) Shutdown(ctx context.Context) error {
	sys.cancel()

	done := make(chan struct{})
	go func() {
		sys.actorWg.Wait()
		close(done)
	}()

	timeout := sys.cfg.ShutdownTimeout
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("actor: shutdown timed out after %s waiting for actors to stop", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deadLetterRef is a Ref that discards every Cast/Call/Stop sent to it.
// It is returned by System.DeadLetter; a terminated actor's drained
// mailbox is not forwarded here (queued calls fail with
// ErrActorTerminated and queued casts are dropped).
type deadLetterRef struct {
	sys *System
}

func newDeadLetterRef(sys *System) Ref {
	return &deadLetterRef{sys: sys}
}

func (d *deadLetterRef) ID() string     { return "dead_letter" }
func (d *deadLetterRef) NodeID() string { return d.sys.cfg.NodeID }

func (d *deadLetterRef) Call(ctx context.Context, msg any, opts CallOptions) (any, error) {
	return nil, ErrActorTerminated
}

func (d *deadLetterRef) Cast(ctx context.Context, msg any) {
	log.TraceS(ctx, "dead letter received message", "msg_type", fmt.Sprintf("%T", msg))
}

func (d *deadLetterRef) Stop(ctx context.Context, reason error) {}

func (d *deadLetterRef) Equal(other Ref) bool {
	o, ok := other.(*deadLetterRef)
	return ok && o.sys == d.sys
}
