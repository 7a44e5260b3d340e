package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/orbitrt/orbit/actor"
)

// Registration describes one behavior a node is willing to spawn on
// request from a remote peer (spec §4.9: "each node maintains a
// BehaviorRegistry mapping behaviorName -> behavior"). Because behavior
// code cannot travel on the wire, a Registration instead carries
// factories the local process already has compiled in: Start constructs
// and runs the actor, and NewCallMsg/NewCastMsg/NewReply hand back fresh
// pointers for decoding whatever JSON arrives for this behavior's call,
// cast, and reply shapes.
type Registration struct {
	// Name is the wire-visible behaviorName. Must be unique within a
	// BehaviorRegistry.
	Name string

	// Start constructs and runs one instance of the behavior via
	// actor.Start, applying opts as given (including any name/
	// registration - remote spawn supplies these after decoding the
	// spawn_request, not baked into the closure). decodedArgs is
	// whatever the spawn_request's args JSON decoded to.
	Start func(ctx context.Context, sys *actor.System, opts actor.StartOptions, decodedArgs any) (actor.Ref, error)

	// NewCallMsg, NewCastMsg, NewReply each return a fresh pointer to
	// the behavior's declared CallMsg/CastMsg/Reply type (e.g.
	// func() any { return new(MyCallMsg) }), used to json.Unmarshal an
	// incoming call/cast payload, or a call_reply's result, into the
	// concrete type a generic *Remote can't otherwise name.
	NewCallMsg func() any
	NewCastMsg func() any
	NewReply   func() any
}

// BehaviorRegistry is the per-node name -> Registration map consulted by
// remote spawn (C9) and by incoming call/cast dispatch to decode a
// payload into the target actor's declared message type. Grounded on the
// teacher's Receptionist type-registry (system.go), generalized from a
// local type-signature guard to a name -> factory map.
type BehaviorRegistry struct {
	mu          sync.RWMutex
	behaviors   map[string]Registration
	boundActors map[string]string // actor id -> behaviorName, for actors this node spawned
}

// NewBehaviorRegistry returns an empty registry.
func NewBehaviorRegistry() *BehaviorRegistry {
	return &BehaviorRegistry{
		behaviors:   make(map[string]Registration),
		boundActors: make(map[string]string),
	}
}

// Register adds reg. Per spec §4.9, "registration must occur before
// cluster start" - callers are expected to finish registering before
// wiring a BehaviorRegistry into a Remote.
func (r *BehaviorRegistry) Register(reg Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("remote: behavior registration requires a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.behaviors[reg.Name]; exists {
		return fmt.Errorf("remote: behavior %q already registered", reg.Name)
	}
	r.behaviors[reg.Name] = reg
	return nil
}

// Lookup returns the Registration for name, if any.
func (r *BehaviorRegistry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.behaviors[name]
	return reg, ok
}

// BindActor records that actorID was spawned from behaviorName, so a
// later incoming call/cast addressed to actorID can be decoded using
// that behavior's message types.
func (r *BehaviorRegistry) BindActor(actorID, behaviorName string) {
	r.mu.Lock()
	r.boundActors[actorID] = behaviorName
	r.mu.Unlock()
}

// UnbindActor removes actorID's behavior binding, once it terminates.
func (r *BehaviorRegistry) UnbindActor(actorID string) {
	r.mu.Lock()
	delete(r.boundActors, actorID)
	r.mu.Unlock()
}

// BehaviorFor returns the Registration bound to actorID, if any.
func (r *BehaviorRegistry) BehaviorFor(actorID string) (Registration, bool) {
	r.mu.RLock()
	name, ok := r.boundActors[actorID]
	r.mu.RUnlock()
	if !ok {
		return Registration{}, false
	}
	return r.Lookup(name)
}
