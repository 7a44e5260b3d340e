package actor

import "context"

// Behavior is the immutable descriptor of how an actor responds to
// messages. It is polymorphic over four type parameters: the actor's
// internal State, the type of message accepted by Call (CallMsg), the type
// accepted by Cast (CastMsg), and the reply type returned from Call
// (Reply).
type Behavior[State, CallMsg, CastMsg, Reply any] struct {
	// Init runs once, with initTimeoutMs bound, before the actor becomes
	// running. An error here means the actor never starts; Start
	// returns an *InitError.
	Init func(ctx context.Context) (State, error)

	// HandleCall processes a synchronous request. If it returns an
	// error, the caller's Call receives that error, state is left
	// unchanged, and the actor keeps running (spec §4.1).
	HandleCall func(ctx context.Context, msg CallMsg, state State) (Reply, State, error)

	// HandleCast processes a fire-and-forget message. There is no caller
	// to report an error to, so a non-nil error (or a recovered panic)
	// leaves state unchanged and is surfaced only as a Crashed lifecycle
	// event; the actor keeps running (spec §4.1, "handleCast errors are
	// swallowed and surfaced only via a crashed lifecycle event").
	HandleCast func(ctx context.Context, msg CastMsg, state State) (State, error)

	// Terminate runs best-effort on every termination path (voluntary
	// stop, handler panic substitute, link cascade, supervisor
	// shutdown), bounded by ShutdownTimeout. Errors raised here are
	// logged, never propagated.
	Terminate func(ctx context.Context, reason error, state State)
}

// Stoppable is implemented by external resources a behavior's State may
// hold (e.g. an ETS table, a pooled connection) that need a bounded
// cleanup hook distinct from Terminate. A server checks for this on its
// State value after Terminate returns.
type Stoppable interface {
	OnStop(ctx context.Context) error
}

// RegistrationMode controls how Start registers the new actor's name, if
// any, with the owning System.
type RegistrationMode int

const (
	// RegistrationNone performs no name registration.
	RegistrationNone RegistrationMode = iota

	// RegistrationLocal registers the name in the System's local
	// Registry only.
	RegistrationLocal

	// RegistrationGlobal registers the name in the cluster-wide global
	// registry (cluster/registry), in addition to the local Registry.
	// A System with no cluster wiring treats this the same as
	// RegistrationLocal.
	RegistrationGlobal
)

// StartOptions configures Start.
type StartOptions struct {
	// Name, if non-empty, is registered per Registration.
	Name string

	// Registration selects where Name is registered.
	Registration RegistrationMode

	// InitTimeoutMs bounds Behavior.Init. Zero means 5000ms.
	InitTimeoutMs int

	// MailboxSize bounds the actor's mailbox capacity. Zero means 1
	// (teacher default), matching ChannelMailbox's behavior.
	MailboxSize int

	// ShutdownTimeoutMs bounds Behavior.Terminate and any Stoppable
	// cleanup on State. Zero means 5000ms.
	ShutdownTimeoutMs int

	// TrapExit, when true, converts incoming abnormal exit signals from
	// linked peers into an ExitSignal value cast to this actor's
	// HandleCast instead of terminating this actor (spec §4.3).
	TrapExit bool
}

func (o StartOptions) initTimeout() int {
	if o.InitTimeoutMs <= 0 {
		return 5000
	}
	return o.InitTimeoutMs
}

func (o StartOptions) shutdownTimeout() int {
	if o.ShutdownTimeoutMs <= 0 {
		return 5000
	}
	return o.ShutdownTimeoutMs
}
