// Package supervisor implements OTP-style supervision trees on top of the
// actor package: ordered child startup, restart strategies, sliding
// restart-intensity limiting, and dynamic child management (spec §4.5).
// A Supervisor is itself an actor.Behavior instance (Glossary: "a
// supervisor is an actor whose responsibility is...") so a supervisor can
// be supervised like any other child, grounded on the restart
// classification in other_examples' ergonode supervisor
// (haveToDisableChild is the direct ancestor of shouldRestart below).
package supervisor

import (
	"context"
	"time"

	"github.com/orbitrt/orbit/actor"
)

// Restart controls whether a child is restarted after it terminates.
type Restart int

const (
	// Permanent children are always restarted.
	Permanent Restart = iota
	// Transient children are restarted unless they terminated with
	// actor.ErrNormal or actor.ErrShutdown.
	Transient
	// Temporary children are never restarted.
	Temporary
)

func (r Restart) String() string {
	switch r {
	case Permanent:
		return "permanent"
	case Transient:
		return "transient"
	case Temporary:
		return "temporary"
	default:
		return "unknown"
	}
}

// Strategy selects which siblings are affected when one child is
// restarted.
type Strategy int

const (
	// OneForOne restarts only the terminated child.
	OneForOne Strategy = iota
	// OneForAll terminates every other running child (reverse start
	// order) then restarts every child fresh (forward order).
	OneForAll
	// RestForOne terminates (reverse order) every child started after
	// the terminated one, then restarts it and everything after it
	// (forward order).
	RestForOne
	// SimpleOneForOne supervises dynamically-spawned instances of one
	// templated ChildSpec; restart is always per-instance, equivalent to
	// OneForOne.
	SimpleOneForOne
)

// ChildSpec describes one supervised child. For static strategies
// (OneForOne/OneForAll/RestForOne) a ChildSpec is provided up front in
// Options.Children and Start is invoked with args=nil. For
// SimpleOneForOne, Options.Children holds exactly one template ChildSpec
// and Start is invoked with the args passed to StartChild.
type ChildSpec struct {
	// ID identifies the child within its supervisor. Must be unique
	// among a supervisor's static children; dynamic (SimpleOneForOne)
	// instances share the template's ID for restart-policy purposes but
	// are tracked individually by Ref identity.
	ID string

	// Start constructs and starts the child, returning its Ref. Typically
	// a closure around actor.Start for a specific Behavior.
	Start func(ctx context.Context, args any) (actor.Ref, error)

	// Restart selects this child's restart policy.
	Restart Restart

	// ShutdownTimeout bounds how long the supervisor waits for this
	// child to terminate before considering the stop complete. Zero
	// means 5s.
	ShutdownTimeout time.Duration

	// Significant, when true, marks this child as one whose normal
	// termination should be treated like any other child's for restart
	// purposes (spec §4.5 does not define auto_shutdown; this field is
	// reserved for a future supervisor-level auto-shutdown policy and is
	// not yet consulted by this package).
	Significant bool
}

func (c ChildSpec) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return c.ShutdownTimeout
}

// Intensity bounds how many restarts a supervisor tolerates within a
// sliding time window before giving up (spec §4.5). Defaults (zero value
// normalizes to MaxRestarts=3, Within=5s) match Erlang/OTP's defaults.
type Intensity struct {
	MaxRestarts int
	Within      time.Duration
}

func (i Intensity) normalized() Intensity {
	if i.MaxRestarts <= 0 {
		i.MaxRestarts = 3
	}
	if i.Within <= 0 {
		i.Within = 5 * time.Second
	}
	return i
}

// Options configures a Supervisor.
type Options struct {
	Strategy  Strategy
	Intensity Intensity

	// Children is the ordered list of statically-defined children for
	// OneForOne/OneForAll/RestForOne, started in list order. For
	// SimpleOneForOne it must hold exactly one template ChildSpec.
	Children []ChildSpec
}

func (o Options) normalized() Options {
	o.Intensity = o.Intensity.normalized()
	return o
}

// requestKind discriminates Request's dynamic operations (spec §4.5:
// startChild, terminateChild, restartChild, getChild, getChildren).
type requestKind int

const (
	reqStartChild requestKind = iota
	reqTerminateChild
	reqRestartChild
	reqGetChild
	reqGetChildren
	reqGetStats
)

// Stats is a point-in-time snapshot of one supervisor, observer's
// per-supervisor reporting source (spec §4.12).
type Stats struct {
	Strategy     Strategy
	ChildCount   int
	RestartCount int
	StartedAt    time.Time
	UptimeMs     int64
}

// Request is the Supervisor's Call message type, covering every dynamic
// operation. Construct one via the package-level StartChild/
// TerminateChild/RestartChild/GetChild/GetChildren helpers rather than
// building it directly.
type Request struct {
	kind requestKind
	spec ChildSpec
	args any
	id   string
}

// Response is the Supervisor's Call reply type.
type Response struct {
	Ref      actor.Ref
	Children map[string]actor.Ref
	Stats    Stats
	Err      error
}

func shouldRestart(r Restart, reason error) bool {
	switch r {
	case Permanent:
		return true
	case Transient:
		return reason != nil && reason != actor.ErrNormal && reason != actor.ErrShutdown
	case Temporary:
		return false
	default:
		return false
	}
}
