package actor

import (
	"errors"
	"fmt"
	"time"
)

// ErrActorTerminated indicates that an operation failed because the target
// actor was terminated or in the process of shutting down.
var ErrActorTerminated = errors.New("actor terminated")

// ErrServerNotRunning is returned by Call when the target actor's status
// is anything other than running (initializing, stopping, or stopped).
// Cast has no return value and reports nothing. It is the spec's
// ServerNotRunningError.
var ErrServerNotRunning = errors.New("server not running")

// ErrAlreadyRegistered indicates a unique-mode Registry.Register call named
// an existing name bound to a different ref.
var ErrAlreadyRegistered = errors.New("name already registered")

// ErrNotRegistered indicates Registry.Lookup found no entry for a name.
var ErrNotRegistered = errors.New("name not registered")

// ErrNormal is the reason value used for a clean, voluntary actor stop. It
// never triggers link/monitor cascade termination (spec §4.3).
var ErrNormal = errors.New("normal")

// ErrShutdown is the reason value used for a supervised, orderly shutdown
// request. Like ErrNormal, it never cascades through links.
var ErrShutdown = errors.New("shutdown")

// ErrNoProc is the reason reported to a monitor that targets an actor which
// was already dead at the time Monitor was called.
var ErrNoProc = errors.New("noproc")

// InitError wraps an error raised by a behavior's Init callback.
type InitError struct {
	ActorID string
	Cause   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("actor %q failed to initialize: %v", e.ActorID, e.Cause)
}

func (e *InitError) Unwrap() error { return e.Cause }

// InitTimeoutError is raised when Start's Init callback does not return
// within the configured initTimeoutMs.
type InitTimeoutError struct {
	ActorID string
	Timeout time.Duration
}

func (e *InitTimeoutError) Error() string {
	return fmt.Sprintf("actor %q init timed out after %s", e.ActorID, e.Timeout)
}

// NameConflictError is raised by Start when opts.Name is already registered
// in the local registry to a different ref (unique mode).
type NameConflictError struct {
	Name string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("name %q already registered to a different actor", e.Name)
}

// CallTimeoutError is raised when Call does not receive a reply within
// opts.TimeoutMs.
type CallTimeoutError struct {
	ActorID string
	Timeout time.Duration
}

func (e *CallTimeoutError) Error() string {
	return fmt.Sprintf("call to %q timed out after %s", e.ActorID, e.Timeout)
}
