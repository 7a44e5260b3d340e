package supervisor

import "fmt"

// MaxRestartsExceededError is raised when a supervisor's restart
// intensity limit is hit (spec §4.5): the supervisor unwinds its children
// and stops itself with this as the termination reason.
type MaxRestartsExceededError struct {
	Strategy    Strategy
	MaxRestarts int
	Within      string
}

func (e *MaxRestartsExceededError) Error() string {
	return fmt.Sprintf(
		"supervisor: restart intensity exceeded (%d restarts within %s, strategy=%v)",
		e.MaxRestarts, e.Within, e.Strategy)
}

// ErrChildNotFound is returned by TerminateChild/RestartChild/GetChild
// when no child with the given id is currently supervised.
var ErrChildNotFound = fmt.Errorf("supervisor: child not found")

// ErrDuplicateChildID is returned by StartChild when the given spec's ID
// collides with an existing child.
var ErrDuplicateChildID = fmt.Errorf("supervisor: child id already in use")
