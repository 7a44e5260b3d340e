package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orbitrt/orbit/actor"
)

// runningChild records one live supervised instance.
type runningChild struct {
	spec      ChildSpec
	ref       actor.Ref
	monitorID string
	args      any
}

// state is the Supervisor's actor.Behavior State. Every field is only
// ever touched from within HandleCall/HandleCast, which a server
// dispatches one at a time (the server's single-goroutine process loop in
// actor/server.go),
// so - unlike Registry or linkMonitorTable - no mutex guards it.
type state struct {
	sys  *actor.System
	self actor.Ref
	opts Options

	children []runningChild
	restarts []time.Time
	failed   bool

	startedAt     time.Time
	totalRestarts int
}

// New starts a supervisor actor and, unless opts.Strategy is
// SimpleOneForOne, starts every child in opts.Children in list order. If
// any child's Init fails, the children started so far are shut down in
// reverse order and New returns that error (spec §4.5 "Startup").
func New(sys *actor.System, startOpts actor.StartOptions, opts Options) (actor.Ref, error) {
	opts = opts.normalized()

	if opts.Strategy == SimpleOneForOne && len(opts.Children) != 1 {
		return nil, fmt.Errorf(
			"supervisor: simple_one_for_one requires exactly one template ChildSpec, got %d",
			len(opts.Children))
	}

	st := &state{sys: sys, opts: opts, startedAt: time.Now()}

	behavior := actor.Behavior[*state, Request, actor.ProcessDown, Response]{
		Init:       func(ctx context.Context) (*state, error) { return st, nil },
		HandleCall: handleCall,
		HandleCast: handleCast,
		Terminate: func(ctx context.Context, reason error, s *state) {
			s.shutdownAll(ctx)
		},
	}

	ref, err := actor.Start(sys, startOpts, behavior)
	if err != nil {
		return nil, err
	}
	st.self = ref.Ref()

	if opts.Strategy != SimpleOneForOne {
		if err := st.startAll(context.Background()); err != nil {
			ref.Stop(context.Background(), err)
			return nil, err
		}
	}

	return st.self, nil
}

func handleCall(ctx context.Context, req Request, s *state) (Response, *state, error) {
	switch req.kind {
	case reqStartChild:
		ref, err := s.doStartChild(ctx, req.spec, req.args)
		return Response{Ref: ref, Err: err}, s, nil

	case reqTerminateChild:
		err := s.doTerminateChild(ctx, req.id)
		return Response{Err: err}, s, nil

	case reqRestartChild:
		ref, err := s.doRestartChild(ctx, req.id)
		return Response{Ref: ref, Err: err}, s, nil

	case reqGetChild:
		ref, ok := s.findRef(req.id)
		if !ok {
			return Response{Err: ErrChildNotFound}, s, nil
		}
		return Response{Ref: ref}, s, nil

	case reqGetChildren:
		// Keyed by each instance's own actor id rather than spec.ID,
		// since SimpleOneForOne instances share one template ID and
		// would otherwise collide.
		out := make(map[string]actor.Ref, len(s.children))
		for _, c := range s.children {
			out[c.ref.ID()] = c.ref
		}
		return Response{Children: out}, s, nil

	case reqGetStats:
		return Response{Stats: Stats{
			Strategy:     s.opts.Strategy,
			ChildCount:   len(s.children),
			RestartCount: s.totalRestarts,
			StartedAt:    s.startedAt,
			UptimeMs:     time.Since(s.startedAt).Milliseconds(),
		}}, s, nil

	default:
		return Response{}, s, fmt.Errorf("supervisor: unknown request kind %v", req.kind)
	}
}

// handleCast processes a ProcessDown fired by one of this supervisor's
// monitored children, applying spec §4.5's restart decision, restart
// intensity limit, and strategy-driven sibling handling. It never fails:
// a supervisor's own restart bookkeeping has no designed error path, so
// it always returns a nil error.
func handleCast(ctx context.Context, down actor.ProcessDown, s *state) (*state, error) {
	if s.failed {
		return s, nil
	}

	idx := s.indexByMonitor(down.MonitorID)
	if idx < 0 {
		// Stale fire: the child was already removed via
		// TerminateChild, or this event raced a prior restart.
		return s, nil
	}

	child := s.children[idx]

	if !shouldRestart(child.spec.Restart, down.Reason) {
		s.removeAt(idx)
		return s, nil
	}

	if !s.allowRestart(time.Now()) {
		s.failed = true
		s.self.Stop(context.Background(), &MaxRestartsExceededError{
			Strategy:    s.opts.Strategy,
			MaxRestarts: s.opts.Intensity.MaxRestarts,
			Within:      s.opts.Intensity.Within.String(),
		})
		return s, nil
	}

	switch s.opts.Strategy {
	case OneForOne, SimpleOneForOne:
		s.restartOne(ctx, idx)
	case OneForAll:
		s.restartAll(ctx, idx)
	case RestForOne:
		s.restartFrom(ctx, idx)
	}

	return s, nil
}

func (s *state) indexByMonitor(monitorID string) int {
	for i, c := range s.children {
		if c.monitorID == monitorID {
			return i
		}
	}
	return -1
}

// findRef resolves id against either a static child's spec.ID or a
// SimpleOneForOne instance's own actor id (the id StartChild's Response
// returned), so callers can address either kind uniformly.
func (s *state) findRef(id string) (actor.Ref, bool) {
	for _, c := range s.children {
		if c.spec.ID == id || c.ref.ID() == id {
			return c.ref, true
		}
	}
	return nil, false
}

// allowRestart prunes restart timestamps older than the intensity window
// and, if the remaining count is still under the limit, records now and
// allows the restart.
func (s *state) allowRestart(now time.Time) bool {
	cutoff := now.Add(-s.opts.Intensity.Within)

	pruned := s.restarts[:0]
	for _, t := range s.restarts {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	s.restarts = pruned

	if len(s.restarts) >= s.opts.Intensity.MaxRestarts {
		return false
	}
	s.restarts = append(s.restarts, now)
	return true
}

func (s *state) startAll(ctx context.Context) error {
	for _, spec := range s.opts.Children {
		if err := s.startChild(ctx, spec, nil); err != nil {
			s.shutdownAll(ctx)
			return err
		}
	}
	return nil
}

func (s *state) startChild(ctx context.Context, spec ChildSpec, args any) error {
	ref, err := spec.Start(ctx, args)
	if err != nil {
		return fmt.Errorf("supervisor: child %q failed to start: %w", spec.ID, err)
	}
	monitorID := s.sys.Monitor(s.self, ref)
	s.children = append(s.children, runningChild{
		spec:      spec,
		ref:       ref,
		monitorID: monitorID,
		args:      args,
	})
	return nil
}

// shutdownAll stops every live child in reverse start order, bounded
// per-child by its ShutdownTimeout (spec §4.5 "Shutdown").
func (s *state) shutdownAll(ctx context.Context) {
	for i := len(s.children) - 1; i >= 0; i-- {
		s.stopChild(ctx, s.children[i])
	}
	s.children = nil
}

// stopChild requests termination and waits (bounded by the child's
// ShutdownTimeout) for its Terminated lifecycle event, so callers that
// need ordered shutdown (OneForAll/RestForOne restart, supervisor
// Terminate) can rely on one child being fully down before starting the
// next.
func (s *state) stopChild(ctx context.Context, c runningChild) {
	s.sys.Demonitor(c.monitorID)

	done := make(chan struct{})
	var once sync.Once
	unsub := s.sys.OnLifecycleEvent(func(ev actor.LifecycleEvent) {
		if t, ok := ev.(actor.Terminated); ok && t.ActorID == c.ref.ID() {
			once.Do(func() { close(done) })
		}
	})
	defer unsub()

	stopCtx, cancel := context.WithTimeout(ctx, c.spec.shutdownTimeout())
	defer cancel()

	c.ref.Stop(ctx, actor.ErrShutdown)

	select {
	case <-done:
	case <-stopCtx.Done():
		log.WarnS(ctx, "supervisor: child did not confirm termination before timeout",
			stopCtx.Err(), "child_id", c.spec.ID)
	}
}

// restartOne replaces the crashed child in place with a fresh instance
// built from the same spec/args (OneForOne and SimpleOneForOne).
func (s *state) restartOne(ctx context.Context, idx int) {
	c := s.children[idx]

	ref, err := c.spec.Start(ctx, c.args)
	if err != nil {
		log.ErrorS(ctx, "supervisor: child restart failed", err, "child_id", c.spec.ID)
		s.removeAt(idx)
		return
	}

	monitorID := s.sys.Monitor(s.self, ref)
	s.children[idx] = runningChild{spec: c.spec, ref: ref, monitorID: monitorID, args: c.args}
	s.totalRestarts++
}

// restartAll implements OneForAll: every other live child is stopped in
// reverse order, then every child (including the crashed one) is started
// fresh in forward order.
func (s *state) restartAll(ctx context.Context, crashedIdx int) {
	specs := make([]ChildSpec, len(s.children))
	args := make([]any, len(s.children))
	for i, c := range s.children {
		specs[i] = c.spec
		args[i] = c.args
	}

	for i := len(s.children) - 1; i >= 0; i-- {
		if i == crashedIdx {
			s.sys.Demonitor(s.children[i].monitorID)
			continue
		}
		s.stopChild(ctx, s.children[i])
	}
	s.children = nil

	for i, spec := range specs {
		if err := s.startChild(ctx, spec, args[i]); err != nil {
			log.ErrorS(ctx, "supervisor: one_for_all restart failed", err, "child_id", spec.ID)
			s.failed = true
			s.self.Stop(context.Background(), err)
			return
		}
		s.totalRestarts++
	}
}

// restartFrom implements RestForOne: every child started after the
// crashed one is stopped in reverse order, then the crashed child and
// everything after it are started fresh in forward order.
func (s *state) restartFrom(ctx context.Context, crashedIdx int) {
	tail := append([]runningChild(nil), s.children[crashedIdx:]...)

	for i := len(s.children) - 1; i > crashedIdx; i-- {
		s.stopChild(ctx, s.children[i])
	}
	s.sys.Demonitor(s.children[crashedIdx].monitorID)
	s.children = s.children[:crashedIdx]

	for _, c := range tail {
		if err := s.startChild(ctx, c.spec, c.args); err != nil {
			log.ErrorS(ctx, "supervisor: rest_for_one restart failed", err, "child_id", c.spec.ID)
			s.failed = true
			s.self.Stop(context.Background(), err)
			return
		}
		s.totalRestarts++
	}
}

func (s *state) removeAt(idx int) {
	s.sys.Demonitor(s.children[idx].monitorID)
	s.children = append(s.children[:idx], s.children[idx+1:]...)
}

// doStartChild implements the startChild dynamic operation. For
// SimpleOneForOne supervisors it spawns a new instance of the template
// ChildSpec (req.spec is ignored; the template and its ID come from
// Options.Children[0]) parameterized by args. For static strategies it
// starts the given spec as an additional child, rejecting a duplicate ID.
func (s *state) doStartChild(ctx context.Context, spec ChildSpec, args any) (actor.Ref, error) {
	if s.opts.Strategy == SimpleOneForOne {
		template := s.opts.Children[0]
		if err := s.startChild(ctx, template, args); err != nil {
			return nil, err
		}
		return s.children[len(s.children)-1].ref, nil
	}

	if _, exists := s.findRef(spec.ID); exists {
		return nil, ErrDuplicateChildID
	}
	if err := s.startChild(ctx, spec, args); err != nil {
		return nil, err
	}
	return s.children[len(s.children)-1].ref, nil
}

func (s *state) doTerminateChild(ctx context.Context, id string) error {
	for i, c := range s.children {
		if c.spec.ID == id || c.ref.ID() == id {
			s.stopChild(ctx, c)
			s.children = append(s.children[:i], s.children[i+1:]...)
			return nil
		}
	}
	return ErrChildNotFound
}

// doRestartChild is a manual, administrator-triggered restart: it does
// not consult the restart-intensity deque, since it is not itself caused
// by a crash.
func (s *state) doRestartChild(ctx context.Context, id string) (actor.Ref, error) {
	for i, c := range s.children {
		if c.spec.ID == id || c.ref.ID() == id {
			s.stopChild(ctx, c)
			ref, err := c.spec.Start(ctx, c.args)
			if err != nil {
				s.removeAt(i)
				return nil, fmt.Errorf("supervisor: manual restart of %q failed: %w", id, err)
			}
			monitorID := s.sys.Monitor(s.self, ref)
			s.children[i] = runningChild{spec: c.spec, ref: ref, monitorID: monitorID, args: c.args}
			return ref, nil
		}
	}
	return nil, ErrChildNotFound
}
