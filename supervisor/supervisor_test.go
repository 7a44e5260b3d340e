package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitrt/orbit/actor"
)

type workerState struct{}

func workerBehavior() actor.Behavior[workerState, string, string, string] {
	return actor.Behavior[workerState, string, string, string]{
		Init: func(ctx context.Context) (workerState, error) { return workerState{}, nil },
		HandleCall: func(ctx context.Context, msg string, s workerState) (string, workerState, error) {
			return msg, s, nil
		},
		HandleCast: func(ctx context.Context, msg string, s workerState) (workerState, error) { return s, nil },
	}
}

func startWorker(sys *actor.System) func(ctx context.Context, args any) (actor.Ref, error) {
	return func(ctx context.Context, args any) (actor.Ref, error) {
		ref, err := actor.Start(sys, actor.StartOptions{}, workerBehavior())
		if err != nil {
			return nil, err
		}
		return ref.Ref(), nil
	}
}

func failingStart(ctx context.Context, args any) (actor.Ref, error) {
	return nil, errors.New("boom: init always fails")
}

func waitForDifferentRef(t *testing.T, sup actor.Ref, id string, old actor.Ref) actor.Ref {
	t.Helper()

	var latest actor.Ref
	require.Eventually(t, func() bool {
		ref, err := GetChild(context.Background(), sup, id)
		if err != nil {
			return false
		}
		latest = ref
		return ref.ID() != old.ID()
	}, 2*time.Second, 10*time.Millisecond)
	return latest
}

func TestOneForOneRestartsOnlyCrashedChild(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	sup, err := New(sys, actor.StartOptions{}, Options{
		Strategy: OneForOne,
		Children: []ChildSpec{
			{ID: "a", Start: startWorker(sys), Restart: Permanent},
			{ID: "b", Start: startWorker(sys), Restart: Permanent},
		},
	})
	require.NoError(t, err)

	a, err := GetChild(context.Background(), sup, "a")
	require.NoError(t, err)
	b, err := GetChild(context.Background(), sup, "b")
	require.NoError(t, err)

	a.Stop(context.Background(), errors.New("boom"))

	newA := waitForDifferentRef(t, sup, "a", a)
	require.NotEqual(t, a.ID(), newA.ID())

	stillB, err := GetChild(context.Background(), sup, "b")
	require.NoError(t, err)
	require.Equal(t, b.ID(), stillB.ID())
}

func TestTemporaryChildIsNotRestarted(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	sup, err := New(sys, actor.StartOptions{}, Options{
		Strategy: OneForOne,
		Children: []ChildSpec{
			{ID: "temp", Start: startWorker(sys), Restart: Temporary},
		},
	})
	require.NoError(t, err)

	before, err := GetChild(context.Background(), sup, "temp")
	require.NoError(t, err)

	before.Stop(context.Background(), errors.New("boom"))

	require.Eventually(t, func() bool {
		_, err := GetChild(context.Background(), sup, "temp")
		return errors.Is(err, ErrChildNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTransientChildNotRestartedOnNormalExit(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	sup, err := New(sys, actor.StartOptions{}, Options{
		Strategy: OneForOne,
		Children: []ChildSpec{
			{ID: "t", Start: startWorker(sys), Restart: Transient},
		},
	})
	require.NoError(t, err)

	before, err := GetChild(context.Background(), sup, "t")
	require.NoError(t, err)

	before.Stop(context.Background(), actor.ErrNormal)

	require.Eventually(t, func() bool {
		_, err := GetChild(context.Background(), sup, "t")
		return errors.Is(err, ErrChildNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTransientChildRestartedOnAbnormalExit(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	sup, err := New(sys, actor.StartOptions{}, Options{
		Strategy: OneForOne,
		Children: []ChildSpec{
			{ID: "t", Start: startWorker(sys), Restart: Transient},
		},
	})
	require.NoError(t, err)

	before, err := GetChild(context.Background(), sup, "t")
	require.NoError(t, err)

	before.Stop(context.Background(), errors.New("boom"))

	waitForDifferentRef(t, sup, "t", before)
}

func TestOneForAllRestartsEverySibling(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	sup, err := New(sys, actor.StartOptions{}, Options{
		Strategy: OneForAll,
		Children: []ChildSpec{
			{ID: "a", Start: startWorker(sys), Restart: Permanent},
			{ID: "b", Start: startWorker(sys), Restart: Permanent},
			{ID: "c", Start: startWorker(sys), Restart: Permanent},
		},
	})
	require.NoError(t, err)

	a, _ := GetChild(context.Background(), sup, "a")
	b, _ := GetChild(context.Background(), sup, "b")
	c, _ := GetChild(context.Background(), sup, "c")

	b.Stop(context.Background(), errors.New("boom"))

	require.Eventually(t, func() bool {
		newA, err1 := GetChild(context.Background(), sup, "a")
		newB, err2 := GetChild(context.Background(), sup, "b")
		newC, err3 := GetChild(context.Background(), sup, "c")
		if err1 != nil || err2 != nil || err3 != nil {
			return false
		}
		return newA.ID() != a.ID() && newB.ID() != b.ID() && newC.ID() != c.ID()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRestForOneRestartsOnlyTail(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	sup, err := New(sys, actor.StartOptions{}, Options{
		Strategy: RestForOne,
		Children: []ChildSpec{
			{ID: "a", Start: startWorker(sys), Restart: Permanent},
			{ID: "b", Start: startWorker(sys), Restart: Permanent},
			{ID: "c", Start: startWorker(sys), Restart: Permanent},
		},
	})
	require.NoError(t, err)

	a, _ := GetChild(context.Background(), sup, "a")
	b, _ := GetChild(context.Background(), sup, "b")
	c, _ := GetChild(context.Background(), sup, "c")

	b.Stop(context.Background(), errors.New("boom"))

	require.Eventually(t, func() bool {
		newB, err2 := GetChild(context.Background(), sup, "b")
		newC, err3 := GetChild(context.Background(), sup, "c")
		if err2 != nil || err3 != nil {
			return false
		}
		return newB.ID() != b.ID() && newC.ID() != c.ID()
	}, 2*time.Second, 10*time.Millisecond)

	stillA, err := GetChild(context.Background(), sup, "a")
	require.NoError(t, err)
	require.Equal(t, a.ID(), stillA.ID())
}

func TestSimpleOneForOneDynamicInstances(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	sup, err := New(sys, actor.StartOptions{}, Options{
		Strategy: SimpleOneForOne,
		Children: []ChildSpec{
			{ID: "worker", Start: startWorker(sys), Restart: Permanent},
		},
	})
	require.NoError(t, err)

	one, err := StartChild(context.Background(), sup, ChildSpec{}, nil)
	require.NoError(t, err)
	two, err := StartChild(context.Background(), sup, ChildSpec{}, nil)
	require.NoError(t, err)
	require.NotEqual(t, one.ID(), two.ID())

	children, err := GetChildren(context.Background(), sup)
	require.NoError(t, err)
	require.Len(t, children, 2)

	one.Stop(context.Background(), errors.New("boom"))

	require.Eventually(t, func() bool {
		children, err := GetChildren(context.Background(), sup)
		if err != nil || len(children) != 2 {
			return false
		}
		_, stillThere := children[one.ID()]
		return !stillThere
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMaxRestartsExceededStopsSupervisor(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	sup, err := New(sys, actor.StartOptions{}, Options{
		Strategy:  OneForOne,
		Intensity: Intensity{MaxRestarts: 1, Within: time.Minute},
		Children: []ChildSpec{
			{ID: "a", Start: startWorker(sys), Restart: Permanent},
		},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		child, err := GetChild(context.Background(), sup, "a")
		if err != nil {
			break
		}
		child.Stop(context.Background(), errors.New("boom"))
		time.Sleep(50 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		_, err := GetChildren(context.Background(), sup)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTerminateChildRemovesWithoutRestart(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	sup, err := New(sys, actor.StartOptions{}, Options{
		Strategy: OneForOne,
		Children: []ChildSpec{
			{ID: "a", Start: startWorker(sys), Restart: Permanent},
		},
	})
	require.NoError(t, err)

	require.NoError(t, TerminateChild(context.Background(), sup, "a"))

	_, err = GetChild(context.Background(), sup, "a")
	require.ErrorIs(t, err, ErrChildNotFound)
}

func TestRestartChildIsManualAndImmediate(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	sup, err := New(sys, actor.StartOptions{}, Options{
		Strategy: OneForOne,
		Children: []ChildSpec{
			{ID: "a", Start: startWorker(sys), Restart: Permanent},
		},
	})
	require.NoError(t, err)

	before, err := GetChild(context.Background(), sup, "a")
	require.NoError(t, err)

	after, err := RestartChild(context.Background(), sup, "a")
	require.NoError(t, err)
	require.NotEqual(t, before.ID(), after.ID())
}

func TestStartChildAddsStaticChildDynamically(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	sup, err := New(sys, actor.StartOptions{}, Options{Strategy: OneForOne})
	require.NoError(t, err)

	ref, err := StartChild(context.Background(), sup, ChildSpec{
		ID: "late", Start: startWorker(sys), Restart: Permanent,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, ref)

	_, err = StartChild(context.Background(), sup, ChildSpec{
		ID: "late", Start: startWorker(sys), Restart: Permanent,
	}, nil)
	require.ErrorIs(t, err, ErrDuplicateChildID)
}

func TestNewFailsAndRollsBackOnChildInitFailure(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	_, err := New(sys, actor.StartOptions{}, Options{
		Strategy: OneForOne,
		Children: []ChildSpec{
			{ID: "a", Start: startWorker(sys), Restart: Permanent},
			{ID: "b", Start: failingStart, Restart: Permanent},
		},
	})
	require.Error(t, err)
}
