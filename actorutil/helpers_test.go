package actorutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitrt/orbit/actor"
)

type echoState struct{}

func echoBehavior() actor.Behavior[echoState, string, string, string] {
	return actor.Behavior[echoState, string, string, string]{
		Init: func(ctx context.Context) (echoState, error) { return echoState{}, nil },
		HandleCall: func(ctx context.Context, msg string, s echoState) (string, echoState, error) {
			return msg, s, nil
		},
		HandleCast: func(ctx context.Context, msg string, s echoState) (echoState, error) { return s, nil },
	}
}

func failingBehavior(failWith error) actor.Behavior[echoState, string, string, string] {
	return actor.Behavior[echoState, string, string, string]{
		Init: func(ctx context.Context) (echoState, error) { return echoState{}, nil },
		HandleCall: func(ctx context.Context, msg string, s echoState) (string, echoState, error) {
			return "", s, failWith
		},
		HandleCast: func(ctx context.Context, msg string, s echoState) (echoState, error) { return s, nil },
	}
}

func startRef(t *testing.T, sys *actor.System, b actor.Behavior[echoState, string, string, string]) actor.Ref {
	t.Helper()
	ref, err := actor.Start(sys, actor.StartOptions{}, b)
	require.NoError(t, err)
	return ref.Ref()
}

func TestParallelCallSame(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	refs := []actor.Ref{
		startRef(t, sys, echoBehavior()),
		startRef(t, sys, echoBehavior()),
		startRef(t, sys, echoBehavior()),
	}

	results := ParallelCallSame[string](context.Background(), refs, "ping", actor.CallOptions{})
	require.Len(t, results, 3)
	require.True(t, AllSucceeded(results))

	for _, got := range CollectSuccesses(results) {
		require.Equal(t, "ping", got)
	}
}

func TestFirstSuccessReturnsFirstGoodReply(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	boom := errors.New("boom")
	refs := []actor.Ref{
		startRef(t, sys, failingBehavior(boom)),
		startRef(t, sys, failingBehavior(boom)),
		startRef(t, sys, echoBehavior()),
	}

	val, err := FirstSuccess[string](context.Background(), refs, "ping", actor.CallOptions{})
	require.NoError(t, err)
	require.Equal(t, "ping", val)
}

func TestFirstSuccessReturnsLastErrorWhenAllFail(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	boom := errors.New("boom")
	refs := []actor.Ref{
		startRef(t, sys, failingBehavior(boom)),
		startRef(t, sys, failingBehavior(boom)),
	}

	_, err := FirstSuccess[string](context.Background(), refs, "ping", actor.CallOptions{})
	require.ErrorIs(t, err, boom)
}

func TestMapAndFirstError(t *testing.T) {
	t.Parallel()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	boom := errors.New("boom")
	refs := []actor.Ref{
		startRef(t, sys, echoBehavior()),
		startRef(t, sys, failingBehavior(boom)),
	}

	results := ParallelCallSame[string](context.Background(), refs, "x", actor.CallOptions{})
	require.False(t, AllSucceeded(results))
	require.ErrorIs(t, FirstError(results), boom)

	lengths := MapResponses(results, func(s string) int { return len(s) })
	require.Len(t, lengths, 2)
}
