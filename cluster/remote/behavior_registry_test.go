package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitrt/orbit/actor"
)

func TestBehaviorRegistryRegisterAndLookup(t *testing.T) {
	t.Parallel()

	reg := NewBehaviorRegistry()

	err := reg.Register(Registration{
		Name: "counter",
		Start: func(ctx context.Context, sys *actor.System, opts actor.StartOptions, args any) (actor.Ref, error) {
			typed, startErr := actor.Start(sys, opts, counterBehavior())
			if startErr != nil {
				return nil, startErr
			}
			return typed.Ref(), nil
		},
		NewCallMsg: func() any { return new(string) },
		NewCastMsg: func() any { return new(string) },
		NewReply:   func() any { return new(int) },
	})
	require.NoError(t, err)

	found, ok := reg.Lookup("counter")
	require.True(t, ok)
	require.Equal(t, "counter", found.Name)

	_, ok = reg.Lookup("nonexistent")
	require.False(t, ok)
}

func TestBehaviorRegistryRejectsDuplicateName(t *testing.T) {
	t.Parallel()

	reg := NewBehaviorRegistry()
	entry := Registration{Name: "dup"}
	require.NoError(t, reg.Register(entry))
	require.Error(t, reg.Register(entry))
}

func TestBehaviorRegistryBindActor(t *testing.T) {
	t.Parallel()

	reg := NewBehaviorRegistry()
	require.NoError(t, reg.Register(Registration{Name: "counter"}))

	reg.BindActor("actor-1", "counter")
	found, ok := reg.BehaviorFor("actor-1")
	require.True(t, ok)
	require.Equal(t, "counter", found.Name)

	reg.UnbindActor("actor-1")
	_, ok = reg.BehaviorFor("actor-1")
	require.False(t, ok)
}

// counterBehavior is a minimal Behavior used across this package's
// tests: State is an int, CallMsg is "inc"/"get", CastMsg is "inc",
// Reply is an int.
func counterBehavior() actor.Behavior[int, string, string, int] {
	return actor.Behavior[int, string, string, int]{
		Init: func(ctx context.Context) (int, error) { return 0, nil },
		HandleCall: func(ctx context.Context, msg string, state int) (int, int, error) {
			switch msg {
			case "inc":
				state++
				return state, state, nil
			default:
				return state, state, nil
			}
		},
		HandleCast: func(ctx context.Context, msg string, state int) (int, error) {
			if msg == "inc" {
				state++
			}
			return state, nil
		},
		Terminate: func(ctx context.Context, reason error, state int) {},
	}
}
