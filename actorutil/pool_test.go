package actorutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitrt/orbit/actor"
)

type poolWorkerState struct {
	idx     int
	handled *atomic.Int64
}

func poolFactory(handled []*atomic.Int64) func(idx int) actor.Behavior[poolWorkerState, int, int, int] {
	return func(idx int) actor.Behavior[poolWorkerState, int, int, int] {
		counter := &atomic.Int64{}
		handled[idx] = counter

		return actor.Behavior[poolWorkerState, int, int, int]{
			Init: func(ctx context.Context) (poolWorkerState, error) {
				return poolWorkerState{idx: idx, handled: counter}, nil
			},
			HandleCall: func(ctx context.Context, msg int, s poolWorkerState) (int, poolWorkerState, error) {
				s.handled.Add(1)
				return msg * 2, s, nil
			},
			HandleCast: func(ctx context.Context, msg int, s poolWorkerState) (poolWorkerState, error) {
				s.handled.Add(1)
				return s, nil
			},
		}
	}
}

func newTestPool(t *testing.T, size int) (*Pool[poolWorkerState, int, int, int], []*atomic.Int64) {
	t.Helper()

	sys := actor.NewSystem(actor.DefaultSystemConfig())
	handled := make([]*atomic.Int64, size)

	pool, err := NewPool(PoolConfig[poolWorkerState, int, int, int]{
		ID:      "test-pool",
		Size:    size,
		Factory: poolFactory(handled),
		System:  sys,
	})
	require.NoError(t, err)

	return pool, handled
}

func TestPoolRoundRobinCall(t *testing.T) {
	t.Parallel()

	const size = 3
	pool, handled := newTestPool(t, size)
	defer pool.Stop(context.Background())

	require.Equal(t, size, pool.Size())

	for i := 0; i < size*2; i++ {
		reply, err := pool.Call(context.Background(), i+1, actor.CallOptions{})
		require.NoError(t, err)
		require.Equal(t, (i+1)*2, reply)
	}

	for i, c := range handled {
		require.Equal(t, int64(2), c.Load(), "member %d handled count", i)
	}
}

func TestPoolBroadcast(t *testing.T) {
	t.Parallel()

	const size = 4
	pool, handled := newTestPool(t, size)
	defer pool.Stop(context.Background())

	pool.Broadcast(context.Background(), 7)

	require.Eventually(t, func() bool {
		for _, c := range handled {
			if c.Load() != 1 {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)
}

func TestPoolBroadcastCall(t *testing.T) {
	t.Parallel()

	const size = 3
	pool, _ := newTestPool(t, size)
	defer pool.Stop(context.Background())

	results := pool.BroadcastCall(context.Background(), 5, actor.CallOptions{})
	require.Len(t, results, size)
	require.True(t, AllSucceeded(results))

	for _, r := range CollectSuccesses(results) {
		require.Equal(t, 10, r)
	}
}

func TestPoolRefImplementsActorRef(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 2)
	defer pool.Stop(context.Background())

	var ref actor.Ref = NewPoolRef(pool)
	require.Equal(t, "test-pool", ref.ID())

	reply, err := ref.Call(context.Background(), 3, actor.CallOptions{})
	require.NoError(t, err)
	require.Equal(t, 6, reply)

	_, err = ref.Call(context.Background(), "wrong-type", actor.CallOptions{})
	require.ErrorIs(t, err, actor.ErrInvalidMessageType)
}

func TestNewPoolRequiresSystem(t *testing.T) {
	t.Parallel()

	_, err := NewPool(PoolConfig[poolWorkerState, int, int, int]{
		ID:   "no-system",
		Size: 1,
		Factory: poolFactory(make([]*atomic.Int64, 1)),
	})
	require.Error(t, err)
}
