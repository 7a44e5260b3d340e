package remote

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPendingTableResolveDelivers(t *testing.T) {
	t.Parallel()

	table := newPendingTable()
	future := table.register("call-1", "nodeB")

	ok := table.resolve("call-1", json.RawMessage(`"hello"`), nil)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result := future.Await(ctx)
	value, err := result.Unpack()
	require.NoError(t, err)
	require.JSONEq(t, `"hello"`, string(value))
}

func TestPendingTableResolveUnknownIDIsNoop(t *testing.T) {
	t.Parallel()

	table := newPendingTable()
	require.False(t, table.resolve("missing", nil, nil))
}

func TestPendingTableResolveOnlyOnce(t *testing.T) {
	t.Parallel()

	table := newPendingTable()
	table.register("call-1", "nodeB")

	require.True(t, table.resolve("call-1", json.RawMessage(`1`), nil))
	require.False(t, table.resolve("call-1", json.RawMessage(`2`), nil))
}

func TestPendingTableFailNodeOnlyMatchesTarget(t *testing.T) {
	t.Parallel()

	table := newPendingTable()
	futureA := table.register("call-a", "nodeA")
	futureB := table.register("call-b", "nodeB")

	table.failNode("nodeA", errors.New("boom"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := futureA.Await(ctx).Unpack()
	require.Error(t, err)

	// futureB must remain pending, so Await against an already-cancelled
	// context should report the context error, not "boom".
	cancelledCtx, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = futureB.Await(cancelledCtx).Unpack()
	require.ErrorIs(t, err, context.Canceled)
}

func TestPendingTableCancelDropsEntry(t *testing.T) {
	t.Parallel()

	table := newPendingTable()
	table.register("call-1", "nodeB")
	table.cancel("call-1")

	require.False(t, table.resolve("call-1", nil, nil))
}
