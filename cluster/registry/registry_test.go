package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitrt/orbit/actor"
	"github.com/orbitrt/orbit/cluster"
)

// fakeRef is a minimal actor.Ref fixture: registry only ever reads
// ID()/NodeID() off a registered ref, never calls it.
type fakeRef struct {
	id     string
	nodeID string
}

func (f *fakeRef) ID() string     { return f.id }
func (f *fakeRef) NodeID() string { return f.nodeID }
func (f *fakeRef) Call(ctx context.Context, msg any, opts actor.CallOptions) (any, error) {
	return nil, nil
}
func (f *fakeRef) Cast(ctx context.Context, msg any)         {}
func (f *fakeRef) Stop(ctx context.Context, reason error)    {}
func (f *fakeRef) Equal(other actor.Ref) bool                { return false }

func testNodeConfig(name string, port int, seeds ...string) cluster.Config {
	return cluster.Config{
		NodeName:               name,
		Host:                   "127.0.0.1",
		Port:                   port,
		Seeds:                  seeds,
		HeartbeatIntervalMs:    50,
		HeartbeatMissThreshold: 3,
		ReconnectBaseDelayMs:   20,
		ReconnectMaxDelayMs:    200,
	}.Normalized()
}

func startTestRegistryNode(t *testing.T, name string, port int, seeds ...string) (*cluster.Node, *GlobalRegistry) {
	t.Helper()

	node, err := cluster.NewNode(testNodeConfig(name, port, seeds...))
	require.NoError(t, err)
	require.NoError(t, node.Start(context.Background()))

	g := New(node)
	g.SetConflictWindow(80 * time.Millisecond)

	t.Cleanup(func() {
		g.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = node.Stop(ctx)
	})

	return node, g
}

func TestGlobalRegistryRegisterAndLookup(t *testing.T) {
	_, g := startTestRegistryNode(t, "solo", 19611)

	ref := &fakeRef{id: "actor-1", nodeID: "solo@127.0.0.1:19611"}
	require.NoError(t, g.Register("svc", ref))

	nodeID, actorID, err := g.Lookup("svc")
	require.NoError(t, err)
	require.Equal(t, ref.nodeID, nodeID)
	require.Equal(t, ref.id, actorID)
}

func TestGlobalRegistryLookupUnknownName(t *testing.T) {
	_, g := startTestRegistryNode(t, "solo2", 19612)

	_, _, err := g.Lookup("nope")
	require.Error(t, err)
	var notRegistered *NotRegisteredError
	require.ErrorAs(t, err, &notRegistered)
}

func TestGlobalRegistryUnregisterBroadcastsTombstone(t *testing.T) {
	nodeA, gA := startTestRegistryNode(t, "a", 19613)
	nodeB, gB := startTestRegistryNode(t, "b", 19614, nodeA.NodeID())

	require.Eventually(t, func() bool {
		return nodeA.IsConnected(nodeB.NodeID())
	}, 3*time.Second, 20*time.Millisecond)

	ref := &fakeRef{id: "actor-1", nodeID: nodeA.NodeID()}
	require.NoError(t, gA.Register("svc", ref))

	require.Eventually(t, func() bool {
		_, _, err := gB.Lookup("svc")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	gA.Unregister("svc")

	require.Eventually(t, func() bool {
		_, _, err := gB.Lookup("svc")
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGlobalRegistryJoinPushesFullSync(t *testing.T) {
	nodeA, gA := startTestRegistryNode(t, "a", 19615)

	ref := &fakeRef{id: "actor-1", nodeID: nodeA.NodeID()}
	require.NoError(t, gA.Register("svc", ref))

	nodeB, gB := startTestRegistryNode(t, "b", 19616, nodeA.NodeID())

	require.Eventually(t, func() bool {
		return nodeA.IsConnected(nodeB.NodeID())
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		nodeID, actorID, err := gB.Lookup("svc")
		return err == nil && nodeID == nodeA.NodeID() && actorID == "actor-1"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestGlobalRegistryConflictingRegistrationResolvesByPriority(t *testing.T) {
	nodeA, gA := startTestRegistryNode(t, "a", 19617)
	nodeB, gB := startTestRegistryNode(t, "b", 19618, nodeA.NodeID())

	require.Eventually(t, func() bool {
		return nodeA.IsConnected(nodeB.NodeID())
	}, 3*time.Second, 20*time.Millisecond)

	// Seed A's entry first so it has the smaller registeredAt and wins
	// the (registeredAt, nodeId) comparison against B's later attempt.
	refA := &fakeRef{id: "actor-a", nodeID: nodeA.NodeID()}
	errA := gA.Register("dup", refA)

	time.Sleep(10 * time.Millisecond)

	refB := &fakeRef{id: "actor-b", nodeID: nodeB.NodeID()}
	errB := gB.Register("dup", refB)

	// Exactly one side must win.
	require.True(t, (errA == nil) != (errB == nil),
		"expected exactly one registration to win, got errA=%v errB=%v", errA, errB)

	winner := gA
	if errA != nil {
		winner = gB
	}
	require.Eventually(t, func() bool {
		_, _, err := winner.Lookup("dup")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGlobalRegistryNodeDownPurgesEntries(t *testing.T) {
	nodeA, gA := startTestRegistryNode(t, "a", 19619)
	nodeB, gB := startTestRegistryNode(t, "b", 19620, nodeA.NodeID())

	require.Eventually(t, func() bool {
		return nodeA.IsConnected(nodeB.NodeID())
	}, 3*time.Second, 20*time.Millisecond)

	ref := &fakeRef{id: "actor-1", nodeID: nodeB.NodeID()}
	require.NoError(t, gB.Register("svc", ref))

	require.Eventually(t, func() bool {
		_, _, err := gA.Lookup("svc")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, nodeB.Stop(ctx))

	require.Eventually(t, func() bool {
		_, _, err := gA.Lookup("svc")
		return err != nil
	}, 3*time.Second, 20*time.Millisecond)
}
