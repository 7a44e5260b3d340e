package observer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitrt/orbit/actor"
	"github.com/orbitrt/orbit/cluster"
	"github.com/orbitrt/orbit/cluster/registry"
	"github.com/orbitrt/orbit/cluster/remote"
)

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

type testNode struct {
	sys      *actor.System
	node     *cluster.Node
	remote   *remote.Remote
	registry *registry.GlobalRegistry
	local    *Observer
	cluster  *ClusterObserver
}

func startObserverNode(t *testing.T, name string, port int, seeds ...string) *testNode {
	t.Helper()

	node, err := cluster.NewNode(testNodeConfig(name, port, seeds...))
	require.NoError(t, err)
	require.NoError(t, node.Start(context.Background()))

	sysCfg := actor.DefaultSystemConfig()
	sysCfg.NodeID = node.NodeID()
	sys := actor.NewSystem(sysCfg)

	rt := remote.New(node, sys, remote.NewBehaviorRegistry())

	reg := registry.New(node)
	reg.SetConflictWindow(80 * time.Millisecond)

	local := New(sys)
	clusterObs, err := NewClusterObserver(node, rt, reg, local)
	require.NoError(t, err)

	tn := &testNode{sys: sys, node: node, remote: rt, registry: reg, local: local, cluster: clusterObs}

	t.Cleanup(func() {
		clusterObs.Close()
		rt.Close()
		reg.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = node.Stop(ctx)
		_ = sys.Shutdown(ctx)
	})

	return tn
}

func TestClusterObserverFansOutAcrossConnectedNodes(t *testing.T) {
	a := startObserverNode(t, "a", 19711)
	b := startObserverNode(t, "b", 19712, a.node.NodeID())

	require.Eventually(t, func() bool {
		return a.node.IsConnected(b.node.NodeID())
	}, 3*time.Second, 20*time.Millisecond)

	// Give b's global registration a chance to propagate to a.
	require.Eventually(t, func() bool {
		_, _, err := a.registry.Lookup(observerName(b.node.NodeID()))
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	_, err := actor.Start(b.sys, actor.StartOptions{}, workerBehavior())
	require.NoError(t, err)

	ctx := context.Background()
	var snap ClusterSnapshot
	require.Eventually(t, func() bool {
		var snapErr error
		snap, snapErr = a.cluster.Snapshot(ctx)
		if snapErr != nil || len(snap.Nodes) != 2 {
			return false
		}
		for _, n := range snap.Nodes {
			if n.NodeID == b.node.NodeID() {
				return n.Status == NodeOK && n.Snapshot != nil && n.Snapshot.ProcessCount >= 1
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	var selfNode, peerNode *NodeSnapshot
	for i := range snap.Nodes {
		switch snap.Nodes[i].NodeID {
		case a.node.NodeID():
			selfNode = &snap.Nodes[i]
		case b.node.NodeID():
			peerNode = &snap.Nodes[i]
		}
	}
	require.NotNil(t, selfNode)
	require.NotNil(t, peerNode)
	require.Equal(t, NodeOK, selfNode.Status)
	require.Equal(t, NodeOK, peerNode.Status)
	require.GreaterOrEqual(t, peerNode.Snapshot.ProcessCount, 1)
}

func TestClusterObserverCachesWithinTTL(t *testing.T) {
	a := startObserverNode(t, "a", 19713)
	a.cluster.SetCacheTTL(time.Hour)

	ctx := context.Background()
	first, err := a.cluster.Snapshot(ctx)
	require.NoError(t, err)

	_, err = actor.Start(a.sys, actor.StartOptions{}, workerBehavior())
	require.NoError(t, err)

	second, err := a.cluster.Snapshot(ctx)
	require.NoError(t, err)

	require.Equal(t, first.Nodes[0].Snapshot.ProcessCount, second.Nodes[0].Snapshot.ProcessCount,
		"a cached snapshot must not reflect actors started after it was taken")
}

func TestClusterObserverOmitsDisconnectedPeer(t *testing.T) {
	a := startObserverNode(t, "a", 19714)
	b := startObserverNode(t, "b", 19715, a.node.NodeID())

	require.Eventually(t, func() bool {
		return a.node.IsConnected(b.node.NodeID())
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		_, _, err := a.registry.Lookup(observerName(b.node.NodeID()))
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.node.Stop(ctx))

	require.Eventually(t, func() bool {
		return !a.node.IsConnected(b.node.NodeID())
	}, 3*time.Second, 20*time.Millisecond)

	var snap ClusterSnapshot
	var err error
	require.Eventually(t, func() bool {
		snap, err = a.cluster.Snapshot(context.Background())
		return err == nil && len(snap.Nodes) == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestClusterObserverPerNodeTimeout(t *testing.T) {
	a := startObserverNode(t, "a", 19716)
	b := startObserverNode(t, "b", 19717, a.node.NodeID())

	require.Eventually(t, func() bool {
		return a.node.IsConnected(b.node.NodeID())
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		_, _, err := a.registry.Lookup(observerName(b.node.NodeID()))
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	// An impossibly small timeout forces the remote call to time out
	// rather than resolve normally, exercising the NodeTimeout branch of
	// classifyErr.
	a.cluster.SetPerNodeTimeout(time.Nanosecond)
	a.cluster.SetCacheTTL(0)

	snap, err := a.cluster.Snapshot(context.Background())
	require.NoError(t, err)

	var peerNode *NodeSnapshot
	for i := range snap.Nodes {
		if snap.Nodes[i].NodeID == b.node.NodeID() {
			peerNode = &snap.Nodes[i]
		}
	}
	require.NotNil(t, peerNode)
	require.Contains(t, []NodeStatus{NodeTimeout, NodeError}, peerNode.Status)
}
