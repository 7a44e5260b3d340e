package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitrt/orbit/cluster/wire"
)

func testConfig(name string, port int, seeds ...string) Config {
	return Config{
		NodeName:               name,
		Host:                   "127.0.0.1",
		Port:                   port,
		Seeds:                  seeds,
		HeartbeatIntervalMs:    50,
		HeartbeatMissThreshold: 3,
		ReconnectBaseDelayMs:   20,
		ReconnectMaxDelayMs:    200,
	}.normalized()
}

func startTestNode(t *testing.T, cfg Config) *Node {
	t.Helper()

	n, err := NewNode(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = n.Stop(ctx)
	})
	return n
}

func TestTwoNodesJoinAndGossip(t *testing.T) {
	cfgA := testConfig("a", 19411)
	nodeA := startTestNode(t, cfgA)

	cfgB := testConfig("b", 19412, nodeA.NodeID())
	nodeB := startTestNode(t, cfgB)

	require.Eventually(t, func() bool {
		return nodeB.IsConnected(nodeA.NodeID())
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return nodeA.IsConnected(nodeB.NodeID())
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSendDeliversMessageToPeer(t *testing.T) {
	cfgA := testConfig("a", 19413)
	nodeA := startTestNode(t, cfgA)

	cfgB := testConfig("b", 19414, nodeA.NodeID())
	nodeB := startTestNode(t, cfgB)

	require.Eventually(t, func() bool {
		return nodeA.IsConnected(nodeB.NodeID())
	}, 3*time.Second, 20*time.Millisecond)

	received := make(chan *wire.Cast, 1)
	nodeB.OnMessage(func(from string, msg wire.ClusterMessage) {
		if cast, ok := msg.(*wire.Cast); ok {
			received <- cast
		}
	})

	err := nodeA.Send(nodeB.NodeID(), wire.Cast{TargetID: "x", Msg: []byte(`"inc"`)})
	require.NoError(t, err)

	select {
	case cast := <-received:
		require.Equal(t, "x", cast.TargetID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cast delivery")
	}
}

func TestSendToUnknownNodeErrors(t *testing.T) {
	node := startTestNode(t, testConfig("a", 19415))

	err := node.Send("nobody@127.0.0.1:1", wire.Cast{TargetID: "x"})
	require.ErrorIs(t, err, ErrNodeNotConnected)
}

func TestGracefulStopNotifiesPeerNodeDown(t *testing.T) {
	cfgA := testConfig("a", 19416)
	nodeA, err := NewNode(cfgA)
	require.NoError(t, err)
	require.NoError(t, nodeA.Start(context.Background()))

	cfgB := testConfig("b", 19417, nodeA.NodeID())
	nodeB := startTestNode(t, cfgB)

	require.Eventually(t, func() bool {
		return nodeB.IsConnected(nodeA.NodeID())
	}, 3*time.Second, 20*time.Millisecond)

	downReasons := make(chan wire.NodeDownReason, 1)
	nodeB.OnMessage(func(from string, msg wire.ClusterMessage) {
		if down, ok := msg.(*wire.NodeDown); ok && down.NodeID == nodeA.NodeID() {
			select {
			case downReasons <- down.Reason:
			default:
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, nodeA.Stop(ctx))

	select {
	case reason := <-downReasons:
		require.Equal(t, wire.ReasonGracefulShutdown, reason)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for node_down")
	}

	require.Eventually(t, func() bool {
		return !nodeB.IsConnected(nodeA.NodeID())
	}, 3*time.Second, 20*time.Millisecond)
}
