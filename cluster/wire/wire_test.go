package wire

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	env := Envelope{
		Version:   ProtocolVersion,
		From:      "a@127.0.0.1:4369",
		Timestamp: 1234,
		Payload: Heartbeat{
			NodeInfo:   NodeInfo{ID: "a@127.0.0.1:4369", Address: "127.0.0.1:4369"},
			KnownNodes: []NodeInfo{{ID: "b@127.0.0.1:4370", Address: "127.0.0.1:4370"}},
		},
	}

	data, err := Encode(env, nil)
	require.NoError(t, err)

	decoded, err := Decode(data, nil)
	require.NoError(t, err)

	hb, ok := decoded.Payload.(*Heartbeat)
	require.True(t, ok)
	require.Equal(t, env.Payload.(Heartbeat).NodeInfo, hb.NodeInfo)
	require.Equal(t, env.Payload.(Heartbeat).KnownNodes, hb.KnownNodes)
	require.Equal(t, env.From, decoded.From)
	require.Equal(t, env.Timestamp, decoded.Timestamp)
}

func TestEncodeDecodeEveryMessageType(t *testing.T) {
	t.Parallel()

	msgs := []ClusterMessage{
		Heartbeat{NodeInfo: NodeInfo{ID: "a"}},
		Call{CallID: "c1", TargetID: "x", Msg: json.RawMessage(`1`)},
		CallReply{CallID: "c1", Result: json.RawMessage(`2`)},
		CallError{CallID: "c1", ErrorType: "timeout", Message: "boom"},
		Cast{TargetID: "x", Msg: json.RawMessage(`"inc"`)},
		RegistrySync{FullSync: true, Entries: []RegistryEntry{{Name: "n", ActorID: "x"}}},
		NodeDown{NodeID: "b", Reason: ReasonHeartbeatTimeout},
		SpawnRequest{SpawnID: "s1", BehaviorName: "counter"},
		SpawnReply{SpawnID: "s1", ServerID: "x", NodeID: "b"},
		SpawnError{SpawnID: "s1", ErrorType: "behavior_not_found"},
		MonitorRequest{MonitorID: "m1", WatcherID: "w", TargetID: "x"},
		MonitorAck{MonitorID: "m1", Success: true},
		DemonitorRequest{MonitorID: "m1"},
		ProcessDown{MonitorID: "m1", MonitoredID: "x", Reason: "noconnection"},
		LinkRequest{LinkID: "l1", PeerAID: "a", PeerBID: "b"},
		LinkAck{LinkID: "l1", Success: true},
		UnlinkRequest{LinkID: "l1"},
		ExitSignal{LinkID: "l1", FromID: "a", Reason: "boom"},
	}

	for _, m := range msgs {
		env := Envelope{Version: ProtocolVersion, From: "a", Timestamp: 1, Payload: m}
		data, err := Encode(env, nil)
		require.NoError(t, err)

		decoded, err := Decode(data, nil)
		require.NoError(t, err)
		require.Equal(t, m.Type(), decoded.Payload.Type())
	}
}

func TestHMACSigningRoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("shared-secret")
	env := Envelope{
		Version: ProtocolVersion, From: "a", Timestamp: 1,
		Payload: Cast{TargetID: "x", Msg: json.RawMessage(`1`)},
	}

	data, err := Encode(env, secret)
	require.NoError(t, err)

	_, err = Decode(data, secret)
	require.NoError(t, err)
}

func TestHMACRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	env := Envelope{
		Version: ProtocolVersion, From: "a", Timestamp: 1,
		Payload: Cast{TargetID: "x", Msg: json.RawMessage(`1`)},
	}

	data, err := Encode(env, []byte("secret-a"))
	require.NoError(t, err)

	_, err = Decode(data, []byte("secret-b"))
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestHMACRejectsMissingSignatureWhenSecretConfigured(t *testing.T) {
	t.Parallel()

	env := Envelope{
		Version: ProtocolVersion, From: "a", Timestamp: 1,
		Payload: Cast{TargetID: "x", Msg: json.RawMessage(`1`)},
	}

	data, err := Encode(env, nil)
	require.NoError(t, err)

	_, err = Decode(data, []byte("secret"))
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	t.Parallel()

	env := Envelope{Version: 2, From: "a", Timestamp: 1, Payload: DemonitorRequest{MonitorID: "m"}}
	data, err := Encode(env, nil)
	require.NoError(t, err)

	_, err = Decode(data, nil)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDecodeRejectsUnknownMessageType(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"version":1,"from":"a","timestamp":1,"type":"bogus","payload":{}}`), nil)
	require.Error(t, err)
	var unknown *ErrUnknownMessageType
	require.ErrorAs(t, err, &unknown)
}

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	payload := []byte(`{"hello":"world"}`)

	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf, DefaultMaxFrameSize)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, make([]byte, 100)))

	_, err := ReadFrame(&buf, 10)
	var tooLarge *ErrFrameTooLarge
	require.ErrorAs(t, err, &tooLarge)
}
