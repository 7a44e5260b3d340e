package wire

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the only version value an Envelope may carry
// (spec §6: "version... must equal 1").
const ProtocolVersion = 1

// ErrUnsupportedVersion is returned by Decode when version != ProtocolVersion.
var ErrUnsupportedVersion = fmt.Errorf("wire: unsupported envelope version")

// ErrSignatureInvalid is returned by Decode when a secret is configured
// and the envelope's signature does not match, or is missing.
var ErrSignatureInvalid = fmt.Errorf("wire: signature verification failed")

// ErrUnknownMessageType is returned by Decode for a "type" tag not in
// the closed set defined in message.go.
type ErrUnknownMessageType struct {
	Type MessageType
}

func (e *ErrUnknownMessageType) Error() string {
	return fmt.Sprintf("wire: unknown message type %q", e.Type)
}

// Envelope is the decoded form of one frame (spec §4.7/§6).
type Envelope struct {
	Version   int
	From      string
	Timestamp int64
	Signature string
	Payload   ClusterMessage
}

// onWire is the transport encoding of an Envelope: Payload serialized to
// its own JSON object tagged by Type, so Decode can dispatch to the
// right concrete Go type before unmarshaling it.
type onWire struct {
	Version   int             `json:"version"`
	From      string          `json:"from"`
	Timestamp int64           `json:"timestamp"`
	Signature string          `json:"signature,omitempty"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// signedFields is the canonical (version, from, timestamp, payload)
// tuple HMAC is computed over (spec §4.7). Signature is deliberately
// excluded, and field order is fixed by struct declaration order, which
// encoding/json preserves deterministically.
type signedFields struct {
	Version   int             `json:"version"`
	From      string          `json:"from"`
	Timestamp int64           `json:"timestamp"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

func computeSignature(secret []byte, version int, from string, timestamp int64,
	msgType MessageType, payload json.RawMessage,
) (string, error) {

	toSign, err := json.Marshal(signedFields{
		Version: version, From: from, Timestamp: timestamp,
		Type: msgType, Payload: payload,
	})
	if err != nil {
		return "", fmt.Errorf("wire: canonicalizing signed fields: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(toSign)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Encode serializes env to its wire bytes (unframed). If secret is
// non-empty, a fresh HMAC-SHA256 signature is computed and attached,
// overwriting env.Signature.
func Encode(env Envelope, secret []byte) ([]byte, error) {
	if env.Payload == nil {
		return nil, fmt.Errorf("wire: envelope payload must not be nil")
	}

	payloadRaw, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("wire: marshaling payload: %w", err)
	}

	sig := env.Signature
	if len(secret) > 0 {
		sig, err = computeSignature(secret, env.Version, env.From, env.Timestamp,
			env.Payload.Type(), payloadRaw)
		if err != nil {
			return nil, err
		}
	}

	return json.Marshal(onWire{
		Version:   env.Version,
		From:      env.From,
		Timestamp: env.Timestamp,
		Signature: sig,
		Type:      env.Payload.Type(),
		Payload:   payloadRaw,
	})
}

// Decode parses wire bytes into an Envelope, dispatching Payload to its
// concrete type by the "type" tag. If secret is non-empty, the envelope
// must carry a matching signature or Decode returns ErrSignatureInvalid;
// spec §7 requires such frames be dropped without surfacing content to
// callers.
func Decode(data []byte, secret []byte) (Envelope, error) {
	var raw onWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("wire: decoding envelope: %w", err)
	}

	if raw.Version != ProtocolVersion {
		return Envelope{}, ErrUnsupportedVersion
	}

	if len(secret) > 0 {
		want, err := computeSignature(secret, raw.Version, raw.From, raw.Timestamp,
			raw.Type, raw.Payload)
		if err != nil {
			return Envelope{}, err
		}
		if raw.Signature == "" || !hmac.Equal([]byte(want), []byte(raw.Signature)) {
			return Envelope{}, ErrSignatureInvalid
		}
	}

	payload, err := decodePayload(raw.Type, raw.Payload)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		Version:   raw.Version,
		From:      raw.From,
		Timestamp: raw.Timestamp,
		Signature: raw.Signature,
		Payload:   payload,
	}, nil
}

func decodePayload(t MessageType, raw json.RawMessage) (ClusterMessage, error) {
	var msg ClusterMessage

	switch t {
	case TypeHeartbeat:
		msg = &Heartbeat{}
	case TypeCall:
		msg = &Call{}
	case TypeCallReply:
		msg = &CallReply{}
	case TypeCallError:
		msg = &CallError{}
	case TypeCast:
		msg = &Cast{}
	case TypeRegistrySync:
		msg = &RegistrySync{}
	case TypeNodeDown:
		msg = &NodeDown{}
	case TypeSpawnRequest:
		msg = &SpawnRequest{}
	case TypeSpawnReply:
		msg = &SpawnReply{}
	case TypeSpawnError:
		msg = &SpawnError{}
	case TypeMonitorRequest:
		msg = &MonitorRequest{}
	case TypeMonitorAck:
		msg = &MonitorAck{}
	case TypeDemonitorRequest:
		msg = &DemonitorRequest{}
	case TypeProcessDown:
		msg = &ProcessDown{}
	case TypeLinkRequest:
		msg = &LinkRequest{}
	case TypeLinkAck:
		msg = &LinkAck{}
	case TypeUnlinkRequest:
		msg = &UnlinkRequest{}
	case TypeExitSignal:
		msg = &ExitSignal{}
	default:
		return nil, &ErrUnknownMessageType{Type: t}
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("wire: decoding %s payload: %w", t, err)
	}
	return msg, nil
}
