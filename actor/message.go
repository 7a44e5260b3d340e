package actor

// BaseMessage is a helper struct that can be embedded in message types
// defined outside the actor package to satisfy the Message interface's
// unexported messageMarker method.
type BaseMessage struct{}

// messageMarker implements the unexported method for the Message interface,
// allowing types that embed BaseMessage to satisfy the Message interface.
func (BaseMessage) messageMarker() {}

// Message is a sealed interface for values that travel through an actor's
// mailbox, lifecycle event bus, or dead-letter office. The interface is
// "sealed" by the unexported messageMarker method, meaning only types that
// can satisfy it (e.g. by embedding BaseMessage) are Messages. This keeps
// the set of things that can show up in traces/dead-letters closed and
// self-describing.
type Message interface {
	// messageMarker is a private method that makes this a sealed
	// interface (see BaseMessage for embedding).
	messageMarker()

	// MessageType returns the type name of the message for
	// routing/filtering/logging.
	MessageType() string
}

// envelopeKind discriminates the two shapes a server can receive: a
// synchronous call expecting a reply, or a fire-and-forget cast.
type envelopeKind uint8

const (
	kindCall envelopeKind = iota
	kindCast
)

// serverEnvelope is the single message type that flows through a
// server[State, CallMsg, CastMsg, Reply]'s mailbox. It carries either a
// CallMsg or a CastMsg, discriminated by kind, so that one Mailbox
// implementation (see mailbox.go) can serve both handleCall and handleCast
// dispatch without the process loop needing two separate queues - this
// preserves per-sender-per-receiver ordering across calls and casts (spec
// §5: "a call sent before a later cast by the same sender ... is processed
// first").
type serverEnvelope[CallMsg, CastMsg any] struct {
	BaseMessage

	kind envelopeKind
	call CallMsg
	cast CastMsg
}

// MessageType implements Message.
func (e serverEnvelope[CallMsg, CastMsg]) MessageType() string {
	if e.kind == kindCall {
		return "call"
	}
	return "cast"
}
