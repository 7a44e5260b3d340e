package cluster

import (
	"net"
	"sync"

	"github.com/orbitrt/orbit/cluster/wire"
)

// conn wraps one TCP connection to a peer with a dedicated send-queue
// writer goroutine and a reader goroutine (spec §4.6: "each connection
// has its own send queue and reader"), grounded on the teacher's
// one-goroutine-per-actor mailbox discipline
// (internal/baselib/actor/channel_mailbox.go) generalized from "one
// mailbox per actor" to "one send queue per TCP connection".
type conn struct {
	peerID string // empty until the peer's identity is revealed by its first envelope

	netConn net.Conn
	sendCh  chan []byte

	maxFrameSize int
	secret       []byte

	closeOnce sync.Once
	closed    chan struct{}
}

const connSendQueueSize = 64

func newConn(nc net.Conn, maxFrameSize int, secret []byte) *conn {
	c := &conn{
		netConn:      nc,
		sendCh:       make(chan []byte, connSendQueueSize),
		maxFrameSize: maxFrameSize,
		secret:       secret,
		closed:       make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// writeLoop serializes every frame write to the underlying socket, so
// concurrent senders never interleave partial frames.
func (c *conn) writeLoop() {
	for {
		select {
		case frame, ok := <-c.sendCh:
			if !ok {
				return
			}
			if err := wire.WriteFrame(c.netConn, frame); err != nil {
				c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// enqueue encodes env and queues it for the writer goroutine. It does
// not block indefinitely: a full queue drops the frame rather than
// stalling the caller, since cast/heartbeat/gossip traffic is already
// best-effort (spec §4.8: "cast ... silently dropped if node
// disconnected").
func (c *conn) enqueue(env wire.Envelope) error {
	frame, err := wire.Encode(env, c.secret)
	if err != nil {
		return err
	}

	select {
	case c.sendCh <- frame:
		return nil
	case <-c.closed:
		return net.ErrClosed
	default:
		return nil
	}
}

// readEnvelope blocks for exactly one frame and decodes it.
func (c *conn) readEnvelope() (wire.Envelope, error) {
	frame, err := wire.ReadFrame(c.netConn, c.maxFrameSize)
	if err != nil {
		return wire.Envelope{}, err
	}
	return wire.Decode(frame, c.secret)
}

// Close shuts down the writer goroutine and the underlying socket. Safe
// to call more than once.
func (c *conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.netConn.Close()
	})
}
