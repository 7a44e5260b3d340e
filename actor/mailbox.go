package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// mailboxEnvelope is what actually travels through a server's mailbox: a
// serverEnvelope payload plus the bookkeeping the dispatcher needs to
// correlate a reply or to run a cast handler.
type mailboxEnvelope[CallMsg, CastMsg, Reply any] struct {
	msg serverEnvelope[CallMsg, CastMsg]

	// replyTo is set only for kindCall envelopes; it is completed with
	// the handler's reply or error once handleCall returns.
	replyTo Promise[Reply]
}

// Mailbox is a single-reader FIFO queue of envelopes for one server. Only
// the owning server's dispatcher goroutine ever calls Receive/Drain.
type Mailbox[CallMsg, CastMsg, Reply any] interface {
	Send(ctx context.Context, env mailboxEnvelope[CallMsg, CastMsg, Reply]) bool
	TrySend(env mailboxEnvelope[CallMsg, CastMsg, Reply]) bool
	Receive(ctx context.Context) iter.Seq[mailboxEnvelope[CallMsg, CastMsg, Reply]]
	Close()
	IsClosed() bool
	Drain() iter.Seq[mailboxEnvelope[CallMsg, CastMsg, Reply]]
	Len() int
}

// channelMailbox is a Mailbox implementation backed by a Go channel. It
// mirrors the teacher's ChannelMailbox: a read lock guards every send so
// that Close (which takes the write lock) can never race a send onto an
// already-closed channel.
type channelMailbox[CallMsg, CastMsg, Reply any] struct {
	ch chan mailboxEnvelope[CallMsg, CastMsg, Reply]

	closed atomic.Bool

	mu sync.RWMutex

	closeOnce sync.Once

	actorCtx context.Context
}

// newChannelMailbox creates a new channel-based mailbox with the given
// capacity and actor context. If capacity is 0 or negative, it defaults to
// 1 so the mailbox is always buffered.
func newChannelMailbox[CallMsg, CastMsg, Reply any](
	actorCtx context.Context, capacity int,
) *channelMailbox[CallMsg, CastMsg, Reply] {

	if capacity <= 0 {
		capacity = 1
	}

	return &channelMailbox[CallMsg, CastMsg, Reply]{
		ch:       make(chan mailboxEnvelope[CallMsg, CastMsg, Reply], capacity),
		actorCtx: actorCtx,
	}
}

// Send blocks until the envelope is accepted, the caller's context is
// cancelled, or the actor's context is cancelled.
func (m *channelMailbox[CallMsg, CastMsg, Reply]) Send(ctx context.Context,
	env mailboxEnvelope[CallMsg, CastMsg, Reply],
) bool {

	if ctx.Err() != nil {
		return false
	}
	if m.actorCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		log.TraceS(ctx, "mailbox send succeeded",
			"msg_type", env.msg.MessageType(), "queue_len", len(m.ch))
		return true

	case <-ctx.Done():
		log.TraceS(ctx, "mailbox send failed, caller context cancelled",
			"msg_type", env.msg.MessageType())
		return false

	case <-m.actorCtx.Done():
		log.TraceS(ctx, "mailbox send failed, actor context cancelled",
			"msg_type", env.msg.MessageType())
		return false
	}
}

// TrySend attempts to send without blocking.
func (m *channelMailbox[CallMsg, CastMsg, Reply]) TrySend(
	env mailboxEnvelope[CallMsg, CastMsg, Reply],
) bool {

	if m.actorCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true
	default:
		return false
	}
}

// Receive returns an iterator over envelopes, stopping when ctx is
// cancelled or the mailbox is closed and drained.
func (m *channelMailbox[CallMsg, CastMsg, Reply]) Receive(
	ctx context.Context,
) iter.Seq[mailboxEnvelope[CallMsg, CastMsg, Reply]] {

	return func(yield func(mailboxEnvelope[CallMsg, CastMsg, Reply]) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// Close closes the mailbox. Safe to call multiple times.
func (m *channelMailbox[CallMsg, CastMsg, Reply]) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		log.DebugS(m.actorCtx, "mailbox closing",
			"remaining_messages", len(m.ch))

		m.closed.Store(true)
		close(m.ch)
	})
}

// IsClosed reports whether Close has run.
func (m *channelMailbox[CallMsg, CastMsg, Reply]) IsClosed() bool {
	return m.closed.Load()
}

// Len returns the number of envelopes currently queued.
func (m *channelMailbox[CallMsg, CastMsg, Reply]) Len() int {
	return len(m.ch)
}

// Drain iterates any remaining envelopes after Close. It is a no-op if the
// mailbox is not yet closed.
func (m *channelMailbox[CallMsg, CastMsg, Reply]) Drain() iter.Seq[mailboxEnvelope[CallMsg, CastMsg, Reply]] {
	return func(yield func(mailboxEnvelope[CallMsg, CastMsg, Reply]) bool) {
		if !m.IsClosed() {
			return
		}

		for {
			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}

			default:
				return
			}
		}
	}
}
