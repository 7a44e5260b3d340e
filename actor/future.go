package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Future represents the result of an asynchronous computation. It allows
// consumers to wait for the result (Await), apply transformations upon
// completion (ThenApply), or register a callback to be executed when the
// result is available (OnComplete).
type Future[T any] interface {
	// Await blocks until the result is available or the context is
	// cancelled, then returns it.
	Await(ctx context.Context) fn.Result[T]

	// ThenApply registers a function to transform the result of a
	// future. The original future is not modified, a new instance of
	// the future is returned. If the passed context is cancelled while
	// waiting for the original future to complete, the new future will
	// complete with the context's error.
	ThenApply(ctx context.Context, fn func(T) T) Future[T]

	// OnComplete registers a function to be called when the result of
	// the future is ready. If the passed context is cancelled before
	// the future completes, the callback function will be invoked with
	// the context's error.
	OnComplete(ctx context.Context, fn func(fn.Result[T]))
}

// Promise is an interface that allows for the completion of an associated
// Future. It provides a way to set the result of an asynchronous
// operation. The producer of an asynchronous result uses a Promise to set
// the outcome, while consumers use the associated Future to retrieve it.
type Promise[T any] interface {
	// Future returns the Future interface associated with this Promise.
	// Consumers can use this to Await the result or register
	// callbacks.
	Future() Future[T]

	// Complete attempts to set the result of the future. It returns
	// true if this call successfully set the result (i.e., it was the
	// first to complete it), and false if the future had already been
	// completed.
	Complete(result fn.Result[T]) bool
}

// chanPromise is a channel-backed implementation of Promise/Future. A
// single completion value is stored exactly once (guarded by sync.Once),
// after which the done channel is closed so any number of
// Await/OnComplete callers can observe the same value.
type chanPromise[T any] struct {
	done     chan struct{}
	once     sync.Once
	mu       sync.RWMutex
	result   fn.Result[T]
	complete bool
}

// NewPromise creates a new, uncompleted Promise[T].
func NewPromise[T any]() Promise[T] {
	return &chanPromise[T]{
		done: make(chan struct{}),
	}
}

// Complete implements Promise.
func (p *chanPromise[T]) Complete(result fn.Result[T]) bool {
	completed := false
	p.once.Do(func() {
		p.mu.Lock()
		p.result = result
		p.complete = true
		p.mu.Unlock()

		close(p.done)
		completed = true
	})

	return completed
}

// Future implements Promise.
func (p *chanPromise[T]) Future() Future[T] {
	return p
}

// Await implements Future.
func (p *chanPromise[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		p.mu.RLock()
		defer p.mu.RUnlock()

		return p.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// ThenApply implements Future.
func (p *chanPromise[T]) ThenApply(ctx context.Context,
	transform func(T) T,
) Future[T] {

	next := NewPromise[T]()

	go func() {
		result := p.Await(ctx)

		val, err := result.Unpack()
		if err != nil {
			next.Complete(fn.Err[T](err))
			return
		}

		next.Complete(fn.Ok(transform(val)))
	}()

	return next.Future()
}

// OnComplete implements Future.
func (p *chanPromise[T]) OnComplete(ctx context.Context,
	callback func(fn.Result[T]),
) {

	go func() {
		callback(p.Await(ctx))
	}()
}
