// Package actorutil provides convenience wrappers for fanning requests
// out across multiple actor.Ref / actor.TypedRef handles: parallel call,
// first-successful-response, and broadcast helpers, plus a round-robin
// Pool. Generalized from the teacher's internal/actorutil
// (AskAwait/ParallelAsk/FirstSuccess) to the untyped actor.Ref surface.
package actorutil

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/orbitrt/orbit/actor"
)

// CallTyped sends msg to ref and asserts the reply to Reply, for callers
// holding only an untyped actor.Ref (e.g. one resolved from a Registry
// lookup or a remote call).
func CallTyped[Reply any](ctx context.Context, ref actor.Ref, msg any,
	opts actor.CallOptions,
) (Reply, error) {

	var zero Reply

	reply, err := ref.Call(ctx, msg, opts)
	if err != nil {
		return zero, err
	}

	typed, ok := reply.(Reply)
	if !ok {
		return zero, fmt.Errorf(
			"actorutil: unexpected reply type: got %T, want %T", reply, zero)
	}
	return typed, nil
}

// CastAll sends msg to every ref, fire-and-forget.
func CastAll(ctx context.Context, refs []actor.Ref, msg any) {
	for _, ref := range refs {
		ref.Cast(ctx, msg)
	}
}

// ParallelCall sends msgs[i] to refs[i] concurrently and collects every
// result in input order. refs and msgs must have the same length.
func ParallelCall[Reply any](ctx context.Context, refs []actor.Ref, msgs []any,
	opts actor.CallOptions,
) []fn.Result[Reply] {

	if len(refs) != len(msgs) {
		panic("actorutil: refs and msgs must have the same length")
	}

	results := make([]fn.Result[Reply], len(refs))
	done := make(chan struct{}, len(refs))

	for i := range refs {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			results[i] = callOne[Reply](ctx, refs[i], msgs[i], opts)
		}(i)
	}
	for range refs {
		<-done
	}

	return results
}

// ParallelCallSame sends the same msg to every ref concurrently and
// collects every result in input order.
func ParallelCallSame[Reply any](ctx context.Context, refs []actor.Ref, msg any,
	opts actor.CallOptions,
) []fn.Result[Reply] {

	msgs := make([]any, len(refs))
	for i := range msgs {
		msgs[i] = msg
	}
	return ParallelCall[Reply](ctx, refs, msgs, opts)
}

func callOne[Reply any](ctx context.Context, ref actor.Ref, msg any,
	opts actor.CallOptions,
) fn.Result[Reply] {

	reply, err := CallTyped[Reply](ctx, ref, msg, opts)
	if err != nil {
		return fn.Err[Reply](err)
	}
	return fn.Ok(reply)
}

// FirstSuccess sends the same msg to every ref concurrently and returns
// the first successful reply. If every ref errors, the last observed
// error is returned.
func FirstSuccess[Reply any](ctx context.Context, refs []actor.Ref, msg any,
	opts actor.CallOptions,
) (Reply, error) {

	var zero Reply
	if len(refs) == 0 {
		return zero, fmt.Errorf("actorutil: no refs provided")
	}

	type indexed struct {
		result fn.Result[Reply]
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan indexed, len(refs))
	for _, ref := range refs {
		go func(ref actor.Ref) {
			res := callOne[Reply](ctx, ref, msg, opts)
			select {
			case resultCh <- indexed{result: res}:
			case <-ctx.Done():
			}
		}(ref)
	}

	var lastErr error
	for range refs {
		select {
		case res := <-resultCh:
			val, err := res.result.Unpack()
			if err == nil {
				cancel()
				return val, nil
			}
			lastErr = err

		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}

// MapResponses transforms a slice of results using mapFn. Error results
// pass through unchanged.
func MapResponses[R any, T any](results []fn.Result[R], mapFn func(R) T) []fn.Result[T] {
	mapped := make([]fn.Result[T], len(results))
	for i, r := range results {
		val, err := r.Unpack()
		if err != nil {
			mapped[i] = fn.Err[T](err)
		} else {
			mapped[i] = fn.Ok(mapFn(val))
		}
	}
	return mapped
}

// CollectSuccesses filters out errored results, keeping only successful
// values.
func CollectSuccesses[R any](results []fn.Result[R]) []R {
	var successes []R
	for _, r := range results {
		if val, err := r.Unpack(); err == nil {
			successes = append(successes, val)
		}
	}
	return successes
}

// AllSucceeded reports whether every result in results succeeded.
func AllSucceeded[R any](results []fn.Result[R]) bool {
	for _, r := range results {
		if _, err := r.Unpack(); err != nil {
			return false
		}
	}
	return true
}

// FirstError returns the first error among results, or nil if every
// result succeeded.
func FirstError[R any](results []fn.Result[R]) error {
	for _, r := range results {
		if _, err := r.Unpack(); err != nil {
			return err
		}
	}
	return nil
}
