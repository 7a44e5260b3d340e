package supervisor

import (
	"context"
	"fmt"

	"github.com/orbitrt/orbit/actor"
)

func call(ctx context.Context, sup actor.Ref, req Request) (Response, error) {
	reply, err := sup.Call(ctx, req, actor.CallOptions{})
	if err != nil {
		return Response{}, err
	}
	resp, ok := reply.(Response)
	if !ok {
		return Response{}, fmt.Errorf("supervisor: unexpected reply type %T", reply)
	}
	return resp, nil
}

// StartChild adds a new child. For a SimpleOneForOne supervisor, spec is
// ignored and args parameterizes a fresh instance of the template
// ChildSpec; for any other strategy, spec describes the new static child
// and args is passed through unchanged to its Start func.
func StartChild(ctx context.Context, sup actor.Ref, spec ChildSpec, args any) (actor.Ref, error) {
	resp, err := call(ctx, sup, Request{kind: reqStartChild, spec: spec, args: args})
	if err != nil {
		return nil, err
	}
	return resp.Ref, resp.Err
}

// TerminateChild stops and removes the child with the given id. It does
// not trigger a restart (spec §4.5).
func TerminateChild(ctx context.Context, sup actor.Ref, id string) error {
	resp, err := call(ctx, sup, Request{kind: reqTerminateChild, id: id})
	if err != nil {
		return err
	}
	return resp.Err
}

// RestartChild manually stops and restarts the child with the given id,
// bypassing the restart-intensity limit.
func RestartChild(ctx context.Context, sup actor.Ref, id string) (actor.Ref, error) {
	resp, err := call(ctx, sup, Request{kind: reqRestartChild, id: id})
	if err != nil {
		return nil, err
	}
	return resp.Ref, resp.Err
}

// GetChild returns the current Ref for a supervised child id.
func GetChild(ctx context.Context, sup actor.Ref, id string) (actor.Ref, error) {
	resp, err := call(ctx, sup, Request{kind: reqGetChild, id: id})
	if err != nil {
		return nil, err
	}
	return resp.Ref, resp.Err
}

// GetChildren returns a snapshot of every currently supervised child,
// keyed by each child's actor id (not its ChildSpec.ID).
func GetChildren(ctx context.Context, sup actor.Ref) (map[string]actor.Ref, error) {
	resp, err := call(ctx, sup, Request{kind: reqGetChildren})
	if err != nil {
		return nil, err
	}
	return resp.Children, resp.Err
}

// GetStats returns a point-in-time snapshot of sup's strategy, child
// count, and restart count (observer's per-supervisor reporting source,
// spec §4.12).
func GetStats(ctx context.Context, sup actor.Ref) (Stats, error) {
	resp, err := call(ctx, sup, Request{kind: reqGetStats})
	if err != nil {
		return Stats{}, err
	}
	return resp.Stats, resp.Err
}
