package remote

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// newCorrelationID generates a fresh callId/spawnId/monitorId/linkId,
// grounded on the teacher's direct google/uuid dependency (already used
// the same way for actor ids in actor/server.go's newID).
func newCorrelationID() string {
	return uuid.NewString()
}

// dereference unwraps a pointer obtained from a Registration's
// NewCallMsg/NewCastMsg/NewReply factory back to a plain value, so it
// can be passed through the untyped actor.Ref surface (whose Call/Cast
// type-assert against a value type, not a pointer).
func dereference(ptr any) any {
	return reflect.ValueOf(ptr).Elem().Interface()
}

// callTimeout converts a milliseconds duration (0 meaning "use the
// spec's 5000ms default") to a time.Duration.
func callTimeout(timeoutMs int) time.Duration {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	return time.Duration(timeoutMs) * time.Millisecond
}
