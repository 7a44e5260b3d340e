package remote

import "fmt"

// errorType tags on call_error/spawn_error/monitor_ack/link_ack, spec §7's
// "categorized on the originating side and rebuilt on the caller side
// with the same category".
const (
	errTypeServerNotRunning = "server_not_running"
	errTypeCallTimeout      = "call_timeout"
	errTypeUnknown          = "unknown_error"

	errTypeBehaviorNotFound   = "behavior_not_found"
	errTypeInitFailed         = "init_failed"
	errTypeInitTimeout        = "init_timeout"
	errTypeRegistrationFailed = "registration_failed"
)

// NodeNotReachableError is raised by a remote Call/Cast/Spawn/Monitor/Link
// when the target node is not currently connected, or becomes
// disconnected while a call is pending.
type NodeNotReachableError struct {
	NodeID string
}

func (e *NodeNotReachableError) Error() string {
	return fmt.Sprintf("remote: node %q not reachable", e.NodeID)
}

// RemoteCallTimeoutError is raised when a remote call's reply does not
// arrive within its timeout.
type RemoteCallTimeoutError struct {
	TargetID string
}

func (e *RemoteCallTimeoutError) Error() string {
	return fmt.Sprintf("remote: call to %q timed out", e.TargetID)
}

// RemoteServerNotRunningError is the caller-side reconstruction of a
// call_error{errorType: server_not_running} from the target node.
type RemoteServerNotRunningError struct {
	TargetID string
}

func (e *RemoteServerNotRunningError) Error() string {
	return fmt.Sprintf("remote: server %q not running", e.TargetID)
}

// UnknownRemoteError reconstructs a call_error/spawn_error/ack whose
// errorType this side does not recognize, or one explicitly tagged
// unknown_error. The original message text is preserved (spec §7: "the
// message string is preserved, the stack is not").
type UnknownRemoteError struct {
	Message string
}

func (e *UnknownRemoteError) Error() string { return e.Message }

// BehaviorNotFoundError is the caller-side reconstruction of a
// spawn_error{errorType: behavior_not_found}.
type BehaviorNotFoundError struct {
	BehaviorName string
}

func (e *BehaviorNotFoundError) Error() string {
	return fmt.Sprintf("remote: behavior %q not registered on target node", e.BehaviorName)
}

// RemoteSpawnTimeoutError is raised when a spawn_request's reply does not
// arrive within its timeout.
type RemoteSpawnTimeoutError struct {
	BehaviorName string
}

func (e *RemoteSpawnTimeoutError) Error() string {
	return fmt.Sprintf("remote: spawn of %q timed out", e.BehaviorName)
}

// RemoteSpawnInitError wraps a spawn_error{errorType: init_failed}.
type RemoteSpawnInitError struct {
	BehaviorName, Message string
}

func (e *RemoteSpawnInitError) Error() string {
	return fmt.Sprintf("remote: spawn of %q failed to init: %s", e.BehaviorName, e.Message)
}

// RemoteSpawnInitTimeoutError wraps a spawn_error{errorType: init_timeout}.
type RemoteSpawnInitTimeoutError struct {
	BehaviorName string
}

func (e *RemoteSpawnInitTimeoutError) Error() string {
	return fmt.Sprintf("remote: spawn of %q init timed out on target node", e.BehaviorName)
}

// RemoteSpawnRegistrationError wraps a spawn_error{errorType:
// registration_failed}. The spawned actor was already stopped by the
// target node before this error was sent (spec §4.9).
type RemoteSpawnRegistrationError struct {
	BehaviorName, Message string
}

func (e *RemoteSpawnRegistrationError) Error() string {
	return fmt.Sprintf("remote: spawn of %q failed registration: %s", e.BehaviorName, e.Message)
}

// RemoteMonitorTimeoutError is raised when a monitor_request's ack does
// not arrive within its setup timeout.
type RemoteMonitorTimeoutError struct {
	TargetID string
}

func (e *RemoteMonitorTimeoutError) Error() string {
	return fmt.Sprintf("remote: monitor setup for %q timed out", e.TargetID)
}

// RemoteLinkTimeoutError is raised when a link_request's ack does not
// arrive within its setup timeout.
type RemoteLinkTimeoutError struct {
	PeerID string
}

func (e *RemoteLinkTimeoutError) Error() string {
	return fmt.Sprintf("remote: link setup with %q timed out", e.PeerID)
}

// MessageSerializationError wraps a JSON marshal/unmarshal failure
// encountered while encoding a call/cast payload or decoding one
// received over the wire.
type MessageSerializationError struct {
	Cause error
}

func (e *MessageSerializationError) Error() string {
	return fmt.Sprintf("remote: message serialization failed: %v", e.Cause)
}

func (e *MessageSerializationError) Unwrap() error { return e.Cause }

// errorTypeFor classifies a local error for transmission as a
// call_error's errorType tag.
func errorTypeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case isServerNotRunning(err):
		return errTypeServerNotRunning
	case isCallTimeout(err):
		return errTypeCallTimeout
	default:
		return errTypeUnknown
	}
}

// rebuildCallError reconstructs a caller-side error from a call_error's
// errorType/message, per spec §4.8's "caller maps errorType back to
// ServerNotRunningError / CallTimeoutError / UnknownError".
func rebuildCallError(targetID, errorType, message string) error {
	switch errorType {
	case errTypeServerNotRunning:
		return &RemoteServerNotRunningError{TargetID: targetID}
	case errTypeCallTimeout:
		return &RemoteCallTimeoutError{TargetID: targetID}
	default:
		return &UnknownRemoteError{Message: message}
	}
}

func rebuildSpawnError(behaviorName, errorType, message string) error {
	switch errorType {
	case errTypeBehaviorNotFound:
		return &BehaviorNotFoundError{BehaviorName: behaviorName}
	case errTypeInitFailed:
		return &RemoteSpawnInitError{BehaviorName: behaviorName, Message: message}
	case errTypeInitTimeout:
		return &RemoteSpawnInitTimeoutError{BehaviorName: behaviorName}
	case errTypeRegistrationFailed:
		return &RemoteSpawnRegistrationError{BehaviorName: behaviorName, Message: message}
	default:
		return &UnknownRemoteError{Message: message}
	}
}
