package cluster

import "errors"

// ErrClusterNotStarted is spec §7's ClusterNotStartedError: returned by
// Stop before Start has completed successfully. Send before Start
// returns ErrNodeNotConnected; Broadcast returns nothing.
var ErrClusterNotStarted = errors.New("cluster: node not started")

// ErrNodeNotConnected is returned by Send when no live connection to the
// target node id exists.
var ErrNodeNotConnected = errors.New("cluster: node not connected")
