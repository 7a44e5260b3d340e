package remote

import "github.com/btcsuite/btclog/v2"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger, mirroring actor/log.go,
// supervisor/log.go, and cluster/log.go.
func UseLogger(logger btclog.Logger) {
	log = logger
}
