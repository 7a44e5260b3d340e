package registry

import "github.com/btcsuite/btclog/v2"

// log is the package-wide logger, defaulting to disabled until the
// embedding application wires one up (mirrors actor.UseLogger).
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used by the registry package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
