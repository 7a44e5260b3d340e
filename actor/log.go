package actor

import "github.com/btcsuite/btclog/v2"

// log is the package-wide logger for the actor runtime. It defaults to a
// disabled logger so the package is silent until the embedding application
// wires one up.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used by the actor runtime. It
// should be called once during application start-up, before any System is
// created, so that every actor's lifecycle is observable from the first
// message.
func UseLogger(logger btclog.Logger) {
	log = logger
}
