package numbergame

import "github.com/btcsuite/btclog"

// log is this package's subsystem logger (RULS, per SPEC_FULL.md §2.1).
var log = btclog.Disabled

// UseLogger lets callers plug in a concrete backend for this package's
// subsystem logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
