package channelmanager

import "github.com/btcsuite/btclog"

// log is this package's subsystem logger, following the teacher's
// per-package btclog.Logger convention (compare brarLog in
// breacharbiter.go). It defaults to disabled and is wired to a real
// backend by cmd/channeld's UseLogger calls at startup.
var log = btclog.Disabled

// UseLogger lets callers (typically cmd/channeld's log.go) plug in a
// concrete backend for this package's subsystem logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
