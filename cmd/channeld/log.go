package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btclog"

	"github.com/xaya/channeld/broadcast"
	"github.com/xaya/channeld/chainwatcher"
	"github.com/xaya/channeld/channelmanager"
	"github.com/xaya/channeld/mover"
	"github.com/xaya/channeld/rules/numbergame"
	"github.com/xaya/channeld/walletrpc"
)

// backendLog is the single btclog backend every subsystem logger writes
// through, following the teacher's own backendLog/subsystemLoggers split.
var backendLog = btclog.NewBackend(os.Stdout)

// subsystemLoggers maps each subsystem tag of SPEC_FULL.md §2.1 to the
// UseLogger setter of the package it belongs to.
var subsystemLoggers = map[string]func(btclog.Logger){
	"CMGR": channelmanager.UseLogger,
	"RULS": numbergame.UseLogger,
	"WRPC": walletrpc.UseLogger,
	"MVSN": mover.UseLogger,
	"BCST": broadcast.UseLogger,
	"CWAT": chainwatcher.UseLogger,
}

// chndLog is cmd/channeld's own subsystem logger (CHND).
var chndLog = backendLog.Logger("CHND")

// signer and stateproof carry no logger of their own (SPEC_FULL.md §2.1
// lists PROOF/SIGN as reserved tags, but neither package logs anything:
// stateproof.Verify and the signer Verify methods report failure purely through their
// return value, which is all their callers need).

// initLogging creates one btclog.Logger per subsystem at the default
// level, then applies levelSpec on top (either a single level for every
// subsystem, or SUBSYS=LEVEL,SUBSYS=LEVEL overrides), mirroring the
// teacher's own --debuglevel handling.
func initLogging(levelSpec string) error {
	loggers := make(map[string]btclog.Logger, len(subsystemLoggers))
	for tag, use := range subsystemLoggers {
		logger := backendLog.Logger(tag)
		loggers[tag] = logger
		use(logger)
	}

	if levelSpec == "" {
		return nil
	}

	if !strings.Contains(levelSpec, "=") {
		level, ok := btclog.LevelFromString(levelSpec)
		if !ok {
			return fmt.Errorf("invalid log level %q", levelSpec)
		}
		for _, logger := range loggers {
			logger.SetLevel(level)
		}
		chndLog.SetLevel(level)
		return nil
	}

	for _, entry := range strings.Split(levelSpec, ",") {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid debuglevel entry %q", entry)
		}
		tag, levelStr := parts[0], parts[1]
		level, ok := btclog.LevelFromString(levelStr)
		if !ok {
			return fmt.Errorf("invalid log level %q for subsystem %q", levelStr, tag)
		}
		if tag == "CHND" {
			chndLog.SetLevel(level)
			continue
		}
		logger, ok := loggers[tag]
		if !ok {
			return fmt.Errorf("unknown logging subsystem %q", tag)
		}
		logger.SetLevel(level)
	}
	return nil
}
