// Package main is the channeld daemon: it wires one channelmanager.Manager
// per tracked channel into the concrete wallet-RPC, mover, broadcast and
// chainwatcher collaborators of SPEC_FULL.md §3, and exposes the public
// JSON surface of spec.md §6 over HTTP.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/btcsuite/btcd/chaincfg"
)

const (
	defaultConfigFilename = "channeld.conf"
	defaultHTTPListen     = "localhost:8477"
	defaultPollInterval   = 5 * time.Second
	defaultNetwork        = "regtest"
	defaultLogLevel       = "info"
)

// config mirrors the teacher's jessevdk/go-flags config struct: a flat set
// of long/short/description-tagged fields, loaded by loadConfig with the
// same defaults-then-file-then-flags precedence.
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`

	RPCHost string `long:"rpchost" description:"Xaya Core wallet RPC host:port"`
	RPCUser string `long:"rpcuser" description:"Xaya Core wallet RPC username"`
	RPCPass string `long:"rpcpass" description:"Xaya Core wallet RPC password"`

	Network string `long:"network" description:"Xaya network (mainnet, testnet, regtest)"`

	GameId string `long:"gameid" description:"Xaya game ID this daemon's moves are namespaced under"`

	// Channels is a list of "channelIdHex:playerName" pairs, one per
	// channel this daemon tracks and plays in.
	Channels []string `long:"channel" description:"channelId:playerName pair to track (may be given multiple times)"`

	HTTPListen   string        `long:"httplisten" description:"host:port the JSON API listens on"`
	PollInterval time.Duration `long:"pollinterval" description:"how often to poll the wallet for on-chain channel state"`

	DebugLevel string `long:"debuglevel" description:"Logging level, or SUBSYS=LEVEL,SUBSYS=LEVEL overrides"`

	MetricsListen string `long:"metricslisten" description:"host:port the Prometheus /metrics endpoint listens on (empty disables it)"`
}

// defaultConfig returns a config with every field defaulted, mirroring the
// teacher's loadConfig default construction.
func defaultConfig() config {
	return config{
		Network:      defaultNetwork,
		HTTPListen:   defaultHTTPListen,
		PollInterval: defaultPollInterval,
		DebugLevel:   defaultLogLevel,
	}
}

// loadConfig applies defaults, then an optional config file, then
// command-line flags (each layer overriding the last), exactly as the
// teacher's own loadConfig does. A flags.ErrHelp is returned unwrapped so
// main can exit 0 on -h/--help instead of treating it as a real error.
func loadConfig() (*config, error) {
	preCfg := defaultConfig()

	// First pass: only to discover -C/--configfile, ignoring unknown
	// flags so a second, full pass can report them properly.
	preParser := flags.NewParser(&preCfg, flags.Default|flags.IgnoreUnknown)
	if _, err := preParser.Parse(); err != nil {
		return nil, err
	}

	if preCfg.ConfigFile == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			preCfg.ConfigFile = filepath.Join(dir, "channeld", defaultConfigFilename)
		}
	}

	cfg := preCfg
	if _, err := os.Stat(cfg.ConfigFile); err == nil {
		fileParser := flags.NewParser(&cfg, flags.Default)
		if err := flags.NewIniParser(fileParser).ParseFile(cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %v", cfg.ConfigFile, err)
		}
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	if cfg.RPCHost == "" {
		return nil, fmt.Errorf("--rpchost is required")
	}
	if cfg.GameId == "" {
		return nil, fmt.Errorf("--gameid is required")
	}
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("at least one --channel is required")
	}

	return &cfg, nil
}

// channelSpec is one parsed entry of config.Channels.
type channelSpec struct {
	ChannelIdHex string
	PlayerName   string
}

// parseChannels splits each "id:player" entry of cfg.Channels.
func parseChannels(entries []string) ([]channelSpec, error) {
	specs := make([]channelSpec, 0, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(e, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --channel entry %q, want channelId:playerName", e)
		}
		specs = append(specs, channelSpec{ChannelIdHex: parts[0], PlayerName: parts[1]})
	}
	return specs, nil
}

// networkParams maps the config's --network string to the chaincfg.Params
// the signer package needs for address encoding, mirroring the teacher's
// own mainnet/testnet/regtest chain selection in chainregistry.go.
func networkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest", "":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}
