package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseChannelsValid(t *testing.T) {
	specs, err := parseChannels([]string{"aabbcc:alice", "ddeeff:bob"})
	require.NoError(t, err)
	require.Equal(t, []channelSpec{
		{ChannelIdHex: "aabbcc", PlayerName: "alice"},
		{ChannelIdHex: "ddeeff", PlayerName: "bob"},
	}, specs)
}

func TestParseChannelsRejectsMissingSeparator(t *testing.T) {
	_, err := parseChannels([]string{"aabbcc"})
	require.Error(t, err)
}

func TestParseChannelsRejectsEmptyParts(t *testing.T) {
	_, err := parseChannels([]string{":alice"})
	require.Error(t, err)

	_, err = parseChannels([]string{"aabbcc:"})
	require.Error(t, err)
}

func TestNetworkParamsKnownNetworks(t *testing.T) {
	for _, n := range []string{"mainnet", "testnet", "regtest", ""} {
		_, err := networkParams(n)
		require.NoError(t, err, n)
	}
}

func TestNetworkParamsRejectsUnknown(t *testing.T) {
	_, err := networkParams("nonsense")
	require.Error(t, err)
}
