package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tcpjobq/lib/core"
	"tcpjobq/lib/dump"
)

func TestArgumentsFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "args.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0o644))

	cfg := &Config{ArgumentsFile: path}
	args, err := argumentsFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, args, 2)
	require.Equal(t, "one", args[0].Key)
	require.Equal(t, []byte("one"), args[0].Payload)
	require.Equal(t, "two", args[1].Key)
}

func TestConstArgsFromConfig_Empty(t *testing.T) {
	cfg := &Config{}
	constArgs, err := constArgsFromConfig(cfg)
	require.NoError(t, err)
	require.Nil(t, constArgs.Payload)
}

func TestConstArgsFromConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "const.bin")
	require.NoError(t, os.WriteFile(path, []byte("shared state"), 0o644))

	cfg := &Config{ConstArgsFile: path}
	constArgs, err := constArgsFromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, []byte("shared state"), constArgs.Payload)
}

func TestDispatchConfigFromConfig_StatusBarToggle(t *testing.T) {
	base := &Config{
		ListenNetwork:           defaultListenNetwork,
		ListenAddress:           defaultListenAddress,
		Authkey:                 "secret",
		MaxConnectionsPerClient: defaultMaxConnectionsPerClient,
		HandshakeTimeout:        defaultHandshakeTimeout,
		GetJobTimeout:           defaultGetJobTimeout,
		SettlingDelay:           defaultSettlingDelay,
		PollInterval:            defaultPollInterval,
		AggregateDump:           "off",
		LeftoversDump:           "auto",
		FailuresDump:            "/tmp/fail.dump",
	}

	withBar := *base
	withBar.StatusBar = true
	withBar.StatusInterval = defaultStatusInterval
	dcfg := dispatchConfigFromConfig(&withBar, core.ConstArgs{})
	require.NotNil(t, dcfg.StatusWriter)
	require.Equal(t, defaultStatusInterval, dcfg.StatusInterval)
	require.Equal(t, dump.Disabled(), dcfg.AggregateDump)
	require.Equal(t, dump.Auto(), dcfg.LeftoversDump)
	require.Equal(t, dump.Explicit("/tmp/fail.dump"), dcfg.FailuresDump)

	withoutBar := *base
	withoutBar.StatusBar = false
	dcfg2 := dispatchConfigFromConfig(&withoutBar, core.ConstArgs{})
	require.Nil(t, dcfg2.StatusWriter)
}
