package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tcpjobq/lib/dump"
)

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing authkey", Config{ArgumentsFile: "args.txt"}, true},
		{"missing arguments file", Config{Authkey: "k"}, true},
		{"valid", Config{Authkey: "k", ArgumentsFile: "args.txt"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParseDumpFlag(t *testing.T) {
	require.Equal(t, dump.Disabled(), parseDumpFlag("off"))
	require.Equal(t, dump.Disabled(), parseDumpFlag(""))
	require.Equal(t, dump.Auto(), parseDumpFlag("auto"))
	require.Equal(t, dump.Explicit("/tmp/foo.dump"), parseDumpFlag("/tmp/foo.dump"))
}

func TestReadLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "args.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\n\nbeta\n  gamma  \n"), 0o644))

	lines, err := readLines(path)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta", "gamma"}, lines)
}

func TestReadLines_MissingFile(t *testing.T) {
	_, err := readLines(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestNewRootCommand_DefaultsAndFlags(t *testing.T) {
	cmd := newRootCommand()
	require.Equal(t, commandName, cmd.Use)

	flag := cmd.Flags().Lookup("listen-address")
	require.NotNil(t, flag)
	require.Equal(t, defaultListenAddress, flag.DefValue)

	require.NotNil(t, cmd.Flags().Lookup("authkey"))
	require.NotNil(t, cmd.Flags().Lookup("arguments-file"))
	require.NotNil(t, cmd.Flags().Lookup("status-bar"))
}
