package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
)

const (
	commandName             = "jobclient"
	defaultServerNetwork    = "tcp"
	defaultHandshakeTimeout = 5 * time.Second
	defaultDialTimeout      = 10 * time.Second
	defaultGetJobTimeout    = 30 * time.Second
)

// Config holds jobclient's command-line configuration, translated from
// the original's JobManager_Client constructor arguments (server,
// port, authkey, nproc, niceness).
type Config struct {
	ServerAddress    string
	Authkey          string
	ClientKeyPrefix  string
	NumWorkers       int
	HandshakeTimeout time.Duration
	DialTimeout      time.Duration
	GetJobTimeout    time.Duration
	Niceness         int
	TracebackDir     string
}

// Validate reports configuration errors that cobra's own flag parsing
// cannot catch.
func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return errors.New("jobclient: --server-address must be set")
	}
	if c.Authkey == "" {
		return errors.New("jobclient: --authkey must be set")
	}
	return nil
}

func newRootCommand() *cobra.Command {
	cfg := &Config{
		ClientKeyPrefix:  "jobclient",
		HandshakeTimeout: defaultHandshakeTimeout,
		DialTimeout:      defaultDialTimeout,
		GetJobTimeout:    defaultGetJobTimeout,
	}

	cmd := &cobra.Command{
		Use:   commandName,
		Short: "jobclient pulls Arguments from a jobserver and reports back Results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.ServerAddress, "server-address", "", "jobserver address as host:port")
	flags.StringVar(&cfg.Authkey, "authkey", "", "shared secret proving this client may connect")
	flags.StringVar(&cfg.ClientKeyPrefix, "client-key-prefix", cfg.ClientKeyPrefix, "prefix used to build each worker's unique ClientID")
	flags.IntVar(&cfg.NumWorkers, "nproc", 0, "number of worker goroutines; <=0 means max(1, num CPUs + nproc)")
	flags.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "timeout for the authentication handshake")
	flags.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "timeout for establishing the connection to jobserver")
	flags.DurationVar(&cfg.GetJobTimeout, "get-job-timeout", cfg.GetJobTimeout, "long-poll timeout for each GetJob call")
	flags.IntVar(&cfg.Niceness, "niceness", 0, "process niceness adjustment (0 disables it)")
	flags.StringVar(&cfg.TracebackDir, "traceback-dir", "", "directory to write per-failure .trb diagnostic files to (empty disables it)")

	return cmd
}
