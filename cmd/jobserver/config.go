package main

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tcpjobq/lib/dump"
)

const (
	commandName                        = "jobserver"
	defaultListenNetwork               = "tcp"
	defaultListenAddress               = "0.0.0.0:42524"
	defaultMaxConnectionsPerClient     = int64(0)
	defaultHandshakeTimeout            = 5 * time.Second
	defaultAcceptErrorCooldownDuration = time.Second
	defaultGetJobTimeout               = 30 * time.Second
	defaultSettlingDelay               = 2 * time.Second
	defaultPollInterval                = time.Second
	defaultStatusInterval              = time.Second
)

// Config holds jobserver's command-line configuration, translated from
// the original's JobManager_Server constructor arguments (authkey,
// port, verbose, msg_timeout) plus the fname_for_*_dump shutdown
// options, onto cobra/pflag-bound fields instead of positional
// constructor arguments.
type Config struct {
	ListenNetwork           string
	ListenAddress           string
	Authkey                 string
	MaxConnectionsPerClient int64
	HandshakeTimeout        time.Duration
	GetJobTimeout           time.Duration
	SettlingDelay           time.Duration
	PollInterval            time.Duration

	ArgumentsFile string
	ConstArgsFile string

	AggregateDump string
	LeftoversDump string
	FailuresDump  string

	StatusBar      bool
	StatusInterval time.Duration
}

// Validate reports configuration errors that cobra's own flag parsing
// cannot catch.
func (c *Config) Validate() error {
	if c.Authkey == "" {
		return errors.New("jobserver: --authkey must be set")
	}
	if c.ArgumentsFile == "" {
		return errors.New("jobserver: --arguments-file must be set")
	}
	return nil
}

// parseDumpFlag translates a --*-dump flag value into a dump.Policy:
// "off" disables it, "auto" timestamps the filename, anything else is
// used as an explicit path. Mirrors the original's fname_for_*_dump
// parameters, which accepted None, 'auto', or an explicit filename.
func parseDumpFlag(value string) dump.Policy {
	switch value {
	case "off", "":
		return dump.Disabled()
	case "auto":
		return dump.Auto()
	default:
		return dump.Explicit(value)
	}
}

// readLines reads newline-delimited argument payloads from path,
// trimming surrounding whitespace and skipping empty lines. The caller
// turns each returned line into one Argument's Key and Payload.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func newRootCommand() *cobra.Command {
	cfg := &Config{
		ListenNetwork:           defaultListenNetwork,
		ListenAddress:           defaultListenAddress,
		MaxConnectionsPerClient: defaultMaxConnectionsPerClient,
		HandshakeTimeout:        defaultHandshakeTimeout,
		GetJobTimeout:           defaultGetJobTimeout,
		SettlingDelay:           defaultSettlingDelay,
		PollInterval:            defaultPollInterval,
		StatusBar:               true,
		StatusInterval:          defaultStatusInterval,
	}

	cmd := &cobra.Command{
		Use:   commandName,
		Short: "jobserver dispatches Arguments to workers and aggregates their Results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.ListenAddress, "listen-address", cfg.ListenAddress, "listen address as host:port")
	flags.StringVar(&cfg.Authkey, "authkey", "", "shared secret clients must prove knowledge of to authenticate")
	flags.Int64Var(&cfg.MaxConnectionsPerClient, "max-conns-per-client", cfg.MaxConnectionsPerClient, "connection limit per client; if not positive, no limit")
	flags.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "timeout for the authentication handshake")
	flags.DurationVar(&cfg.GetJobTimeout, "get-job-timeout", cfg.GetJobTimeout, "default long-poll timeout for a client's GetJob call")
	flags.DurationVar(&cfg.SettlingDelay, "settling-delay", cfg.SettlingDelay, "delay after the last Argument resolves before shutting down")
	flags.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "how often the drain loop checks whether every Argument has resolved")
	flags.StringVar(&cfg.ArgumentsFile, "arguments-file", "", "path to a newline-delimited file of Argument payloads to seed the job queue with")
	flags.StringVar(&cfg.ConstArgsFile, "const-args-file", "", "path to a file whose contents are published to clients as ConstArgs")
	flags.StringVar(&cfg.AggregateDump, "aggregate-dump", "auto", "'off', 'auto', or an explicit path for the final aggregate dump")
	flags.StringVar(&cfg.LeftoversDump, "leftovers-dump", "auto", "'off', 'auto', or an explicit path for the leftover-arguments dump")
	flags.StringVar(&cfg.FailuresDump, "failures-dump", "auto", "'off', 'auto', or an explicit path for the failures dump")
	flags.BoolVar(&cfg.StatusBar, "status-bar", cfg.StatusBar, "print a live progress bar to stdout")
	flags.DurationVar(&cfg.StatusInterval, "status-interval", cfg.StatusInterval, "status bar refresh interval")

	return cmd
}
