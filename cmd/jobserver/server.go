package main

import (
	"context"
	"os"
	"syscall"

	"tcpjobq/lib/aggregate"
	"tcpjobq/lib/core"
	"tcpjobq/lib/dispatch"
	"tcpjobq/lib/signalrouter"
	"tcpjobq/lib/slog"
)

func argumentsFromConfig(cfg *Config) ([]core.Argument, error) {
	lines, err := readLines(cfg.ArgumentsFile)
	if err != nil {
		return nil, err
	}
	args := make([]core.Argument, len(lines))
	for i, line := range lines {
		args[i] = core.Argument{Key: line, Payload: []byte(line)}
	}
	return args, nil
}

func constArgsFromConfig(cfg *Config) (core.ConstArgs, error) {
	if cfg.ConstArgsFile == "" {
		return core.ConstArgs{}, nil
	}
	payload, err := os.ReadFile(cfg.ConstArgsFile)
	if err != nil {
		return core.ConstArgs{}, err
	}
	return core.ConstArgs{Payload: payload}, nil
}

func dispatchConfigFromConfig(cfg *Config, constArgs core.ConstArgs) dispatch.Config {
	dcfg := dispatch.Config{
		ListenNetwork:               cfg.ListenNetwork,
		ListenAddress:               cfg.ListenAddress,
		Authkey:                     []byte(cfg.Authkey),
		HandshakeTimeout:            cfg.HandshakeTimeout,
		MaxConnectionsPerClient:     cfg.MaxConnectionsPerClient,
		AcceptErrorCooldownDuration: defaultAcceptErrorCooldownDuration,
		GetJobDefaultTimeout:        cfg.GetJobTimeout,
		SettlingDelay:               cfg.SettlingDelay,
		ConstArgs:                   constArgs,
		AggregateDump:               parseDumpFlag(cfg.AggregateDump),
		LeftoversDump:               parseDumpFlag(cfg.LeftoversDump),
		FailuresDump:                parseDumpFlag(cfg.FailuresDump),
		PollInterval:                cfg.PollInterval,
	}
	if cfg.StatusBar {
		dcfg.StatusWriter = os.Stdout
		dcfg.StatusInterval = cfg.StatusInterval
	}
	return dcfg
}

func runServer(cfg *Config) error {
	logger := slog.GetDefaultLogger()

	if err := cfg.Validate(); err != nil {
		logger.Error(&slog.LogRecord{Msg: "configuration is invalid", Error: err})
		return err
	}

	args, err := argumentsFromConfig(cfg)
	if err != nil {
		logger.Error(&slog.LogRecord{Msg: "failed to read arguments file", Error: err})
		return err
	}
	constArgs, err := constArgsFromConfig(cfg)
	if err != nil {
		logger.Error(&slog.LogRecord{Msg: "failed to read const args file", Error: err})
		return err
	}

	server := dispatch.NewServer(logger, dispatchConfigFromConfig(cfg, constArgs), aggregate.NewListAggregator())
	server.Seed(args)

	router := signalrouter.Install(context.Background(), signalrouter.Shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer router.Stop()

	logger.Info(&slog.LogRecord{Msg: "jobserver seeded and listening", Details: map[string]int{"arguments": len(args)}})

	if err := server.Run(router.Context()); err != nil {
		logger.Error(&slog.LogRecord{Msg: "server terminated abnormally", Error: err})
		return err
	}
	logger.Info(&slog.LogRecord{Msg: "server terminated normally"})
	return nil
}
