package main

import (
	"context"
	"syscall"

	"tcpjobq/lib/core"
	"tcpjobq/lib/dialer"
	"tcpjobq/lib/signalrouter"
	"tcpjobq/lib/slog"
	"tcpjobq/lib/workerpool"
)

// echoFunc is jobclient's default UserFunc: it returns the Argument's
// Payload unchanged, the Go translation of
// `original_source/simple_example/simple_example.py`'s
// `Example_Client.func`, which "simply return[s] the current
// argument." A real deployment links in its own UserFunc; jobclient
// exists to exercise lib/workerpool end to end without one.
func echoFunc(ctx context.Context, arg core.Argument, constArgs core.ConstArgs) (core.Result, error) {
	return core.Result{Payload: arg.Payload}, nil
}

func workerpoolConfigFromConfig(cfg *Config) workerpool.Config {
	return workerpool.Config{
		ServerAddress:        dialer.Address{Network: defaultServerNetwork, Address: cfg.ServerAddress},
		Authkey:              []byte(cfg.Authkey),
		ClientKeyPrefix:      cfg.ClientKeyPrefix,
		HandshakeTimeout:     cfg.HandshakeTimeout,
		DialTimeout:          cfg.DialTimeout,
		NumWorkers:           cfg.NumWorkers,
		GetJobTimeout:        cfg.GetJobTimeout,
		FailureReportTimeout: cfg.DialTimeout,
		Niceness:             cfg.Niceness,
		TracebackDir:         cfg.TracebackDir,
		Func:                 echoFunc,
	}
}

func runClient(cfg *Config) error {
	logger := slog.GetDefaultLogger()

	if err := cfg.Validate(); err != nil {
		logger.Error(&slog.LogRecord{Msg: "configuration is invalid", Error: err})
		return err
	}

	pool := workerpool.New(logger, workerpoolConfigFromConfig(cfg))

	router := signalrouter.Install(context.Background(), signalrouter.Shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer router.Stop()

	n := workerpool.ResolveWorkerCount(cfg.NumWorkers)
	logger.Info(&slog.LogRecord{Msg: "jobclient starting workers", Details: map[string]int{"workers": n}})

	if err := pool.Run(router.Context()); err != nil {
		logger.Error(&slog.LogRecord{Msg: "worker pool terminated abnormally", Error: err})
		return err
	}
	logger.Info(&slog.LogRecord{Msg: "worker pool terminated normally"})
	return nil
}
