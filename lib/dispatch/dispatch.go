// Package dispatch implements the Server Dispatcher: it seeds the job
// queue, serves GetJob/PutResult/PutFailure/GetConstArgs over
// lib/transport, folds results into an lib/aggregate.Aggregator, and on
// shutdown persists the aggregate, any leftover (unresolved) arguments,
// and any reported failures via lib/dump. The control flow — seed, run
// until every argument is resolved or a signal arrives, settle, then
// shut down — is translated from `original_source/jobmanager.py`'s
// `JobManager_Server.start`/`_shoutdown`.
package dispatch

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"tcpjobq/lib/aggregate"
	"tcpjobq/lib/core"
	"tcpjobq/lib/dump"
	"tcpjobq/lib/ledger"
	"tcpjobq/lib/limiter"
	"tcpjobq/lib/periodictask"
	"tcpjobq/lib/queue"
	"tcpjobq/lib/slog"
	"tcpjobq/lib/statusbar"
	"tcpjobq/lib/transport"
	"tcpjobq/lib/wireproto"
)

// ErrSeedingInvariantViolated is returned by Run if the ledger's
// NumJobs differs from its Len when Run starts, i.e. some argument was
// discharged (or otherwise removed) before the server began serving.
var ErrSeedingInvariantViolated = errors.New("dispatch: ledger.NumJobs() != ledger.Len() at start")

// Config configures a Server.
type Config struct {
	ListenNetwork               string
	ListenAddress               string
	Authkey                     []byte
	HandshakeTimeout            time.Duration
	MaxConnectionsPerClient     int64 // 0 means unbounded
	AcceptErrorCooldownDuration time.Duration

	// GetJobDefaultTimeout is used for a GetJob request whose Timeout
	// field is zero.
	GetJobDefaultTimeout time.Duration

	// SettlingDelay is how long Run waits, after every argument has
	// been resolved, before beginning shutdown. Mirrors the original's
	// wait_before_stop. Skipped when Run exits because ctx was
	// cancelled rather than because work ran out.
	SettlingDelay time.Duration

	ConstArgs core.ConstArgs

	AggregateDump dump.Policy
	LeftoversDump dump.Policy
	FailuresDump  dump.Policy

	// StatusWriter, if non-nil, enables a lib/statusbar progress bar
	// rendered at StatusInterval for the lifetime of Run, and stopped
	// before the shutdown dumps are written.
	StatusWriter   io.Writer
	StatusInterval time.Duration

	// PollInterval governs how often Run checks the termination gate
	// and logs progress. Mirrors the original's result_q.get(timeout=1).
	PollInterval time.Duration
}

// Server is the C5 Server Dispatcher.
type Server struct {
	cfg    Config
	logger slog.Logger

	ledger     *ledger.Ledger
	jobQ       *queue.Queue[core.Argument]
	aggregator aggregate.Aggregator

	failuresMu sync.Mutex
	failures   []core.FailureRecord

	listener net.Listener
	ready    chan struct{}
}

// NewServer returns a Server ready to be Seeded and Run.
func NewServer(logger slog.Logger, cfg Config, aggregator aggregate.Aggregator) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		ledger:     ledger.New(),
		jobQ:       queue.New[core.Argument](),
		aggregator: aggregator,
		ready:      make(chan struct{}),
	}
}

// Ready is closed once the listener is bound, letting a caller (a test,
// typically) discover Addr before Run finishes running.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listener's bound address. Only valid to call after
// Ready is closed.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Seed inserts args into the job queue and the ledger. It must be
// called exactly once, before Run.
func (s *Server) Seed(args []core.Argument) {
	for _, arg := range args {
		s.ledger.Insert(arg)
		_ = s.jobQ.Put(arg)
	}
}

func (s *Server) failureCount() int {
	s.failuresMu.Lock()
	defer s.failuresMu.Unlock()
	return len(s.failures)
}

func (s *Server) recordFailure(fr core.FailureRecord) {
	s.failuresMu.Lock()
	defer s.failuresMu.Unlock()
	s.failures = append(s.failures, fr)
}

func (s *Server) snapshotFailures() []core.FailureRecord {
	s.failuresMu.Lock()
	defer s.failuresMu.Unlock()
	out := make([]core.FailureRecord, len(s.failures))
	copy(out, s.failures)
	return out
}

// Run seeds having already happened via Seed, listens for clients, and
// blocks until every argument has either produced a result or been
// reported as a failure, or ctx is cancelled (e.g. by a
// lib/signalrouter Shutdown policy). It then runs the shutdown
// sequence unconditionally before returning.
func (s *Server) Run(ctx context.Context) error {
	if s.ledger.NumJobs() != int64(s.ledger.Len()) {
		return ErrSeedingInvariantViolated
	}

	listener, err := net.Listen(s.cfg.ListenNetwork, s.cfg.ListenAddress)
	if err != nil {
		return err
	}
	s.listener = listener
	close(s.ready)

	reserver := s.makeReserver()
	handler := s.buildHandlerChain(reserver)

	transportServer := &transport.Server{
		Logger:                      s.logger,
		Handler:                     handler,
		Listener:                    listener,
		AcceptErrorCooldownDuration: s.cfg.AcceptErrorCooldownDuration,
	}

	transportCtx, cancelTransport := context.WithCancel(context.Background())
	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- transportServer.Serve(transportCtx)
	}()

	var statusTask *periodictask.Task
	if s.cfg.StatusWriter != nil {
		reporter := statusbar.New(s.cfg.StatusWriter, s.cfg.StatusInterval, func() statusbar.Stats {
			return statusbar.Stats{Count: s.ledger.NumResults(), MaxCount: s.ledger.NumJobs()}
		})
		statusTask = reporter.Task()
		statusTask.Run(ctx)
	}

	exitedNormally := s.waitForCompletion(ctx)

	if exitedNormally && s.cfg.SettlingDelay > 0 {
		time.Sleep(s.cfg.SettlingDelay)
	}

	if statusTask != nil {
		statusTask.Stop()
	}

	cancelTransport()
	<-serveErrCh

	return s.shutdown()
}

// waitForCompletion blocks until every seeded argument has been
// resolved (a success or a reported failure) or ctx is cancelled.
// It returns true if it exited because work ran out (the "normal"
// path, eligible for the settling delay) and false if ctx was
// cancelled first.
func (s *Server) waitForCompletion(ctx context.Context) bool {
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if s.ledger.Len()-s.failureCount() <= 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (s *Server) shutdown() error {
	payload := s.aggregator.Finalize()
	if err := dump.WriteAggregate(s.cfg.AggregateDump, payload); err != nil {
		s.logger.Error(&slog.LogRecord{Msg: "dispatch: failed to write aggregate dump", Error: err})
	}
	leftovers := s.ledger.Outstanding()
	if err := dump.WriteLeftovers(s.cfg.LeftoversDump, leftovers); err != nil {
		s.logger.Error(&slog.LogRecord{Msg: "dispatch: failed to write leftovers dump", Error: err})
	}
	fails := s.snapshotFailures()
	if err := dump.WriteFailures(s.cfg.FailuresDump, fails); err != nil {
		s.logger.Error(&slog.LogRecord{Msg: "dispatch: failed to write failures dump", Error: err})
	}
	s.logger.Info(&slog.LogRecord{Msg: "dispatch: server shut down", Details: map[string]int{
		"leftover_arguments": len(leftovers),
		"failures":           len(fails),
	}})
	return nil
}

func (s *Server) makeReserver() transport.ClientReserver {
	if s.cfg.MaxConnectionsPerClient > 0 {
		return limiter.NewUniformlyBoundedClientReserver(s.cfg.MaxConnectionsPerClient)
	}
	return limiter.UnboundedClientReserver{}
}

func (s *Server) buildHandlerChain(reserver transport.ClientReserver) transport.Handler {
	dispatchHandler := &dispatchHandler{server: s}
	reservationHandler := &transport.ReservationHandler{
		Logger:   s.logger,
		Reserver: reserver,
		Inner:    dispatchHandler,
	}
	authHandler := &transport.AuthenticationHandler{
		Logger:           s.logger,
		Authkey:          s.cfg.Authkey,
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		Inner:            reservationHandler,
	}
	recovererHandler := &transport.RecovererHandler{
		Logger: s.logger,
		Inner:  authHandler,
	}
	return &transport.ConnCloserHandler{
		Inner: recovererHandler,
	}
}

// dispatchHandler is the terminal transport.Handler: it serves
// GetJob/PutResult/PutFailure/GetConstArgs requests in a loop over one
// already-authenticated connection, until the peer disconnects.
type dispatchHandler struct {
	server *Server
}

func (h *dispatchHandler) Handle(ctx context.Context, conn transport.DuplexConn) {
	clientID, _ := transport.ClientIDFromContext(ctx)
	for {
		var req wireproto.Request
		if err := wireproto.ReadFrame(conn, &req); err != nil {
			return
		}
		resp := h.server.serve(ctx, clientID, req)
		if err := wireproto.WriteFrame(conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) serve(ctx context.Context, clientID core.ClientID, req wireproto.Request) wireproto.Response {
	switch req.Method {
	case wireproto.MethodGetJob:
		return s.serveGetJob(ctx, req)
	case wireproto.MethodPutResult:
		return s.servePutResult(clientID, req)
	case wireproto.MethodPutFailure:
		return s.servePutFailure(clientID, req)
	case wireproto.MethodGetConstArgs:
		return wireproto.Response{OK: true, ConstArgs: &s.cfg.ConstArgs}
	default:
		return wireproto.Response{OK: false, ErrMsg: "dispatch: unknown method " + req.Method}
	}
}

func (s *Server) serveGetJob(ctx context.Context, req wireproto.Request) wireproto.Response {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.cfg.GetJobDefaultTimeout
	}
	arg, ok, err := s.jobQ.Get(ctx, timeout)
	if err != nil {
		return wireproto.Response{OK: false, ErrMsg: err.Error()}
	}
	if !ok {
		return wireproto.Response{OK: true, NoJob: true}
	}
	return wireproto.Response{OK: true, Argument: &arg}
}

func (s *Server) servePutResult(clientID core.ClientID, req wireproto.Request) wireproto.Response {
	if req.Argument == nil || req.Result == nil {
		return wireproto.Response{OK: false, ErrMsg: "dispatch: PutResult requires Argument and Result"}
	}
	if err := s.ledger.Discharge(*req.Argument); err != nil {
		s.logger.Warn(&slog.LogRecord{Msg: "dispatch: discharge of unknown argument", ClientID: &clientID, Argument: req.Argument, Error: err})
		return wireproto.Response{OK: false, ErrMsg: err.Error()}
	}
	s.aggregator.Fold(aggregate.Pair{Argument: *req.Argument, Result: *req.Result})
	return wireproto.Response{OK: true}
}

func (s *Server) servePutFailure(clientID core.ClientID, req wireproto.Request) wireproto.Response {
	if req.Failure == nil {
		return wireproto.Response{OK: false, ErrMsg: "dispatch: PutFailure requires Failure"}
	}
	// The failed Argument is deliberately left on the ledger (not
	// discharged): it is not resolved, only accounted for, the same
	// way the original leaves it in args_set while also recording it
	// in fail_q, so that it is still reported in the leftovers dump.
	s.recordFailure(*req.Failure)
	s.logger.Warn(&slog.LogRecord{Msg: "dispatch: client reported failure", ClientID: &clientID, Argument: &req.Failure.Argument, Details: req.Failure.ErrorKind})
	return wireproto.Response{OK: true}
}
