// Package workerpool implements the Client Worker Pool (C6): a process
// that dials the dispatch server once per worker, pulls Arguments,
// applies a user-supplied function, and reports results or failures
// back. The sizing rule, per-worker loop, and fault taxonomy are
// translated from `original_source/jobmanager.py`'s
// `JobManager_Client.start`/`__worker_func`, which spawned one OS
// process per worker; here each worker is a goroutine holding its own
// authenticated connection instead.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"tcpjobq/lib/core"
	"tcpjobq/lib/dialer"
	jobqerrors "tcpjobq/lib/errors"
	"tcpjobq/lib/slog"
	"tcpjobq/lib/transport"
)

// UserFunc is the unit of work applied to each Argument, the Go
// analogue of the original's `f(arg, const_args)`. A UserFunc is
// expected to respect ctx cancellation for long-running work; returning
// ctx.Err() is treated as a worker interruption rather than an ordinary
// processing failure.
type UserFunc func(ctx context.Context, arg core.Argument, constArgs core.ConstArgs) (core.Result, error)

// Config configures a Pool.
type Config struct {
	ServerAddress    dialer.Address
	Authkey          []byte
	ClientKeyPrefix  string
	HandshakeTimeout time.Duration
	DialTimeout      time.Duration

	// NumWorkers is the original's nproc: a positive value is used as
	// given; zero or negative is interpreted as
	// max(1, runtime.NumCPU()+NumWorkers), so -1 means "leave one core
	// free" the same way the original's nproc<=0 branch does.
	NumWorkers int

	// GetJobTimeout bounds each GetJob call. When it elapses with no
	// Argument available, the worker treats the job queue as drained
	// and exits, mirroring the original's queue.Empty-on-timeout branch
	// (there is no streaming producer refilling the queue after Seed).
	GetJobTimeout time.Duration

	// FailureReportTimeout bounds the best-effort PutFailure call made
	// when a UserFunc returns a non-interruption error.
	FailureReportTimeout time.Duration

	// Niceness, if non-zero, is applied once via unix.Setpriority,
	// translating the original's per-worker-process os.nice(niceness)
	// into a single process-wide adjustment (Go workers are goroutines,
	// not separate processes).
	Niceness int

	// TracebackDir, if non-empty, receives a `.trb` file for every
	// UserFunc panic or error, mirroring the original's
	// `traceback_err_<kind>_<timestamp>_<pid>.trb` dumps. Empty
	// disables the dump.
	TracebackDir string

	Func UserFunc
}

// ResolveWorkerCount applies the original's nproc sizing rule.
func ResolveWorkerCount(nproc int) int {
	if nproc > 0 {
		return nproc
	}
	n := runtime.NumCPU() + nproc
	if n < 1 {
		n = 1
	}
	return n
}

// Pool dials, authenticates, and runs NumWorkers workers against one
// configured server address.
type Pool struct {
	cfg    Config
	logger slog.Logger
}

// New returns a Pool ready to Run.
func New(logger slog.Logger, cfg Config) *Pool {
	return &Pool{cfg: cfg, logger: logger}
}

// Run adjusts process niceness (if configured) and then runs
// ResolveWorkerCount(cfg.NumWorkers) workers to completion, blocking
// until every worker has exited (because the job queue drained, the
// server connection was lost, or ctx was cancelled). The per-worker
// terminal errors (nil for a clean exit) are fanned in and returned as
// a single *errors.AggregateError, or nil if every worker exited
// cleanly, the same way the teacher's lib/errors is used to collapse
// several goroutines' outcomes into one error a caller can log or test
// against.
func (p *Pool) Run(ctx context.Context) error {
	if err := adjustNiceness(p.cfg.Niceness); err != nil {
		p.logger.Warn(&slog.LogRecord{Msg: "workerpool: failed to adjust process niceness", Error: err})
	}

	n := ResolveWorkerCount(p.cfg.NumWorkers)
	errCh := make(chan error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			errCh <- p.runWorker(ctx, i)
		}(i)
	}
	wg.Wait()
	close(errCh)

	return jobqerrors.AggregateErrorFromChannel(errCh)
}

func adjustNiceness(niceness int) error {
	if niceness == 0 {
		return nil
	}
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Getpid(), niceness)
}

func (p *Pool) connect(ctx context.Context, clientKey string) (*transport.Conn, error) {
	rd := &dialer.RetryDialer{
		Logger:      p.logger,
		Timeout:     p.cfg.DialTimeout,
		Policy:      dialer.SingleAddressPolicy{Addr: p.cfg.ServerAddress},
		InnerDialer: dialer.SimpleServerDialer{},
	}
	duplexConn, err := rd.DialServer(ctx)
	if err != nil {
		return nil, err
	}
	if err := transport.ClientAuthenticate(duplexConn, p.cfg.Authkey, clientKey, p.cfg.HandshakeTimeout); err != nil {
		_ = duplexConn.Close()
		return nil, err
	}
	return transport.NewConn(duplexConn), nil
}

// runWorker drives one worker's connection until it exits, returning the
// terminal error that caused it to stop (nil for a clean exit: the job
// queue drained or ctx was cancelled).
func (p *Pool) runWorker(ctx context.Context, index int) error {
	clientKey := fmt.Sprintf("%s-%s", p.cfg.ClientKeyPrefix, uuid.NewString())

	conn, err := p.connect(ctx, clientKey)
	if err != nil {
		p.logger.Error(&slog.LogRecord{Msg: "workerpool: worker failed to connect", Error: err})
		return err
	}
	defer conn.Close()

	constArgs, err := conn.GetConstArgs()
	if err != nil {
		p.logger.Warn(&slog.LogRecord{Msg: "workerpool: server went down before const args were fetched", Error: err})
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		arg, ok, err := conn.GetJob(p.cfg.GetJobTimeout)
		if err != nil {
			p.logger.Warn(&slog.LogRecord{Msg: "workerpool: server went down", Error: err})
			return err
		}
		if !ok {
			// The job queue is drained; there is no streaming producer
			// to wait on, so this worker's work is done.
			return nil
		}

		result, outcome, ferr := p.applyFunc(ctx, arg, constArgs)
		switch outcome {
		case outcomeSuccess:
			if putErr := conn.PutResult(arg, result); putErr != nil {
				p.logger.Warn(&slog.LogRecord{Msg: "workerpool: server went down", Error: putErr})
				return putErr
			}
		case outcomeInterrupted:
			// arg is left outstanding, not reported as a failure: it was
			// never actually attempted to completion, so it belongs only
			// in the leftovers dump, not also in the failures dump.
			return nil
		case outcomeOtherError:
			p.reportFailure(conn, arg, errorKind(ferr))
		}
	}
}

type workerOutcome int

const (
	outcomeSuccess workerOutcome = iota
	outcomeOtherError
	outcomeInterrupted
)

// applyFunc invokes cfg.Func, recovering a panic the same way a bare
// exception from the original's user function is caught by
// `__worker_func`'s blanket `except Exception`, and classifying a
// ctx-cancellation error as an interruption rather than an ordinary
// processing failure.
func (p *Pool) applyFunc(ctx context.Context, arg core.Argument, constArgs core.ConstArgs) (result core.Result, outcome workerOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workerpool: panic: %v", r)
			outcome = outcomeOtherError
			p.writeTraceback("panic", err, debug.Stack())
		}
	}()

	res, ferr := p.cfg.Func(ctx, arg, constArgs)
	if ferr != nil {
		if errors.Is(ferr, context.Canceled) || errors.Is(ferr, context.DeadlineExceeded) {
			return core.Result{}, outcomeInterrupted, ferr
		}
		p.writeTraceback("error", ferr, nil)
		return core.Result{}, outcomeOtherError, ferr
	}
	return res, outcomeSuccess, nil
}

// reportFailure is a best-effort PutFailure call for an Argument whose
// UserFunc failed, bounded by FailureReportTimeout so a worker whose
// server connection is unresponsive does not hang trying to report it,
// mirroring the original's `fail_q.put(..., timeout=10)`.
func (p *Pool) reportFailure(conn *transport.Conn, arg core.Argument, kind string) {
	if p.cfg.FailureReportTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(p.cfg.FailureReportTimeout))
		defer conn.SetDeadline(time.Time{})
	}
	hostname, _ := os.Hostname()
	fr := core.FailureRecord{Argument: arg, ErrorKind: kind, OriginHost: hostname}
	if err := conn.PutFailure(fr); err != nil {
		p.logger.Warn(&slog.LogRecord{Msg: "workerpool: failed to report failure to server", Argument: &arg, Error: err})
	}
}

func errorKind(err error) string {
	return fmt.Sprintf("%T", err)
}

// writeTraceback writes a best-effort diagnostic file under
// cfg.TracebackDir, mirroring the original's
// `traceback_err_<kind>_<timestamp>_<pid>.trb` dumps. It is a no-op if
// TracebackDir is empty.
func (p *Pool) writeTraceback(kind string, err error, stack []byte) {
	if p.cfg.TracebackDir == "" {
		return
	}
	filename := fmt.Sprintf("traceback_err_%s_%s_%d.trb", kind, time.Now().Format("2006_01_02_15_04_05"), os.Getpid())
	content := err.Error()
	if len(stack) > 0 {
		content += "\n" + string(stack)
	}
	path := filepath.Join(p.cfg.TracebackDir, filename)
	if writeErr := os.WriteFile(path, []byte(content), 0o644); writeErr != nil {
		p.logger.Warn(&slog.LogRecord{Msg: "workerpool: failed to write traceback file", Error: writeErr})
	}
}
