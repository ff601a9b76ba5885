package workerpool

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tcpjobq/lib/core"
	"tcpjobq/lib/dialer"
	"tcpjobq/lib/slog"
	"tcpjobq/lib/transport"
	"tcpjobq/lib/wireproto"
)

func TestResolveWorkerCount(t *testing.T) {
	require.Equal(t, 4, ResolveWorkerCount(4))
	require.GreaterOrEqual(t, ResolveWorkerCount(0), 1)
	require.GreaterOrEqual(t, ResolveWorkerCount(-1000), 1)
}

const testAuthkey = "worker-pool-secret"

// fakeServer emulates just enough of lib/dispatch's protocol to drive a
// Pool through a full GetConstArgs/GetJob/PutResult/PutFailure sequence
// without depending on lib/dispatch itself.
type fakeServer struct {
	mu       sync.Mutex
	jobs     []core.Argument
	i        int
	results  map[string]core.Result
	failures map[string]core.FailureRecord
}

func newFakeServer(jobs []core.Argument) *fakeServer {
	return &fakeServer{
		jobs:     jobs,
		results:  make(map[string]core.Result),
		failures: make(map[string]core.FailureRecord),
	}
}

func (s *fakeServer) serve(t *testing.T, ln net.Listener) {
	rawConn, err := ln.Accept()
	if err != nil {
		return
	}
	defer rawConn.Close()
	duplexConn := rawConn.(transport.DuplexConn)

	if _, err := transport.ServerAuthenticate(duplexConn, []byte(testAuthkey), time.Second); err != nil {
		t.Errorf("fake server: authentication failed: %v", err)
		return
	}

	for {
		var req wireproto.Request
		if err := wireproto.ReadFrame(duplexConn, &req); err != nil {
			return
		}
		switch req.Method {
		case wireproto.MethodGetConstArgs:
			ca := core.ConstArgs{Payload: []byte("const")}
			_ = wireproto.WriteFrame(duplexConn, wireproto.Response{OK: true, ConstArgs: &ca})
		case wireproto.MethodGetJob:
			s.mu.Lock()
			var resp wireproto.Response
			if s.i < len(s.jobs) {
				arg := s.jobs[s.i]
				s.i++
				resp = wireproto.Response{OK: true, Argument: &arg}
			} else {
				resp = wireproto.Response{OK: true, NoJob: true}
			}
			s.mu.Unlock()
			_ = wireproto.WriteFrame(duplexConn, resp)
		case wireproto.MethodPutResult:
			s.mu.Lock()
			s.results[req.Argument.Key] = *req.Result
			s.mu.Unlock()
			_ = wireproto.WriteFrame(duplexConn, wireproto.Response{OK: true})
		case wireproto.MethodPutFailure:
			s.mu.Lock()
			s.failures[req.Failure.Argument.Key] = *req.Failure
			s.mu.Unlock()
			_ = wireproto.WriteFrame(duplexConn, wireproto.Response{OK: true})
		default:
			_ = wireproto.WriteFrame(duplexConn, wireproto.Response{OK: false, ErrMsg: "unknown method"})
		}
	}
}

func TestPool_Run_ReportsResultsAndFailures(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	jobs := []core.Argument{
		{Key: "good", Payload: []byte("good")},
		{Key: "bad", Payload: []byte("bad")},
	}
	server := newFakeServer(jobs)
	go server.serve(t, ln)

	tcpAddr := ln.Addr().(*net.TCPAddr)
	cfg := Config{
		ServerAddress:        dialer.Address{Network: "tcp", Address: tcpAddr.String()},
		Authkey:              []byte(testAuthkey),
		ClientKeyPrefix:      "test-worker",
		HandshakeTimeout:     time.Second,
		DialTimeout:          time.Second,
		NumWorkers:           1,
		GetJobTimeout:        50 * time.Millisecond,
		FailureReportTimeout: time.Second,
		Func: func(ctx context.Context, arg core.Argument, constArgs core.ConstArgs) (core.Result, error) {
			require.Equal(t, []byte("const"), constArgs.Payload)
			if arg.Key == "bad" {
				return core.Result{}, errors.New("deliberate failure")
			}
			return core.Result{Payload: arg.Payload}, nil
		},
	}

	pool := New(&slog.RecordingLogger{}, cfg)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		require.NoError(t, pool.Run(context.Background()))
	}()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not finish processing the seeded jobs")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	require.Equal(t, []byte("good"), server.results["good"].Payload)
	require.Contains(t, server.failures, "bad")
	require.NotEmpty(t, server.failures["bad"].ErrorKind)
}

func TestPool_Run_InterruptedJobIsNotReportedAsFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	jobs := []core.Argument{
		{Key: "held", Payload: []byte("held")},
	}
	server := newFakeServer(jobs)
	go server.serve(t, ln)

	tcpAddr := ln.Addr().(*net.TCPAddr)
	cfg := Config{
		ServerAddress:        dialer.Address{Network: "tcp", Address: tcpAddr.String()},
		Authkey:              []byte(testAuthkey),
		ClientKeyPrefix:      "test-worker",
		HandshakeTimeout:     time.Second,
		DialTimeout:          time.Second,
		NumWorkers:           1,
		GetJobTimeout:        time.Second,
		FailureReportTimeout: time.Second,
		Func: func(ctx context.Context, arg core.Argument, constArgs core.ConstArgs) (core.Result, error) {
			return core.Result{}, context.Canceled
		},
	}

	pool := New(&slog.RecordingLogger{}, cfg)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		require.NoError(t, pool.Run(context.Background()))
	}()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not finish processing the interrupted job")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	require.Empty(t, server.failures, "an interrupted job must not be reported as a failure")
	require.Empty(t, server.results, "an interrupted job must not be reported as a result either")
}

func TestPool_Run_MultipleWorkersDrainJobQueue(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	jobs := []core.Argument{
		{Key: "a", Payload: []byte("a")},
		{Key: "b", Payload: []byte("b")},
		{Key: "c", Payload: []byte("c")},
	}
	server := newFakeServer(jobs)

	var serverWG sync.WaitGroup
	serverWG.Add(1)
	go func() {
		defer serverWG.Done()
		for i := 0; i < len(jobs); i++ {
			server.serve(t, ln)
		}
	}()

	tcpAddr := ln.Addr().(*net.TCPAddr)
	cfg := Config{
		ServerAddress:    dialer.Address{Network: "tcp", Address: tcpAddr.String()},
		Authkey:          []byte(testAuthkey),
		ClientKeyPrefix:  "test-worker",
		HandshakeTimeout: time.Second,
		DialTimeout:      time.Second,
		NumWorkers:       3,
		GetJobTimeout:    50 * time.Millisecond,
		Func: func(ctx context.Context, arg core.Argument, constArgs core.ConstArgs) (core.Result, error) {
			return core.Result{Payload: arg.Payload}, nil
		},
	}
	pool := New(&slog.RecordingLogger{}, cfg)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		require.NoError(t, pool.Run(context.Background()))
	}()

	select {
	case <-runDone:
	case <-time.After(3 * time.Second):
		t.Fatal("pool did not finish processing the seeded jobs")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	require.Len(t, server.results, len(jobs))
}
