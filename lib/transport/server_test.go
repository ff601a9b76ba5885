package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"tcpjobq/lib/core"
	"tcpjobq/lib/slog"
	"tcpjobq/lib/wireproto"
)

// echoHandler replies OK:true to every Request, echoing back the
// Argument given (if any), to exercise Server/Conn framing end to end.
type echoHandler struct{}

func (echoHandler) Handle(ctx context.Context, conn DuplexConn) {
	var req wireproto.Request
	if err := wireproto.ReadFrame(conn, &req); err != nil {
		return
	}
	_ = wireproto.WriteFrame(conn, wireproto.Response{OK: true, Argument: req.Argument})
}

func TestServer_Serve_DispatchesAcceptedConnections(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &Server{
		Logger:                      &slog.RecordingLogger{},
		Handler:                     echoHandler{},
		Listener:                    listener,
		AcceptErrorCooldownDuration: 10 * time.Millisecond,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx)

	rawConn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer rawConn.Close()

	conn := NewConn(rawConn.(DuplexConn))
	arg, ok, err := conn.GetJob(time.Second)
	// echoHandler replies OK without NoJob and, since a GetJob request
	// carries no Argument, without an Argument either: Conn reports that
	// as ErrNoArgument after decoding the reply.
	require.ErrorIs(t, err, ErrNoArgument)
	require.False(t, ok)

	_ = arg
}

func TestConn_PutResult_And_GetConstArgs_RoundTrip(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		rawConn, err := listener.Accept()
		if err != nil {
			return
		}
		defer rawConn.Close()
		var req wireproto.Request
		if err := wireproto.ReadFrame(rawConn, &req); err != nil {
			return
		}
		constArgs := core.ConstArgs{Payload: []byte("shared")}
		_ = wireproto.WriteFrame(rawConn, wireproto.Response{OK: true, ConstArgs: &constArgs})
	}()

	rawConn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	conn := NewConn(rawConn.(DuplexConn))
	defer conn.Close()

	got, err := conn.GetConstArgs()
	require.NoError(t, err)
	require.Equal(t, []byte("shared"), got.Payload)
}
