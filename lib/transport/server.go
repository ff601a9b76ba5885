package transport

import (
	"context"
	"net"
	"time"

	"tcpjobq/lib/slog"
)

// Server accepts connections on Listener and dispatches each to
// Handler on its own goroutine, which is responsible for closing the
// connection once done.
type Server struct {
	Logger                      slog.Logger
	Handler                     Handler
	Listener                    net.Listener
	AcceptErrorCooldownDuration time.Duration
}

// Serve accepts connections until ctx is cancelled. Any other Accept
// error is logged and retried after AcceptErrorCooldownDuration. On
// cancellation, Serve closes Listener and returns the context's error.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.Listener.Close()
	}()

	for {
		clientConn, err := s.Listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.Logger.Error(&slog.LogRecord{Msg: "listener.Accept error", Error: err})
			time.Sleep(s.AcceptErrorCooldownDuration)
			continue
		}
		duplexConn, err := asDuplexConn(clientConn)
		if err != nil {
			_ = clientConn.Close()
			continue
		}
		// Handler is responsible for closing duplexConn.
		go s.Handler.Handle(ctx, duplexConn)
	}
}
