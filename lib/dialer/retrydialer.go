package dialer

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"tcpjobq/lib/slog"
	"tcpjobq/lib/transport"
)

var ConnectionTypeUnsupported = errors.New("connection type is not supported")

// ServerDialer dials a single Address.
//
// Multiple goroutines may invoke methods on a ServerDialer simultaneously.
type ServerDialer interface {
	// DialServer dials addr, returning a DuplexConn if a connection is established.
	// Implementations should honour context deadlines, timeouts, and cancellations (if any).
	DialServer(ctx context.Context, addr Address) (transport.DuplexConn, error)
}

type SimpleServerDialer struct{}

func (d SimpleServerDialer) DialServer(ctx context.Context, addr Address) (transport.DuplexConn, error) {
	dd := net.Dialer{}
	conn, err := dd.DialContext(ctx, addr.Network, addr.Address)
	if err != nil {
		return nil, err
	}
	switch c := conn.(type) {
	case *net.TCPConn:
		return c, nil
	case *tls.Conn:
		return c, nil
	default:
		_ = conn.Close()
		return nil, ConnectionTypeUnsupported
	}
}

// RetryDialer attempts to dial the Address chosen by Policy. If the
// dial attempt fails, it informs the policy of the failure and asks
// the policy for the next address to try (in this package's single-
// server setting, always the same one). RetryDialer requires a Timeout
// to be supplied, which is shared across all dial attempts made within
// one call to DialServer.
//
// Multiple goroutines may invoke methods on a RetryDialer simultaneously.
type RetryDialer struct {
	Logger      slog.Logger
	Timeout     time.Duration // Timeout to apply for each DialServer operation.
	Policy      DialPolicy
	InnerDialer ServerDialer
}

func (d *RetryDialer) DialServer(ctx context.Context) (transport.DuplexConn, error) {
	// TODO use shorter timeout for each of n > 1 dial attempts?
	dialCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	for {
		addr, err := d.Policy.ChooseAddress()
		if err != nil {
			return nil, err
		}
		conn, err := d.InnerDialer.DialServer(dialCtx, addr)
		if err != nil {
			// If we exceeded the dial timeout, then dialCtx.Err() is non-nil.
			if dialCtxErr := dialCtx.Err(); dialCtxErr != nil {
				d.Logger.Warn(&slog.LogRecord{Msg: "dial timed out"})
				return nil, dialCtxErr
			}
			d.Logger.Warn(&slog.LogRecord{Msg: "dial failed", Error: err})
			d.Policy.DialFailed(addr, err)
			continue
		}
		d.Logger.Info(&slog.LogRecord{Msg: "dial succeeded"})
		d.Policy.DialSucceeded(addr)

		// Wrap & instrument the returned conn to inform the DialPolicy on conn Close.
		wrappedConn := &CloseNotifyingDuplexConn{
			DuplexConn: conn,
			OnClose: func() {
				d.Policy.ConnectionClosed(addr)
			},
		}
		return wrappedConn, nil
	}
}

type CloseNotifyingDuplexConn struct {
	transport.DuplexConn
	OnClose func()
}

func (c *CloseNotifyingDuplexConn) Close() error {
	defer c.OnClose()
	return c.DuplexConn.Close()
}
