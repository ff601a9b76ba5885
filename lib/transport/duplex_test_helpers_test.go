package transport

import "net"

// pipeDuplexConn adapts a net.Pipe() half (which has no CloseWrite) into
// a DuplexConn for tests, mirroring the teacher's blackholeConn test
// fixture pattern.
type pipeDuplexConn struct {
	net.Conn
}

func (p pipeDuplexConn) CloseWrite() error { return nil }

var _ DuplexConn = pipeDuplexConn{}
