// Package transport is the shared-queue transport (the RPC surface a
// client uses to pull Arguments, push Results and FailureRecords, and
// fetch ConstArgs). It adapts the teacher's forwarder.Server/Handler
// chain and DuplexConn abstraction from proxying raw byte streams
// between two peers to serving a small fixed set of framed,
// request/response queue operations.
package transport

import (
	"crypto/tls"
	"errors"
	"net"
)

// ConnectionTypeUnsupported is returned by asDuplexConn when the
// accepted net.Conn is of a type that doesn't support CloseWrite.
var ConnectionTypeUnsupported = errors.New("transport: connection type unsupported")

// CloseWriter represents something that can CloseWrite.
//
// Notable implementations in the standard library include *net.TCPConn
// and *tls.Conn.
type CloseWriter interface {
	CloseWrite() error
}

// DuplexConn is a net.Conn that additionally supports half-closing its
// write side. The handler chain and Conn do not half-close;
// a connection is always closed as a whole.
type DuplexConn interface {
	net.Conn
	CloseWriter
}

func asDuplexConn(conn net.Conn) (DuplexConn, error) {
	switch cc := conn.(type) {
	case *tls.Conn:
		return cc, nil
	case *net.TCPConn:
		return cc, nil
	default:
		return nil, ConnectionTypeUnsupported
	}
}
