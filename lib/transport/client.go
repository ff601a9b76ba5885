package transport

import (
	"errors"
	"time"

	"tcpjobq/lib/core"
	"tcpjobq/lib/wireproto"
)

// ErrNoArgument is returned if the server claims success on GetJob but
// supplies no Argument, which indicates a protocol-level bug rather
// than an ordinary "no work available" condition (see GetJob's ok
// return instead).
var ErrNoArgument = errors.New("transport: server returned no argument")

// ErrNoConstArgs is the GetConstArgs analogue of ErrNoArgument.
var ErrNoConstArgs = errors.New("transport: server returned no const args")

// Conn is the client side of the shared-queue transport: a connection
// that has already completed the authentication handshake, used to
// issue GetJob/PutResult/PutFailure/GetConstArgs calls.
type Conn struct {
	conn DuplexConn
}

// NewConn wraps an already-authenticated DuplexConn.
func NewConn(conn DuplexConn) *Conn {
	return &Conn{conn: conn}
}

func (c *Conn) call(req wireproto.Request) (wireproto.Response, error) {
	if err := wireproto.WriteFrame(c.conn, req); err != nil {
		return wireproto.Response{}, err
	}
	var resp wireproto.Response
	if err := wireproto.ReadFrame(c.conn, &resp); err != nil {
		return wireproto.Response{}, err
	}
	if !resp.OK {
		return resp, errors.New(resp.ErrMsg)
	}
	return resp, nil
}

// GetJob requests the next outstanding Argument, blocking on the
// server side for up to timeout. ok is false if the server had none
// available within timeout.
func (c *Conn) GetJob(timeout time.Duration) (arg core.Argument, ok bool, err error) {
	resp, err := c.call(wireproto.Request{Method: wireproto.MethodGetJob, Timeout: timeout})
	if err != nil {
		return core.Argument{}, false, err
	}
	if resp.NoJob {
		return core.Argument{}, false, nil
	}
	if resp.Argument == nil {
		return core.Argument{}, false, ErrNoArgument
	}
	return *resp.Argument, true, nil
}

// PutResult reports the Result computed for arg.
func (c *Conn) PutResult(arg core.Argument, result core.Result) error {
	_, err := c.call(wireproto.Request{Method: wireproto.MethodPutResult, Argument: &arg, Result: &result})
	return err
}

// PutFailure reports that computing f(arg) failed.
func (c *Conn) PutFailure(fr core.FailureRecord) error {
	_, err := c.call(wireproto.Request{Method: wireproto.MethodPutFailure, Failure: &fr})
	return err
}

// SetDeadline bounds the next call issued on this Conn, the way a
// worker reporting a UserFunc failure bounds how long it waits for that
// best-effort report before giving up.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// GetConstArgs fetches the read-only constant arguments published by
// the server.
func (c *Conn) GetConstArgs() (core.ConstArgs, error) {
	resp, err := c.call(wireproto.Request{Method: wireproto.MethodGetConstArgs})
	if err != nil {
		return core.ConstArgs{}, err
	}
	if resp.ConstArgs == nil {
		return core.ConstArgs{}, ErrNoConstArgs
	}
	return *resp.ConstArgs, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
