// Package wireproto defines the request/response envelopes exchanged
// between a client and the server over the shared-queue transport
// (lib/transport). Every envelope is encoded with lib/codec and sent as
// one frame: a 4-byte big-endian length prefix followed by the codec's
// tagged binary form of the struct (see WriteFrame).
package wireproto

import (
	"time"

	"tcpjobq/lib/core"
)

// Method names identify which server-side queue operation a Request
// invokes. They double as the RPC's log/metric label.
const (
	MethodGetJob       = "GetJob"
	MethodPutResult    = "PutResult"
	MethodPutFailure   = "PutFailure"
	MethodGetConstArgs = "GetConstArgs"
)

// Request is one client-issued call. Only the fields relevant to Method
// are populated; the rest are left at their zero value.
type Request struct {
	Method string

	// Timeout bounds how long the server should block a GetJob call
	// waiting for an Argument to become available before replying with
	// NoJob. Zero means the server picks its own default.
	Timeout time.Duration

	Result  *core.Result        // set for MethodPutResult, paired with Argument
	Failure *core.FailureRecord // set for MethodPutFailure

	// Argument identifies which outstanding Argument a PutResult call's
	// Result belongs to.
	Argument *core.Argument
}

// Response is the server's reply to a Request.
type Response struct {
	OK     bool
	ErrMsg string

	// NoJob is set on a GetJob reply when Timeout elapsed with no
	// Argument available; OK is still true in that case.
	NoJob bool

	Argument  *core.Argument  // populated on a successful GetJob reply
	ConstArgs *core.ConstArgs // populated on a successful GetConstArgs reply
}
