package transport

import (
	"context"
	"time"

	"tcpjobq/lib/core"
	"tcpjobq/lib/slog"
)

type clientIDContextKeyType struct{}

var clientIDContextKey = clientIDContextKeyType{}

// NewContextWithClientID returns a copy of parent carrying clientID,
// retrievable with ClientIDFromContext.
func NewContextWithClientID(parent context.Context, clientID core.ClientID) context.Context {
	return context.WithValue(parent, clientIDContextKey, clientID)
}

// ClientIDFromContext extracts the ClientID stored by
// NewContextWithClientID, if any.
func ClientIDFromContext(ctx context.Context) (core.ClientID, bool) {
	clientID, ok := ctx.Value(clientIDContextKey).(core.ClientID)
	return clientID, ok
}

// Handler handles one accepted client connection.
type Handler interface {
	Handle(ctx context.Context, conn DuplexConn)
}

// ConnCloserHandler closes conn after the Inner handler returns. It
// should be the outermost handler in the chain.
type ConnCloserHandler struct {
	Inner Handler
}

func (h *ConnCloserHandler) Handle(ctx context.Context, conn DuplexConn) {
	defer func() {
		// Errors closing the client connection are most likely caused
		// by the client or the network; there is nothing further we
		// can do about them here.
		_ = conn.Close()
	}()
	h.Inner.Handle(ctx, conn)
}

var _ Handler = (*ConnCloserHandler)(nil)

// RecovererHandler recovers a panic raised by Inner, logging it
// instead of letting it escape and crash the goroutine serving the
// connection.
type RecovererHandler struct {
	Logger slog.Logger
	Inner  Handler
}

func (h *RecovererHandler) Handle(ctx context.Context, conn DuplexConn) {
	defer func() {
		if r := recover(); r != nil {
			h.Logger.Error(&slog.LogRecord{Msg: "RecovererHandler: Unexpected panic!", Details: r})
		}
	}()
	h.Inner.Handle(ctx, conn)
}

var _ Handler = (*RecovererHandler)(nil)

// ClientReserver represents an entity that can limit "reservations" by
// clients, as an abstraction of client connection rate limiting. It is
// satisfied by lib/limiter's UnboundedClientReserver and
// UniformlyBoundedClientReserver.
type ClientReserver interface {
	TryReserve(ctx context.Context, c core.ClientID) error
	ReleaseReservation(ctx context.Context, c core.ClientID) error
}

// ReservationHandler only allows the Inner handler to Handle the
// connection if a reservation can be obtained for the connection's
// ClientID, expected to already be in the context (placed there by
// AuthenticationHandler).
type ReservationHandler struct {
	Logger   slog.Logger
	Reserver ClientReserver
	Inner    Handler
}

func (h *ReservationHandler) Handle(ctx context.Context, conn DuplexConn) {
	clientID, ok := ClientIDFromContext(ctx)
	if !ok {
		h.Logger.Error(&slog.LogRecord{Msg: "ReservationHandler: failed to get ClientID from context"})
		return
	}

	if err := h.Reserver.TryReserve(ctx, clientID); err != nil {
		h.Logger.Warn(&slog.LogRecord{Msg: "ReservationHandler: client rate limited", ClientID: &clientID, Error: err})
		return
	}
	defer func() {
		if err := h.Reserver.ReleaseReservation(ctx, clientID); err != nil {
			h.Logger.Error(&slog.LogRecord{Msg: "ReservationHandler: ReleaseReservation error", ClientID: &clientID, Error: err})
		}
	}()

	h.Inner.Handle(ctx, conn)
}

var _ Handler = (*ReservationHandler)(nil)

// AuthenticationHandler runs the shared-secret HMAC challenge/response
// handshake on conn before delegating to Inner with the resulting
// ClientID attached to the context.
type AuthenticationHandler struct {
	Logger           slog.Logger
	Authkey          []byte
	HandshakeTimeout time.Duration
	Inner            Handler
}

func (h *AuthenticationHandler) Handle(ctx context.Context, conn DuplexConn) {
	clientID, err := ServerAuthenticate(conn, h.Authkey, h.HandshakeTimeout)
	if err != nil {
		h.Logger.Warn(&slog.LogRecord{Msg: "AuthenticationHandler: handshake failed", Error: err})
		return
	}
	h.Inner.Handle(NewContextWithClientID(ctx, clientID), conn)
}

var _ Handler = (*AuthenticationHandler)(nil)
