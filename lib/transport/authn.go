package transport

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"time"

	"tcpjobq/lib/core"
	"tcpjobq/lib/wireproto"
)

// ErrAuthenticationFailed is returned by ServerAuthenticate when the
// peer's response MAC does not match, or by ClientAuthenticate when
// the server rejects the client's response.
var ErrAuthenticationFailed = errors.New("transport: authentication failed")

const nonceSize = 32

// authChallenge is the server's first message: a fresh random nonce.
type authChallenge struct {
	Nonce []byte
}

// authResponse is the client's reply: the ClientID key it wants to be
// known as, plus HMAC-SHA256(authkey, nonce) proving it holds authkey.
type authResponse struct {
	ClientKey string
	MAC       []byte
}

// authResult tells the client whether the server accepted its
// authResponse.
type authResult struct {
	OK bool
}

func signNonce(authkey, nonce []byte) []byte {
	mac := hmac.New(sha256.New, authkey)
	mac.Write(nonce)
	return mac.Sum(nil)
}

// ServerAuthenticate runs the server side of the shared-secret
// challenge/response handshake over conn: it sends a random nonce,
// reads back the peer's claimed ClientKey and MAC, and accepts the
// peer (returning its ClientID under core.DefaultNamespace) only if
// the MAC verifies against authkey.
func ServerAuthenticate(conn DuplexConn, authkey []byte, timeout time.Duration) (core.ClientID, error) {
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
		defer conn.SetDeadline(time.Time{})
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return core.ClientID{}, err
	}
	if err := wireproto.WriteFrame(conn, authChallenge{Nonce: nonce}); err != nil {
		return core.ClientID{}, err
	}

	var resp authResponse
	if err := wireproto.ReadFrame(conn, &resp); err != nil {
		return core.ClientID{}, err
	}

	want := signNonce(authkey, nonce)
	ok := hmac.Equal(want, resp.MAC)
	if err := wireproto.WriteFrame(conn, authResult{OK: ok}); err != nil {
		return core.ClientID{}, err
	}
	if !ok {
		return core.ClientID{}, ErrAuthenticationFailed
	}
	return core.ClientID{Namespace: core.DefaultNamespace, Key: resp.ClientKey}, nil
}

// ClientAuthenticate runs the client side of the handshake over conn,
// proving knowledge of authkey and claiming clientKey as its identity.
func ClientAuthenticate(conn DuplexConn, authkey []byte, clientKey string, timeout time.Duration) error {
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
		defer conn.SetDeadline(time.Time{})
	}

	var challenge authChallenge
	if err := wireproto.ReadFrame(conn, &challenge); err != nil {
		return err
	}

	resp := authResponse{
		ClientKey: clientKey,
		MAC:       signNonce(authkey, challenge.Nonce),
	}
	if err := wireproto.WriteFrame(conn, resp); err != nil {
		return err
	}

	var result authResult
	if err := wireproto.ReadFrame(conn, &result); err != nil {
		return err
	}
	if !result.OK {
		return ErrAuthenticationFailed
	}
	return nil
}
