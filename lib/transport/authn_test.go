package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServerClientAuthenticate_Success(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	authkey := []byte("shared-secret")

	serverResult := make(chan error, 1)
	var gotClientID string
	go func() {
		clientID, err := ServerAuthenticate(pipeDuplexConn{serverConn}, authkey, time.Second)
		gotClientID = clientID.Key
		serverResult <- err
	}()

	err := ClientAuthenticate(pipeDuplexConn{clientConn}, authkey, "worker-1", time.Second)
	require.NoError(t, err)
	require.NoError(t, <-serverResult)
	require.Equal(t, "worker-1", gotClientID)
}

func TestServerAuthenticate_RejectsWrongKey(t *testing.T) {
	serverConn, clientConn := net.Pipe()

	serverResult := make(chan error, 1)
	go func() {
		_, err := ServerAuthenticate(pipeDuplexConn{serverConn}, []byte("correct"), time.Second)
		serverResult <- err
	}()

	err := ClientAuthenticate(pipeDuplexConn{clientConn}, []byte("wrong"), "worker-1", time.Second)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	require.ErrorIs(t, <-serverResult, ErrAuthenticationFailed)
}
