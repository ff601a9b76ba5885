package wireproto

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"tcpjobq/lib/core"
)

func TestWriteReadFrame_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	req := Request{
		Method:   MethodGetJob,
		Timeout:  5 * time.Second,
		Argument: &core.Argument{Key: "k", Payload: []byte("v")},
	}
	require.NoError(t, WriteFrame(&buf, req))

	var decoded Request
	require.NoError(t, ReadFrame(&buf, &decoded))
	require.Equal(t, req.Method, decoded.Method)
	require.Equal(t, req.Timeout, decoded.Timeout)
	require.Equal(t, *req.Argument, *decoded.Argument)
}

func TestWriteReadFrame_MultipleFramesInSequence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Response{OK: true}))
	require.NoError(t, WriteFrame(&buf, Response{OK: false, ErrMsg: "nope"}))

	var r1, r2 Response
	require.NoError(t, ReadFrame(&buf, &r1))
	require.NoError(t, ReadFrame(&buf, &r2))
	require.True(t, r1.OK)
	require.False(t, r2.OK)
	require.Equal(t, "nope", r2.ErrMsg)
}

func TestReadFrame_ErrFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	var v Response
	require.ErrorIs(t, ReadFrame(&buf, &v), ErrFrameTooLarge)
}
