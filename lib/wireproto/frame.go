package wireproto

import (
	"encoding/binary"
	"errors"
	"io"

	"tcpjobq/lib/codec"
)

// MaxFrameSize bounds the length prefix WriteFrame/ReadFrame will
// honour, guarding a peer (malicious or buggy) from making ReadFrame
// allocate an unbounded buffer.
const MaxFrameSize = 64 << 20 // 64 MiB

// ErrFrameTooLarge is returned by ReadFrame if the peer's declared
// frame length exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("wireproto: frame exceeds MaxFrameSize")

// WriteFrame codec-encodes v and writes it to w as a single frame: a
// 4-byte big-endian length prefix followed by that many bytes of
// encoded payload.
func WriteFrame(w io.Writer, v any) error {
	payload, err := codec.Encode(v)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// ReadFrame reads one frame written by WriteFrame from r and decodes
// it into v, which must be a pointer.
func ReadFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return codec.Decode(payload, v)
}
