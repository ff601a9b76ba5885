// Package codec provides the single self-describing, tagged binary
// encoding used for both the wire protocol and the three shutdown dumps,
// so that a value encoded by one process (a client's Result, a server's
// dump) decodes correctly in another regardless of which concrete Go
// types it was built from.
package codec

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Handle returns a freshly configured codec.Handle. A new Handle is
// returned per call rather than shared because codec.Handle is not safe
// for concurrent field mutation, though encoders/decoders built from it
// are safe to use concurrently once configured.
func Handle() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	return h
}

// Encode encodes v using the shared tagged binary encoding.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, Handle())
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decodes data produced by Encode into v, which must be a pointer.
func Decode(data []byte, v any) error {
	dec := codec.NewDecoder(bytes.NewReader(data), Handle())
	return dec.Decode(v)
}
