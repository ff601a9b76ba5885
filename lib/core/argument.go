package core

// Argument is an opaque unit of user work (A in spec terms).
//
// Key is the canonical codec-encoded form of the user value and is used
// for set membership (value-equality + hash) in the Argument Ledger; it
// must be deterministic for equal user values. Payload carries the same
// bytes and is what actually gets shipped to clients and folded back into
// results; the two fields are kept distinct so call sites can be explicit
// about which concern (identity vs. transport) they rely on.
type Argument struct {
	Key     string
	Payload []byte
}

// Result is an opaque value returned by the user function f, transported
// paired with its originating Argument.
type Result struct {
	Payload []byte
}

// ConstArgs is the immutable bundle of parameters published read-only to
// all clients.
type ConstArgs struct {
	Payload []byte
}

// FailureRecord is the triple (A, error_kind, origin_host) reported by a
// client when f raises on an Argument.
type FailureRecord struct {
	Argument   Argument
	ErrorKind  string
	OriginHost string
}
