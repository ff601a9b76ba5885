// Package aggregate folds per-argument Results into the server's
// running aggregate, generalizing the jobmanager original's
// process_new_result/process_final_result override points (there,
// customized by subclassing JobManager_Server) into a small capability
// interface a caller supplies as a value instead.
package aggregate

import (
	"sync"

	"tcpjobq/lib/codec"
	"tcpjobq/lib/core"
)

// Pair is one (Argument, Result) association folded into an Aggregator.
type Pair struct {
	Argument core.Argument
	Result   core.Result
}

// Aggregator folds Results into an aggregate as they arrive, and
// produces a final codec-ready payload once the server is ready to
// persist it. Fold is called once per accepted Result, in the order
// results were received; Finalize is called at most once, after the
// server has stopped accepting new results.
//
// Multiple goroutines may invoke Fold concurrently; implementations are
// responsible for their own synchronization.
type Aggregator interface {
	Fold(pair Pair)
	Finalize() []byte
}

// ListAggregator is the default Aggregator, equivalent to the
// original's un-subclassed process_new_result: it simply appends every
// (Argument, Result) pair to a list in arrival order, and Finalize
// codec-encodes that list.
type ListAggregator struct {
	mu    sync.Mutex
	pairs []Pair
}

// NewListAggregator returns an empty ListAggregator.
func NewListAggregator() *ListAggregator {
	return &ListAggregator{}
}

func (a *ListAggregator) Fold(pair Pair) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pairs = append(a.pairs, pair)
}

// Pairs returns a snapshot slice of every Pair folded so far, in
// arrival order.
func (a *ListAggregator) Pairs() []Pair {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Pair, len(a.pairs))
	copy(out, a.pairs)
	return out
}

func (a *ListAggregator) Finalize() []byte {
	pairs := a.Pairs()
	encoded, err := codec.Encode(pairs)
	if err != nil {
		// Fold only ever receives codec-round-trippable Pairs built by
		// the dispatcher, so a failure here indicates a bug rather than
		// a condition callers can meaningfully recover from.
		panic(err)
	}
	return encoded
}
