// Package ledger tracks which Arguments the server has been seeded with
// but not yet resolved by a matching result. A reported failure does not
// remove an Argument from the ledger. It is the server's bookkeeping for
// the invariant that, when each Argument is inserted once, the number of
// outstanding arguments equals the number of jobs fed in minus the
// number of results discharged so far.
package ledger

import (
	"errors"
	"sync"
	"sync/atomic"

	"tcpjobq/lib/core"
)

// ErrDischargeAbsent is returned by Discharge when asked to remove an
// Argument that the Ledger has no record of — either it was never
// inserted, or it has already been discharged once.
var ErrDischargeAbsent = errors.New("ledger: discharge of argument not on record")

// Ledger is the set of Arguments currently outstanding (inserted, no
// result discharged yet), plus running counters of
// how many arguments have ever been fed in (NumJobs) and how many
// results have ever been folded back (NumResults).
//
// Multiple goroutines may invoke methods on a Ledger simultaneously.
type Ledger struct {
	mu          sync.Mutex
	outstanding map[string]core.Argument

	numJobs    int64
	numResults int64
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{outstanding: make(map[string]core.Argument)}
}

// Insert records arg as outstanding and increments NumJobs. It is the
// caller's responsibility to only Insert each distinct Argument once;
// Insert does not itself enforce queue-level uniqueness.
func (l *Ledger) Insert(arg core.Argument) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outstanding[arg.Key] = arg
	atomic.AddInt64(&l.numJobs, 1)
}

// Discharge removes arg from the outstanding set and increments
// NumResults. ErrDischargeAbsent is returned, and NumResults left
// unchanged, if arg was not on record as outstanding.
func (l *Ledger) Discharge(arg core.Argument) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.outstanding[arg.Key]; !ok {
		return ErrDischargeAbsent
	}
	delete(l.outstanding, arg.Key)
	atomic.AddInt64(&l.numResults, 1)
	return nil
}

// Outstanding returns a snapshot slice of the Arguments currently
// recorded as outstanding, in no particular order.
func (l *Ledger) Outstanding() []core.Argument {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Argument, 0, len(l.outstanding))
	for _, arg := range l.outstanding {
		out = append(out, arg)
	}
	return out
}

// Len returns the number of Arguments currently outstanding.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.outstanding)
}

// NumJobs returns the total number of Arguments ever Inserted.
func (l *Ledger) NumJobs() int64 {
	return atomic.LoadInt64(&l.numJobs)
}

// NumResults returns the total number of Arguments ever successfully
// Discharged.
func (l *Ledger) NumResults() int64 {
	return atomic.LoadInt64(&l.numResults)
}
