// Package periodictask runs a function on a fixed interval until asked
// to stop, translated from the jobmanager original's Loop class (which
// ran func in a subprocess and drove it with a shared-memory "run" flag)
// into a goroutine driven by ticks and context cancellation, in the
// style of the teacher's healthcheck probe workers.
//
// Stop implements the same shutdown ladder as Loop.__exit__: set the run
// flag false and wait a grace period for the loop to notice between
// ticks and return on its own; if the task is still running, cancel its
// context (the Go analogue of Loop's SIGTERM escalation, since there is
// no child process to signal); if it is still not done after a second,
// longer grace period, give up and report that the task is stuck,
// optionally via an operator prompt in place of Loop's interactive
// SIGKILL confirmation.
package periodictask

import (
	"context"
	"time"
)

// Func is the unit of work a Task repeats. A true return value asks the
// Task to stop repeating, equivalent to Loop's func returning a truthy
// "quit_loop".
type Func func(ctx context.Context) (quit bool)

// PromptOperator is consulted by Stop if Func has not returned within
// the escalated grace period, mirroring the original's interactive
// "Do you want to send SIGKILL?" prompt. It should return true if the
// caller wants Stop to report the task as abandoned rather than keep
// waiting. The default (nil) PromptOperator always answers true.
type PromptOperator func() (abandon bool)

// Task runs Func repeatedly on Interval until stopped.
type Task struct {
	Func     Func
	Interval time.Duration

	// GracePeriod bounds how long Stop waits, after a soft stop request
	// (the run flag going false, not yet a cancelled context), before
	// escalating. Mirrors Loop's 2*interval join timeout. Defaults to
	// 2*Interval if zero.
	GracePeriod time.Duration

	// EscalatedGracePeriod bounds how long Stop waits after GracePeriod
	// elapses before consulting Prompt. Mirrors Loop's 5*interval
	// terminate-then-join timeout. Defaults to 5*Interval if zero.
	EscalatedGracePeriod time.Duration

	// Prompt is consulted if the task is still running after
	// EscalatedGracePeriod. May be nil.
	Prompt PromptOperator

	cancel context.CancelFunc
	done   chan struct{}
	stop   chan struct{}
}

// StopResult describes how far Stop's shutdown ladder had to escalate.
type StopResult int

const (
	// StoppedGracefully means the loop noticed the soft stop request and
	// returned within GracePeriod, without its context being cancelled.
	StoppedGracefully StopResult = iota
	// StoppedAfterCancel means Func did not return within GracePeriod,
	// so the Task's context was cancelled, and Func returned before
	// EscalatedGracePeriod elapsed.
	StoppedAfterCancel
	// Abandoned means Func had still not returned after
	// EscalatedGracePeriod and either Prompt is nil or it answered true.
	Abandoned
)

// Run starts the Task's loop on a new goroutine and returns
// immediately. ctx, if cancelled, stops the Task the same way Stop's
// escalation phase does.
func (t *Task) Run(ctx context.Context) {
	taskCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.stop = make(chan struct{})

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		for {
			if taskCtx.Err() != nil {
				return
			}
			if quit := t.Func(taskCtx); quit {
				return
			}
			select {
			case <-t.stop:
				return
			case <-taskCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop asks the Task to stop and waits for it to do so, escalating
// through GracePeriod and EscalatedGracePeriod as described on Task.
func (t *Task) Stop() StopResult {
	gracePeriod := t.GracePeriod
	if gracePeriod == 0 {
		gracePeriod = 2 * t.Interval
	}
	escalatedGracePeriod := t.EscalatedGracePeriod
	if escalatedGracePeriod == 0 {
		escalatedGracePeriod = 5 * t.Interval
	}

	close(t.stop)

	select {
	case <-t.done:
		return StoppedGracefully
	case <-time.After(gracePeriod):
	}

	t.cancel()

	select {
	case <-t.done:
		return StoppedAfterCancel
	case <-time.After(escalatedGracePeriod):
	}

	if t.Prompt != nil && !t.Prompt() {
		<-t.done
		return StoppedAfterCancel
	}
	return Abandoned
}
