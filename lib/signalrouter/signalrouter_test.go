package signalrouter

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRouter_Shutdown_CancelsContextOnSignal(t *testing.T) {
	r := Install(context.Background(), Shutdown, syscall.SIGUSR1)
	defer r.Stop()

	select {
	case <-r.Done():
		t.Fatal("context cancelled before any signal was sent")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled after signal")
	}
}

func TestRouter_Ignore_DoesNotCancelContext(t *testing.T) {
	r := Install(context.Background(), Ignore, syscall.SIGUSR2)
	defer r.Stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR2))

	select {
	case <-r.Done():
		t.Fatal("context cancelled despite Ignore policy")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRouter_Stop_IsIdempotent(t *testing.T) {
	r := Install(context.Background(), Ignore, syscall.SIGUSR2)
	r.Stop()
	r.Stop()
}

func TestRouter_ParentCancellation_PropagatesToDone(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	r := Install(parent, Ignore, syscall.SIGUSR2)
	defer r.Stop()

	cancel()

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("Router context was not cancelled when parent was cancelled")
	}
}
