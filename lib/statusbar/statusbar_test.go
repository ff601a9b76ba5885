package statusbar

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReporter_WaitsForFirstResult(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, time.Millisecond, func() Stats { return Stats{Count: 0, MaxCount: 10} })

	quit := r.tick(context.Background())
	require.False(t, quit)
	require.Contains(t, buf.String(), "waiting for first result")
}

func TestReporter_RendersProgressAndETA(t *testing.T) {
	var buf bytes.Buffer
	count := int64(0)
	r := New(&buf, time.Millisecond, func() Stats { return Stats{Count: count, MaxCount: 10} })
	r.Width = 40

	// Prime: first tick with Count==0 just records a start time.
	r.tick(context.Background())

	count = 5
	time.Sleep(10 * time.Millisecond)
	quit := r.tick(context.Background())
	require.False(t, quit)

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\r"))
	require.Contains(t, out, "[")
	require.Contains(t, out, "ETA")
}

func TestReporter_QuitsWhenCountReachesMaxCount(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, time.Millisecond, func() Stats { return Stats{Count: 10, MaxCount: 10} })
	r.tick(context.Background()) // establishes startTime

	time.Sleep(time.Millisecond)
	quit := r.tick(context.Background())
	require.True(t, quit)
}

func TestReporter_SlidingWindowBoundsSampleHistory(t *testing.T) {
	var buf bytes.Buffer
	count := int64(1)
	r := New(&buf, time.Millisecond, func() Stats { return Stats{Count: count, MaxCount: 100} })
	r.SpeedCalcCycles = 3

	for i := 0; i < 20; i++ {
		count++
		r.tick(context.Background())
	}

	require.LessOrEqual(t, len(r.samples), r.SpeedCalcCycles)
}
