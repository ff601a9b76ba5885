// Package statusbar is a concrete, swappable terminal status-bar
// reporter (C7) built on lib/periodictask, translated line-for-line
// from `original_source/jobmanager.py`'s `StatusBar.show_stat`: an
// ASCII progress bar with elapsed time, a sliding-window speed
// estimate, and an ETA, rendered on a fixed-width line with a carriage
// return instead of a newline.
package statusbar

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"tcpjobq/lib/humanize"
	"tcpjobq/lib/periodictask"
)

// Stats is the point-in-time progress snapshot a Reporter renders.
// Count is the original's count.value (results folded so far); MaxCount
// is max_count.value (the total number of seeded arguments).
type Stats struct {
	Count    int64
	MaxCount int64
}

// StatsFunc is polled once per tick to obtain the current Stats.
type StatsFunc func() Stats

// Reporter renders Stats to Writer on a fixed Interval.
type Reporter struct {
	Writer   io.Writer
	Interval time.Duration
	Stats    StatsFunc

	// SpeedCalcCycles bounds the sliding window of past samples used to
	// estimate speed, mirroring the original's speed_calc_cycles.
	// Defaults to 10 if zero.
	SpeedCalcCycles int

	// Width is the total line width the bar is drawn to fit, mirroring
	// the original's width (there auto-detected from the terminal via
	// an ioctl, here simplified to a fixed fallback). Defaults to 80 if
	// zero.
	Width int

	startTime time.Time
	samples   []sample
}

type sample struct {
	count int64
	at    time.Time
}

// New returns a Reporter with the original's defaults
// (speed_calc_cycles=10, width=80 fallback).
func New(writer io.Writer, interval time.Duration, stats StatsFunc) *Reporter {
	return &Reporter{
		Writer:          writer,
		Interval:        interval,
		Stats:           stats,
		SpeedCalcCycles: 10,
		Width:           80,
	}
}

// Task wraps the Reporter as a periodictask.Task, ready to Run.
func (r *Reporter) Task() *periodictask.Task {
	return &periodictask.Task{
		Func:     r.tick,
		Interval: r.Interval,
	}
}

func (r *Reporter) tick(ctx context.Context) (quit bool) {
	stats := r.Stats()

	if stats.Count == 0 {
		r.startTime = time.Now()
		fmt.Fprint(r.Writer, "\rwaiting for first result...")
		return false
	}

	now := time.Now()
	if r.startTime.IsZero() {
		r.startTime = now
	}

	r.samples = append(r.samples, sample{count: stats.Count, at: now})
	var oldCount int64
	var oldAt time.Time
	if len(r.samples) > r.speedCalcCycles() {
		old := r.samples[0]
		r.samples = r.samples[1:]
		oldCount, oldAt = old.count, old.at
	} else {
		oldCount, oldAt = 0, r.startTime
	}

	elapsed := now.Sub(r.startTime)
	speed := float64(stats.Count-oldCount) / now.Sub(oldAt).Seconds()

	var eta string
	if speed == 0 {
		eta = "] ETA --"
	} else {
		etaSecs := float64(stats.MaxCount-stats.Count) / speed
		eta = fmt.Sprintf("] ETA %s", humanize.Time(time.Duration(math.Ceil(etaSecs))*time.Second))
	}

	prefix := fmt.Sprintf("\r%s [%s] [", humanize.Time(elapsed), humanize.Speed(speed))
	bar := r.renderBar(prefix, eta, stats)

	fmt.Fprint(r.Writer, prefix+bar+eta)
	return stats.MaxCount > 0 && stats.Count >= stats.MaxCount
}

func (r *Reporter) renderBar(prefix, eta string, stats Stats) string {
	width := r.Width
	if width == 0 {
		width = 80
	}
	barWidth := width - len(prefix) - len(eta) - 1
	if barWidth < 0 {
		barWidth = 0
	}
	filled := 0
	if stats.MaxCount > 0 {
		filled = int(float64(barWidth) * float64(stats.Count) / float64(stats.MaxCount))
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("=", filled) + ">" + strings.Repeat(" ", barWidth-filled)
}

func (r *Reporter) speedCalcCycles() int {
	if r.SpeedCalcCycles == 0 {
		return 10
	}
	return r.SpeedCalcCycles
}
