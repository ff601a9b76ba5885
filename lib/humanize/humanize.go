// Package humanize formats durations and rates for the status reporter,
// translated from the jobmanager original's humanize_time and
// humanize_speed helpers.
package humanize

import (
	"fmt"
	"time"
)

// Time renders d in hh:mm:ss form, truncated to whole seconds.
func Time(d time.Duration) string {
	secs := int64(d / time.Second)
	hours := secs / 3600
	mins := (secs % 3600) / 60
	remSecs := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, mins, remSecs)
}

// Speed renders a rate given in counts per second, picking the first of
// counts/sec, counts/min, counts/hour, counts/day (in that order) whose
// value is at least 1, falling back to counts/day; a zero rate is shown
// in counts/sec. Mirrors humanize_speed's scale selection.
func Speed(countsPerSec float64) string {
	units := []string{"c/s", "c/min", "c/h", "c/d"}
	scales := []float64{60, 60, 24}

	speed := countsPerSec
	i := 0
	for i < len(scales) && speed < 1 && speed != 0 {
		speed *= scales[i]
		i++
	}
	return fmt.Sprintf("%.1f%s", speed, units[i])
}
