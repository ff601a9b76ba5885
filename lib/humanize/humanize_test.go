package humanize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTime(t *testing.T) {
	require.Equal(t, "00:00:05", Time(5*time.Second))
	require.Equal(t, "01:01:01", Time(time.Hour+time.Minute+time.Second))
	require.Equal(t, "00:00:00", Time(0))
}

func TestSpeed(t *testing.T) {
	require.Equal(t, "10.0c/s", Speed(10))
	require.Equal(t, "0.0c/s", Speed(0))
	require.Equal(t, "30.0c/min", Speed(0.5))
}
