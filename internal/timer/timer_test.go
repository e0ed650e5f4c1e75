package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTime(t *testing.T) {
	const (
		threshold = 200 * time.Millisecond
		// use 1.5*Resolution in order to avoid test failures because of the Resolution+1ms error
		resolution = Resolution + Resolution/2
	)

	for i := 0; i < int(2*time.Second/threshold); i++ {
		now := Now()
		if time.Since(now) > resolution {
			require.Fail(t, "the timer is too slow")
		}

		time.Sleep(threshold)
	}
}

func TestDate(t *testing.T) {
	parsed, err := time.Parse(DateLayout, Date())
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), parsed, 2*time.Second)
	require.Len(t, Date(), len("Mon, 02 Jan 2006 15:04:05 GMT"))
}

func BenchmarkDate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Date()
	}
}
