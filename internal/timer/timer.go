package timer

import (
	"sync/atomic"
	"time"
)

// Time contains the unix-time in milliseconds updated every [Resolution] milliseconds
var Time = new(atomic.Int64)

// date holds the pre-formatted value of the Date header, refreshed together with Time
var date atomic.Pointer[string]

func Now() time.Time {
	millis := Time.Load()
	return time.Unix(millis/1000, (millis%1000)*1e6)
}

// Date returns current time formatted as the HTTP Date header value.
func Date() string {
	return *date.Load()
}

// DateLayout is the IMF-fixdate format, mandatory for the Date header.
const DateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Resolution is the frequency at which time is updated. Default 500ms are
// precise enough for both deadlines and a seconds-granular Date header
const Resolution = 500 * time.Millisecond

func tick() {
	now := time.Now()
	Time.Store(now.UnixMilli())
	formatted := now.UTC().Format(DateLayout)
	date.Store(&formatted)
}

func init() {
	// there is no guarantee that the goroutine will be started immediately. If it won't,
	// some rapid usage of the timer will result in zero-time
	tick()

	go func() {
		for {
			time.Sleep(Resolution)
			tick()
		}
	}()
}
