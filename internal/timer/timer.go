package timer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Resolution is how often the cached time is refreshed. Deadlines of keep-alive timeouts
// don't need to be more precise than that.
const Resolution = 250 * time.Millisecond

var (
	millis = new(atomic.Int64)
	start  sync.Once
)

func run() {
	millis.Store(time.Now().UnixMilli())

	go func() {
		for {
			time.Sleep(Resolution)
			millis.Store(time.Now().UnixMilli())
		}
	}()
}

// Now returns the cached time. The clock is started on the first call.
func Now() time.Time {
	start.Do(run)
	ms := millis.Load()

	return time.Unix(ms/1000, (ms%1000)*1e6)
}

// Deadline returns the moment d from now. Zero d means no deadline.
func Deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}

	return Now().Add(d)
}

// Expired reports whether more than d has passed since the moment.
func Expired(since time.Time, d time.Duration) bool {
	return d > 0 && Now().Sub(since) > d
}
