package engine

import "time"

// Clock supplies the engine's notion of now, in milliseconds since the Unix
// epoch. Production uses SystemClock; tests inject testutil.FakeClock for
// deterministic evaluation.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time in epoch milliseconds.
func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}
