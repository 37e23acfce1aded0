package logging

import "time"

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock. The simulation injects manual clocks in
// tests instead.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
