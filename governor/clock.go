package governor

import "time"

// Clock is the governor's only source of wall-clock time, so tests can
// drive min_sample_time/hispeed_delay/boost windows without sleeping.
type Clock interface {
	Now() time.Time
}

// realClock is the production Clock.
type realClock struct{}

// RealClock returns the production Clock backed by time.Now.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }
