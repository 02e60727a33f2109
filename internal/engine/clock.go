package engine

import "time"

// Clock supplies the engine's timestamps: RecordedAt on events, the
// finalization time, and the default scan time when a caller sends none.
//
// Timestamps are informational. Amounts and ordering come from the event
// log's seq, never from a clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}
