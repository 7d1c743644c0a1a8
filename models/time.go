package models

import "time"

// TimeSource is the source of time information.
type TimeSource interface {
	Now() time.Time
}

// TimeSourceFunc is an adapter to use a function as a TimeSource.
type TimeSourceFunc func() time.Time

// Now implements the TimeSource interface.
func (f TimeSourceFunc) Now() time.Time {
	return f()
}
