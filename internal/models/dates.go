package models

import (
	"sync/atomic"
	"time"
)

var dateLocation atomic.Pointer[time.Location]

// SetLocation sets the zone due dates and move-in dates are read in. A nil
// location resets it to UTC.
func SetLocation(loc *time.Location) {
	dateLocation.Store(loc)
}

// Location returns the zone set by SetLocation, UTC by default.
func Location() *time.Location {
	if loc := dateLocation.Load(); loc != nil {
		return loc
	}
	return time.UTC
}

// ParseDate parses a DateLayout value as midnight in Location.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, Location())
}

// DateOf returns midnight of t's calendar day in Location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.In(Location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, Location())
}
