package drive

import "time"

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// UnixMilli converts t to the millisecond timestamps stored in the database.
func UnixMilli(t time.Time) int64 { return t.UnixMilli() }

// FromUnixMilli converts a stored millisecond timestamp back to UTC time.
func FromUnixMilli(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
