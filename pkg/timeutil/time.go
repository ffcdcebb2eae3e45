package timeutil

import "time"

// Now returns the current time in UTC. Persisted timestamps and queue
// messages always carry UTC so cutoff comparisons stay consistent.
func Now() time.Time {
	return time.Now().UTC()
}

// ToUTC converts a time.Time to UTC if it isn't already.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}
