// Package clock provides an injectable time source so day-boundary logic
// ("today", archive windows, login days) stays deterministic under test.
package clock

import "time"

// Clock yields the current instant.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always returns the same instant. Test use.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }

// DayWindow returns the [start, end) local-midnight window containing t
// in the given location.
func DayWindow(t time.Time, loc *time.Location) (start, end time.Time) {
	local := t.In(loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// UTCMidnight truncates t to midnight UTC. Weight entries are keyed this way,
// matching how the store holds one entry per user per day.
func UTCMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
