package directory

import "time"

// Window is the inclusive time range of one calendar day, used to scope
// directory queries. Both bounds are inclusive, matching the store's filter
// semantics.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the window of the calendar day containing t in the given
// location. Pure: the same (t, loc) pair always yields the same window.
func DayWindow(t time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Window{
		Start: start,
		End:   start.AddDate(0, 0, 1).Add(-time.Second),
	}
}

// WireStart is the window start in the store's timestamp format.
func (w Window) WireStart() string { return w.Start.Format(time.RFC3339) }

// WireEnd is the window end in the store's timestamp format.
func (w Window) WireEnd() string { return w.End.Format(time.RFC3339) }

// Day is the window's calendar day, used as a cache key.
func (w Window) Day() string { return w.Start.Format("2006-01-02") }
