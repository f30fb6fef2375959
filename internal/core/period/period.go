package period

import (
	"fmt"
	"time"
)

// Period is a calendar bucketing granularity for statistics snapshots.
type Period string

const (
	Daily   Period = "DAILY"
	Weekly  Period = "WEEKLY"
	Monthly Period = "MONTHLY"
	Yearly  Period = "YEARLY"
)

// Parse validates a period label received from the outside.
func Parse(s string) (Period, error) {
	switch Period(s) {
	case Daily, Weekly, Monthly, Yearly:
		return Period(s), nil
	}
	return "", fmt.Errorf("invalid period %q (must be DAILY, WEEKLY, MONTHLY or YEARLY)", s)
}

// Range is the inclusive [Start, End] instant span of one calendar bucket.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range, boundaries included.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Resolve computes the calendar bucket containing anchor for the given period.
// Start is always truncated to 00:00:00.000 and End extended to 23:59:59.999
// of the bucket's last day, in the anchor's location.
//
// Weeks start on Monday. Month ends are computed as day 0 of the following
// month, which handles 28/29/30/31-day months.
func Resolve(p Period, anchor time.Time) Range {
	y, m, d := anchor.Date()
	loc := anchor.Location()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch p {
	case Weekly:
		monday := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
		return Range{Start: monday, End: endOfDay(monday.AddDate(0, 0, 6))}
	case Monthly:
		first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return Range{Start: first, End: endOfDay(first.AddDate(0, 1, -1))}
	case Yearly:
		first := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return Range{Start: first, End: endOfDay(time.Date(y, time.December, 31, 0, 0, 0, 0, loc))}
	default: // Daily
		return Range{Start: day, End: endOfDay(day)}
	}
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}
