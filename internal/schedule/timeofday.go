package schedule

import (
	"fmt"
)

// TimeOfDay is a clinic-local wall-clock time expressed as minutes since
// midnight. Appointments carry no timezone; a day is whatever the clinic's
// clock says it is.
type TimeOfDay int

const MinutesPerDay = 24 * 60

// ParseTimeOfDay parses a 24-hour "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("parse time %q: expected HH:MM", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("parse time %q: out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Hour() int {
	return int(t) / 60
}

// Add returns the time mins minutes later. Results past midnight are legal
// only as interval end points (e.g. a close time of 24:00).
func (t TimeOfDay) Add(mins int) TimeOfDay {
	return t + TimeOfDay(mins)
}

// Interval is a half-open [Start, End) span within one day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Overlaps reports whether two half-open intervals intersect.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}
