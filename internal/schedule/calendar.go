package schedule

import "time"

// OperatingHours is one weekday's opening record for a clinic. Owned by the
// clinic configuration; the scheduling core only reads it.
type OperatingHours struct {
	Weekday time.Weekday
	Open    TimeOfDay
	Close   TimeOfDay
	Closed  bool
}

// DayWindow is the bookable interval resolved for a concrete date.
type DayWindow struct {
	Open   TimeOfDay
	Close  TimeOfDay
	Closed bool
}

// ClosedAllDay is the window for a day with no usable opening hours.
var ClosedAllDay = DayWindow{Closed: true}

// WeekdayOf returns the clinic-local weekday for a date. No timezone
// conversion happens anywhere in this package; dates are wall-clock days.
func WeekdayOf(date time.Time) time.Weekday {
	return date.Weekday()
}

// ResolveWindow turns an operating-hours record into the day's bookable
// window. A missing record (nil), an explicit closed flag, or a degenerate
// interval all resolve to closed rather than an error.
func ResolveWindow(h *OperatingHours) DayWindow {
	if h == nil || h.Closed {
		return ClosedAllDay
	}
	if h.Open >= h.Close {
		return ClosedAllDay
	}
	return DayWindow{Open: h.Open, Close: h.Close}
}
