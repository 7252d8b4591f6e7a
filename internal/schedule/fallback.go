package schedule

import "time"

// Fallback window used when the real availability source is unreachable.
const (
	fallbackOpen  TimeOfDay = 9 * 60
	fallbackClose TimeOfDay = 17 * 60
)

// FallbackSlots synthesizes a plausible 09:00-17:00 slot set so the booking
// UI keeps working through a store outage. Every slot is marked available
// because nothing here can see real bookings; any booking derived from this
// list is still subject to the store's transactional conflict check.
//
// Output is a pure function of (date, durationMinutes) — no randomness — so
// repeated calls during one degraded session render identically.
func FallbackSlots(date time.Time, durationMinutes int) []CandidateSlot {
	_ = date // determinism contract only; the set does not vary by day

	starts := CandidateStarts(DayWindow{Open: fallbackOpen, Close: fallbackClose}, durationMinutes)
	slots := make([]CandidateSlot, 0, len(starts))
	for _, start := range starts {
		slots = append(slots, CandidateSlot{
			Start:     start,
			End:       start.Add(durationMinutes),
			Available: true,
			IsPeak:    start.Hour() == 12 || start.Hour() == 16,
		})
	}
	return slots
}
