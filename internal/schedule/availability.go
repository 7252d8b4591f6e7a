package schedule

import "github.com/google/uuid"

// Source tells the caller where a slot set came from. Degraded slots are a
// presentation aid synthesized locally and must be re-validated at commit.
type Source string

const (
	SourceResolved Source = "resolved"
	SourceDegraded Source = "degraded"
)

// Availability is the tagged result of an availability query, so callers can
// never mistake "resolver failed" for "genuinely no openings".
type Availability struct {
	Source Source          `json:"source"`
	Slots  []CandidateSlot `json:"slots"`
}

// Fixed peak-demand windows: 10:00-12:00 and 14:00-16:00. A policy constant,
// not derived from historical load.
var peakWindows = []Interval{
	{Start: 10 * 60, End: 12 * 60},
	{Start: 14 * 60, End: 16 * 60},
}

// IsPeak reports whether a start time falls inside a peak-demand window.
func IsPeak(t TimeOfDay) bool {
	for _, w := range peakWindows {
		if t >= w.Start && t < w.End {
			return true
		}
	}
	return false
}

// MarkAvailability evaluates every candidate start for a day against the
// practitioner's busy intervals. The full list comes back, taken slots
// included, so a UI can render them disabled instead of dropping them.
func MarkAvailability(window DayWindow, durationMinutes int, busy []Interval, practitionerID uuid.UUID) []CandidateSlot {
	starts := CandidateStarts(window, durationMinutes)
	if starts == nil {
		return nil
	}

	slots := make([]CandidateSlot, 0, len(starts))
	for _, start := range starts {
		proposed := Interval{Start: start, End: start.Add(durationMinutes)}

		available := true
		for _, b := range busy {
			if proposed.Overlaps(b) {
				available = false
				break
			}
		}

		slots = append(slots, CandidateSlot{
			Start:          start,
			End:            proposed.End,
			Available:      available,
			IsPeak:         IsPeak(start),
			PractitionerID: practitionerID,
		})
	}
	return slots
}
