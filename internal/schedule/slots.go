package schedule

import "github.com/google/uuid"

// SlotGranularityMinutes is the fixed spacing between candidate start times.
const SlotGranularityMinutes = 30

// CandidateSlot is one bookable start time evaluated for a single
// availability query. Slots are computed fresh every time and never cached.
type CandidateSlot struct {
	Start          TimeOfDay `json:"start_time"`
	End            TimeOfDay `json:"end_time"`
	Available      bool      `json:"available"`
	IsPeak         bool      `json:"is_peak"`
	PractitionerID uuid.UUID `json:"practitioner_id,omitempty"`
}

// CandidateStarts generates the ordered start times for a day, stepping from
// open by the slot granularity. A start is only offered if the whole service
// fits before close, so a duration longer than the window yields no slots.
// That is a normal outcome, not an error.
func CandidateStarts(window DayWindow, durationMinutes int) []TimeOfDay {
	if window.Closed || durationMinutes <= 0 {
		return nil
	}

	var starts []TimeOfDay
	for t := window.Open; t.Add(durationMinutes) <= window.Close; t = t.Add(SlotGranularityMinutes) {
		starts = append(starts, t)
	}
	return starts
}
