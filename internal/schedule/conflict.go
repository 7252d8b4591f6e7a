package schedule

import "github.com/google/uuid"

// BookedInterval is an existing appointment reduced to what conflict math
// needs: its identity, its time span, and whether it still holds that time.
type BookedInterval struct {
	AppointmentID uuid.UUID
	Interval      Interval
	Status        Status
}

// FindConflicts returns the ids of every active appointment whose interval
// overlaps the proposed one. An empty result means the booking is safe as of
// the fetch; the store re-runs an equivalent check inside the commit
// transaction, so this answer is advisory.
//
// excludeID skips one appointment, for re-validating an edit against itself.
func FindConflicts(proposed Interval, existing []BookedInterval, excludeID uuid.UUID) []uuid.UUID {
	var conflicts []uuid.UUID
	for _, b := range existing {
		if excludeID != uuid.Nil && b.AppointmentID == excludeID {
			continue
		}
		if !b.Status.Active() {
			continue
		}
		if proposed.Overlaps(b.Interval) {
			conflicts = append(conflicts, b.AppointmentID)
		}
	}
	return conflicts
}
