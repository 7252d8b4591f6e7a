package schedule

import "errors"

// Status is an appointment's lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
	// StatusUrgent is a priority marker for emergency cases, still a live
	// appointment for conflict purposes.
	StatusUrgent Status = "urgent"
)

var ErrInvalidTransition = errors.New("invalid appointment status transition")

// transitions is the full state machine. Absent entry means the move is
// rejected; terminal states have no entries at all.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow, StatusUrgent},
	StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow, StatusUrgent},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusUrgent:     {StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
}

// Terminal reports whether no further transition is permitted. Cancellation
// is a status, not a deletion: the record stays for history, its time is freed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether the appointment holds its time for the non-overlap
// invariant. Cancelled and no-show slots are free again; completed visits are
// in the past by definition.
func (s Status) Active() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusUrgent:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted,
		StatusCancelled, StatusNoShow, StatusUrgent:
		return true
	}
	return false
}

// ValidateTransition checks the move from one status to another without
// mutating anything. Completing before the scheduled start is deliberately
// allowed (administrative corrections).
func ValidateTransition(from, to Status) error {
	if !to.Valid() {
		return ErrInvalidTransition
	}
	for _, allowed := range transitions[from] {
		if to == allowed {
			return nil
		}
	}
	return ErrInvalidTransition
}
