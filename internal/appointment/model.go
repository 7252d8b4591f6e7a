package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/schedule"
)

// Appointment is the persisted booking record. It is never hard-deleted by
// the scheduling core; cancellation is a status and the row stays for history.
type Appointment struct {
	ID              uuid.UUID
	PractitionerID  *uuid.UUID // nil while unassigned, pending auto-assignment
	ClinicID        uuid.UUID
	PatientID       uuid.UUID
	ServiceType     string
	Date            time.Time // calendar day, no time-of-day component
	StartTime       schedule.TimeOfDay
	DurationMinutes int
	Status          schedule.Status
	Notes           string
	Emergency       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Interval returns the half-open span this appointment occupies.
func (a Appointment) Interval() schedule.Interval {
	return schedule.Interval{Start: a.StartTime, End: a.StartTime.Add(a.DurationMinutes)}
}

// Booked reduces the appointment to what conflict math needs.
func (a Appointment) Booked() schedule.BookedInterval {
	return schedule.BookedInterval{
		AppointmentID: a.ID,
		Interval:      a.Interval(),
		Status:        a.Status,
	}
}

// DateKey formats a calendar day the way the store and lock keys expect it.
func DateKey(d time.Time) string {
	return d.Format("2006-01-02")
}
