package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/schedule"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrHoursNotFound       = errors.New("no operating hours for weekday")

	// ErrBookingConflict means the write would give one practitioner two
	// overlapping active appointments. Reported distinctly from generic
	// failure so auto-booking can retry the next candidate.
	ErrBookingConflict = errors.New("time slot conflicts with an existing appointment")
)

// Store contains all persistence interactions needed by the service. The
// implementation must enforce the non-overlap invariant transactionally in
// CreateAppointment; every check above it is advisory.
type Store interface {
	// GetOperatingHours returns a clinic's record for one weekday, or
	// ErrHoursNotFound when none exists (the calendar treats that as closed).
	GetOperatingHours(ctx context.Context, clinicID uuid.UUID, weekday time.Weekday) (*schedule.OperatingHours, error)

	// ListAppointments returns every appointment for a practitioner on a
	// date, all statuses included so callers apply the active filter.
	ListAppointments(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Appointment, error)

	// CreateAppointment persists a booking after re-running the overlap
	// check under isolation. Returns ErrBookingConflict on violation.
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateAppointmentStatus applies a compare-and-swap status change and
	// refreshes updated_at. ErrAppointmentNotFound when no row matched the
	// expected current status.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to schedule.Status) (*Appointment, error)

	// FindOverdueActive returns scheduled/confirmed appointments whose start
	// lies before the cutoff instant. Used by the no-show worker.
	FindOverdueActive(ctx context.Context, cutoff time.Time) ([]Appointment, error)
}
