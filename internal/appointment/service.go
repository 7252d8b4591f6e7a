package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/clinic-scheduling/internal/metrics"
	"github.com/clinicdesk/clinic-scheduling/internal/schedule"
	redisclient "github.com/clinicdesk/clinic-scheduling/internal/redis"
)

var (
	ErrValidation = errors.New("invalid scheduling request")

	// ErrSlotContended means another booking for the same slot holds the
	// lock right now. Retryable, same as a conflict.
	ErrSlotContended = errors.New("slot is currently being booked, please retry")

	ErrNoSlotsAvailable = errors.New("no bookable slot left for the requested day")
)

type Service struct {
	store   Store
	locker  redisclient.Locker
	log     *zap.Logger
	metrics *metrics.BookingMetrics
	now     func() time.Time
}

func NewService(store Store, locker redisclient.Locker, log *zap.Logger, m *metrics.BookingMetrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		locker:  locker,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

type AvailabilityRequest struct {
	ClinicID        uuid.UUID
	PractitionerID  uuid.UUID
	Date            time.Time
	DurationMinutes int
}

type BookingRequest struct {
	ClinicID        uuid.UUID
	PractitionerID  uuid.UUID
	PatientID       uuid.UUID
	ServiceType     string
	Date            time.Time
	StartTime       schedule.TimeOfDay
	DurationMinutes int
	Notes           string
	Emergency       bool
}

// AutoBookRequest asks for the first open slot of the day instead of a
// caller-chosen start time.
type AutoBookRequest struct {
	ClinicID        uuid.UUID
	PractitionerID  uuid.UUID
	PatientID       uuid.UUID
	ServiceType     string
	Date            time.Time
	DurationMinutes int
	Notes           string
	Emergency       bool
}

type ConflictCheckRequest struct {
	PractitionerID  uuid.UUID
	Date            time.Time
	StartTime       schedule.TimeOfDay
	DurationMinutes int
	ExcludeID       uuid.UUID
}

// Availability resolves the bookable slot set for one practitioner and day.
// Store failures never propagate: the result degrades to the fallback
// generator and says so via its Source tag. A closed day or a service that
// does not fit resolves normally with an empty slot list.
func (s *Service) Availability(ctx context.Context, req AvailabilityRequest) (*schedule.Availability, error) {
	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrValidation)
	}
	if req.ClinicID == uuid.Nil || req.PractitionerID == uuid.Nil {
		return nil, fmt.Errorf("%w: clinic_id and practitioner_id are required", ErrValidation)
	}

	hours, err := s.store.GetOperatingHours(ctx, req.ClinicID, schedule.WeekdayOf(req.Date))
	if err != nil && !errors.Is(err, ErrHoursNotFound) {
		return s.degraded(req, err), nil
	}

	window := schedule.ResolveWindow(hours)
	if window.Closed {
		return &schedule.Availability{Source: schedule.SourceResolved, Slots: nil}, nil
	}

	appts, err := s.store.ListAppointments(ctx, req.PractitionerID, req.Date)
	if err != nil {
		return s.degraded(req, err), nil
	}

	var busy []schedule.Interval
	for _, a := range appts {
		if a.Status.Active() {
			busy = append(busy, a.Interval())
		}
	}

	return &schedule.Availability{
		Source: schedule.SourceResolved,
		Slots:  schedule.MarkAvailability(window, req.DurationMinutes, busy, req.PractitionerID),
	}, nil
}

// degraded substitutes locally synthesized slots when the store is
// unreachable, keeping the booking flow alive. Every booking derived from
// these still passes the store's transactional conflict check.
func (s *Service) degraded(req AvailabilityRequest, cause error) *schedule.Availability {
	s.log.Warn("availability store unreachable, serving fallback slots",
		zap.String("clinic_id", req.ClinicID.String()),
		zap.String("practitioner_id", req.PractitionerID.String()),
		zap.String("date", DateKey(req.Date)),
		zap.Error(cause),
	)
	s.metrics.ObserveFallback()

	slots := schedule.FallbackSlots(req.Date, req.DurationMinutes)
	for i := range slots {
		slots[i].PractitionerID = req.PractitionerID
	}
	return &schedule.Availability{Source: schedule.SourceDegraded, Slots: slots}
}

// Book commits one manually chosen slot. A Redis lock narrows the race
// window between two clients picking the same slot; the store closes it.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	return s.book(ctx, req, "manual")
}

func (s *Service) book(ctx context.Context, req BookingRequest, mode string) (*Appointment, error) {
	if err := s.validateBooking(req); err != nil {
		return nil, err
	}

	practitionerID := req.PractitionerID
	appt := Appointment{
		ID:              uuid.New(),
		PractitionerID:  &practitionerID,
		ClinicID:        req.ClinicID,
		PatientID:       req.PatientID,
		ServiceType:     req.ServiceType,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Status:          schedule.StatusScheduled,
		Notes:           req.Notes,
		Emergency:       req.Emergency,
	}

	var created *Appointment
	err := s.locker.WithBookingLock(ctx, req.PractitionerID, DateKey(req.Date), req.StartTime, func(lockCtx context.Context) error {
		c, err := s.store.CreateAppointment(lockCtx, appt)
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			s.metrics.ObserveBooking(mode, "contended")
			return nil, ErrSlotContended
		case errors.Is(err, ErrBookingConflict):
			s.metrics.ObserveBooking(mode, "conflict")
			return nil, err
		default:
			s.metrics.ObserveBooking(mode, "error")
			return nil, fmt.Errorf("book appointment: %w", err)
		}
	}

	s.metrics.ObserveBooking(mode, "booked")
	s.log.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("practitioner_id", req.PractitionerID.String()),
		zap.String("date", DateKey(req.Date)),
		zap.String("start_time", req.StartTime.String()),
	)
	return created, nil
}

// AutoBook selects the first available slot of the day and commits it. When
// a slot is taken between selection and commit, the engine advances to the
// next candidate. One pass over the candidate list, then it gives up -- no
// retry loop to live-lock under sustained contention.
func (s *Service) AutoBook(ctx context.Context, req AutoBookRequest) (*Appointment, error) {
	avail, err := s.Availability(ctx, AvailabilityRequest{
		ClinicID:        req.ClinicID,
		PractitionerID:  req.PractitionerID,
		Date:            req.Date,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return nil, err
	}

	for _, slot := range avail.Slots {
		if !slot.Available {
			continue
		}

		created, err := s.book(ctx, BookingRequest{
			ClinicID:        req.ClinicID,
			PractitionerID:  req.PractitionerID,
			PatientID:       req.PatientID,
			ServiceType:     req.ServiceType,
			Date:            req.Date,
			StartTime:       slot.Start,
			DurationMinutes: req.DurationMinutes,
			Notes:           req.Notes,
			Emergency:       req.Emergency,
		}, "auto")
		if err == nil {
			return created, nil
		}
		if errors.Is(err, ErrBookingConflict) || errors.Is(err, ErrSlotContended) {
			s.log.Debug("auto-book candidate taken, trying next",
				zap.String("start_time", slot.Start.String()),
			)
			continue
		}
		return nil, err
	}

	s.metrics.ObserveBooking("auto", "exhausted")
	return nil, ErrNoSlotsAvailable
}

// CheckConflicts is the advisory overlap check, fetching the practitioner's
// day at call time. Clients use it to warn, never to skip the authoritative
// check inside the commit.
func (s *Service) CheckConflicts(ctx context.Context, req ConflictCheckRequest) ([]uuid.UUID, error) {
	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrValidation)
	}
	if req.PractitionerID == uuid.Nil {
		return nil, fmt.Errorf("%w: practitioner_id is required", ErrValidation)
	}

	appts, err := s.store.ListAppointments(ctx, req.PractitionerID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("fetch appointments for conflict check: %w", err)
	}

	existing := make([]schedule.BookedInterval, 0, len(appts))
	for _, a := range appts {
		existing = append(existing, a.Booked())
	}

	proposed := schedule.Interval{Start: req.StartTime, End: req.StartTime.Add(req.DurationMinutes)}
	return schedule.FindConflicts(proposed, existing, req.ExcludeID), nil
}

// Transition applies one lifecycle status change. Terminal appointments are
// never mutated; the state machine rejects before any write happens.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to schedule.Status) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := schedule.ValidateTransition(appt.Status, to); err != nil {
		s.metrics.ObserveTransition(string(to), "rejected")
		return nil, err
	}

	updated, err := s.store.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Status moved underneath us between read and write.
			s.metrics.ObserveTransition(string(to), "rejected")
			return nil, schedule.ErrInvalidTransition
		}
		s.metrics.ObserveTransition(string(to), "error")
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.metrics.ObserveTransition(string(to), "applied")
	s.log.Info("appointment status changed",
		zap.String("appointment_id", id.String()),
		zap.String("from", string(appt.Status)),
		zap.String("to", string(to)),
	)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.store.GetAppointmentByID(ctx, id)
}

func (s *Service) ListForDay(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Appointment, error) {
	if practitionerID == uuid.Nil {
		return nil, fmt.Errorf("%w: practitioner_id is required", ErrValidation)
	}
	return s.store.ListAppointments(ctx, practitionerID, date)
}

// MarkOverdueNoShows flips scheduled/confirmed appointments whose start
// passed more than grace ago to no-show. Intended for the periodic worker;
// each update applies or fails independently.
func (s *Service) MarkOverdueNoShows(ctx context.Context, grace time.Duration) error {
	cutoff := s.now().Add(-grace)

	overdue, err := s.store.FindOverdueActive(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find overdue appointments: %w", err)
	}

	for _, appt := range overdue {
		if _, err := s.store.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, schedule.StatusNoShow); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue // already moved on, nothing to do
			}
			s.log.Error("failed to mark appointment as no-show",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		s.metrics.ObserveTransition(string(schedule.StatusNoShow), "applied")
	}

	return nil
}

func (s *Service) validateBooking(req BookingRequest) error {
	switch {
	case req.ClinicID == uuid.Nil:
		return fmt.Errorf("%w: clinic_id is required", ErrValidation)
	case req.PractitionerID == uuid.Nil:
		return fmt.Errorf("%w: practitioner_id is required", ErrValidation)
	case req.PatientID == uuid.Nil:
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	case req.ServiceType == "":
		return fmt.Errorf("%w: service_type is required", ErrValidation)
	case req.DurationMinutes <= 0:
		return fmt.Errorf("%w: duration_minutes must be positive", ErrValidation)
	case req.StartTime < 0 || req.StartTime >= schedule.MinutesPerDay:
		return fmt.Errorf("%w: start_time out of range", ErrValidation)
	}

	// Wall-clock day comparison, no timezone math.
	if DateKey(req.Date) < DateKey(s.now()) {
		return fmt.Errorf("%w: date is in the past", ErrValidation)
	}
	return nil
}
