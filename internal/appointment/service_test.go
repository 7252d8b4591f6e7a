package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/clinicdesk/clinic-scheduling/internal/redis"
	"github.com/clinicdesk/clinic-scheduling/internal/schedule"
)

// mockStore is an in-memory Store. CreateAppointment re-runs the overlap
// check the way the real store does, and rejectStarts injects conflicts that
// availability could not see, to simulate losing the booking race.
type mockStore struct {
	hours        map[time.Weekday]*schedule.OperatingHours
	hoursErr     error
	appts        []Appointment
	listErr      error
	createErr    error
	rejectStarts map[schedule.TimeOfDay]bool
	created      []Appointment
	overdue      []Appointment
	updateCalls  int
	staleUpdate  bool
}

func (m *mockStore) GetOperatingHours(_ context.Context, _ uuid.UUID, weekday time.Weekday) (*schedule.OperatingHours, error) {
	if m.hoursErr != nil {
		return nil, m.hoursErr
	}
	h, ok := m.hours[weekday]
	if !ok {
		return nil, ErrHoursNotFound
	}
	return h, nil
}

func (m *mockStore) ListAppointments(_ context.Context, _ uuid.UUID, _ time.Time) ([]Appointment, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.appts, nil
}

func (m *mockStore) CreateAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.rejectStarts[appt.StartTime] {
		return nil, ErrBookingConflict
	}
	for _, existing := range m.appts {
		if existing.Status.Active() && existing.Interval().Overlaps(appt.Interval()) {
			return nil, ErrBookingConflict
		}
	}
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	m.created = append(m.created, appt)
	m.appts = append(m.appts, appt)
	return &appt, nil
}

func (m *mockStore) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	for i := range m.appts {
		if m.appts[i].ID == id {
			return &m.appts[i], nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *mockStore) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to schedule.Status) (*Appointment, error) {
	m.updateCalls++
	if m.staleUpdate {
		return nil, ErrAppointmentNotFound
	}
	for i := range m.appts {
		if m.appts[i].ID == id && m.appts[i].Status == from {
			m.appts[i].Status = to
			m.appts[i].UpdatedAt = time.Now()
			return &m.appts[i], nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *mockStore) FindOverdueActive(_ context.Context, _ time.Time) ([]Appointment, error) {
	return m.overdue, nil
}

// stubLocker runs the critical section inline; contendedOnce makes the first
// acquisition fail the way a held Redis key would.
type stubLocker struct {
	contendedOnce bool
}

func (l *stubLocker) WithBookingLock(ctx context.Context, _ uuid.UUID, _ string, _ schedule.TimeOfDay, fn func(ctx context.Context) error) error {
	if l.contendedOnce {
		l.contendedOnce = false
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

func mustTOD(t *testing.T, s string) schedule.TimeOfDay {
	t.Helper()
	tod, err := schedule.ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func newTestService(store *mockStore) *Service {
	svc := NewService(store, &stubLocker{}, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

func workweekHours(open, close string) map[time.Weekday]*schedule.OperatingHours {
	hours := make(map[time.Weekday]*schedule.OperatingHours)
	for wd := time.Monday; wd <= time.Friday; wd++ {
		o, _ := schedule.ParseTimeOfDay(open)
		c, _ := schedule.ParseTimeOfDay(close)
		hours[wd] = &schedule.OperatingHours{Weekday: wd, Open: o, Close: c}
	}
	return hours
}

// 2026-09-14 is a Monday.
var testDay = time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

func TestAvailabilityMarksBookedSlots(t *testing.T) {
	practitioner := uuid.New()
	store := &mockStore{
		hours: workweekHours("09:00", "17:00"),
		appts: []Appointment{{
			ID:              uuid.New(),
			PractitionerID:  &practitioner,
			Date:            testDay,
			StartTime:       mustTOD(t, "10:00"),
			DurationMinutes: 60,
			Status:          schedule.StatusScheduled,
		}},
	}
	svc := newTestService(store)

	avail, err := svc.Availability(context.Background(), AvailabilityRequest{
		ClinicID:        uuid.New(),
		PractitionerID:  practitioner,
		Date:            testDay,
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceResolved, avail.Source)

	byStart := make(map[schedule.TimeOfDay]schedule.CandidateSlot)
	for _, s := range avail.Slots {
		byStart[s.Start] = s
	}
	assert.True(t, byStart[mustTOD(t, "09:30")].Available)
	assert.False(t, byStart[mustTOD(t, "10:00")].Available)
	assert.False(t, byStart[mustTOD(t, "10:30")].Available)
	assert.True(t, byStart[mustTOD(t, "11:00")].Available)
}

func TestAvailabilityIgnoresCancelledAppointments(t *testing.T) {
	practitioner := uuid.New()
	store := &mockStore{
		hours: workweekHours("09:00", "17:00"),
		appts: []Appointment{{
			ID:              uuid.New(),
			PractitionerID:  &practitioner,
			Date:            testDay,
			StartTime:       mustTOD(t, "10:00"),
			DurationMinutes: 60,
			Status:          schedule.StatusCancelled,
		}},
	}
	svc := newTestService(store)

	avail, err := svc.Availability(context.Background(), AvailabilityRequest{
		ClinicID:        uuid.New(),
		PractitionerID:  practitioner,
		Date:            testDay,
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	for _, s := range avail.Slots {
		assert.True(t, s.Available, "cancelled booking must free slot %s", s.Start)
	}
}

func TestAvailabilityClosedWeekday(t *testing.T) {
	store := &mockStore{hours: workweekHours("09:00", "17:00")}
	svc := newTestService(store)

	sunday := time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC)
	avail, err := svc.Availability(context.Background(), AvailabilityRequest{
		ClinicID:        uuid.New(),
		PractitionerID:  uuid.New(),
		Date:            sunday,
		DurationMinutes: 30,
	})

	// No hours record for Sunday: resolved-empty, not degraded, no error.
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceResolved, avail.Source)
	assert.Empty(t, avail.Slots)
}

func TestAvailabilityDegradesToFallbackOnStoreOutage(t *testing.T) {
	store := &mockStore{
		hours:   workweekHours("09:00", "17:00"),
		listErr: errors.New("connection refused"),
	}
	svc := newTestService(store)

	avail, err := svc.Availability(context.Background(), AvailabilityRequest{
		ClinicID:        uuid.New(),
		PractitionerID:  uuid.New(),
		Date:            testDay,
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceDegraded, avail.Source)
	require.NotEmpty(t, avail.Slots)
	for _, s := range avail.Slots {
		assert.True(t, s.Available)
	}
}

func TestAvailabilityDegradesWhenHoursFetchFails(t *testing.T) {
	store := &mockStore{hoursErr: errors.New("timeout")}
	svc := newTestService(store)

	avail, err := svc.Availability(context.Background(), AvailabilityRequest{
		ClinicID:        uuid.New(),
		PractitionerID:  uuid.New(),
		Date:            testDay,
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceDegraded, avail.Source)
	assert.NotEmpty(t, avail.Slots)
}

func TestAvailabilityValidation(t *testing.T) {
	svc := newTestService(&mockStore{})

	_, err := svc.Availability(context.Background(), AvailabilityRequest{
		ClinicID:       uuid.New(),
		PractitionerID: uuid.New(),
		Date:           testDay,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBookRejectsConflict(t *testing.T) {
	practitioner := uuid.New()
	store := &mockStore{
		hours: workweekHours("09:00", "17:00"),
		appts: []Appointment{{
			ID:              uuid.New(),
			PractitionerID:  &practitioner,
			Date:            testDay,
			StartTime:       mustTOD(t, "10:00"),
			DurationMinutes: 60,
			Status:          schedule.StatusConfirmed,
		}},
	}
	svc := newTestService(store)

	_, err := svc.Book(context.Background(), BookingRequest{
		ClinicID:        uuid.New(),
		PractitionerID:  practitioner,
		PatientID:       uuid.New(),
		ServiceType:     "checkup",
		Date:            testDay,
		StartTime:       mustTOD(t, "10:30"),
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, ErrBookingConflict)
	assert.Empty(t, store.created)
}

func TestBookValidation(t *testing.T) {
	svc := newTestService(&mockStore{})
	base := BookingRequest{
		ClinicID:        uuid.New(),
		PractitionerID:  uuid.New(),
		PatientID:       uuid.New(),
		ServiceType:     "checkup",
		Date:            testDay,
		StartTime:       mustTOD(t, "10:00"),
		DurationMinutes: 30,
	}

	past := base
	past.Date = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	_, err := svc.Book(context.Background(), past)
	assert.ErrorIs(t, err, ErrValidation)

	zeroDur := base
	zeroDur.DurationMinutes = 0
	_, err = svc.Book(context.Background(), zeroDur)
	assert.ErrorIs(t, err, ErrValidation)

	noPatient := base
	noPatient.PatientID = uuid.Nil
	_, err = svc.Book(context.Background(), noPatient)
	assert.ErrorIs(t, err, ErrValidation)

	noService := base
	noService.ServiceType = ""
	_, err = svc.Book(context.Background(), noService)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAutoBookTakesFirstOpenSlot(t *testing.T) {
	practitioner := uuid.New()
	store := &mockStore{
		hours: workweekHours("09:00", "17:00"),
		appts: []Appointment{{
			ID:              uuid.New(),
			PractitionerID:  &practitioner,
			Date:            testDay,
			StartTime:       mustTOD(t, "09:00"),
			DurationMinutes: 30,
			Status:          schedule.StatusScheduled,
		}},
	}
	svc := newTestService(store)

	created, err := svc.AutoBook(context.Background(), AutoBookRequest{
		ClinicID:        uuid.New(),
		PractitionerID:  practitioner,
		PatientID:       uuid.New(),
		ServiceType:     "checkup",
		Date:            testDay,
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, mustTOD(t, "09:30"), created.StartTime)
	assert.Equal(t, schedule.StatusScheduled, created.Status)
}

func TestAutoBookRetriesPastRaceLoss(t *testing.T) {
	practitioner := uuid.New()
	store := &mockStore{
		hours: workweekHours("09:00", "17:00"),
		// 09:00 looks open in the availability pass but loses the commit
		// race; the engine must fall through to 09:30.
		rejectStarts: map[schedule.TimeOfDay]bool{mustTOD(t, "09:00"): true},
	}
	svc := newTestService(store)

	created, err := svc.AutoBook(context.Background(), AutoBookRequest{
		ClinicID:        uuid.New(),
		PractitionerID:  practitioner,
		PatientID:       uuid.New(),
		ServiceType:     "checkup",
		Date:            testDay,
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, mustTOD(t, "09:30"), created.StartTime)
	require.Len(t, store.created, 1)
}

func TestAutoBookSkipsContendedLock(t *testing.T) {
	store := &mockStore{hours: workweekHours("09:00", "17:00")}
	svc := NewService(store, &contentionLocker{failures: 1}, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC) }

	created, err := svc.AutoBook(context.Background(), AutoBookRequest{
		ClinicID:        uuid.New(),
		PractitionerID:  uuid.New(),
		PatientID:       uuid.New(),
		ServiceType:     "checkup",
		Date:            testDay,
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, mustTOD(t, "09:30"), created.StartTime)
}

func TestAutoBookExhaustedDay(t *testing.T) {
	practitioner := uuid.New()
	store := &mockStore{
		hours: workweekHours("09:00", "10:00"),
		appts: []Appointment{{
			ID:              uuid.New(),
			PractitionerID:  &practitioner,
			Date:            testDay,
			StartTime:       mustTOD(t, "09:00"),
			DurationMinutes: 60,
			Status:          schedule.StatusConfirmed,
		}},
	}
	svc := newTestService(store)

	_, err := svc.AutoBook(context.Background(), AutoBookRequest{
		ClinicID:        uuid.New(),
		PractitionerID:  practitioner,
		PatientID:       uuid.New(),
		ServiceType:     "checkup",
		Date:            testDay,
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, ErrNoSlotsAvailable)
}

func TestCheckConflictsAdvisory(t *testing.T) {
	practitioner := uuid.New()
	existing := Appointment{
		ID:              uuid.New(),
		PractitionerID:  &practitioner,
		Date:            testDay,
		StartTime:       mustTOD(t, "10:00"),
		DurationMinutes: 60,
		Status:          schedule.StatusScheduled,
	}
	store := &mockStore{appts: []Appointment{existing}}
	svc := newTestService(store)

	conflicts, err := svc.CheckConflicts(context.Background(), ConflictCheckRequest{
		PractitionerID:  practitioner,
		Date:            testDay,
		StartTime:       mustTOD(t, "10:30"),
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, existing.ID, conflicts[0])

	// Excluding the appointment itself clears the conflict (edit flow).
	conflicts, err = svc.CheckConflicts(context.Background(), ConflictCheckRequest{
		PractitionerID:  practitioner,
		Date:            testDay,
		StartTime:       mustTOD(t, "10:30"),
		DurationMinutes: 30,
		ExcludeID:       existing.ID,
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestTransitionHappyPath(t *testing.T) {
	practitioner := uuid.New()
	appt := Appointment{
		ID:              uuid.New(),
		PractitionerID:  &practitioner,
		Date:            testDay,
		StartTime:       mustTOD(t, "10:00"),
		DurationMinutes: 30,
		Status:          schedule.StatusScheduled,
	}
	store := &mockStore{appts: []Appointment{appt}}
	svc := newTestService(store)

	updated, err := svc.Transition(context.Background(), appt.ID, schedule.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusConfirmed, updated.Status)
}

func TestTransitionTerminalRejected(t *testing.T) {
	practitioner := uuid.New()
	appt := Appointment{
		ID:              uuid.New(),
		PractitionerID:  &practitioner,
		Date:            testDay,
		StartTime:       mustTOD(t, "10:00"),
		DurationMinutes: 30,
		Status:          schedule.StatusCancelled,
	}
	store := &mockStore{appts: []Appointment{appt}}
	svc := newTestService(store)

	_, err := svc.Transition(context.Background(), appt.ID, schedule.StatusConfirmed)
	assert.ErrorIs(t, err, schedule.ErrInvalidTransition)
	assert.Zero(t, store.updateCalls, "terminal appointment must never be written")
	assert.Equal(t, schedule.StatusCancelled, store.appts[0].Status)
}

func TestTransitionStaleStatus(t *testing.T) {
	practitioner := uuid.New()
	appt := Appointment{
		ID:              uuid.New(),
		PractitionerID:  &practitioner,
		Date:            testDay,
		StartTime:       mustTOD(t, "10:00"),
		DurationMinutes: 30,
		Status:          schedule.StatusScheduled,
	}
	store := &mockStore{appts: []Appointment{appt}, staleUpdate: true}
	svc := newTestService(store)

	_, err := svc.Transition(context.Background(), appt.ID, schedule.StatusConfirmed)
	assert.ErrorIs(t, err, schedule.ErrInvalidTransition)
}

func TestTransitionNotFound(t *testing.T) {
	svc := newTestService(&mockStore{})
	_, err := svc.Transition(context.Background(), uuid.New(), schedule.StatusConfirmed)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMarkOverdueNoShows(t *testing.T) {
	practitioner := uuid.New()
	overdue := Appointment{
		ID:              uuid.New(),
		PractitionerID:  &practitioner,
		Date:            time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		StartTime:       mustTOD(t, "10:00"),
		DurationMinutes: 30,
		Status:          schedule.StatusConfirmed,
	}
	store := &mockStore{appts: []Appointment{overdue}, overdue: []Appointment{overdue}}
	svc := newTestService(store)

	require.NoError(t, svc.MarkOverdueNoShows(context.Background(), time.Hour))
	assert.Equal(t, schedule.StatusNoShow, store.appts[0].Status)
}

// contentionLocker fails its first n acquisitions.
type contentionLocker struct {
	failures int
}

func (l *contentionLocker) WithBookingLock(ctx context.Context, _ uuid.UUID, _ string, _ schedule.TimeOfDay, fn func(ctx context.Context) error) error {
	if l.failures > 0 {
		l.failures--
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}
