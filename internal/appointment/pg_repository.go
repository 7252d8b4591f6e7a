package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicdesk/clinic-scheduling/internal/schedule"
)

// DB is the subset of pgxpool.Pool the store uses, also satisfied by pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgStore struct {
	db DB
}

func NewPgStore(db DB) *PgStore {
	return &PgStore{db: db}
}

// Statuses that hold their time slot for the non-overlap invariant.
var activeStatuses = []string{
	string(schedule.StatusScheduled),
	string(schedule.StatusConfirmed),
	string(schedule.StatusInProgress),
	string(schedule.StatusUrgent),
}

const appointmentColumns = `id, practitioner_id, clinic_id, patient_id, service_type,
	       date, start_time, duration_minutes, status, notes, emergency, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a         Appointment
		startTime string
		status    string
	)

	err := row.Scan(
		&a.ID,
		&a.PractitionerID,
		&a.ClinicID,
		&a.PatientID,
		&a.ServiceType,
		&a.Date,
		&startTime,
		&a.DurationMinutes,
		&status,
		&a.Notes,
		&a.Emergency,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.StartTime, err = schedule.ParseTimeOfDay(startTime)
	if err != nil {
		return nil, fmt.Errorf("stored start_time: %w", err)
	}
	a.Status = schedule.Status(status)

	return &a, nil
}

// Interface methods

func (s *PgStore) GetOperatingHours(ctx context.Context, clinicID uuid.UUID, weekday time.Weekday) (*schedule.OperatingHours, error) {
	var (
		h          schedule.OperatingHours
		openTime   string
		closeTime  string
		weekdayInt int
	)

	err := s.db.QueryRow(ctx, `
		SELECT weekday, open_time, close_time, closed
		FROM clinic_hours
		WHERE clinic_id = $1 AND weekday = $2
	`, clinicID, int(weekday)).Scan(&weekdayInt, &openTime, &closeTime, &h.Closed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHoursNotFound
		}
		return nil, err
	}

	h.Weekday = time.Weekday(weekdayInt)
	if h.Open, err = schedule.ParseTimeOfDay(openTime); err != nil {
		return nil, fmt.Errorf("stored open_time: %w", err)
	}
	if h.Close, err = schedule.ParseTimeOfDay(closeTime); err != nil {
		return nil, fmt.Errorf("stored close_time: %w", err)
	}

	return &h, nil
}

func (s *PgStore) ListAppointments(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1 AND date = $2
		ORDER BY start_time
	`, practitionerID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// CreateAppointment inserts a booking after re-running the overlap check
// inside the same transaction. An advisory lock keyed on practitioner+day
// serializes concurrent commits so two racing clients cannot both pass the
// check; this is the authoritative guard behind every client-side one.
func (s *PgStore) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if appt.PractitionerID != nil {
		lockKey := appt.PractitionerID.String() + ":" + DateKey(appt.Date)
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
			return nil, fmt.Errorf("acquire booking tx lock: %w", err)
		}

		end := appt.StartTime.Add(appt.DurationMinutes)
		var conflicts int
		err = tx.QueryRow(ctx, `
			SELECT count(*)
			FROM appointments
			WHERE practitioner_id = $1
			  AND date = $2
			  AND status = ANY($3)
			  AND start_time::time < $4::time
			  AND $5::time < start_time::time + make_interval(mins => duration_minutes)
		`, *appt.PractitionerID, appt.Date, activeStatuses, end.String(), appt.StartTime.String()).Scan(&conflicts)
		if err != nil {
			return nil, fmt.Errorf("overlap check: %w", err)
		}
		if conflicts > 0 {
			return nil, ErrBookingConflict
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, practitioner_id, clinic_id, patient_id, service_type,
			 date, start_time, duration_minutes, status, notes, emergency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.PractitionerID, appt.ClinicID, appt.PatientID, appt.ServiceType,
		appt.Date, appt.StartTime.String(), appt.DurationMinutes, string(appt.Status),
		appt.Notes, appt.Emergency)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return created, nil
}

func (s *PgStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (s *PgStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to schedule.Status) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, string(to), string(from))

	return scanAppointment(row)
}

func (s *PgStore) FindOverdueActive(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = ANY($1)
		  AND date + start_time::time < $2
	`, []string{string(schedule.StatusScheduled), string(schedule.StatusConfirmed)}, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
