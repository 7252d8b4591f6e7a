package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/appointment"
	"github.com/clinicdesk/clinic-scheduling/internal/schedule"
)

const dateLayout = "2006-01-02"

func availabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinicID must be a valid UUID")
			return
		}

		q := r.URL.Query()
		practitionerID, err := uuid.Parse(q.Get("practitioner_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		duration, err := strconv.Atoi(q.Get("duration_minutes"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration_minutes must be an integer")
			return
		}

		avail, err := svc.Availability(r.Context(), appointment.AvailabilityRequest{
			ClinicID:        clinicID,
			PractitionerID:  practitionerID,
			Date:            date,
			DurationMinutes: duration,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAvailabilityResponse(
			clinicID.String(), practitionerID.String(), q.Get("date"), avail))
	}
}

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		bookingReq, errCode := parseBooking(req)
		if errCode != "" {
			writeError(w, http.StatusBadRequest, errCode, "request field is missing or malformed")
			return
		}

		appt, err := svc.Book(r.Context(), *bookingReq)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func autoBookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AutoBookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		booking, errCode := parseBooking(BookAppointmentRequest{
			PractitionerID:  req.PractitionerID,
			ClinicID:        req.ClinicID,
			PatientID:       req.PatientID,
			ServiceType:     req.ServiceType,
			Date:            req.Date,
			StartTime:       "00:00", // unused for auto-booking
			DurationMinutes: req.DurationMinutes,
			Notes:           req.Notes,
			Emergency:       req.Emergency,
		})
		if errCode != "" {
			writeError(w, http.StatusBadRequest, errCode, "request field is missing or malformed")
			return
		}

		appt, err := svc.AutoBook(r.Context(), appointment.AutoBookRequest{
			ClinicID:        booking.ClinicID,
			PractitionerID:  booking.PractitionerID,
			PatientID:       booking.PatientID,
			ServiceType:     booking.ServiceType,
			Date:            booking.Date,
			DurationMinutes: booking.DurationMinutes,
			Notes:           booking.Notes,
			Emergency:       booking.Emergency,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		practitionerID, err := uuid.Parse(q.Get("practitioner_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appts, err := svc.ListForDay(r.Context(), practitionerID, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func updateStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Transition(r.Context(), id, schedule.Status(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func conflictCheckHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		practitionerID, err := uuid.Parse(q.Get("practitioner_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := schedule.ParseTimeOfDay(q.Get("start_time"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
			return
		}
		duration, err := strconv.Atoi(q.Get("duration_minutes"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration_minutes must be an integer")
			return
		}

		var excludeID uuid.UUID
		if raw := q.Get("exclude_id"); raw != "" {
			excludeID, err = uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude_id", "exclude_id must be a valid UUID")
				return
			}
		}

		conflicts, err := svc.CheckConflicts(r.Context(), appointment.ConflictCheckRequest{
			PractitionerID:  practitionerID,
			Date:            date,
			StartTime:       start,
			DurationMinutes: duration,
			ExcludeID:       excludeID,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		ids := make([]string, 0, len(conflicts))
		for _, id := range conflicts {
			ids = append(ids, id.String())
		}
		writeJSON(w, http.StatusOK, ConflictCheckResponse{Conflicts: ids})
	}
}

func parseBooking(req BookAppointmentRequest) (*appointment.BookingRequest, string) {
	practitionerID, err := uuid.Parse(req.PractitionerID)
	if err != nil {
		return nil, "invalid_practitioner_id"
	}
	clinicID, err := uuid.Parse(req.ClinicID)
	if err != nil {
		return nil, "invalid_clinic_id"
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, "invalid_patient_id"
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, "invalid_date"
	}
	start, err := schedule.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, "invalid_start_time"
	}

	return &appointment.BookingRequest{
		ClinicID:        clinicID,
		PractitionerID:  practitionerID,
		PatientID:       patientID,
		ServiceType:     req.ServiceType,
		Date:            date,
		StartTime:       start,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		Emergency:       req.Emergency,
	}, ""
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrBookingConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, appointment.ErrSlotContended):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrNoSlotsAvailable):
		writeError(w, http.StatusConflict, "no_slots_available", err.Error())
	case errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
