package api

import (
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/appointment"
	"github.com/clinicdesk/clinic-scheduling/internal/schedule"
)

type SlotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
	IsPeak    bool   `json:"is_peak"`
}

type AvailabilityResponse struct {
	Date           string         `json:"date"`
	PractitionerID string         `json:"practitioner_id"`
	ClinicID       string         `json:"clinic_id"`
	Source         string         `json:"source"`
	Provisional    bool           `json:"provisional"`
	Slots          []SlotResponse `json:"slots"`
}

type BookAppointmentRequest struct {
	PractitionerID  string `json:"practitioner_id"`
	ClinicID        string `json:"clinic_id"`
	PatientID       string `json:"patient_id"`
	ServiceType     string `json:"service_type"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes,omitempty"`
	Emergency       bool   `json:"emergency,omitempty"`
}

type AutoBookAppointmentRequest struct {
	PractitionerID  string `json:"practitioner_id"`
	ClinicID        string `json:"clinic_id"`
	PatientID       string `json:"patient_id"`
	ServiceType     string `json:"service_type"`
	Date            string `json:"date"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes,omitempty"`
	Emergency       bool   `json:"emergency,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID              string    `json:"id"`
	PractitionerID  *string   `json:"practitioner_id,omitempty"`
	ClinicID        string    `json:"clinic_id"`
	PatientID       string    `json:"patient_id"`
	ServiceType     string    `json:"service_type"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	Emergency       bool      `json:"emergency"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ConflictCheckResponse struct {
	Conflicts []string `json:"conflicting_appointment_ids"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID.String(),
		ClinicID:        a.ClinicID.String(),
		PatientID:       a.PatientID.String(),
		ServiceType:     a.ServiceType,
		Date:            appointment.DateKey(a.Date),
		StartTime:       a.StartTime.String(),
		EndTime:         a.StartTime.Add(a.DurationMinutes).String(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Notes:           a.Notes,
		Emergency:       a.Emergency,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.PractitionerID != nil {
		id := a.PractitionerID.String()
		resp.PractitionerID = &id
	}
	return resp
}

func toAvailabilityResponse(clinicID, practitionerID, date string, avail *schedule.Availability) AvailabilityResponse {
	slots := make([]SlotResponse, 0, len(avail.Slots))
	for _, s := range avail.Slots {
		slots = append(slots, SlotResponse{
			StartTime: s.Start.String(),
			EndTime:   s.End.String(),
			Available: s.Available,
			IsPeak:    s.IsPeak,
		})
	}
	return AvailabilityResponse{
		Date:           date,
		PractitionerID: practitionerID,
		ClinicID:       clinicID,
		Source:         string(avail.Source),
		Provisional:    avail.Source == schedule.SourceDegraded,
		Slots:          slots,
	}
}
