package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medidesk/clinic-scheduling/internal/clinic"
)

type BookAppointmentRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	Time      string `json:"time"` // HH:MM
	Reason    string `json:"reason,omitempty"`
}

type ConfirmAppointmentRequest struct {
	DoctorID string `json:"doctor_id"`
}

type CancelAppointmentRequest struct {
	CallerID string `json:"caller_id"`
}

type CompleteAppointmentRequest struct {
	DoctorID    string              `json:"doctor_id"`
	Diagnosis   string              `json:"diagnosis"`
	Treatment   string              `json:"treatment,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	Medications []clinic.Medication `json:"medications,omitempty"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	DoctorName  string    `json:"doctor_name"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Reason      string    `json:"reason,omitempty"`
	Status      string    `json:"status"`
	Diagnosis   *string   `json:"diagnosis,omitempty"`
	Treatment   *string   `json:"treatment,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type PrescriptionResponse struct {
	ID           uuid.UUID           `json:"id"`
	PatientID    uuid.UUID           `json:"patient_id"`
	PatientName  string              `json:"patient_name"`
	DoctorID     uuid.UUID           `json:"doctor_id"`
	DoctorName   string              `json:"doctor_name"`
	Medications  []clinic.Medication `json:"medications"`
	Instructions *string             `json:"instructions,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

type CompleteAppointmentResponse struct {
	Appointment  AppointmentResponse   `json:"appointment"`
	Prescription *PrescriptionResponse `json:"prescription,omitempty"`
}

type HistoryEntryResponse struct {
	Date       string `json:"date"`
	Diagnosis  string `json:"diagnosis"`
	Treatment  string `json:"treatment,omitempty"`
	DoctorName string `json:"doctor_name"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *clinic.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		PatientName: a.PatientName,
		DoctorID:    a.DoctorID,
		DoctorName:  a.DoctorName,
		Date:        a.Date.Format(time.DateOnly),
		Time:        a.Time,
		Reason:      a.Reason,
		Status:      string(a.Status),
		Diagnosis:   a.Diagnosis,
		Treatment:   a.Treatment,
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt,
	}
}

func toPrescriptionResponse(p *clinic.Prescription) PrescriptionResponse {
	return PrescriptionResponse{
		ID:           p.ID,
		PatientID:    p.PatientID,
		PatientName:  p.PatientName,
		DoctorID:     p.DoctorID,
		DoctorName:   p.DoctorName,
		Medications:  p.Medications,
		Instructions: p.Instructions,
		CreatedAt:    p.CreatedAt,
	}
}
