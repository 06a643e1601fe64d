package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// CompletionRecord is the payload the side-effect coordinator applies when an
// appointment is completed. Diagnosis is mandatory; a prescription is issued
// only when Medications is non-empty.
type CompletionRecord struct {
	Diagnosis   string
	Treatment   string
	Notes       string
	Medications []Medication
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	UpdateDoctorAvailability(ctx context.Context, doctorID uuid.UUID, avail WeeklyAvailability) error

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// FindActiveAppointment is the conflict check: an exact (doctor, date,
	// time) match with status != cancelled.
	FindActiveAppointment(ctx context.Context, doctorID uuid.UUID, date time.Time, timeOfDay string) (*Appointment, error)

	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	// UpdateAppointmentStatus is a compare-and-swap: the row is updated only
	// if its current status is one of from. No matching row means
	// ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error)

	// CompleteAppointment applies the completion transition and its side
	// effects (medical-history append, optional prescription) as one
	// transaction.
	CompleteAppointment(ctx context.Context, id uuid.UUID, rec CompletionRecord) (*Appointment, *Prescription, error)

	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error)

	ListMedicalHistory(ctx context.Context, patientID uuid.UUID) ([]HistoryEntry, error)
	ListPrescriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]Prescription, error)
	ListPrescriptionsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Prescription, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
