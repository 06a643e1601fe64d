package clinic

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the appointment still occupies its slot.
// Cancellation frees the slot permanently.
func (s Status) Active() bool { return s != StatusCancelled }

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization string
	Phone          *string
	Availability   WeeklyAvailability
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Patient struct {
	ID         uuid.UUID
	Name       string
	Phone      *string
	BloodGroup *string
	Allergies  []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Appointment carries the display names of both parties as captured at
// creation time. They never change afterwards, even if a profile is renamed.
type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	PatientName string
	DoctorID    uuid.UUID
	DoctorName  string
	Date        time.Time // civil date, facility-local, no time component
	Time        string    // canonical HH:MM
	Reason      string
	Status      Status
	Diagnosis   *string
	Treatment   *string
	Notes       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HistoryEntry is one record in a patient's append-only medical history.
// Entries are written only when an appointment is completed.
type HistoryEntry struct {
	ID         int64
	PatientID  uuid.UUID
	Date       time.Time
	Diagnosis  string
	Treatment  string
	DoctorName string
	CreatedAt  time.Time
}

type Medication struct {
	Name         string  `json:"name"`
	Dosage       string  `json:"dosage"`
	Frequency    string  `json:"frequency"`
	Duration     string  `json:"duration"`
	Instructions *string `json:"instructions,omitempty"`
}

type Prescription struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	PatientName  string
	DoctorID     uuid.UUID
	DoctorName   string
	Medications  []Medication
	Instructions *string
	CreatedAt    time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
