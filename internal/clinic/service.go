package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/medidesk/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventPrescriptionIssued   = "PRESCRIPTION_ISSUED"
)

// ErrBookingInProgress means another request still held the booking lock for
// the same slot after a retry. Retryable.
var ErrBookingInProgress = errors.New("slot is currently being booked, please retry")

// How long to wait before the single lock-acquisition retry. The holder's
// critical section is one conflict check plus one insert, normally well
// under this.
const lockRetryDelay = 50 * time.Millisecond

type Service struct {
	repo   Repository
	locker redisclient.Locker
}

func NewService(repo Repository, locker redisclient.Locker) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
	}
}

// BookAppointment validates a requested slot against the doctor's weekly
// availability and, if free, creates a pending appointment. Conflict check
// and insert run under a per-slot distributed lock so that concurrent
// requests for the same (doctor, date, time) cannot both succeed.
func (s *Service) BookAppointment(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, timeOfDay, reason string) (*Appointment, error) {
	// Canonical form is required before any lookup happens.
	if _, err := ParseTimeOfDay(timeOfDay); err != nil {
		return nil, err
	}

	patient, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	if err := ValidateSlot(doctor.Availability, date, timeOfDay); err != nil {
		return nil, err
	}

	var created *Appointment

	book := func(lockCtx context.Context) error {
		// Re-check inside the critical section: another booking may have
		// landed between validation and lock acquisition.
		existing, err := s.repo.FindActiveAppointment(lockCtx, doctorID, date, timeOfDay)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check active appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotConflict
		}

		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			PatientID:   patientID,
			PatientName: patient.Name,
			DoctorID:    doctorID,
			DoctorName:  doctor.Name,
			Date:        date,
			Time:        timeOfDay,
			Reason:      reason,
			Status:      StatusPending,
		})
		if err != nil {
			return err
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
			"date":       date.Format(time.DateOnly),
			"time":       timeOfDay,
		})

		return nil
	}

	key := bookingKey(doctorID, date, timeOfDay)

	err = s.locker.WithBookingLock(ctx, key, book)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		// Losing the lock race normally means the holder is about to finish
		// booking this exact slot. Retry once so the caller usually gets the
		// definitive conflict answer instead of a try-again.
		select {
		case <-time.After(lockRetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		err = s.locker.WithBookingLock(ctx, key, book)
	}

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
		return nil, err
	}

	return created, nil
}

// ConfirmAppointment moves a pending appointment to confirmed. Only the
// appointment's own doctor may confirm; anyone else sees not-found, the same
// way a lookup scoped to the caller would.
func (s *Service) ConfirmAppointment(ctx context.Context, id, callerDoctorID uuid.UUID) (*Appointment, error) {
	appt, err := s.loadForDoctor(ctx, id, callerDoctorID)
	if err != nil {
		return nil, err
	}

	if appt.Status != StatusPending {
		return nil, &TransitionError{From: appt.Status, Attempted: "confirm"}
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, []Status{StatusPending}, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with another transition.
			return nil, &TransitionError{From: appt.Status, Attempted: "confirm"}
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})

	return updated, nil
}

// CancelAppointment cancels a pending or confirmed appointment, freeing the
// slot. The caller must be the appointment's patient or doctor.
func (s *Service) CancelAppointment(ctx context.Context, id, callerID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != callerID && appt.DoctorID != callerID {
		return nil, ErrAppointmentNotFound
	}

	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, &TransitionError{From: appt.Status, Attempted: "cancel"}
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, []Status{StatusPending, StatusConfirmed}, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, &TransitionError{From: appt.Status, Attempted: "cancel"}
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"cancelled_by": callerID.String(),
	})

	return updated, nil
}

// CompleteAppointment marks a pending or confirmed appointment completed and
// applies the side effects in one unit: exactly one medical-history entry on
// the patient, and exactly one prescription iff medications were supplied.
func (s *Service) CompleteAppointment(ctx context.Context, id, callerDoctorID uuid.UUID, rec CompletionRecord) (*Appointment, *Prescription, error) {
	if strings.TrimSpace(rec.Diagnosis) == "" {
		return nil, nil, fmt.Errorf("%w: diagnosis", ErrMissingRequiredField)
	}

	appt, err := s.loadForDoctor(ctx, id, callerDoctorID)
	if err != nil {
		return nil, nil, err
	}

	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, nil, &TransitionError{From: appt.Status, Attempted: "complete"}
	}

	completed, prescription, err := s.repo.CompleteAppointment(ctx, appt.ID, rec)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, nil, &TransitionError{From: appt.Status, Attempted: "complete"}
		}
		return nil, nil, err
	}

	s.logEvent(ctx, completed.ID, EventAppointmentCompleted, map[string]any{
		"diagnosis": rec.Diagnosis,
	})
	if prescription != nil {
		s.logEvent(ctx, completed.ID, EventPrescriptionIssued, map[string]any{
			"prescription_id": prescription.ID.String(),
			"medications":     len(prescription.Medications),
		})
	}

	return completed, prescription, nil
}

// SetAvailability replaces a doctor's weekly recurring windows.
func (s *Service) SetAvailability(ctx context.Context, doctorID uuid.UUID, avail WeeklyAvailability) error {
	if err := avail.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateDoctorAvailability(ctx, doctorID, avail)
}

// GetAvailability returns a doctor's weekly recurring windows.
func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID) (WeeklyAvailability, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return WeeklyAvailability{}, err
	}
	return doctor.Availability, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListAppointmentsByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) GetMedicalHistory(ctx context.Context, patientID uuid.UUID) ([]HistoryEntry, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListMedicalHistory(ctx, patientID)
}

func (s *Service) ListPrescriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]Prescription, error) {
	return s.repo.ListPrescriptionsByPatient(ctx, patientID)
}

func (s *Service) ListPrescriptionsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Prescription, error) {
	return s.repo.ListPrescriptionsByDoctor(ctx, doctorID)
}

// loadForDoctor fetches an appointment on behalf of a doctor. A caller that
// is not the appointment's doctor gets not-found rather than a hint that the
// appointment exists.
func (s *Service) loadForDoctor(ctx context.Context, id, callerDoctorID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != callerDoctorID {
		return nil, ErrAppointmentNotFound
	}
	return appt, nil
}

func bookingKey(doctorID uuid.UUID, date time.Time, timeOfDay string) string {
	return fmt.Sprintf("%s|%s|%s", doctorID, date.Format(time.DateOnly), timeOfDay)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
