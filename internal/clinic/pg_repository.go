package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var phone *string
	var availability []byte

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialization,
		&phone,
		&availability,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Phone = phone
	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &d.Availability); err != nil {
			return nil, fmt.Errorf("decode availability: %w", err)
		}
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var phone, bloodGroup *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&phone,
		&bloodGroup,
		&p.Allergies,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Phone = phone
	p.BloodGroup = bloodGroup
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var diagnosis, treatment, notes *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.DoctorID,
		&a.DoctorName,
		&a.Date,
		&a.Time,
		&a.Reason,
		&a.Status,
		&diagnosis,
		&treatment,
		&notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Diagnosis = diagnosis
	a.Treatment = treatment
	a.Notes = notes
	return &a, nil
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	var medications []byte
	var instructions *string

	err := row.Scan(
		&p.ID,
		&p.PatientID,
		&p.PatientName,
		&p.DoctorID,
		&p.DoctorName,
		&medications,
		&instructions,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(medications, &p.Medications); err != nil {
		return nil, fmt.Errorf("decode medications: %w", err)
	}
	p.Instructions = instructions
	return &p, nil
}

const appointmentColumns = `id, patient_id, patient_name, doctor_id, doctor_name,
	date, time, reason, status, diagnosis, treatment, notes, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialization, phone, availability, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, blood_group, allergies, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) UpdateDoctorAvailability(ctx context.Context, doctorID uuid.UUID, avail WeeklyAvailability) error {
	data, err := json.Marshal(avail)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE doctors
		SET availability = $2,
		    updated_at = now()
		WHERE id = $1
	`, doctorID, data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindActiveAppointment(ctx context.Context, doctorID uuid.UUID, date time.Time, timeOfDay string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND date = $2
		  AND time = $3
		  AND status <> 'cancelled'
		LIMIT 1
	`, doctorID, date, timeOfDay)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, patient_name, doctor_id, doctor_name, date, time, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.PatientID, appt.PatientName, appt.DoctorID, appt.DoctorName, appt.Date, appt.Time, appt.Reason)

	created, err := scanAppointment(row)
	if err != nil {
		// The partial unique index on active (doctor, date, time) triples is
		// the authoritative guard; a second writer surfaces here.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrSlotConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+appointmentColumns+`
	`, id, to, statusStrings(from))

	return scanAppointment(row)
}

func (r *PgRepository) CompleteAppointment(ctx context.Context, id uuid.UUID, rec CompletionRecord) (*Appointment, *Prescription, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin completion tx: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    diagnosis = $2,
		    treatment = $3,
		    notes = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+appointmentColumns+`
	`, id, rec.Diagnosis, nullableText(rec.Treatment), nullableText(rec.Notes))

	appt, err := scanAppointment(row)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO medical_history (patient_id, date, diagnosis, treatment, doctor_name, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, appt.PatientID, appt.Date, rec.Diagnosis, rec.Treatment, appt.DoctorName)
	if err != nil {
		return nil, nil, r.abortCompletion(ctx, tx, fmt.Errorf("append medical history: %w", err))
	}

	var prescription *Prescription
	if len(rec.Medications) > 0 {
		medications, mErr := json.Marshal(rec.Medications)
		if mErr != nil {
			return nil, nil, r.abortCompletion(ctx, tx, fmt.Errorf("encode medications: %w", mErr))
		}

		prescRow := tx.QueryRow(ctx, `
			INSERT INTO prescriptions
				(id, patient_id, patient_name, doctor_id, doctor_name, medications, instructions, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			RETURNING id, patient_id, patient_name, doctor_id, doctor_name, medications, instructions, created_at
		`, uuid.New(), appt.PatientID, appt.PatientName, appt.DoctorID, appt.DoctorName,
			medications, nullableText(rec.Notes))

		prescription, err = scanPrescription(prescRow)
		if err != nil {
			return nil, nil, r.abortCompletion(ctx, tx, fmt.Errorf("create prescription: %w", err))
		}
	}

	if err := r.finishCompletion(ctx, tx); err != nil {
		return nil, nil, err
	}

	return appt, prescription, nil
}

// finishCompletion commits the transaction. A failed commit is ambiguous:
// the server may have applied the whole unit without the client learning of
// it, so it is classified for reconciliation like a failed rollback.
func (r *PgRepository) finishCompletion(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit completion: %v", ErrPartialCompletion, err)
	}
	return nil
}

// abortCompletion rolls the transaction back after the status write has been
// staged. A rollback failure here means the database may hold a completed
// appointment without its side effects, so it is surfaced as the distinct
// partial-completion error instead of a plain write error.
func (r *PgRepository) abortCompletion(ctx context.Context, tx pgx.Tx, cause error) error {
	if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: %v (rollback: %v)", ErrPartialCompletion, cause, rbErr)
	}
	return cause
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY date DESC, time DESC
		LIMIT $2 OFFSET $3
	`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListMedicalHistory(ctx context.Context, patientID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, date, diagnosis, treatment, doctor_name, created_at
		FROM medical_history
		WHERE patient_id = $1
		ORDER BY id
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.PatientID, &e.Date, &e.Diagnosis, &e.Treatment, &e.DoctorName, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListPrescriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]Prescription, error) {
	return r.listPrescriptions(ctx, `patient_id`, patientID)
}

func (r *PgRepository) ListPrescriptionsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Prescription, error) {
	return r.listPrescriptions(ctx, `doctor_id`, doctorID)
}

func (r *PgRepository) listPrescriptions(ctx context.Context, column string, id uuid.UUID) ([]Prescription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, patient_name, doctor_id, doctor_name, medications, instructions, created_at
		FROM prescriptions
		WHERE `+column+` = $1
		ORDER BY created_at DESC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
