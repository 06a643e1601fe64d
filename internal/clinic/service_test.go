package clinic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/medidesk/clinic-scheduling/internal/redis"
)

// -- In-memory repository --

type memRepo struct {
	mu            sync.Mutex
	doctors       map[uuid.UUID]*Doctor
	patients      map[uuid.UUID]*Patient
	appointments  map[uuid.UUID]*Appointment
	history       []HistoryEntry
	prescriptions []Prescription
	events        []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:      make(map[uuid.UUID]*Doctor),
		patients:     make(map[uuid.UUID]*Patient),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (m *memRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) UpdateDoctorAvailability(_ context.Context, doctorID uuid.UUID, avail WeeklyAvailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[doctorID]
	if !ok {
		return ErrDoctorNotFound
	}
	d.Availability = avail
	return nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) FindActiveAppointment(_ context.Context, doctorID uuid.UUID, date time.Time, timeOfDay string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.findActiveLocked(doctorID, date, timeOfDay); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, ErrAppointmentNotFound
}

func (m *memRepo) findActiveLocked(doctorID uuid.UUID, date time.Time, timeOfDay string) *Appointment {
	for _, a := range m.appointments {
		if a.DoctorID == doctorID &&
			a.Date.Format(time.DateOnly) == date.Format(time.DateOnly) &&
			a.Time == timeOfDay &&
			a.Status.Active() {
			return a
		}
	}
	return nil
}

func (m *memRepo) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Mirror the partial unique index on active (doctor, date, time).
	if m.findActiveLocked(appt.DoctorID, appt.Date, appt.Time) != nil {
		return nil, ErrSlotConflict
	}

	now := time.Now()
	cp := *appt
	cp.ID = uuid.New()
	cp.Status = StatusPending
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.appointments[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (m *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || !statusIn(a.Status, from) {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) CompleteAppointment(_ context.Context, id uuid.UUID, rec CompletionRecord) (*Appointment, *Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || !statusIn(a.Status, []Status{StatusPending, StatusConfirmed}) {
		return nil, nil, ErrAppointmentNotFound
	}

	a.Status = StatusCompleted
	a.Diagnosis = &rec.Diagnosis
	if rec.Treatment != "" {
		a.Treatment = &rec.Treatment
	}
	if rec.Notes != "" {
		a.Notes = &rec.Notes
	}
	a.UpdatedAt = time.Now()

	m.history = append(m.history, HistoryEntry{
		ID:         int64(len(m.history) + 1),
		PatientID:  a.PatientID,
		Date:       a.Date,
		Diagnosis:  rec.Diagnosis,
		Treatment:  rec.Treatment,
		DoctorName: a.DoctorName,
		CreatedAt:  time.Now(),
	})

	var prescription *Prescription
	if len(rec.Medications) > 0 {
		meds := make([]Medication, len(rec.Medications))
		copy(meds, rec.Medications)

		p := Prescription{
			ID:          uuid.New(),
			PatientID:   a.PatientID,
			PatientName: a.PatientName,
			DoctorID:    a.DoctorID,
			DoctorName:  a.DoctorName,
			Medications: meds,
			CreatedAt:   time.Now(),
		}
		if rec.Notes != "" {
			notes := rec.Notes
			p.Instructions = &notes
		}
		m.prescriptions = append(m.prescriptions, p)
		prescription = &p
	}

	cp := *a
	return &cp, prescription, nil
}

func (m *memRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) ListAppointmentsByDoctor(_ context.Context, doctorID uuid.UUID, _, _ int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) ListMedicalHistory(_ context.Context, patientID uuid.UUID) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HistoryEntry
	for _, e := range m.history {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepo) ListPrescriptionsByPatient(_ context.Context, patientID uuid.UUID) ([]Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Prescription
	for _, p := range m.prescriptions {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) ListPrescriptionsByDoctor(_ context.Context, doctorID uuid.UUID) ([]Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Prescription
	for _, p := range m.prescriptions {
		if p.DoctorID == doctorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memRepo) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.EventType
	}
	return out
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// -- In-memory locker --

type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *memLocker) WithBookingLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

// contendedLocker refuses the first failures acquisitions, then behaves
// like an uncontended lock.
type contendedLocker struct {
	mu       sync.Mutex
	failures int
	attempts int
}

func (l *contendedLocker) WithBookingLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.attempts++
	contended := l.attempts <= l.failures
	l.mu.Unlock()

	if contended {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

// eventFailRepo simulates an unavailable event store.
type eventFailRepo struct {
	*memRepo
}

func (r *eventFailRepo) InsertEvent(context.Context, EventLog) error {
	return errors.New("event store unavailable")
}

// -- Fixtures --

type testEnv struct {
	svc     *Service
	repo    *memRepo
	doctor  *Doctor
	patient *Patient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := newMemRepo()

	doctor := &Doctor{
		ID:             uuid.New(),
		Name:           "Dr. Smith",
		Specialization: "Cardiology",
		Availability:   mondayNineToFive(),
	}
	patient := &Patient{
		ID:   uuid.New(),
		Name: "Jane Roe",
	}
	repo.doctors[doctor.ID] = doctor
	repo.patients[patient.ID] = patient

	return &testEnv{
		svc:     NewService(repo, newMemLocker()),
		repo:    repo,
		doctor:  doctor,
		patient: patient,
	}
}

func (e *testEnv) book(t *testing.T, timeOfDay string) *Appointment {
	t.Helper()
	appt, err := e.svc.BookAppointment(context.Background(), e.patient.ID, e.doctor.ID, monday, timeOfDay, "checkup")
	require.NoError(t, err)
	return appt
}

// -- Booking --

func TestBookAppointment(t *testing.T) {
	env := newTestEnv(t)

	appt, err := env.svc.BookAppointment(context.Background(), env.patient.ID, env.doctor.ID, monday, "10:00", "chest pain")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, env.patient.ID, appt.PatientID)
	assert.Equal(t, "Jane Roe", appt.PatientName)
	assert.Equal(t, env.doctor.ID, appt.DoctorID)
	assert.Equal(t, "Dr. Smith", appt.DoctorName)
	assert.Equal(t, "10:00", appt.Time)
	assert.Equal(t, "chest pain", appt.Reason)
	assert.NotEqual(t, uuid.Nil, appt.ID)

	assert.Contains(t, env.repo.eventTypes(), EventAppointmentBooked)
}

func TestBookAppointment_WindowBoundaries(t *testing.T) {
	env := newTestEnv(t)

	// Inclusive at both ends.
	env.book(t, "09:00")
	env.book(t, "17:00")

	_, err := env.svc.BookAppointment(context.Background(), env.patient.ID, env.doctor.ID, monday, "08:59", "")
	require.ErrorIs(t, err, ErrOutsideAvailability)

	var windowErr *WindowError
	require.ErrorAs(t, err, &windowErr)
	assert.Equal(t, "09:00", windowErr.Start)
	assert.Equal(t, "17:00", windowErr.End)
}

func TestBookAppointment_UnavailableDay(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.BookAppointment(context.Background(), env.patient.ID, env.doctor.ID, tuesday, "10:00", "")
	require.ErrorIs(t, err, ErrDoctorUnavailable)
}

func TestBookAppointment_MalformedTime(t *testing.T) {
	env := newTestEnv(t)

	for _, bad := range []string{"9:30", "10am", "25:00"} {
		_, err := env.svc.BookAppointment(context.Background(), env.patient.ID, env.doctor.ID, monday, bad, "")
		require.ErrorIs(t, err, ErrInvalidTimeFormat, "time %q", bad)
	}

	// Rejected before any repo lookup, so no partial state.
	assert.Empty(t, env.repo.appointments)
}

func TestBookAppointment_UnknownParties(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.BookAppointment(context.Background(), uuid.New(), env.doctor.ID, monday, "10:00", "")
	require.ErrorIs(t, err, ErrPatientNotFound)

	_, err = env.svc.BookAppointment(context.Background(), env.patient.ID, uuid.New(), monday, "10:00", "")
	require.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestBookAppointment_SlotConflict(t *testing.T) {
	env := newTestEnv(t)

	env.book(t, "10:00")

	otherPatient := &Patient{ID: uuid.New(), Name: "John Doe"}
	env.repo.patients[otherPatient.ID] = otherPatient

	_, err := env.svc.BookAppointment(context.Background(), otherPatient.ID, env.doctor.ID, monday, "10:00", "")
	require.ErrorIs(t, err, ErrSlotConflict)

	// Near-duplicate times do not conflict; equality is exact.
	_, err = env.svc.BookAppointment(context.Background(), otherPatient.ID, env.doctor.ID, monday, "10:01", "")
	require.NoError(t, err)
}

func TestBookAppointment_CancelFreesSlot(t *testing.T) {
	env := newTestEnv(t)

	first := env.book(t, "10:00")

	_, err := env.svc.BookAppointment(context.Background(), env.patient.ID, env.doctor.ID, monday, "10:00", "")
	require.ErrorIs(t, err, ErrSlotConflict)

	_, err = env.svc.CancelAppointment(context.Background(), first.ID, env.patient.ID)
	require.NoError(t, err)

	retried, err := env.svc.BookAppointment(context.Background(), env.patient.ID, env.doctor.ID, monday, "10:00", "")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, retried.Status)
}

func TestBookAppointment_ConcurrentSameSlot(t *testing.T) {
	env := newTestEnv(t)

	otherPatient := &Patient{ID: uuid.New(), Name: "John Doe"}
	env.repo.patients[otherPatient.ID] = otherPatient

	patients := []uuid.UUID{env.patient.ID, otherPatient.ID}
	errs := make([]error, len(patients))

	var wg sync.WaitGroup
	for i, pid := range patients {
		wg.Add(1)
		go func(i int, pid uuid.UUID) {
			defer wg.Done()
			_, errs[i] = env.svc.BookAppointment(context.Background(), pid, env.doctor.ID, monday, "11:00", "")
		}(i, pid)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ErrSlotConflict):
			conflicts++
		}
	}

	// Exactly one winner, the loser sees an ordinary conflict.
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
}

func TestBookAppointment_LockRaceRetriesOnce(t *testing.T) {
	env := newTestEnv(t)

	locker := &contendedLocker{failures: 1}
	svc := NewService(env.repo, locker)

	appt, err := svc.BookAppointment(context.Background(), env.patient.ID, env.doctor.ID, monday, "10:00", "")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, 2, locker.attempts)
}

func TestBookAppointment_LockStillHeldAfterRetry(t *testing.T) {
	env := newTestEnv(t)

	locker := &contendedLocker{failures: 2}
	svc := NewService(env.repo, locker)

	_, err := svc.BookAppointment(context.Background(), env.patient.ID, env.doctor.ID, monday, "10:00", "")
	require.ErrorIs(t, err, ErrBookingInProgress)
	assert.Equal(t, 2, locker.attempts, "exactly one retry")
	assert.Empty(t, env.repo.appointments)
}

func TestEventLogFailureDoesNotAffectOutcomes(t *testing.T) {
	env := newTestEnv(t)

	svc := NewService(&eventFailRepo{env.repo}, newMemLocker())

	appt, err := svc.BookAppointment(context.Background(), env.patient.ID, env.doctor.ID, monday, "10:00", "flu symptoms")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)

	completed, prescription, err := svc.CompleteAppointment(context.Background(), appt.ID, env.doctor.ID, CompletionRecord{
		Diagnosis:   "Flu",
		Medications: []Medication{{Name: "Oseltamivir", Dosage: "75mg", Frequency: "2x daily", Duration: "5 days"}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, prescription)

	history, err := svc.GetMedicalHistory(context.Background(), env.patient.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

// -- Confirm --

func TestConfirmAppointment(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, "10:00")

	confirmed, err := env.svc.ConfirmAppointment(context.Background(), appt.ID, env.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Contains(t, env.repo.eventTypes(), EventAppointmentConfirmed)
}

func TestConfirmAppointment_WrongDoctor(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, "10:00")

	_, err := env.svc.ConfirmAppointment(context.Background(), appt.ID, uuid.New())
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestConfirmAppointment_NotPending(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, "10:00")

	_, err := env.svc.ConfirmAppointment(context.Background(), appt.ID, env.doctor.ID)
	require.NoError(t, err)

	_, err = env.svc.ConfirmAppointment(context.Background(), appt.ID, env.doctor.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, StatusConfirmed, transitionErr.From)
	assert.Equal(t, "confirm", transitionErr.Attempted)
}

// -- Cancel --

func TestCancelAppointment_ByDoctor(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, "10:00")

	cancelled, err := env.svc.CancelAppointment(context.Background(), appt.ID, env.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

func TestCancelAppointment_ConfirmedIsCancellable(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, "10:00")

	_, err := env.svc.ConfirmAppointment(context.Background(), appt.ID, env.doctor.ID)
	require.NoError(t, err)

	_, err = env.svc.CancelAppointment(context.Background(), appt.ID, env.patient.ID)
	require.NoError(t, err)
}

func TestCancelAppointment_Stranger(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, "10:00")

	_, err := env.svc.CancelAppointment(context.Background(), appt.ID, uuid.New())
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelAppointment_Terminal(t *testing.T) {
	env := newTestEnv(t)

	appt := env.book(t, "10:00")
	_, err := env.svc.CancelAppointment(context.Background(), appt.ID, env.patient.ID)
	require.NoError(t, err)

	// Cancelled is terminal.
	_, err = env.svc.CancelAppointment(context.Background(), appt.ID, env.patient.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// Completed is terminal too.
	completed := env.book(t, "12:00")
	_, _, err = env.svc.CompleteAppointment(context.Background(), completed.ID, env.doctor.ID, CompletionRecord{Diagnosis: "Flu"})
	require.NoError(t, err)

	_, err = env.svc.CancelAppointment(context.Background(), completed.ID, env.patient.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

// -- Complete --

func TestCompleteAppointment_NoMedications(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, "10:00")

	completed, prescription, err := env.svc.CompleteAppointment(context.Background(), appt.ID, env.doctor.ID, CompletionRecord{
		Diagnosis: "Flu",
		Treatment: "Rest and fluids",
	})
	require.NoError(t, err)
	require.Nil(t, prescription)

	assert.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, completed.Diagnosis)
	assert.Equal(t, "Flu", *completed.Diagnosis)

	history, err := env.svc.GetMedicalHistory(context.Background(), env.patient.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Flu", history[0].Diagnosis)
	assert.Equal(t, "Rest and fluids", history[0].Treatment)
	assert.Equal(t, "Dr. Smith", history[0].DoctorName)
	assert.Equal(t, appt.Date, history[0].Date)

	prescriptions, err := env.svc.ListPrescriptionsByPatient(context.Background(), env.patient.ID)
	require.NoError(t, err)
	assert.Empty(t, prescriptions)
}

func TestCompleteAppointment_WithMedications(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, "10:00")

	meds := []Medication{
		{Name: "Amoxicillin", Dosage: "500mg", Frequency: "3x daily", Duration: "7 days"},
		{Name: "Ibuprofen", Dosage: "200mg", Frequency: "as needed", Duration: "5 days"},
	}

	_, prescription, err := env.svc.CompleteAppointment(context.Background(), appt.ID, env.doctor.ID, CompletionRecord{
		Diagnosis:   "Sinusitis",
		Notes:       "Finish the full antibiotic course",
		Medications: meds,
	})
	require.NoError(t, err)
	require.NotNil(t, prescription)

	// Exactly one prescription, medications in the given order.
	prescriptions, err := env.svc.ListPrescriptionsByPatient(context.Background(), env.patient.ID)
	require.NoError(t, err)
	require.Len(t, prescriptions, 1)

	assert.Equal(t, meds, prescription.Medications)
	assert.Equal(t, "Jane Roe", prescription.PatientName)
	assert.Equal(t, "Dr. Smith", prescription.DoctorName)
	require.NotNil(t, prescription.Instructions)
	assert.Equal(t, "Finish the full antibiotic course", *prescription.Instructions)

	assert.Contains(t, env.repo.eventTypes(), EventPrescriptionIssued)
}

func TestCompleteAppointment_MissingDiagnosis(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, "10:00")

	for _, diagnosis := range []string{"", "   "} {
		_, _, err := env.svc.CompleteAppointment(context.Background(), appt.ID, env.doctor.ID, CompletionRecord{Diagnosis: diagnosis})
		require.ErrorIs(t, err, ErrMissingRequiredField)
	}

	// Nothing applied.
	current, err := env.svc.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, current.Status)

	history, err := env.svc.GetMedicalHistory(context.Background(), env.patient.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCompleteAppointment_WrongDoctor(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, "10:00")

	_, _, err := env.svc.CompleteAppointment(context.Background(), appt.ID, uuid.New(), CompletionRecord{Diagnosis: "Flu"})
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCompleteAppointment_Terminal(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(t, "10:00")

	_, _, err := env.svc.CompleteAppointment(context.Background(), appt.ID, env.doctor.ID, CompletionRecord{Diagnosis: "Flu"})
	require.NoError(t, err)

	_, _, err = env.svc.CompleteAppointment(context.Background(), appt.ID, env.doctor.ID, CompletionRecord{Diagnosis: "Flu"})
	require.ErrorIs(t, err, ErrInvalidTransition)

	history, err := env.svc.GetMedicalHistory(context.Background(), env.patient.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "second attempt must not append history again")
}

// -- Availability management --

func TestSetAvailability(t *testing.T) {
	env := newTestEnv(t)

	var avail WeeklyAvailability
	avail.Set(time.Tuesday, &Window{Start: "08:00", End: "12:00"})

	require.NoError(t, env.svc.SetAvailability(context.Background(), env.doctor.ID, avail))

	got, err := env.svc.GetAvailability(context.Background(), env.doctor.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WindowFor(time.Tuesday))
	assert.Equal(t, "08:00", got.WindowFor(time.Tuesday).Start)
	assert.Nil(t, got.WindowFor(time.Monday))

	// Bookings follow the new schedule.
	_, err = env.svc.BookAppointment(context.Background(), env.patient.ID, env.doctor.ID, tuesday, "09:00", "")
	require.NoError(t, err)
	_, err = env.svc.BookAppointment(context.Background(), env.patient.ID, env.doctor.ID, monday, "10:00", "")
	require.ErrorIs(t, err, ErrDoctorUnavailable)
}

func TestSetAvailability_RejectsMalformedWindows(t *testing.T) {
	env := newTestEnv(t)

	var overnight WeeklyAvailability
	overnight.Set(time.Friday, &Window{Start: "20:00", End: "04:00"})

	err := env.svc.SetAvailability(context.Background(), env.doctor.ID, overnight)
	require.ErrorIs(t, err, ErrInvalidTimeFormat)

	err = env.svc.SetAvailability(context.Background(), uuid.New(), WeeklyAvailability{})
	require.ErrorIs(t, err, ErrDoctorNotFound)
}

// sanity check that the fixtures line up with the real weekday calendar
func TestFixtureDates(t *testing.T) {
	if monday.Weekday() != time.Monday {
		t.Fatalf("monday fixture is a %s", monday.Weekday())
	}
	if tuesday.Weekday() != time.Tuesday {
		t.Fatalf("tuesday fixture is a %s", tuesday.Weekday())
	}
}
