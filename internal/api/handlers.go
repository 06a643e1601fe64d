package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medidesk/clinic-scheduling/internal/clinic"
)

func bookAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		date, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appt, err := svc.BookAppointment(r.Context(), patientID, doctorID, date, req.Time, req.Reason)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func confirmAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req ConfirmAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		appt, err := svc.ConfirmAppointment(r.Context(), id, doctorID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		callerID, err := uuid.Parse(req.CallerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_caller_id", "caller_id must be a valid UUID")
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id, callerID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req CompleteAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		appt, prescription, err := svc.CompleteAppointment(r.Context(), id, doctorID, clinic.CompletionRecord{
			Diagnosis:   req.Diagnosis,
			Treatment:   req.Treatment,
			Notes:       req.Notes,
			Medications: req.Medications,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := CompleteAppointmentResponse{Appointment: toAppointmentResponse(appt)}
		if prescription != nil {
			p := toPrescriptionResponse(prescription)
			resp.Prescription = &p
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listPatientAppointmentsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		limit, offset := parsePage(r)
		appts, err := svc.ListAppointmentsByPatient(r.Context(), id, limit, offset)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentList(appts))
	}
}

func listDoctorAppointmentsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		limit, offset := parsePage(r)
		appts, err := svc.ListAppointmentsByDoctor(r.Context(), id, limit, offset)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentList(appts))
	}
}

func medicalHistoryHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		entries, err := svc.GetMedicalHistory(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]HistoryEntryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, HistoryEntryResponse{
				Date:       e.Date.Format(time.DateOnly),
				Diagnosis:  e.Diagnosis,
				Treatment:  e.Treatment,
				DoctorName: e.DoctorName,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listPatientPrescriptionsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		prescriptions, err := svc.ListPrescriptionsByPatient(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, prescriptionList(prescriptions))
	}
}

func listDoctorPrescriptionsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		prescriptions, err := svc.ListPrescriptionsByDoctor(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, prescriptionList(prescriptions))
	}
}

func getAvailabilityHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		avail, err := svc.GetAvailability(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, avail)
	}
}

func setAvailabilityHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var avail clinic.WeeklyAvailability
		if err := json.NewDecoder(r.Body).Decode(&avail); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		if err := svc.SetAvailability(r.Context(), id, avail); err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, avail)
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	var windowErr *clinic.WindowError
	var transitionErr *clinic.TransitionError

	switch {
	case errors.Is(err, clinic.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, clinic.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, clinic.ErrInvalidTimeFormat):
		writeError(w, http.StatusBadRequest, "invalid_time_format", err.Error())
	case errors.Is(err, clinic.ErrMissingRequiredField):
		writeError(w, http.StatusBadRequest, "missing_required_field", err.Error())
	case errors.Is(err, clinic.ErrDoctorUnavailable):
		writeError(w, http.StatusConflict, "doctor_unavailable", err.Error())
	case errors.As(err, &windowErr):
		writeError(w, http.StatusConflict, "outside_availability_window", windowErr.Error())
	case errors.Is(err, clinic.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, clinic.ErrBookingInProgress):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, "invalid_transition", transitionErr.Error())
	case errors.Is(err, clinic.ErrPartialCompletion):
		// Distinct code so operators know reconciliation may be needed.
		writeError(w, http.StatusInternalServerError, "partial_completion", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePage(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func appointmentList(appts []clinic.Appointment) []AppointmentResponse {
	resp := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		resp = append(resp, toAppointmentResponse(&appts[i]))
	}
	return resp
}

func prescriptionList(prescriptions []clinic.Prescription) []PrescriptionResponse {
	resp := make([]PrescriptionResponse, 0, len(prescriptions))
	for i := range prescriptions {
		resp = append(resp, toPrescriptionResponse(&prescriptions[i]))
	}
	return resp
}
