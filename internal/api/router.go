package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/medidesk/clinic-scheduling/internal/clinic"
)

type RouterConfig struct {
	Service *clinic.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment lifecycle
	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Service))

	// Patient reads
	r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(cfg.Service))
	r.Get("/patients/{id}/medical-history", medicalHistoryHandler(cfg.Service))
	r.Get("/patients/{id}/prescriptions", listPatientPrescriptionsHandler(cfg.Service))

	// Doctor reads and availability management
	r.Get("/doctors/{id}/appointments", listDoctorAppointmentsHandler(cfg.Service))
	r.Get("/doctors/{id}/prescriptions", listDoctorPrescriptionsHandler(cfg.Service))
	r.Get("/doctors/{id}/availability", getAvailabilityHandler(cfg.Service))
	r.Put("/doctors/{id}/availability", setAvailabilityHandler(cfg.Service))

	return r
}
