// Package router wires the HTTP surface: public doctor directory and health
// checks, plus JWT-guarded booking and payment endpoints.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/internal/doctors"
	httpmiddleware "github.com/carebook/carebook/internal/http/middleware"
	"github.com/carebook/carebook/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	BookingHandler     *booking.Handler
	DoctorsHandler     *doctors.Handler
	MetricsHandler     http.Handler
	UserJWTSecret      string
	CORSAllowedOrigins []string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints.
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.DoctorsHandler != nil {
		r.Get("/api/doctors", cfg.DoctorsHandler.List)
	}

	// Patient endpoints require a signed token.
	if cfg.BookingHandler != nil {
		r.Group(func(patient chi.Router) {
			patient.Use(httpmiddleware.PatientJWT(cfg.UserJWTSecret))
			patient.Post("/api/appointments", cfg.BookingHandler.BookAppointment)
			patient.Get("/api/appointments", cfg.BookingHandler.ListAppointments)
			patient.Post("/api/appointments/{appointmentID}/cancel", cfg.BookingHandler.CancelAppointment)
			patient.Post("/api/payments/verify", cfg.BookingHandler.VerifyPayment)
		})
	}

	return r
}
