package booking

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carebook/carebook/internal/apperr"
	"github.com/carebook/carebook/internal/http/middleware"
	"github.com/carebook/carebook/pkg/logging"
)

// Handler exposes the booking service over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type bookAppointmentRequest struct {
	DoctorID      string `json:"docId"`
	SlotDate      string `json:"slotDate"`
	SlotTime      string `json:"slotTime"`
	PaymentMethod string `json:"paymentMethod"`
	Amount        int64  `json:"amount,omitempty"`
}

type verifyPaymentRequest struct {
	Provider string         `json:"provider"`
	Payload  map[string]any `json:"payload"`
}

// envelope is the response shape shared by all booking endpoints.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// BookAppointment handles POST /api/appointments.
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.PatientIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Message: "not authorized"})
		return
	}

	var req bookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid request body"})
		return
	}

	res, err := h.svc.BookAppointment(r.Context(), BookRequest{
		PatientID:     patientID,
		DoctorID:      req.DoctorID,
		SlotDate:      req.SlotDate,
		SlotTime:      req.SlotTime,
		PaymentMethod: req.PaymentMethod,
		AmountHint:    req.Amount,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "Appointment Booked", Data: res})
}

// ListAppointments handles GET /api/appointments.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.PatientIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Message: "not authorized"})
		return
	}

	appts, err := h.svc.ListAppointments(r.Context(), patientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: appts})
}

// CancelAppointment handles POST /api/appointments/{appointmentID}/cancel.
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.PatientIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Message: "not authorized"})
		return
	}

	appointmentID := chi.URLParam(r, "appointmentID")
	if err := h.svc.CancelAppointment(r.Context(), patientID, appointmentID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Appointment Cancelled"})
}

// VerifyPayment handles POST /api/payments/verify.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid request body"})
		return
	}

	v, err := h.svc.VerifyPayment(r.Context(), req.Provider, req.Payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !v.Verified {
		writeJSON(w, http.StatusOK, envelope{Success: false, Message: "Payment Failed"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Payment Successful", Data: v.Payload})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, envelope{Success: false, Message: apperr.ClientMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
