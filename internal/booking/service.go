// Package booking orchestrates slot claims and payment-order creation.
//
// The booking sequence is a two-step saga, not a transaction: the slot ledger
// and the payment gateway are independent systems with no shared commit
// protocol. The atomic provisional insert is the only serialization point;
// if the payment order cannot be created afterwards, the claimed slot is
// released by a compensating delete.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carebook/carebook/internal/apperr"
	"github.com/carebook/carebook/internal/appointments"
	"github.com/carebook/carebook/internal/doctors"
	"github.com/carebook/carebook/internal/observability/metrics"
	"github.com/carebook/carebook/internal/patients"
	"github.com/carebook/carebook/internal/payments"
	"github.com/carebook/carebook/pkg/logging"
)

var tracer = otel.Tracer("carebook.internal.booking")

// Service coordinates the booking workflow. It holds no lock across the
// sequence; correctness under concurrent callers comes entirely from the
// ledger's uniqueness-enforcing insert.
type Service struct {
	doctors      doctors.Repository
	patients     patients.Repository
	ledger       appointments.Repository
	gateways     *payments.Registry
	metrics      *metrics.BookingMetrics
	logger       *logging.Logger
	orderRetries int
	orderTimeout time.Duration
}

// SetOrderTimeout bounds each payment-order attempt. Zero disables the bound.
func (s *Service) SetOrderTimeout(d time.Duration) {
	s.orderTimeout = d
}

// NewService wires the orchestrator. orderRetries bounds payment-order
// attempts; values below 1 are treated as 1. Retries are safe because orders
// are keyed by appointment id on the provider side.
func NewService(
	doctorRepo doctors.Repository,
	patientRepo patients.Repository,
	ledger appointments.Repository,
	gateways *payments.Registry,
	bookingMetrics *metrics.BookingMetrics,
	logger *logging.Logger,
	orderRetries int,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if orderRetries < 1 {
		orderRetries = 1
	}
	return &Service{
		doctors:      doctorRepo,
		patients:     patientRepo,
		ledger:       ledger,
		gateways:     gateways,
		metrics:      bookingMetrics,
		logger:       logger,
		orderRetries: orderRetries,
	}
}

// BookRequest is the orchestrator's input.
type BookRequest struct {
	PatientID     string
	DoctorID      string
	SlotDate      string
	SlotTime      string
	PaymentMethod string
	// AmountHint overrides the doctor's fee when positive (major units).
	AmountHint int64
}

// BookResult pairs the confirmed appointment with its payment order.
type BookResult struct {
	Appointment  *appointments.Appointment `json:"appointment"`
	PaymentOrder *payments.Order           `json:"payment_order"`
}

// BookAppointment validates the doctor and patient, claims the slot
// atomically, then creates the payment order. If the order cannot be
// created the provisional claim is deleted so the slot frees up again.
// Exactly one durable row exists after success; none after any failure.
func (s *Service) BookAppointment(ctx context.Context, req BookRequest) (*BookResult, error) {
	ctx, span := tracer.Start(ctx, "booking.book_appointment")
	defer span.End()
	span.SetAttributes(
		attribute.String("carebook.doctor_id", req.DoctorID),
		attribute.String("carebook.slot_date", req.SlotDate),
		attribute.String("carebook.slot_time", req.SlotTime),
	)
	start := time.Now()

	if req.DoctorID == "" || req.SlotDate == "" || req.SlotTime == "" {
		s.metrics.ObserveBooking("invalid_request", time.Since(start).Seconds())
		return nil, apperr.New(apperr.KindInvalidRequest, "doctorId, slotDate and slotTime are required")
	}

	// Resolve the gateway up front so a bad tag fails before any write.
	gateway, err := s.gateways.Resolve(req.PaymentMethod)
	if err != nil {
		s.metrics.ObserveBooking("invalid_provider", time.Since(start).Seconds())
		return nil, err
	}

	doctor, err := s.doctors.GetByID(ctx, req.DoctorID)
	if err != nil {
		s.metrics.ObserveBooking("doctor_not_found", time.Since(start).Seconds())
		if errors.Is(err, doctors.ErrDoctorNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "doctor not found", err)
		}
		return nil, err
	}
	if !doctor.Available {
		s.metrics.ObserveBooking("doctor_unavailable", time.Since(start).Seconds())
		return nil, apperr.New(apperr.KindProviderUnavailable, "Doctor is not available")
	}

	if _, err := s.patients.GetByID(ctx, req.PatientID); err != nil {
		s.metrics.ObserveBooking("patient_not_found", time.Since(start).Seconds())
		if errors.Is(err, patients.ErrPatientNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "patient not found", err)
		}
		return nil, err
	}

	amount := doctor.Fees
	if req.AmountHint > 0 {
		amount = req.AmountHint
	}

	// Step a: atomic claim. No pre-read; the unique index decides the race.
	appt := &appointments.Appointment{
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		SlotDate:      req.SlotDate,
		SlotTime:      req.SlotTime,
		Amount:        amount * 100,
		PaymentMethod: req.PaymentMethod,
	}
	if err := s.ledger.CreateProvisional(ctx, appt); err != nil {
		if errors.Is(err, appointments.ErrSlotTaken) {
			// Nothing was written; the loser walks away clean.
			s.metrics.ObserveBooking("slot_conflict", time.Since(start).Seconds())
			return nil, apperr.Wrap(apperr.KindSlotAlreadyBooked, "Slot already booked", err)
		}
		s.metrics.ObserveBooking("ledger_error", time.Since(start).Seconds())
		return nil, err
	}

	// Step c: payment order, with bounded idempotent retries.
	order, orderErr := s.createOrderWithRetry(ctx, gateway, appt.ID.String(), amount)
	if orderErr != nil {
		// Step e: compensating delete. The provisional row must not survive.
		s.compensate(ctx, appt)
		s.metrics.ObserveBooking("payment_failed", time.Since(start).Seconds())
		return nil, apperr.Wrap(apperr.KindPaymentOrderFailed, "Failed to create payment order", orderErr)
	}

	// Step d: attach and confirm.
	if err := s.ledger.Confirm(ctx, appt.ID, order.ID); err != nil {
		s.compensate(ctx, appt)
		s.metrics.ObserveBooking("confirm_failed", time.Since(start).Seconds())
		return nil, apperr.Wrap(apperr.KindPaymentOrderFailed, "Failed to create payment order", err)
	}
	appt.PaymentOrderRef = order.ID
	appt.Status = appointments.StatusConfirmed

	s.metrics.ObserveBooking("confirmed", time.Since(start).Seconds())
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", req.DoctorID,
		"slot_date", req.SlotDate,
		"slot_time", req.SlotTime,
		"provider", order.Provider,
		"order_ref", order.ID,
	)
	return &BookResult{Appointment: appt, PaymentOrder: order}, nil
}

func (s *Service) createOrderWithRetry(ctx context.Context, gateway payments.Gateway, appointmentID string, amount int64) (*payments.Order, error) {
	var lastErr error
	for attempt := 1; attempt <= s.orderRetries; attempt++ {
		attemptCtx := ctx
		if s.orderTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, s.orderTimeout)
			defer cancel()
		}
		order, err := gateway.CreateOrder(attemptCtx, appointmentID, amount)
		if err == nil {
			s.metrics.ObservePaymentOrder(gateway.Name(), "ok")
			return order, nil
		}
		lastErr = err
		s.metrics.ObservePaymentOrder(gateway.Name(), "error")

		// Only transient provider failures are worth retrying; a bad request
		// will not get better.
		if apperr.KindOf(err) != apperr.KindPaymentProviderError {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
		if attempt < s.orderRetries {
			s.logger.Warn("payment order attempt failed, retrying",
				"appointment_id", appointmentID,
				"provider", gateway.Name(),
				"attempt", attempt,
				"error", err,
			)
		}
	}
	return nil, lastErr
}

// compensate deletes the provisional row claimed earlier in the saga. A
// failure here is surfaced loudly (it means a residual inconsistent row) but
// never masks the original booking failure.
func (s *Service) compensate(ctx context.Context, appt *appointments.Appointment) {
	if err := s.ledger.Delete(ctx, appt.ID); err != nil && !errors.Is(err, appointments.ErrNotFound) {
		s.metrics.ObserveCompensationFailure()
		s.logger.Error("compensation failed, provisional appointment row may remain",
			"appointment_id", appt.ID,
			"doctor_id", appt.DoctorID,
			"slot_date", appt.SlotDate,
			"slot_time", appt.SlotTime,
			"error", err,
		)
	}
}

// CancelAppointment flags an appointment cancelled after checking ownership.
func (s *Service) CancelAppointment(ctx context.Context, patientID string, appointmentID string) error {
	id, err := parseAppointmentID(appointmentID)
	if err != nil {
		return err
	}
	appt, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			return apperr.Wrap(apperr.KindNotFound, "appointment not found", err)
		}
		return err
	}
	if appt.PatientID != patientID {
		return apperr.New(apperr.KindForbidden, "appointment belongs to another patient")
	}
	if appt.Cancelled {
		return apperr.New(apperr.KindInvalidRequest, "appointment already cancelled")
	}
	return s.ledger.Cancel(ctx, id)
}

// ListAppointments returns the caller's appointments.
func (s *Service) ListAppointments(ctx context.Context, patientID string) ([]*appointments.Appointment, error) {
	return s.ledger.ListByPatient(ctx, patientID)
}

func parseAppointmentID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindInvalidRequest, "invalid appointment id", err)
	}
	return id, nil
}

// VerifyPayment delegates callback verification to the tagged gateway.
func (s *Service) VerifyPayment(ctx context.Context, providerTag string, payload map[string]any) (*payments.Verification, error) {
	gateway, err := s.gateways.Resolve(providerTag)
	if err != nil {
		return nil, err
	}
	return gateway.Verify(ctx, payload)
}
