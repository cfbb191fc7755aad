package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebook/carebook/internal/apperr"
	"github.com/carebook/carebook/internal/appointments"
	"github.com/carebook/carebook/internal/doctors"
	"github.com/carebook/carebook/internal/observability/metrics"
	"github.com/carebook/carebook/internal/patients"
	"github.com/carebook/carebook/internal/payments"
)

// failingGateway fails CreateOrder a configurable number of times, then
// delegates to the stub adapter.
type failingGateway struct {
	mu       sync.Mutex
	name     string
	failures int
	calls    int
	kind     apperr.Kind
	delegate payments.Gateway
}

func (f *failingGateway) Name() string { return f.name }

func (f *failingGateway) CreateOrder(ctx context.Context, appointmentID string, amount int64) (*payments.Order, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if call <= f.failures {
		return nil, apperr.New(f.kind, "payment provider unreachable")
	}
	return f.delegate.CreateOrder(ctx, appointmentID, amount)
}

func (f *failingGateway) Verify(ctx context.Context, payload map[string]any) (*payments.Verification, error) {
	return f.delegate.Verify(ctx, payload)
}

type fixture struct {
	svc     *Service
	ledger  *appointments.InMemoryRepository
	doctors *doctors.InMemoryRepository
}

func newFixture(t *testing.T, registry *payments.Registry, retries int) *fixture {
	t.Helper()
	doctorRepo := doctors.NewInMemoryRepository()
	doctorRepo.Put(&doctors.Doctor{ID: "doc1", Name: "Dr Test", Speciality: "General", Fees: 100, Available: true})
	doctorRepo.Put(&doctors.Doctor{ID: "doc2", Name: "Dr Away", Speciality: "General", Fees: 80, Available: false})

	patientRepo := patients.NewInMemoryRepository()
	patientRepo.Put(&patients.Patient{ID: "user1", Name: "User One", Email: "user1@test.com"})
	patientRepo.Put(&patients.Patient{ID: "user2", Name: "User Two", Email: "user2@test.com"})

	ledger := appointments.NewInMemoryRepository()
	if registry == nil {
		registry = payments.NewRegistry(payments.Config{}, nil)
	}
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	return &fixture{
		svc:     NewService(doctorRepo, patientRepo, ledger, registry, m, nil, retries),
		ledger:  ledger,
		doctors: doctorRepo,
	}
}

func bookReq(patientID string) BookRequest {
	return BookRequest{
		PatientID:     patientID,
		DoctorID:      "doc1",
		SlotDate:      "2025-12-20",
		SlotTime:      "10:00",
		PaymentMethod: payments.ProviderStripe,
	}
}

func TestBookAppointmentSuccess(t *testing.T) {
	f := newFixture(t, nil, 1)

	res, err := f.svc.BookAppointment(context.Background(), bookReq("user1"))
	require.NoError(t, err)
	require.NotNil(t, res.PaymentOrder)

	assert.Equal(t, appointments.StatusConfirmed, res.Appointment.Status)
	assert.Equal(t, "stripe_test_session_"+res.Appointment.ID.String(), res.PaymentOrder.ID)
	assert.Equal(t, res.PaymentOrder.ID, res.Appointment.PaymentOrderRef)
	assert.Equal(t, int64(10000), res.Appointment.Amount, "fee x100 in minor units")
	assert.Equal(t, res.Appointment.Amount, res.PaymentOrder.Amount)

	// Exactly one durable row for the slot.
	stored, err := f.ledger.GetBySlot(context.Background(), res.Appointment.SlotKey())
	require.NoError(t, err)
	assert.Equal(t, res.Appointment.ID, stored.ID)
	assert.Equal(t, appointments.StatusConfirmed, stored.Status)
}

func TestBookAppointmentDoctorUnavailable(t *testing.T) {
	f := newFixture(t, nil, 1)

	req := bookReq("user1")
	req.DoctorID = "doc2"
	_, err := f.svc.BookAppointment(context.Background(), req)
	assert.Equal(t, apperr.KindProviderUnavailable, apperr.KindOf(err))
	assert.Equal(t, 404, apperr.StatusOf(err))

	req.DoctorID = "ghost"
	_, err = f.svc.BookAppointment(context.Background(), req)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBookAppointmentUnknownPatient(t *testing.T) {
	f := newFixture(t, nil, 1)

	_, err := f.svc.BookAppointment(context.Background(), bookReq("stranger"))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// A validation failure must leave no residue.
	_, err = f.ledger.GetBySlot(context.Background(), appointments.SlotKey{
		DoctorID: "doc1", SlotDate: "2025-12-20", SlotTime: "10:00",
	})
	assert.ErrorIs(t, err, appointments.ErrNotFound)
}

func TestBookAppointmentInvalidProviderBeforeAnyWrite(t *testing.T) {
	f := newFixture(t, nil, 1)

	req := bookReq("user1")
	req.PaymentMethod = "paypal"
	_, err := f.svc.BookAppointment(context.Background(), req)
	assert.Equal(t, apperr.KindInvalidProvider, apperr.KindOf(err))

	_, err = f.ledger.GetBySlot(context.Background(), appointments.SlotKey{
		DoctorID: "doc1", SlotDate: "2025-12-20", SlotTime: "10:00",
	})
	assert.ErrorIs(t, err, appointments.ErrNotFound)
}

func TestBookAppointmentSecondCallerLoses(t *testing.T) {
	f := newFixture(t, nil, 1)

	_, err := f.svc.BookAppointment(context.Background(), bookReq("user1"))
	require.NoError(t, err)

	_, err = f.svc.BookAppointment(context.Background(), bookReq("user2"))
	assert.Equal(t, apperr.KindSlotAlreadyBooked, apperr.KindOf(err))
	assert.Equal(t, 409, apperr.StatusOf(err))

	// Still exactly one row.
	list1, _ := f.ledger.ListByPatient(context.Background(), "user1")
	list2, _ := f.ledger.ListByPatient(context.Background(), "user2")
	assert.Len(t, list1, 1)
	assert.Empty(t, list2)
}

func TestConcurrentBookingExactlyOneWinner(t *testing.T) {
	f := newFixture(t, nil, 1)

	type outcome struct {
		err error
	}
	const callers = 16
	results := make(chan outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		patient := "user1"
		if i%2 == 1 {
			patient = "user2"
		}
		go func(p string) {
			defer wg.Done()
			_, err := f.svc.BookAppointment(context.Background(), bookReq(p))
			results <- outcome{err: err}
		}(patient)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for r := range results {
		switch {
		case r.err == nil:
			wins++
		case apperr.KindOf(r.err) == apperr.KindSlotAlreadyBooked:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", r.err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one caller must win the slot")
	assert.Equal(t, callers-1, conflicts)
}

func TestPaymentFailureRollsBackClaim(t *testing.T) {
	stub := payments.NewStripeGateway("", "", "", nil)
	gw := &failingGateway{name: payments.ProviderStripe, failures: 100, kind: apperr.KindPaymentProviderError, delegate: stub}
	registry := payments.NewRegistryWithGateways(payments.NewRazorpayGateway("", "", nil), gw)
	f := newFixture(t, registry, 2)

	_, err := f.svc.BookAppointment(context.Background(), bookReq("user1"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindPaymentOrderFailed, apperr.KindOf(err))
	assert.Equal(t, 502, apperr.StatusOf(err))

	// The provisional row must not survive the failure.
	_, err = f.ledger.GetBySlot(context.Background(), appointments.SlotKey{
		DoctorID: "doc1", SlotDate: "2025-12-20", SlotTime: "10:00",
	})
	assert.ErrorIs(t, err, appointments.ErrNotFound)

	// And the slot is immediately bookable again.
	_, err = f.svc.BookAppointment(context.Background(), BookRequest{
		PatientID: "user2", DoctorID: "doc1", SlotDate: "2025-12-20", SlotTime: "10:00",
		PaymentMethod: payments.ProviderRazorpay,
	})
	require.NoError(t, err)
}

func TestPaymentRetrySucceedsWithinBudget(t *testing.T) {
	stub := payments.NewStripeGateway("", "", "", nil)
	gw := &failingGateway{name: payments.ProviderStripe, failures: 1, kind: apperr.KindPaymentProviderError, delegate: stub}
	registry := payments.NewRegistryWithGateways(payments.NewRazorpayGateway("", "", nil), gw)
	f := newFixture(t, registry, 2)

	res, err := f.svc.BookAppointment(context.Background(), bookReq("user1"))
	require.NoError(t, err)
	assert.Equal(t, 2, gw.calls, "first attempt fails, second succeeds")
	assert.NotEmpty(t, res.PaymentOrder.ID)
}

func TestInvalidRequestErrorsAreNotRetried(t *testing.T) {
	stub := payments.NewStripeGateway("", "", "", nil)
	gw := &failingGateway{name: payments.ProviderStripe, failures: 100, kind: apperr.KindInvalidRequest, delegate: stub}
	registry := payments.NewRegistryWithGateways(payments.NewRazorpayGateway("", "", nil), gw)
	f := newFixture(t, registry, 3)

	_, err := f.svc.BookAppointment(context.Background(), bookReq("user1"))
	require.Error(t, err)
	assert.Equal(t, 1, gw.calls, "non-transient failures must not be retried")
}

func TestAmountHintOverridesFee(t *testing.T) {
	f := newFixture(t, nil, 1)

	req := bookReq("user1")
	req.AmountHint = 250
	res, err := f.svc.BookAppointment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), res.Appointment.Amount)
	assert.Equal(t, int64(25000), res.PaymentOrder.Amount)
}

func TestCancelAppointment(t *testing.T) {
	f := newFixture(t, nil, 1)

	res, err := f.svc.BookAppointment(context.Background(), bookReq("user1"))
	require.NoError(t, err)

	err = f.svc.CancelAppointment(context.Background(), "user2", res.Appointment.ID.String())
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, f.svc.CancelAppointment(context.Background(), "user1", res.Appointment.ID.String()))

	err = f.svc.CancelAppointment(context.Background(), "user1", res.Appointment.ID.String())
	assert.Equal(t, apperr.KindInvalidRequest, apperr.KindOf(err))

	err = f.svc.CancelAppointment(context.Background(), "user1", "not-a-uuid")
	assert.Equal(t, apperr.KindInvalidRequest, apperr.KindOf(err))
}

func TestVerifyPayment(t *testing.T) {
	f := newFixture(t, nil, 1)

	v, err := f.svc.VerifyPayment(context.Background(), payments.ProviderRazorpay, map[string]any{"some": "payload"})
	require.NoError(t, err)
	assert.True(t, v.Verified)

	_, err = f.svc.VerifyPayment(context.Background(), "unknown", nil)
	assert.Equal(t, apperr.KindInvalidProvider, apperr.KindOf(err))
}

func TestCompensationFailureDoesNotMaskPaymentError(t *testing.T) {
	stub := payments.NewStripeGateway("", "", "", nil)
	gw := &failingGateway{name: payments.ProviderStripe, failures: 100, kind: apperr.KindPaymentProviderError, delegate: stub}
	registry := payments.NewRegistryWithGateways(payments.NewRazorpayGateway("", "", nil), gw)

	doctorRepo := doctors.NewInMemoryRepository()
	doctorRepo.Put(&doctors.Doctor{ID: "doc1", Fees: 100, Available: true})
	patientRepo := patients.NewInMemoryRepository()
	patientRepo.Put(&patients.Patient{ID: "user1"})
	ledger := &deleteFailingLedger{InMemoryRepository: appointments.NewInMemoryRepository()}
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	svc := NewService(doctorRepo, patientRepo, ledger, registry, m, nil, 1)

	_, err := svc.BookAppointment(context.Background(), bookReq("user1"))
	require.Error(t, err)
	// The caller still sees the original payment failure, not the rollback one.
	assert.Equal(t, apperr.KindPaymentOrderFailed, apperr.KindOf(err))
	assert.True(t, ledger.deleteCalled, "compensation must be attempted")
}

type deleteFailingLedger struct {
	*appointments.InMemoryRepository
	deleteCalled bool
}

func (d *deleteFailingLedger) Delete(ctx context.Context, id uuid.UUID) error {
	d.deleteCalled = true
	return errors.New("ledger offline")
}
