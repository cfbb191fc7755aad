package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/carebook/carebook/internal/apperr"
	"github.com/carebook/carebook/pkg/logging"
)

// RazorpayGateway creates Razorpay orders. With no client configured it
// returns deterministic stub orders keyed by the appointment id.
type RazorpayGateway struct {
	client    *razorpay.Client
	keySecret string
	logger    *logging.Logger
}

// NewRazorpayGateway builds the adapter. Empty keyID leaves the client nil,
// which selects stub mode.
func NewRazorpayGateway(keyID, keySecret string, logger *logging.Logger) *RazorpayGateway {
	if logger == nil {
		logger = logging.Default()
	}
	g := &RazorpayGateway{keySecret: keySecret, logger: logger}
	if keyID != "" {
		g.client = razorpay.NewClient(keyID, keySecret)
	}
	return g
}

func (g *RazorpayGateway) Name() string { return ProviderRazorpay }

// CreateOrder creates a Razorpay order for the appointment. The receipt is
// the appointment id, which makes retries idempotent on the provider side.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, appointmentID string, amount int64) (*Order, error) {
	if err := requireAppointmentID(appointmentID); err != nil {
		return nil, err
	}

	amountPaise := amount * 100
	if g.client == nil {
		g.logger.Debug("razorpay stub order", "appointment_id", appointmentID, "amount", amountPaise)
		return &Order{
			ID:       "rzp_test_order_" + appointmentID,
			Amount:   amountPaise,
			Currency: "INR",
			Receipt:  appointmentID,
			Provider: ProviderRazorpay,
		}, nil
	}

	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": "INR",
		"receipt":  appointmentID,
	}
	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPaymentProviderError,
			fmt.Sprintf("razorpay order creation failed: %v", err), err).
			WithStatus(http.StatusBadGateway)
	}

	orderID, _ := body["id"].(string)
	if orderID == "" {
		return nil, apperr.New(apperr.KindPaymentProviderError, "razorpay response missing order id").
			WithStatus(http.StatusBadGateway)
	}
	return &Order{
		ID:       orderID,
		Amount:   amountPaise,
		Currency: "INR",
		Receipt:  appointmentID,
		Provider: ProviderRazorpay,
	}, nil
}

// Verify checks the payment signature Razorpay sends on completion. In stub
// mode the payload is accepted unchanged.
func (g *RazorpayGateway) Verify(ctx context.Context, payload map[string]any) (*Verification, error) {
	_ = ctx
	if g.client == nil {
		return &Verification{Verified: true, Payload: payload}, nil
	}

	orderID, _ := payload["razorpay_order_id"].(string)
	paymentID, _ := payload["razorpay_payment_id"].(string)
	signature, _ := payload["razorpay_signature"].(string)
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "razorpay verification payload incomplete")
	}

	mac := hmac.New(sha256.New, []byte(g.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return &Verification{Verified: false, Payload: payload}, nil
	}
	return &Verification{Verified: true, Payload: payload}, nil
}
