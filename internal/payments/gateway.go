// Package payments abstracts the payment backends behind a closed set of
// gateway adapters. Each adapter has a live mode backed by the real provider
// and a deterministic stub mode selected when no credentials are configured.
// Stub mode is a development fallback, not a security control.
package payments

import (
	"context"

	"github.com/carebook/carebook/internal/apperr"
)

// Provider tags. This is a closed enumeration: Resolve rejects anything else.
const (
	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"
)

// Order is the gateway's answer to an order-creation request.
type Order struct {
	// ID is the provider-side order/session identifier. In stub mode it is
	// derived purely from the appointment id so tests can assert it.
	ID string `json:"id"`
	// Amount is in currency minor units (request amount * 100).
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	// Receipt echoes the appointment id on providers that carry one.
	Receipt  string `json:"receipt,omitempty"`
	Provider string `json:"provider"`
}

// Verification is the gateway's answer to a callback verification request.
type Verification struct {
	Verified bool           `json:"verified"`
	Payload  map[string]any `json:"payload"`
}

// Gateway is the adapter contract. CreateOrder requires a non-empty
// appointment id and takes the amount in currency major units.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, appointmentID string, amount int64) (*Order, error)
	Verify(ctx context.Context, payload map[string]any) (*Verification, error)
}

func requireAppointmentID(appointmentID string) error {
	if appointmentID == "" {
		return apperr.New(apperr.KindInvalidRequest, "appointmentId is required")
	}
	return nil
}
