package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carebook/carebook/internal/apperr"
	"github.com/carebook/carebook/pkg/logging"
)

var stripeTracer = otel.Tracer("carebook.internal.payments.stripe")

// StripeGateway creates Stripe Checkout Sessions. With no secret key it
// returns deterministic stub sessions keyed by the appointment id.
type StripeGateway struct {
	secretKey  string
	successURL string
	cancelURL  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewStripeGateway builds the adapter. Empty secretKey selects stub mode.
func NewStripeGateway(secretKey, successURL, cancelURL string, logger *logging.Logger) *StripeGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeGateway{
		secretKey:  secretKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (g *StripeGateway) WithBaseURL(baseURL string) *StripeGateway {
	if baseURL != "" {
		g.baseURL = strings.TrimRight(baseURL, "/")
	}
	return g
}

func (g *StripeGateway) Name() string { return ProviderStripe }

// CreateOrder creates a checkout session for the appointment.
func (g *StripeGateway) CreateOrder(ctx context.Context, appointmentID string, amount int64) (*Order, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_checkout_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("carebook.appointment_id", appointmentID),
		attribute.Int64("carebook.amount", amount),
	)

	if err := requireAppointmentID(appointmentID); err != nil {
		return nil, err
	}

	amountMinor := amount * 100
	if g.secretKey == "" {
		g.logger.Debug("stripe stub session", "appointment_id", appointmentID, "amount", amountMinor)
		return &Order{
			ID:       "stripe_test_session_" + appointmentID,
			Amount:   amountMinor,
			Currency: "USD",
			Receipt:  appointmentID,
			Provider: ProviderStripe,
		}, nil
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", fmt.Sprintf("%d", amountMinor))
	form.Set("line_items[0][price_data][product_data][name]", "Appointment fee")
	form.Set("line_items[0][quantity]", "1")
	form.Set("client_reference_id", appointmentID)
	form.Set("metadata[appointment_id]", appointmentID)
	if g.successURL != "" {
		form.Set("success_url", g.successURL)
	}
	if g.cancelURL != "" {
		form.Set("cancel_url", g.cancelURL)
	}

	apiURL := g.baseURL + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", g.apiVersion)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPaymentProviderError, "stripe unreachable", err).
			WithStatus(http.StatusBadGateway)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperr.New(apperr.KindPaymentProviderError,
			fmt.Sprintf("stripe api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))).
			WithStatus(http.StatusBadGateway)
	}

	var parsed stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindPaymentProviderError, "stripe response decode failed", err).
			WithStatus(http.StatusBadGateway)
	}
	if parsed.ID == "" {
		return nil, apperr.New(apperr.KindPaymentProviderError, "stripe response missing session id").
			WithStatus(http.StatusBadGateway)
	}

	return &Order{
		ID:       parsed.ID,
		Amount:   amountMinor,
		Currency: "USD",
		Receipt:  appointmentID,
		Provider: ProviderStripe,
	}, nil
}

// Verify checks a checkout session's payment status. In stub mode the payload
// is accepted unchanged.
func (g *StripeGateway) Verify(ctx context.Context, payload map[string]any) (*Verification, error) {
	if g.secretKey == "" {
		return &Verification{Verified: true, Payload: payload}, nil
	}

	sessionID, _ := payload["session_id"].(string)
	if sessionID == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "stripe verification payload missing session_id")
	}

	apiURL := g.baseURL + "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Stripe-Version", g.apiVersion)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPaymentProviderError, "stripe unreachable", err).
			WithStatus(http.StatusBadGateway)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperr.New(apperr.KindPaymentProviderError,
			fmt.Sprintf("stripe api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))).
			WithStatus(http.StatusBadGateway)
	}

	var parsed stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindPaymentProviderError, "stripe response decode failed", err).
			WithStatus(http.StatusBadGateway)
	}
	return &Verification{Verified: parsed.PaymentStatus == "paid", Payload: payload}, nil
}

// stripeCheckoutSession is the subset of Stripe's Checkout Session we need.
type stripeCheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
}
