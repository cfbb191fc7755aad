package payments

import (
	"github.com/carebook/carebook/internal/apperr"
	"github.com/carebook/carebook/pkg/logging"
)

// Registry holds the supported gateways as explicit fields. The supported tag
// set is statically visible here; adding a backend means adding a field and a
// case, not registering into a global map.
type Registry struct {
	razorpay Gateway
	stripe   Gateway
}

// Config carries the gateway credentials. Empty credentials select stub mode
// for that provider.
type Config struct {
	RazorpayKeyID     string
	RazorpayKeySecret string
	StripeSecretKey   string
	StripeSuccessURL  string
	StripeCancelURL   string
}

// NewRegistry constructs both adapters once at startup.
func NewRegistry(cfg Config, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		razorpay: NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, logger),
		stripe:   NewStripeGateway(cfg.StripeSecretKey, cfg.StripeSuccessURL, cfg.StripeCancelURL, logger),
	}
}

// NewRegistryWithGateways injects adapters directly. Tests use it to plant
// failing gateways.
func NewRegistryWithGateways(razorpay, stripe Gateway) *Registry {
	return &Registry{razorpay: razorpay, stripe: stripe}
}

// Resolve returns the adapter for a provider tag. Unknown tags fail with
// InvalidProvider; a partially built adapter is never returned.
func (r *Registry) Resolve(tag string) (Gateway, error) {
	switch tag {
	case ProviderRazorpay:
		return r.razorpay, nil
	case ProviderStripe:
		return r.stripe, nil
	default:
		return nil, apperr.New(apperr.KindInvalidProvider, "Invalid Payment Provider: "+tag)
	}
}
