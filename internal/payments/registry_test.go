package payments

import (
	"net/http"
	"testing"

	"github.com/carebook/carebook/internal/apperr"
)

func TestResolveKnownProviders(t *testing.T) {
	reg := NewRegistry(Config{}, nil)

	for _, tag := range []string{ProviderRazorpay, ProviderStripe} {
		gw, err := reg.Resolve(tag)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tag, err)
		}
		if gw == nil {
			t.Fatalf("Resolve(%q) returned nil gateway", tag)
		}
		if gw.Name() != tag {
			t.Errorf("Resolve(%q).Name() = %q", tag, gw.Name())
		}
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	reg := NewRegistry(Config{}, nil)

	for _, tag := range []string{"paypal", "unknown", "", "RAZORPAY"} {
		gw, err := reg.Resolve(tag)
		if gw != nil {
			t.Errorf("Resolve(%q) returned a gateway, want nil", tag)
		}
		if apperr.KindOf(err) != apperr.KindInvalidProvider {
			t.Errorf("Resolve(%q) kind = %s, want invalid_provider", tag, apperr.KindOf(err))
		}
		if apperr.StatusOf(err) != http.StatusBadRequest {
			t.Errorf("Resolve(%q) status = %d, want 400", tag, apperr.StatusOf(err))
		}
	}
}
