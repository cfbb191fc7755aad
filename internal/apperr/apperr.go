// Package apperr defines the failure taxonomy shared by the booking core and
// the HTTP boundary. Services attach a Kind to every failure they raise; the
// boundary maps the Kind to a response status without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies a failure class. The set is closed: handlers switch on it
// and unknown kinds classify as internal errors.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidRequest
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindProviderUnavailable
	KindSlotAlreadyBooked
	KindDuplicateKey
	KindInvalidProvider
	KindPaymentProviderError
	KindPaymentOrderFailed
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindInvalidRequest:       "invalid_request",
	KindValidation:           "validation",
	KindUnauthorized:         "unauthorized",
	KindForbidden:            "forbidden",
	KindNotFound:             "not_found",
	KindProviderUnavailable:  "provider_unavailable",
	KindSlotAlreadyBooked:    "slot_already_booked",
	KindDuplicateKey:         "duplicate_key",
	KindInvalidProvider:      "invalid_provider",
	KindPaymentProviderError: "payment_provider_error",
	KindPaymentOrderFailed:   "payment_order_failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error carries a Kind, a client-safe message, an optional explicit status
// override and the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithStatus overrides the status derived from the Kind. Gateways use it to
// forward an upstream status hint.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// KindOf returns the Kind attached to err, or KindUnknown.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// statusByKind is the canonical Kind to HTTP status mapping.
var statusByKind = map[Kind]int{
	KindInvalidRequest:       http.StatusBadRequest,
	KindValidation:           http.StatusBadRequest,
	KindInvalidProvider:      http.StatusBadRequest,
	KindUnauthorized:         http.StatusUnauthorized,
	KindForbidden:            http.StatusForbidden,
	KindNotFound:             http.StatusNotFound,
	KindProviderUnavailable:  http.StatusNotFound,
	KindSlotAlreadyBooked:    http.StatusConflict,
	KindDuplicateKey:         http.StatusConflict,
	KindPaymentProviderError: http.StatusBadGateway,
	KindPaymentOrderFailed:   http.StatusBadGateway,
}

// StatusOf resolves the HTTP status for err. Classification is by Kind first.
// Errors raised by layers that do not attach a Kind fall back to message
// substring heuristics, and finally to 500.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Status != 0 {
			return appErr.Status
		}
		if status, ok := statusByKind[appErr.Kind]; ok {
			return status
		}
		return http.StatusInternalServerError
	}
	return statusFromMessage(err.Error())
}

func statusFromMessage(msg string) int {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "unauthorized"):
		return http.StatusUnauthorized
	case strings.Contains(msg, "forbidden"):
		return http.StatusForbidden
	case strings.Contains(msg, "already booked"), strings.Contains(msg, "duplicate key"):
		return http.StatusConflict
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	case strings.Contains(msg, "invalid"):
		return http.StatusBadRequest
	case strings.Contains(msg, "payment"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage returns the message safe to echo to callers. Classified 4xx
// errors keep their message; anything mapping to 500 gets a generic one so
// internal details never leak.
func ClientMessage(err error) string {
	if err == nil {
		return ""
	}
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		return "something went wrong"
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
