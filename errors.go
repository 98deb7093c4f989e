package lnvps

import (
	"errors"
	"fmt"
)

// Sentinel errors for storefront operations.
var (
	// ErrNetwork indicates a transport failure; the request may be retried.
	ErrNetwork = errors.New("lnvps: network error")

	// ErrTimeout indicates the request exceeded its deadline.
	ErrTimeout = errors.New("lnvps: request timed out")

	// ErrAPI indicates the backend returned an error response.
	ErrAPI = errors.New("lnvps: api error")

	// ErrValidation indicates a request was rejected before it was sent.
	ErrValidation = errors.New("lnvps: validation failed")

	// ErrSigning indicates the signer failed or produced no credential when one was required.
	ErrSigning = errors.New("lnvps: request signing failed")

	// ErrNoCredential indicates no identity is active.
	ErrNoCredential = errors.New("lnvps: no active identity")

	// ErrInvalidKey indicates malformed signing key material.
	ErrInvalidKey = errors.New("lnvps: invalid private key")

	// ErrIntervalNotAllowed indicates a renewal interval outside the plan's ladder.
	ErrIntervalNotAllowed = errors.New("lnvps: renewal interval not allowed")

	// ErrNoopUpgrade indicates an upgrade that increases no resource.
	ErrNoopUpgrade = errors.New("lnvps: upgrade does not change any resource")

	// ErrDuplicatePayment indicates a payment was already created for the attempt.
	ErrDuplicatePayment = errors.New("lnvps: payment already created for this attempt")

	// ErrPaymentExpired indicates the payment expired before it was settled.
	ErrPaymentExpired = errors.New("lnvps: payment expired")
)

// ErrorKind classifies an [Error] for programmatic handling.
type ErrorKind string

const (
	// KindNetwork is a transport or timeout failure.
	KindNetwork ErrorKind = "NETWORK_ERROR"

	// KindAPI is a server-returned error message.
	KindAPI ErrorKind = "API_ERROR"

	// KindValidation is a request rejected client-side.
	KindValidation ErrorKind = "VALIDATION_ERROR"

	// KindSigning is a signer failure.
	KindSigning ErrorKind = "SIGNING_ERROR"
)

// Error provides structured error information.
type Error struct {
	// Kind is the error class.
	Kind ErrorKind

	// Op names the operation that failed (e.g. "renew vm").
	Op string

	// Message is the human-readable message. For API errors it is exactly
	// the server-provided message.
	Message string

	// StatusCode is the HTTP status for API errors.
	StatusCode int

	// Details contains additional error context.
	Details map[string]interface{}

	// Err is the underlying error.
	Err error

	timeout bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == KindAPI {
		return e.Message
	}
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel corresponding to the error kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrTimeout:
		return e.timeout
	case ErrAPI:
		return e.Kind == KindAPI
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrSigning:
		return e.Kind == KindSigning
	}
	return false
}

// Timeout reports whether the request exceeded its deadline.
func (e *Error) Timeout() bool {
	return e.timeout
}

// Retryable reports whether retrying the same request may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork
}

// WithDetails adds additional context to the error.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithOp sets the failing operation.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(op string, err error, timeout bool) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err, timeout: timeout}
}

// NewAPIError builds an error from a server-provided message.
func NewAPIError(status int, message string) *Error {
	return &Error{Kind: KindAPI, StatusCode: status, Message: message}
}

// NewValidationError builds a client-side rejection.
func NewValidationError(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

// NewSigningError wraps a signer failure.
func NewSigningError(err error) *Error {
	return &Error{Kind: KindSigning, Message: "failed to sign request", Err: err}
}

// WrapOp annotates err with the operation that failed, keeping its kind.
// API messages stay verbatim in Message; the operation is only prefixed
// for display via [Describe].
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" {
			e.Op = op
		}
		return e
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Describe renders err for display, prefixing API messages with the operation.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind == KindAPI && e.Op != "" {
		return e.Op + ": " + e.Message
	}
	return err.Error()
}
