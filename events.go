package lnvps

import "time"

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	// PaymentEventAttempt indicates a payment is being created.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventCreated indicates the backend returned a payment intent.
	PaymentEventCreated PaymentEventType = "created"

	// PaymentEventSuccess indicates the payment settled.
	PaymentEventSuccess PaymentEventType = "success"

	// PaymentEventFailure indicates the attempt failed.
	PaymentEventFailure PaymentEventType = "failure"

	// PaymentEventCancelled indicates the user cancelled the attempt.
	PaymentEventCancelled PaymentEventType = "cancelled"
)

// PaymentEvent represents a payment lifecycle event.
type PaymentEvent struct {
	// Type is the event type.
	Type PaymentEventType `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// AttemptID identifies the orchestrator attempt that produced the event.
	AttemptID string `json:"attempt_id"`

	// VMID is the VM being renewed or upgraded.
	VMID uint64 `json:"vm_id"`

	// Operation is "renew" or "upgrade".
	Operation string `json:"operation"`

	// Method is the payment rail name.
	Method string `json:"method,omitempty"`

	// PaymentID is set once the backend created the payment.
	PaymentID string `json:"payment_id,omitempty"`

	// Amount is the payment amount in the smallest currency unit.
	Amount int64 `json:"amount,omitempty"`

	// Currency is the payment currency.
	Currency string `json:"currency,omitempty"`

	// Error contains error details (failure events only).
	Error error `json:"-"`

	// Duration is the time since the attempt started.
	Duration time.Duration `json:"duration"`
}

// PaymentCallback is a function that handles payment events.
// Callbacks are invoked synchronously from the orchestrator loop, so they
// should return quickly.
type PaymentCallback func(PaymentEvent)
