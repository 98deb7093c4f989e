package payment

import (
	"github.com/lnvps/lnvps-go"
)

// State is a step of the payment flow.
type State int

const (
	StateIdle State = iota
	StateMethodsLoading
	StateMethodSelection
	StateCreating
	StatePending
	StateCompleted
	StateCancelled
	StateFailed
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateMethodsLoading:  "methods_loading",
	StateMethodSelection: "method_selection",
	StateCreating:        "creating",
	StatePending:         "pending",
	StateCompleted:       "completed",
	StateCancelled:       "cancelled",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the flow has ended.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Cancellable reports whether Cancel applies in s.
func (s State) Cancellable() bool {
	switch s {
	case StateIdle, StateMethodsLoading, StateMethodSelection, StateCreating, StatePending:
		return true
	}
	return false
}

// Snapshot is the observable state of an Orchestrator.
type Snapshot struct {
	State State

	// AttemptID identifies the current attempt; empty before the first Mount.
	AttemptID string

	// Methods are the rails the user may choose from.
	Methods []lnvps.PaymentMethod

	// Method is the selected rail.
	Method string

	// Rail is how settlement of the selected rail is detected.
	Rail RailKind

	// Intervals is the renewal interval count.
	Intervals uint64

	// Payment is the created payment while Pending.
	Payment *lnvps.VmPayment

	// Address is the pull-payment address for pull rails.
	Address string

	// Error is the human-readable failure message when Failed.
	Error string
}

// Event is an input to the Orchestrator.
type Event interface {
	eventName() string
}

// Mount starts a fresh attempt by loading the available methods.
type Mount struct{}

// SelectMethod picks a rail from the loaded methods.
type SelectMethod struct {
	Name string
}

// SetIntervals changes the renewal interval count. Values off the plan's
// ladder are ignored.
type SetIntervals struct {
	N uint64
}

// CheckoutResult is the terminal report of a card checkout widget.
type CheckoutResult struct {
	// PaymentID, when set, must match the pending payment.
	PaymentID string
	Success   bool
}

// ExternalSettlement reports out-of-band settlement of a payment.
type ExternalSettlement struct {
	// PaymentID, when set, must match the pending payment.
	PaymentID string
}

// Cancel aborts the current attempt.
type Cancel struct{}

// Retry restarts a failed attempt from method loading.
type Retry struct{}

// Reset returns a terminal orchestrator to Idle.
type Reset struct{}

func (Mount) eventName() string              { return "mount" }
func (SelectMethod) eventName() string       { return "select_method" }
func (SetIntervals) eventName() string       { return "set_intervals" }
func (CheckoutResult) eventName() string     { return "checkout_result" }
func (ExternalSettlement) eventName() string { return "external_settlement" }
func (Cancel) eventName() string             { return "cancel" }
func (Retry) eventName() string              { return "retry" }
func (Reset) eventName() string              { return "reset" }

// Results of asynchronous work, tagged with the generation that started it.
type methodsLoaded struct {
	gen     uint64
	methods []lnvps.PaymentMethod
	account *lnvps.AccountDetail
	err     error
}

type paymentCreated struct {
	gen     uint64
	payment *lnvps.VmPayment
	err     error
}

type pollFinished struct {
	gen     uint64
	outcome PollOutcome
}

func (methodsLoaded) eventName() string  { return "methods_loaded" }
func (paymentCreated) eventName() string { return "payment_created" }
func (pollFinished) eventName() string   { return "poll_finished" }
