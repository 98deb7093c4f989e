package payment

import (
	"log/slog"
	"sync"
)

// Dispatcher accepts events for a pending payment.
type Dispatcher interface {
	Dispatch(Event)
}

// Hub routes external settlement and checkout reports to the orchestrator
// waiting on that payment.
type Hub struct {
	mu     sync.RWMutex
	routes map[string]route
	logger *slog.Logger
}

type route struct {
	d    Dispatcher
	rail RailKind
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		routes: make(map[string]route),
		logger: logger,
	}
}

// Register routes events for paymentID, settled over rail, to d until the
// returned function is called.
func (h *Hub) Register(paymentID string, rail RailKind, d Dispatcher) (unregister func()) {
	h.mu.Lock()
	h.routes[paymentID] = route{d: d, rail: rail}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		if h.routes[paymentID].d == d {
			delete(h.routes, paymentID)
		}
		h.mu.Unlock()
	}
}

// Pending reports whether paymentID has a registered orchestrator.
func (h *Hub) Pending(paymentID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.routes[paymentID]
	return ok
}

// Settle delivers an ExternalSettlement. It reports whether a route existed.
func (h *Hub) Settle(paymentID string) bool {
	return h.deliver(paymentID, ExternalSettlement{PaymentID: paymentID}, nil)
}

// Checkout delivers a CheckoutResult. It reports whether the payment is a
// pending card checkout; results for other rails are not delivered.
func (h *Hub) Checkout(paymentID string, success bool) bool {
	return h.deliver(paymentID, CheckoutResult{PaymentID: paymentID, Success: success}, func(r route) bool {
		return r.rail == RailCard
	})
}

func (h *Hub) deliver(paymentID string, ev Event, accept func(route) bool) bool {
	h.mu.RLock()
	r, ok := h.routes[paymentID]
	h.mu.RUnlock()
	if !ok {
		h.logger.Debug("no pending payment for event", "payment_id", paymentID, "event", ev.eventName())
		return false
	}
	if accept != nil && !accept(r) {
		h.logger.Warn("event does not apply to payment rail", "payment_id", paymentID, "event", ev.eventName(), "rail", string(r.rail))
		return false
	}
	r.d.Dispatch(ev)
	return true
}
