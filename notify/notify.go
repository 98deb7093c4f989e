// Package notify bridges payments and NATS: settlement notices published by
// the backend are routed to pending payments, and payment events are
// published for other services.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lnvps/lnvps-go"
)

const (
	// SettledSubject carries Settlement notices.
	SettledSubject = "lnvps.payments.settled"

	// EventSubjectPrefix is followed by the payment event type.
	EventSubjectPrefix = "lnvps.payments.events."
)

// Settlement is an out-of-band settlement notice.
type Settlement struct {
	PaymentID string `json:"payment_id"`
	IsPaid    bool   `json:"is_paid"`
}

// Connect dials url with reconnects enabled.
func Connect(url string, logger *slog.Logger, opts ...nats.Option) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := []nats.Option{
		nats.Name("lnvps-go"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("notify: connect %s: %w", url, err)
	}
	return nc, nil
}

// Settler accepts settlement reports. payment.Hub implements it.
type Settler interface {
	Settle(paymentID string) bool
}

// Subscriber routes settlement notices to a Settler.
type Subscriber struct {
	settler Settler
	logger  *slog.Logger
	sub     *nats.Subscription
}

// NewSubscriber creates a Subscriber.
func NewSubscriber(settler Settler, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{settler: settler, logger: logger}
}

// Subscribe starts receiving notices on SettledSubject.
func (s *Subscriber) Subscribe(nc *nats.Conn) error {
	sub, err := nc.Subscribe(SettledSubject, s.Handle)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", SettledSubject, err)
	}
	s.sub = sub
	return nil
}

// Handle processes one notice. Malformed and unpaid notices are dropped.
func (s *Subscriber) Handle(msg *nats.Msg) {
	var n Settlement
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		s.logger.Warn("malformed settlement notice", "subject", msg.Subject, "error", err)
		return
	}
	if n.PaymentID == "" || !n.IsPaid {
		s.logger.Debug("ignoring settlement notice", "payment_id", n.PaymentID, "is_paid", n.IsPaid)
		return
	}
	if !s.settler.Settle(n.PaymentID) {
		s.logger.Debug("settlement notice for unknown payment", "payment_id", n.PaymentID)
	}
}

// Close unsubscribes.
func (s *Subscriber) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}

// Conn publishes raw messages. *nats.Conn implements it.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher publishes payment events as JSON.
type Publisher struct {
	conn   Conn
	logger *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(conn Conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

type eventMessage struct {
	lnvps.PaymentEvent
	Error string `json:"error,omitempty"`
}

// Publish sends ev on EventSubjectPrefix + ev.Type.
func (p *Publisher) Publish(ev lnvps.PaymentEvent) error {
	msg := eventMessage{PaymentEvent: ev}
	if ev.Error != nil {
		msg.Error = ev.Error.Error()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	return p.conn.Publish(EventSubjectPrefix+string(ev.Type), data)
}

// Callback adapts the publisher to an orchestrator payment callback.
// Publish errors are logged.
func (p *Publisher) Callback() lnvps.PaymentCallback {
	return func(ev lnvps.PaymentEvent) {
		if err := p.Publish(ev); err != nil {
			p.logger.Warn("failed to publish payment event", "type", ev.Type, "error", err)
		}
	}
}
