package payment

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lnvps/lnvps-go"
)

// ErrPollTimeout indicates settlement was not observed within the poll timeout.
var ErrPollTimeout = errors.New("payment: settlement not detected before poll timeout")

// StatusChecker reads the current state of a payment.
type StatusChecker interface {
	PaymentStatus(ctx context.Context, paymentID string) (*lnvps.VmPayment, error)
}

// PollOutcome is the terminal result of a poll loop.
type PollOutcome struct {
	// Payment is the settled payment; nil when Err is set.
	Payment *lnvps.VmPayment

	// Err is ErrPaymentExpired or ErrPollTimeout.
	Err error
}

// Poller checks a payment's status on a fixed interval until it is paid.
// Failed checks are transient; polling stops at the poll timeout or the
// payment's expiry, whichever comes first.
type Poller struct {
	checker  StatusChecker
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollInterval sets the delay between status checks.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithPollTimeout caps the total poll duration.
func WithPollTimeout(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.timeout = d
	}
}

// WithPollerLogger sets the poller logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

// NewPoller creates a Poller.
func NewPoller(checker StatusChecker, opts ...PollerOption) *Poller {
	p := &Poller{
		checker:  checker,
		interval: lnvps.DefaultTimeouts.PollInterval,
		timeout:  lnvps.DefaultTimeouts.PollTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start polls payment until it settles, expires or times out, then calls
// onDone exactly once. onDone is not called when the returned stop function
// (or ctx) ends polling first. stop blocks until the loop has exited and must
// not be called from onDone.
func (p *Poller) Start(ctx context.Context, payment lnvps.VmPayment, onDone func(PollOutcome)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	deadline := time.Now().Add(p.timeout)
	deadlineErr := ErrPollTimeout
	if !payment.Expires.IsZero() && payment.Expires.Before(deadline) {
		deadline = payment.Expires
		deadlineErr = lnvps.ErrPaymentExpired
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.loop(ctx, payment.ID, deadline, deadlineErr, onDone)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (p *Poller) loop(ctx context.Context, paymentID string, deadline time.Time, deadlineErr error, onDone func(PollOutcome)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	logger := p.logger.With("payment_id", paymentID)
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			pollChecks.WithLabelValues("deadline").Inc()
			logger.Info("stopped polling payment", "reason", deadlineErr)
			onDone(PollOutcome{Err: deadlineErr})
			return
		case <-ticker.C:
			status, err := p.checker.PaymentStatus(ctx, paymentID)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				pollChecks.WithLabelValues("error").Inc()
				logger.Warn("payment status check failed", "error", err)
				continue
			}
			if status.IsPaid {
				pollChecks.WithLabelValues("paid").Inc()
				onDone(PollOutcome{Payment: status})
				return
			}
			pollChecks.WithLabelValues("unpaid").Inc()
		}
	}
}
