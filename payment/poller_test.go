package payment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lnvps/lnvps-go"
)

type checkerFunc func(ctx context.Context, id string) (*lnvps.VmPayment, error)

func (f checkerFunc) PaymentStatus(ctx context.Context, id string) (*lnvps.VmPayment, error) {
	return f(ctx, id)
}

func TestPollerTransientErrors(t *testing.T) {
	var calls atomic.Int32
	checker := checkerFunc(func(ctx context.Context, id string) (*lnvps.VmPayment, error) {
		if calls.Add(1) < 3 {
			return nil, lnvps.NewNetworkError("GET /payment/"+id, errors.New("reset by peer"), false)
		}
		return &lnvps.VmPayment{ID: id, IsPaid: true}, nil
	})

	p := NewPoller(checker, WithPollInterval(5*time.Millisecond), WithPollTimeout(time.Second))
	done := make(chan PollOutcome, 1)
	stop := p.Start(context.Background(), lnvps.VmPayment{ID: "p1"}, func(out PollOutcome) {
		done <- out
	})
	defer stop()

	select {
	case out := <-done:
		if out.Err != nil {
			t.Fatalf("outcome error = %v", out.Err)
		}
		if out.Payment == nil || out.Payment.ID != "p1" {
			t.Errorf("outcome payment = %+v", out.Payment)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not finish")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("checks = %d; want 3", n)
	}
}

func TestPollerDeadline(t *testing.T) {
	unpaid := checkerFunc(func(ctx context.Context, id string) (*lnvps.VmPayment, error) {
		return &lnvps.VmPayment{ID: id}, nil
	})

	tests := []struct {
		name    string
		timeout time.Duration
		expires time.Duration
		want    error
	}{
		{name: "poll timeout", timeout: 30 * time.Millisecond, want: ErrPollTimeout},
		{name: "payment expiry", timeout: time.Second, expires: 30 * time.Millisecond, want: lnvps.ErrPaymentExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payment := lnvps.VmPayment{ID: "p1"}
			if tt.expires > 0 {
				payment.Expires = time.Now().Add(tt.expires)
			}

			p := NewPoller(unpaid, WithPollInterval(5*time.Millisecond), WithPollTimeout(tt.timeout))
			done := make(chan PollOutcome, 1)
			stop := p.Start(context.Background(), payment, func(out PollOutcome) {
				done <- out
			})
			defer stop()

			select {
			case out := <-done:
				if !errors.Is(out.Err, tt.want) {
					t.Errorf("outcome error = %v; want %v", out.Err, tt.want)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("poller did not finish")
			}
		})
	}
}

func TestPollerStop(t *testing.T) {
	var calls atomic.Int32
	checker := checkerFunc(func(ctx context.Context, id string) (*lnvps.VmPayment, error) {
		calls.Add(1)
		return &lnvps.VmPayment{ID: id}, nil
	})

	p := NewPoller(checker, WithPollInterval(5*time.Millisecond))
	var finished atomic.Bool
	stop := p.Start(context.Background(), lnvps.VmPayment{ID: "p1"}, func(PollOutcome) {
		finished.Store(true)
	})

	waitFor(t, "first check", func() bool { return calls.Load() > 0 })
	stop()
	stop()

	n := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != n {
		t.Error("poller kept checking after stop")
	}
	if finished.Load() {
		t.Error("onDone called after stop")
	}
}
