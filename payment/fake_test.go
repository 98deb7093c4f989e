package payment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lnvps/lnvps-go"
)

// fakeAPI is an in-memory PaymentAPI.
type fakeAPI struct {
	mu         sync.Mutex
	methods    []lnvps.PaymentMethod
	methodsErr error
	account    *lnvps.AccountDetail
	accountErr error

	// create overrides payment creation when set.
	create func(ctx context.Context) (*lnvps.VmPayment, error)

	// paidAfter is the number of status checks answered unpaid.
	paidAfter int32

	lastMethod    string
	lastIntervals uint64
	lastUpgrade   lnvps.VmUpgradeRequest

	methodCalls  atomic.Int32
	accountCalls atomic.Int32
	createCalls  atomic.Int32
	statusCalls  atomic.Int32
}

func newFakeAPI(methods ...string) *fakeAPI {
	f := &fakeAPI{account: &lnvps.AccountDetail{}}
	for _, name := range methods {
		f.methods = append(f.methods, lnvps.PaymentMethod{Name: name, Currencies: []string{"BTC"}})
	}
	return f
}

func (f *fakeAPI) PaymentMethods(ctx context.Context) ([]lnvps.PaymentMethod, error) {
	f.methodCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.methods, f.methodsErr
}

func (f *fakeAPI) Account(ctx context.Context) (*lnvps.AccountDetail, error) {
	f.accountCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account, f.accountErr
}

func (f *fakeAPI) RenewVM(ctx context.Context, vmID uint64, intervals uint64, method string) (*lnvps.VmPayment, error) {
	f.mu.Lock()
	f.lastIntervals = intervals
	f.lastMethod = method
	f.mu.Unlock()
	return f.createPayment(ctx)
}

func (f *fakeAPI) UpgradePayment(ctx context.Context, vmID uint64, req lnvps.VmUpgradeRequest, method string) (*lnvps.VmPayment, error) {
	f.mu.Lock()
	f.lastUpgrade = req
	f.lastMethod = method
	f.mu.Unlock()
	return f.createPayment(ctx)
}

func (f *fakeAPI) createPayment(ctx context.Context) (*lnvps.VmPayment, error) {
	f.createCalls.Add(1)
	if f.create != nil {
		return f.create(ctx)
	}
	return &lnvps.VmPayment{
		ID:       "pay-1",
		Currency: "BTC",
		Amount:   2100,
		Created:  time.Now(),
		Expires:  time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeAPI) PaymentStatus(ctx context.Context, paymentID string) (*lnvps.VmPayment, error) {
	n := f.statusCalls.Add(1)
	return &lnvps.VmPayment{
		ID:      paymentID,
		Expires: time.Now().Add(time.Hour),
		IsPaid:  n > f.paidAfter,
	}, nil
}

func (f *fakeAPI) lastCreate() (string, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMethod, f.lastIntervals
}

// fastTimeouts polls every 10ms.
var fastTimeouts = lnvps.DefaultTimeouts.
	WithPollInterval(10 * time.Millisecond).
	WithPollTimeout(time.Second)

// run starts the orchestrator loop for the duration of the test.
func run(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitForState(t *testing.T, o *Orchestrator, want State) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := o.Snapshot()
		if snap.State == want {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	snap := o.Snapshot()
	t.Fatalf("state = %s (error %q); want %s", snap.State, snap.Error, want)
	return snap
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
