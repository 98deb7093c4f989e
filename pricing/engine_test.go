package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lnvps/lnvps-go"
)

type fakeQuoter struct {
	mu     sync.Mutex
	params []lnvps.CustomTemplateParams
	calls  atomic.Int32

	// block holds requests until the context ends or it is closed.
	block chan struct{}
}

func (f *fakeQuoter) CustomPrice(ctx context.Context, p lnvps.CustomTemplateParams) (*lnvps.CustomPrice, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.params = append(f.params, p)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.block:
		}
	}
	return &lnvps.CustomPrice{Currency: "EUR", Amount: float64(p.CPU) * 1.5}, nil
}

func params(cpu uint16) lnvps.CustomTemplateParams {
	return lnvps.CustomTemplateParams{
		RegionID:      1,
		CPU:           cpu,
		Memory:        2 << 30,
		Disk:          40 << 30,
		DiskType:      "ssd",
		DiskInterface: "pcie",
	}
}

type collector struct {
	mu     sync.Mutex
	quotes []Quote
	got    chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 16)}
}

func (c *collector) add(q Quote) {
	c.mu.Lock()
	c.quotes = append(c.quotes, q)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.got:
	case <-time.After(2 * time.Second):
		t.Fatal("no quote delivered")
	}
}

func (c *collector) all() []Quote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Quote(nil), c.quotes...)
}

func TestRapidUpdatesQuoteLastConfig(t *testing.T) {
	q := &fakeQuoter{}
	c := newCollector()
	e := NewEngine(q, c.add, WithDelay(30*time.Millisecond))
	defer e.Close()

	for cpu := uint16(1); cpu <= 8; cpu++ {
		if err := e.Update(params(cpu)); err != nil {
			t.Fatalf("Update(%d) error = %v", cpu, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	c.wait(t)
	time.Sleep(60 * time.Millisecond)

	if n := q.calls.Load(); n != 1 {
		t.Fatalf("quote requests = %d; want 1", n)
	}
	q.mu.Lock()
	sent := q.params[0]
	q.mu.Unlock()
	if sent.CPU != 8 {
		t.Errorf("quoted cpu = %d; want 8", sent.CPU)
	}

	quotes := c.all()
	if len(quotes) != 1 || quotes[0].Price == nil || quotes[0].Price.Amount != 12 {
		t.Errorf("quotes = %+v", quotes)
	}
}

func TestNewerUpdateCancelsInflight(t *testing.T) {
	q := &fakeQuoter{block: make(chan struct{})}
	c := newCollector()
	e := NewEngine(q, c.add, WithDelay(5*time.Millisecond))
	defer e.Close()

	if err := e.Update(params(2)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for q.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := e.Update(params(4)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	deadline = time.Now().Add(2 * time.Second)
	for q.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(q.block)

	c.wait(t)
	time.Sleep(20 * time.Millisecond)

	quotes := c.all()
	if len(quotes) != 1 {
		t.Fatalf("delivered %d quotes; want 1", len(quotes))
	}
	if quotes[0].Params.CPU != 4 || quotes[0].Err != nil {
		t.Errorf("quote = %+v; want cpu 4", quotes[0])
	}
}

func TestUpdateWaitsForDeliveryInProgress(t *testing.T) {
	q := &fakeQuoter{}
	entered := make(chan struct{})
	release := make(chan struct{})
	delivered := make(chan uint16, 4)

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	e := NewEngine(q, func(q Quote) {
		if q.Params.CPU == 2 {
			close(entered)
			<-release
		}
		record(fmt.Sprintf("quote %d", q.Params.CPU))
		delivered <- q.Params.CPU
	}, WithDelay(5*time.Millisecond))
	defer e.Close()

	if err := e.Update(params(2)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first quote never delivered")
	}

	done := make(chan error, 1)
	go func() {
		err := e.Update(params(4))
		record("update")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("Update returned while an older quote was being delivered")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	for _, want := range []uint16{2, 4} {
		select {
		case got := <-delivered:
			if got != want {
				t.Errorf("delivered cpu %d; want %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("quote for cpu %d not delivered", want)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"quote 2", "update", "quote 4"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("order = %v; want %v", order, want)
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	q := &fakeQuoter{}
	c := newCollector()
	e := NewEngine(q, c.add, WithDelay(20*time.Millisecond))

	if err := e.Update(params(2)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	e.Close()
	time.Sleep(40 * time.Millisecond)

	if n := q.calls.Load(); n != 0 {
		t.Errorf("quote requests = %d after Close; want 0", n)
	}
	if len(c.all()) != 0 {
		t.Error("quote delivered after Close")
	}
	if err := e.Update(params(3)); !errors.Is(err, ErrClosed) {
		t.Errorf("Update() after Close error = %v; want ErrClosed", err)
	}
	e.Close()
}

func TestInvalidConfigNotSent(t *testing.T) {
	q := &fakeQuoter{}
	c := newCollector()
	e := NewEngine(q, c.add, WithDelay(10*time.Millisecond))
	defer e.Close()

	if err := e.Update(params(2)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	bad := params(0)
	bad.DiskType = "floppy"
	if err := e.Update(bad); !errors.Is(err, lnvps.ErrValidation) {
		t.Fatalf("Update() error = %v; want validation error", err)
	}

	time.Sleep(40 * time.Millisecond)
	if n := q.calls.Load(); n != 0 {
		t.Errorf("quote requests = %d; want 0", n)
	}
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(params(2))
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	b, _ := Fingerprint(params(2))
	c, _ := Fingerprint(params(3))
	if a != b {
		t.Error("equal configs have different fingerprints")
	}
	if a == c {
		t.Error("different configs share a fingerprint")
	}
}
