package gin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lnvps/lnvps-go/payment"
	"github.com/lnvps/lnvps-go/signers/nostr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingSink struct {
	pending  map[string]bool
	settled  []string
	checkout map[string]bool
}

func newSink(ids ...string) *recordingSink {
	s := &recordingSink{pending: map[string]bool{}, checkout: map[string]bool{}}
	for _, id := range ids {
		s.pending[id] = true
	}
	return s
}

func (s *recordingSink) Settle(id string) bool {
	if !s.pending[id] {
		return false
	}
	s.settled = append(s.settled, id)
	return true
}

func (s *recordingSink) Checkout(id string, success bool) bool {
	if !s.pending[id] {
		return false
	}
	s.checkout[id] = success
	return true
}

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCheckoutCallback(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		body        string
		wantStatus  int
		wantSuccess bool
	}{
		{name: "success", id: "pay-1", body: `{"result":"success"}`, wantStatus: http.StatusOK, wantSuccess: true},
		{name: "cancel", id: "pay-1", body: `{"result":"cancel"}`, wantStatus: http.StatusOK},
		{name: "bad result", id: "pay-1", body: `{"result":"maybe"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown payment", id: "pay-9", body: `{"result":"success"}`, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newSink("pay-1")
			r := New(Config{Sink: sink, DisableMetrics: true})

			rec := do(r, http.MethodPost, "/callbacks/checkout/"+tt.id, tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d; want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if got, ok := sink.checkout[tt.id]; !ok || got != tt.wantSuccess {
				t.Errorf("checkout[%s] = %v, %v; want %v", tt.id, got, ok, tt.wantSuccess)
			}
		})
	}
}

func TestSettlementCallback(t *testing.T) {
	sink := newSink("pay-1")
	r := New(Config{Sink: sink, DisableMetrics: true})

	rec := do(r, http.MethodPost, "/callbacks/settlement", `{"payment_id":"pay-1","is_paid":false}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unpaid notice status = %d", rec.Code)
	}
	if len(sink.settled) != 0 {
		t.Fatal("unpaid notice settled the payment")
	}

	rec = do(r, http.MethodPost, "/callbacks/settlement", `{"payment_id":"pay-1","is_paid":true}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["settled"] != true {
		t.Errorf("response = %v", resp)
	}

	rec = do(r, http.MethodPost, "/callbacks/settlement", `{"is_paid":true}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing id status = %d; want 400", rec.Code)
	}
}

func TestCallbackSecret(t *testing.T) {
	sink := newSink("pay-1")
	r := New(Config{Sink: sink, Secret: "s3cret", DisableMetrics: true})

	rec := do(r, http.MethodPost, "/callbacks/settlement", `{"payment_id":"pay-1","is_paid":true}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without secret = %d; want 401", rec.Code)
	}

	rec = do(r, http.MethodPost, "/callbacks/settlement", `{"payment_id":"pay-1","is_paid":true}`,
		map[string]string{SecretHeader: "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status with secret = %d; want 200", rec.Code)
	}

	if rec := do(r, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestSignedCallbacks(t *testing.T) {
	trusted, err := nostr.NewSigner(strings.Repeat("11", 32))
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}
	other, err := nostr.NewSigner(strings.Repeat("22", 32))
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}

	const base = "https://node.example"
	const path = "/callbacks/settlement"
	sign := func(s *nostr.Signer, url, method string) map[string]string {
		header, err := s.SignHTTPRequest(context.Background(), url, method)
		if err != nil {
			t.Fatalf("SignHTTPRequest() error = %v", err)
		}
		return map[string]string{"Authorization": header}
	}

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{name: "unsigned", want: http.StatusUnauthorized},
		{name: "trusted key", header: sign(trusted, base+path, "POST"), want: http.StatusOK},
		{name: "untrusted key", header: sign(other, base+path, "POST"), want: http.StatusForbidden},
		{name: "other url", header: sign(trusted, base+"/callbacks/checkout/pay-1", "POST"), want: http.StatusUnauthorized},
		{name: "other method", header: sign(trusted, base+path, "GET"), want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newSink("pay-1")
			r := New(Config{
				Sink:           sink,
				TrustedKeys:    []string{trusted.PublicKey()},
				PublicURL:      base + "/",
				DisableMetrics: true,
			})
			rec := do(r, http.MethodPost, path, `{"payment_id":"pay-1","is_paid":true}`, tt.header)
			if rec.Code != tt.want {
				t.Errorf("status = %d; want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if settled := len(sink.settled) == 1; settled != (tt.want == http.StatusOK) {
				t.Errorf("settled = %v", sink.settled)
			}
		})
	}
}

func TestHubSink(t *testing.T) {
	hub := payment.NewHub(nil)
	r := New(Config{Sink: hub, DisableMetrics: true})

	rec := do(r, http.MethodPost, "/callbacks/checkout/pay-1", `{"result":"success"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status for unregistered payment = %d; want 404", rec.Code)
	}

	invoice, card := &dispatcher{}, &dispatcher{}
	hub.Register("pay-2", payment.RailInvoice, invoice)
	hub.Register("pay-3", payment.RailCard, card)

	rec = do(r, http.MethodPost, "/callbacks/checkout/pay-2", `{"result":"success"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status for invoice payment = %d; want 404", rec.Code)
	}
	if invoice.count() != 0 {
		t.Error("checkout result delivered to an invoice payment")
	}

	rec = do(r, http.MethodPost, "/callbacks/checkout/pay-3", `{"result":"success"}`, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status for card payment = %d; want 200", rec.Code)
	}
	if card.count() != 1 {
		t.Errorf("card payment received %d events; want 1", card.count())
	}
}

type dispatcher struct {
	mu     sync.Mutex
	events []payment.Event
}

func (d *dispatcher) Dispatch(ev payment.Event) {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
}

func (d *dispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func TestWithoutSink(t *testing.T) {
	r := New(Config{})
	if rec := do(r, http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/callbacks/settlement", `{"payment_id":"p","is_paid":true}`, nil); rec.Code != http.StatusNotFound {
		t.Errorf("callback status without sink = %d; want 404", rec.Code)
	}
}
