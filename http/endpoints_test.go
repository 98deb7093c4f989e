package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lnvps/lnvps-go"
)

func writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func newTestServer(t *testing.T, handler http.Handler) (*Client, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, WithSigner(&recordingSigner{credential: "Nostr test"}))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, &hits
}

func TestRenewVM(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vm/7/renew", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s; want GET", r.Method)
		}
		if r.URL.Query().Get("intervals") != "3" || r.URL.Query().Get("method") != "lightning" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		writeData(w, map[string]interface{}{
			"id":       "pay-7",
			"currency": "BTC",
			"amount":   1000,
			"is_paid":  false,
			"data":     map[string]string{"lightning": "lnbc1"},
		})
	})
	client, _ := newTestServer(t, mux)

	payment, err := client.RenewVM(context.Background(), 7, 3, lnvps.MethodLightning)
	if err != nil {
		t.Fatalf("RenewVM() error = %v", err)
	}
	if payment.ID != "pay-7" {
		t.Errorf("ID = %q", payment.ID)
	}
	ln, err := payment.Data.AsLightningData()
	if err != nil || ln.Lightning != "lnbc1" {
		t.Errorf("AsLightningData() = %+v, %v", ln, err)
	}
}

func TestUpgrade_NoopRejectedWithoutNetwork(t *testing.T) {
	client, hits := newTestServer(t, http.NotFoundHandler())

	if _, err := client.UpgradeQuote(context.Background(), 7, lnvps.VmUpgradeRequest{}, lnvps.MethodLightning); !errors.Is(err, lnvps.ErrNoopUpgrade) {
		t.Errorf("UpgradeQuote() error = %v; want ErrNoopUpgrade", err)
	}
	if _, err := client.UpgradePayment(context.Background(), 7, lnvps.VmUpgradeRequest{}, lnvps.MethodLightning); !errors.Is(err, lnvps.ErrValidation) {
		t.Errorf("UpgradePayment() error = %v; want ErrValidation", err)
	}
	if n := atomic.LoadInt32(hits); n != 0 {
		t.Errorf("server received %d requests; want 0", n)
	}
}

func TestUpgradeQuote(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vm/7/upgrade/quote", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s; want POST", r.Method)
		}
		if r.URL.Query().Get("method") != "revolut" {
			t.Errorf("method query = %q", r.URL.Query().Get("method"))
		}
		var req lnvps.VmUpgradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.CPU == nil || *req.CPU != 4 || req.Memory != nil {
			t.Errorf("request = %+v", req)
		}
		writeData(w, lnvps.VmUpgradeQuote{
			CostDifference: lnvps.Money{Currency: "EUR", Amount: 2.5},
			NewRenewalCost: lnvps.Money{Currency: "EUR", Amount: 9},
		})
	})
	client, _ := newTestServer(t, mux)

	cpu := uint16(4)
	quote, err := client.UpgradeQuote(context.Background(), 7, lnvps.VmUpgradeRequest{CPU: &cpu}, lnvps.MethodRevolut)
	if err != nil {
		t.Fatalf("UpgradeQuote() error = %v", err)
	}
	if quote.CostDifference.Amount != 2.5 || quote.NewRenewalCost.Amount != 9 {
		t.Errorf("quote = %+v", quote)
	}
}

func TestPaymentStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/payment/abc", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]interface{}{"id": "abc", "is_paid": true})
	})
	client, _ := newTestServer(t, mux)

	p, err := client.PaymentStatus(context.Background(), "abc")
	if err != nil {
		t.Fatalf("PaymentStatus() error = %v", err)
	}
	if !p.IsPaid {
		t.Error("IsPaid = false; want true")
	}

	if _, err := client.PaymentStatus(context.Background(), ""); !errors.Is(err, lnvps.ErrValidation) {
		t.Errorf("PaymentStatus(\"\") error = %v; want ErrValidation", err)
	}
}

func TestAccountAndMethods(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/account", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeData(w, lnvps.AccountDetail{Email: "a@example.com"})
		case http.MethodPut:
			var a lnvps.AccountDetail
			_ = json.NewDecoder(r.Body).Decode(&a)
			writeData(w, a)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/payment-methods", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []lnvps.PaymentMethod{
			{Name: "lightning", Currencies: []string{"BTC"}},
			{Name: "lnurl", Currencies: []string{"BTC"}, Metadata: map[string]string{"address": "pay@example.com"}},
		})
	})
	client, _ := newTestServer(t, mux)
	ctx := context.Background()

	account, err := client.Account(ctx)
	if err != nil || account.Email != "a@example.com" {
		t.Fatalf("Account() = %+v, %v", account, err)
	}

	updated, err := client.UpdateAccount(ctx, lnvps.AccountDetail{Email: "b@example.com", ContactEmail: true})
	if err != nil || updated.Email != "b@example.com" || !updated.ContactEmail {
		t.Fatalf("UpdateAccount() = %+v, %v", updated, err)
	}

	methods, err := client.PaymentMethods(ctx)
	if err != nil {
		t.Fatalf("PaymentMethods() error = %v", err)
	}
	if len(methods) != 2 || methods[1].Metadata["address"] != "pay@example.com" {
		t.Errorf("methods = %+v", methods)
	}
}

func TestGetAndListVMs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vm", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []lnvps.VmInstance{{ID: 1}, {ID: 2}})
	})
	mux.HandleFunc("/api/v1/vm/404", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"vm not found"}`))
	})
	client, _ := newTestServer(t, mux)

	vms, err := client.ListVMs(context.Background())
	if err != nil || len(vms) != 2 {
		t.Fatalf("ListVMs() = %v, %v", vms, err)
	}

	_, err = client.GetVM(context.Background(), 404)
	if err == nil || err.Error() != "vm not found" {
		t.Errorf("GetVM() error = %v; want vm not found", err)
	}
}

func TestCustomPrice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vm/custom-template/price", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, lnvps.CustomPrice{Currency: "EUR", Amount: 4.2})
	})
	client, hits := newTestServer(t, mux)

	params := lnvps.CustomTemplateParams{RegionID: 1, CPU: 2, Memory: 2 << 30, Disk: 40 << 30, DiskType: "ssd", DiskInterface: "pcie"}
	price, err := client.CustomPrice(context.Background(), params)
	if err != nil || price.Amount != 4.2 {
		t.Fatalf("CustomPrice() = %+v, %v", price, err)
	}

	params.DiskType = "floppy"
	if _, err := client.CustomPrice(context.Background(), params); !errors.Is(err, lnvps.ErrValidation) {
		t.Errorf("CustomPrice(invalid) error = %v; want ErrValidation", err)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("server hits = %d; want 1", n)
	}
}
