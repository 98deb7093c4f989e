package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lnvps/lnvps-go"
)

// recordingSigner records every URL/method pair it signs.
type recordingSigner struct {
	mu         sync.Mutex
	credential string
	err        error
	calls      [][2]string
}

func (s *recordingSigner) SignHTTPRequest(_ context.Context, url, method string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, [2]string{url, method})
	return s.credential, s.err
}

func (s *recordingSigner) Calls() [][2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]string(nil), s.calls...)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestAuthTransport_SignsExactURLAndMethod(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	signer := &recordingSigner{credential: "Nostr abc123"}
	transport := &AuthTransport{Base: http.DefaultTransport, Signer: signer}

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/v1/vm/7/upgrade/payment?method=lightning", nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip failed: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Nostr abc123" {
		t.Errorf("Authorization = %q; want %q", gotAuth, "Nostr abc123")
	}
	calls := signer.Calls()
	if len(calls) != 1 {
		t.Fatalf("signer called %d times; want 1", len(calls))
	}
	if calls[0][0] != server.URL+"/api/v1/vm/7/upgrade/payment?method=lightning" || calls[0][1] != http.MethodPost {
		t.Errorf("signed %v", calls[0])
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("original request was modified")
	}
}

func TestAuthTransport_AnonymousFallback(t *testing.T) {
	tests := []struct {
		name   string
		signer lnvps.Signer
	}{
		{"nil signer", nil},
		{"no identity", lnvps.AnonymousSigner},
		{"signer error", &recordingSigner{err: errors.New("agent unreachable")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sawHeader bool
			var gotAuth string
			base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
				_, sawHeader = r.Header["Authorization"]
				gotAuth = r.Header.Get("Authorization")
				rec := httptest.NewRecorder()
				rec.WriteHeader(http.StatusOK)
				return rec.Result(), nil
			})

			transport := &AuthTransport{Base: base, Signer: tt.signer}
			req, _ := http.NewRequest(http.MethodGet, "https://api.example/api/v1/payment-methods", nil)
			resp, err := transport.RoundTrip(req)
			if err != nil {
				t.Fatalf("RoundTrip failed: %v", err)
			}
			resp.Body.Close()

			if !sawHeader {
				t.Error("Authorization header should be present")
			}
			if gotAuth != "" {
				t.Errorf("Authorization = %q; want empty", gotAuth)
			}
		})
	}
}

func TestAuthTransport_RequireCredential(t *testing.T) {
	called := false
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return nil, errors.New("should not be called")
	})

	transport := &AuthTransport{Base: base, Signer: lnvps.AnonymousSigner, RequireCredential: true}
	req, _ := http.NewRequest(http.MethodGet, "https://api.example/api/v1/account", nil)
	_, err := transport.RoundTrip(req)
	if !errors.Is(err, lnvps.ErrSigning) {
		t.Fatalf("error = %v; want ErrSigning", err)
	}
	if !errors.Is(err, lnvps.ErrNoCredential) {
		t.Errorf("error = %v; want ErrNoCredential cause", err)
	}
	if called {
		t.Error("base transport called despite missing credential")
	}
}
