package http

import (
	"log/slog"
	"net/http"

	"github.com/lnvps/lnvps-go"
	"github.com/lnvps/lnvps-go/http/internal/helpers"
)

// AuthTransport is a RoundTripper that signs every request for its exact URL
// and method before handing it to Base.
type AuthTransport struct {
	// Base is the underlying RoundTripper (typically http.DefaultTransport).
	Base http.RoundTripper

	// Signer produces the Authorization value. Nil behaves like lnvps.AnonymousSigner.
	Signer lnvps.Signer

	// RequireCredential turns a failed or absent credential into a signing error
	// instead of an anonymous request.
	RequireCredential bool

	// Logger receives signing failures.
	Logger *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	signer := t.Signer
	if signer == nil {
		signer = lnvps.AnonymousSigner
	}

	fullURL := req.URL.String()
	credential, err := signer.SignHTTPRequest(req.Context(), fullURL, req.Method)
	if err != nil || credential == "" {
		cause := err
		if cause == nil {
			cause = lnvps.ErrNoCredential
		}
		if t.RequireCredential {
			signingFailures.Inc()
			return nil, lnvps.NewSigningError(cause)
		}
		if err != nil {
			signingFailures.Inc()
			logger.Warn("request signing failed, sending anonymously",
				"method", req.Method, "url", helpers.RedactedURL(fullURL), "error", err)
		}
		credential = ""
	}

	// Clone the request to avoid modifying the original
	reqCopy := req.Clone(req.Context())
	reqCopy.Header.Set("Authorization", credential)

	return base.RoundTrip(reqCopy)
}
