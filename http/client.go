// Package http provides the authenticated storefront API client.
//
// Every request is signed for its exact URL and method by an AuthTransport,
// decoded from the {data, error} envelope and mapped onto the lnvps error
// taxonomy. The client never retries.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lnvps/lnvps-go"
	"github.com/lnvps/lnvps-go/http/internal/helpers"
	"github.com/lnvps/lnvps-go/validation"
)

// DefaultBaseURL is the public storefront API.
const DefaultBaseURL = "https://api.lnvps.net"

const tracerName = "github.com/lnvps/lnvps-go/http"

// Client is an HTTP client for the storefront API.
// It wraps a standard http.Client whose transport signs every request.
type Client struct {
	*http.Client

	// BaseURL is prefixed to every request path.
	BaseURL string

	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// NewClient creates a storefront client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if err := validation.ValidateBaseURL(baseURL); err != nil {
		return nil, err
	}

	client := &Client{
		Client:  &http.Client{},
		BaseURL: baseURL,
		timeout: lnvps.DefaultTimeouts.RequestTimeout,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	client.Transport = &AuthTransport{Base: http.DefaultTransport, Signer: lnvps.AnonymousSigner}

	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}

	transport := client.authTransport()
	if transport.Logger == nil {
		transport.Logger = client.logger
	}

	return client, nil
}

// WithHTTPClient sets a custom underlying HTTP client. Its transport is
// wrapped so requests stay signed.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		if httpClient == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		prev := c.authTransport()
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.Client = httpClient
		c.Transport = &AuthTransport{
			Base:              base,
			Signer:            prev.Signer,
			RequireCredential: prev.RequireCredential,
			Logger:            prev.Logger,
		}
		return nil
	}
}

// WithSigner sets the request signer.
func WithSigner(signer lnvps.Signer) ClientOption {
	return func(c *Client) error {
		if signer == nil {
			return fmt.Errorf("signer cannot be nil")
		}
		c.authTransport().Signer = signer
		return nil
	}
}

// WithRequireCredential makes a failed or absent credential abort the request
// with a signing error instead of sending it anonymously.
func WithRequireCredential() ClientOption {
	return func(c *Client) error {
		c.authTransport().RequireCredential = true
		return nil
	}
}

// WithTimeout sets the per-request timeout, signing included.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		c.authTransport().Logger = logger
		return nil
	}
}

// WithTracerProvider sets the provider used for request spans.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *Client) error {
		c.tracer = tp.Tracer(tracerName)
		return nil
	}
}

// authTransport gets the AuthTransport or wraps the current transport in one.
func (c *Client) authTransport() *AuthTransport {
	transport, ok := c.Transport.(*AuthTransport)
	if !ok {
		transport = &AuthTransport{Base: c.Transport, Signer: lnvps.AnonymousSigner}
		c.Transport = transport
	}
	return transport
}

// Timeout returns the configured per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// envelope is the success body shape {data, error?}.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Request issues method path with an optional JSON body and decodes the
// envelope's data into out (which may be nil).
//
// A 2xx response whose envelope carries a non-empty error is still treated as
// success; the error text is only logged.
func (c *Client) Request(ctx context.Context, path, method string, body, out interface{}) error {
	op := method + " " + path
	fullURL := c.BaseURL + path

	ctx, span := c.tracer.Start(ctx, "lnvps.request", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer span.End()

	err := c.do(ctx, op, fullURL, method, body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) do(ctx context.Context, op, fullURL, method string, body, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return lnvps.NewValidationError("failed to marshal request body", err).WithOp(op)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, fullURL, reader)
	if err != nil {
		return lnvps.NewValidationError("failed to create request", err).WithOp(op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		var lerr *lnvps.Error
		if errors.As(err, &lerr) && lerr.Kind == lnvps.KindSigning {
			observeRequest(method, "signing_error", start)
			return lerr.WithOp(op)
		}
		timeout := isTimeout(err)
		if timeout {
			observeRequest(method, "timeout", start)
		} else {
			observeRequest(method, "network_error", start)
		}
		return lnvps.NewNetworkError(op, err, timeout)
	}
	defer resp.Body.Close()

	observeRequest(method, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := helpers.ParseErrorResponse(resp).WithOp(op)
		c.logger.Debug("api request failed", "op", op, "status", resp.StatusCode, "error", apiErr.Message)
		return apiErr
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if errors.Is(err, io.EOF) && out == nil {
			return nil
		}
		if isTimeout(err) {
			return lnvps.NewNetworkError(op, err, true)
		}
		return lnvps.NewNetworkError(op, fmt.Errorf("failed to decode response: %w", err), false)
	}
	if env.Error != "" {
		c.logger.Debug("ignoring error field on successful response", "op", op, "error", env.Error)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return lnvps.NewNetworkError(op, fmt.Errorf("failed to decode response data: %w", err), false)
	}
	return nil
}

// isTimeout reports whether err stems from a deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
