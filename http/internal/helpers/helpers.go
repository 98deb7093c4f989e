// Package helpers provides internal HTTP utilities for the storefront client.
package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/lnvps/lnvps-go"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// ParseErrorResponse builds an API error from a non-2xx response.
// A JSON body {"error": "..."} yields that message verbatim; anything else
// yields the raw body text. Parse failures never escape.
func ParseErrorResponse(resp *http.Response) *lnvps.Error {
	var bodyBytes []byte
	if resp.Body != nil {
		bodyBytes, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	}

	var errBody lnvps.APIErrorBody
	if err := json.Unmarshal(bodyBytes, &errBody); err == nil && errBody.Error != "" {
		return lnvps.NewAPIError(resp.StatusCode, errBody.Error)
	}

	text := strings.TrimSpace(string(bodyBytes))
	if text == "" {
		text = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	return lnvps.NewAPIError(resp.StatusCode, text)
}

// PathParam renders a single path segment.
func PathParam(name string, value interface{}) (string, error) {
	return runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
}

// QueryParam is a single form-style query parameter.
type QueryParam struct {
	Name  string
	Value interface{}
}

// BuildQuery renders params as a query string without the leading "?".
// Parameters with a nil or empty string value are omitted.
func BuildQuery(params ...QueryParam) (string, error) {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.Value == nil {
			continue
		}
		if s, ok := p.Value.(string); ok && s == "" {
			continue
		}
		rendered, err := runtime.StyleParamWithLocation("form", true, p.Name, runtime.ParamLocationQuery, p.Value)
		if err != nil {
			return "", fmt.Errorf("invalid query parameter %s: %w", p.Name, err)
		}
		parts = append(parts, rendered)
	}
	return strings.Join(parts, "&"), nil
}

// WithQuery appends a rendered query to path.
func WithQuery(path, query string) string {
	if query == "" {
		return path
	}
	return path + "?" + query
}

// RedactedURL strips the query for logging.
func RedactedURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}
