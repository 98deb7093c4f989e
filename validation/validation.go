// Package validation provides client-side checks for storefront requests.
// It validates renewal intervals against the plan's ladder, computes sparse
// upgrade requests and validates tagged structs such as custom configurations.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/lnvps/lnvps-go"
)

// Renewal ladders per billing interval type.
var ladders = map[lnvps.IntervalType][]uint64{
	lnvps.IntervalDay:   {1, 7, 14, 30},
	lnvps.IntervalMonth: {1, 3, 6, 12},
	lnvps.IntervalYear:  {1, 2, 3},
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// AllowedIntervals returns the renewal ladder for an interval type.
// Unknown interval types have an empty ladder.
func AllowedIntervals(t lnvps.IntervalType) []uint64 {
	ladder := ladders[t]
	out := make([]uint64, len(ladder))
	copy(out, ladder)
	return out
}

// ValidateIntervals checks that n is on the ladder for t.
// Returns a validation error wrapping lnvps.ErrIntervalNotAllowed otherwise.
func ValidateIntervals(t lnvps.IntervalType, n uint64) error {
	for _, allowed := range ladders[t] {
		if n == allowed {
			return nil
		}
	}
	return lnvps.NewValidationError(
		fmt.Sprintf("%d %s interval(s) not allowed", n, t),
		lnvps.ErrIntervalNotAllowed,
	).WithDetails("interval_type", string(t)).WithDetails("allowed", ladders[t])
}

// BuildUpgradeRequest computes the sparse request moving current to desired.
// Only fields that increase are populated. A request that increases nothing is
// rejected with a validation error wrapping lnvps.ErrNoopUpgrade.
func BuildUpgradeRequest(current, desired lnvps.VmResources) (lnvps.VmUpgradeRequest, error) {
	var req lnvps.VmUpgradeRequest
	if desired.CPU > current.CPU {
		cpu := desired.CPU
		req.CPU = &cpu
	}
	if desired.Memory > current.Memory {
		mem := desired.Memory
		req.Memory = &mem
	}
	if desired.Disk > current.Disk {
		disk := desired.Disk
		req.Disk = &disk
	}
	if req.IsEmpty() {
		return req, lnvps.NewValidationError("upgrade must increase at least one resource", lnvps.ErrNoopUpgrade)
	}
	return req, nil
}

// ValidateUpgradeRequest rejects requests that change nothing.
func ValidateUpgradeRequest(req lnvps.VmUpgradeRequest) error {
	if req.IsEmpty() {
		return lnvps.NewValidationError("upgrade must increase at least one resource", lnvps.ErrNoopUpgrade)
	}
	return nil
}

// ValidateCustomTemplate validates a custom configuration before it is quoted.
func ValidateCustomTemplate(p lnvps.CustomTemplateParams) error {
	return Struct(p)
}

// Struct validates v using its `validate` tags.
// Field failures are reported as a single validation error listing each field.
func Struct(v interface{}) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return lnvps.NewValidationError("invalid value", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return lnvps.NewValidationError(strings.Join(msgs, "; "), err)
}

// ValidateBaseURL checks that raw is an absolute http(s) URL without a trailing slash.
func ValidateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base URL scheme: %q (expected http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base URL: missing host")
	}
	if strings.HasSuffix(raw, "/") {
		return fmt.Errorf("invalid base URL: trailing slash in %s", raw)
	}
	return nil
}
