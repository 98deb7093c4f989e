package lnvps

import (
	"fmt"
	"time"
)

// TimeoutConfig holds timing configuration for client and payment operations.
type TimeoutConfig struct {
	// RequestTimeout bounds a single API request, signing included.
	RequestTimeout time.Duration

	// PollInterval is the delay between payment status checks.
	PollInterval time.Duration

	// PollTimeout caps how long a payment is polled before giving up.
	PollTimeout time.Duration

	// DebounceDelay is how long configuration changes settle before a price quote.
	DebounceDelay time.Duration
}

// DefaultTimeouts provides sensible defaults for storefront operations.
var DefaultTimeouts = TimeoutConfig{
	RequestTimeout: 30 * time.Second,
	PollInterval:   2 * time.Second,
	PollTimeout:    time.Hour,
	DebounceDelay:  500 * time.Millisecond,
}

// WithRequestTimeout returns a new TimeoutConfig with updated request timeout.
func (tc TimeoutConfig) WithRequestTimeout(d time.Duration) TimeoutConfig {
	tc.RequestTimeout = d
	return tc
}

// WithPollInterval returns a new TimeoutConfig with updated poll interval.
func (tc TimeoutConfig) WithPollInterval(d time.Duration) TimeoutConfig {
	tc.PollInterval = d
	return tc
}

// WithPollTimeout returns a new TimeoutConfig with updated poll timeout.
func (tc TimeoutConfig) WithPollTimeout(d time.Duration) TimeoutConfig {
	tc.PollTimeout = d
	return tc
}

// WithDebounceDelay returns a new TimeoutConfig with updated debounce delay.
func (tc TimeoutConfig) WithDebounceDelay(d time.Duration) TimeoutConfig {
	tc.DebounceDelay = d
	return tc
}

// Validate ensures timeout values are reasonable.
func (tc TimeoutConfig) Validate() error {
	if tc.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", tc.RequestTimeout)
	}
	if tc.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", tc.PollInterval)
	}
	if tc.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive, got %v", tc.PollTimeout)
	}
	if tc.DebounceDelay <= 0 {
		return fmt.Errorf("debounce delay must be positive, got %v", tc.DebounceDelay)
	}
	if tc.PollTimeout < tc.PollInterval {
		return fmt.Errorf("poll timeout (%v) should be >= poll interval (%v)",
			tc.PollTimeout, tc.PollInterval)
	}
	return nil
}
