// Package pricing quotes custom VM configurations as the user edits them.
//
// Updates are debounced: each Update restarts the timer and only the latest
// configuration is sent once the user pauses. A newer update cancels the
// request in flight and its result is discarded.
package pricing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	canonicaljson "github.com/gibson042/canonicaljson-go"

	"github.com/lnvps/lnvps-go"
	"github.com/lnvps/lnvps-go/backend"
	"github.com/lnvps/lnvps-go/validation"
)

// ErrClosed is returned by Update after Close.
var ErrClosed = errors.New("pricing: engine closed")

// Quote is the result of pricing one configuration.
type Quote struct {
	Params      lnvps.CustomTemplateParams
	Fingerprint string
	Price       *lnvps.CustomPrice
	Err         error
}

// Fingerprint identifies a configuration independent of field order.
func Fingerprint(p lnvps.CustomTemplateParams) (string, error) {
	b, err := canonicaljson.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("pricing: canonicalize params: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Engine debounces configuration changes into price quotes.
type Engine struct {
	quoter  backend.PriceQuoter
	onQuote func(Quote)
	delay   time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// deliver is held across onQuote so Update waits for a delivery in progress.
	deliver sync.Mutex

	mu          sync.Mutex
	closed      bool
	seq         uint64
	timer       *time.Timer
	inflight    context.CancelFunc
	pending     lnvps.CustomTemplateParams
	fingerprint string
}

// Option configures an Engine.
type Option func(*Engine)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine delivering quotes to onQuote. onQuote runs on
// an engine goroutine and must not call Update or Close.
func NewEngine(quoter backend.PriceQuoter, onQuote func(Quote), opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		quoter:  quoter,
		onQuote: onQuote,
		delay:   lnvps.DefaultTimeouts.DebounceDelay,
		logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Update replaces the configuration to quote and restarts the debounce timer.
// Invalid configurations supersede earlier ones but are never sent. Once
// Update returns, no quote for an earlier configuration is delivered.
func (e *Engine) Update(p lnvps.CustomTemplateParams) error {
	e.deliver.Lock()
	defer e.deliver.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	e.seq++
	e.stopLocked()

	if err := validation.ValidateCustomTemplate(p); err != nil {
		return err
	}
	fp, err := Fingerprint(p)
	if err != nil {
		return err
	}

	e.pending = p
	e.fingerprint = fp
	seq := e.seq
	e.timer = time.AfterFunc(e.delay, func() {
		e.fire(seq)
	})
	return nil
}

// Close cancels the pending timer and the request in flight. No quote is
// delivered after Close returns.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.stopLocked()
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func (e *Engine) stopLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.inflight != nil {
		e.inflight()
		e.inflight = nil
	}
}

func (e *Engine) fire(seq uint64) {
	e.mu.Lock()
	if e.closed || seq != e.seq {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.inflight = cancel
	e.timer = nil
	params, fp := e.pending, e.fingerprint
	e.wg.Add(1)
	e.mu.Unlock()

	defer e.wg.Done()
	defer cancel()

	price, err := e.quoter.CustomPrice(ctx, params)

	e.deliver.Lock()
	defer e.deliver.Unlock()
	e.mu.Lock()
	current := !e.closed && seq == e.seq
	if current {
		e.inflight = nil
	}
	e.mu.Unlock()

	if !current {
		quotes.WithLabelValues("stale").Inc()
		e.logger.Debug("discarding stale price quote", "fingerprint", fp)
		return
	}
	if err != nil {
		quotes.WithLabelValues("error").Inc()
		e.logger.Warn("price quote failed", "error", err)
	} else {
		quotes.WithLabelValues("ok").Inc()
	}
	e.onQuote(Quote{Params: params, Fingerprint: fp, Price: price, Err: err})
}
