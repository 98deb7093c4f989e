// Package payment drives a single renewal or upgrade payment from method
// selection to settlement.
//
// The Orchestrator is an explicit state machine: events go in through
// Dispatch, transitions are applied one at a time by the Run loop, and the
// current state is observable through Snapshot and the state listener.
// Asynchronous work (loading methods, creating the payment, polling) posts its
// result back as an event tagged with the attempt generation, so results that
// arrive after a cancel or reset are discarded.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lnvps/lnvps-go"
	"github.com/lnvps/lnvps-go/backend"
	"github.com/lnvps/lnvps-go/cache"
	"github.com/lnvps/lnvps-go/validation"
)

// Operation is what the payment pays for.
type Operation string

const (
	OperationRenew   Operation = "renew"
	OperationUpgrade Operation = "upgrade"
)

// Target describes the VM operation being paid for.
type Target struct {
	Operation Operation
	VMID      uint64

	// IntervalType and Intervals apply to renewals.
	IntervalType lnvps.IntervalType
	Intervals    uint64

	// Current and Desired apply to upgrades.
	Current lnvps.VmResources
	Desired lnvps.VmResources
}

// RenewTarget renews vmID for intervals periods of intervalType.
func RenewTarget(vmID uint64, intervalType lnvps.IntervalType, intervals uint64) Target {
	return Target{
		Operation:    OperationRenew,
		VMID:         vmID,
		IntervalType: intervalType,
		Intervals:    intervals,
	}
}

// RenewTargetFor renews vm using the interval type of its cost plan.
func RenewTargetFor(vm *lnvps.VmInstance, intervals uint64) Target {
	return RenewTarget(vm.ID, vm.Template.CostPlan.IntervalType, intervals)
}

// UpgradeTarget upgrades vmID from current to desired resources.
func UpgradeTarget(vmID uint64, current, desired lnvps.VmResources) Target {
	return Target{
		Operation: OperationUpgrade,
		VMID:      vmID,
		Current:   current,
		Desired:   desired,
	}
}

// Completion is reported once a payment settles.
type Completion struct {
	AttemptID string
	Target    Target
	Method    string
	Payment   lnvps.VmPayment
	Duration  time.Duration
}

// Orchestrator runs the payment flow for one Target.
type Orchestrator struct {
	api         backend.PaymentAPI
	methods     *MethodCache
	poller      *Poller
	target      Target
	upgrade     lnvps.VmUpgradeRequest
	preselected string
	railKinds   map[string]RailKind
	hub         *Hub
	timeouts    lnvps.TimeoutConfig
	logger      *slog.Logger
	onState     func(Snapshot)
	onComplete  func(Completion)
	onEvent     lnvps.PaymentCallback

	inbox   mailbox
	running atomic.Bool

	mu       sync.RWMutex
	snapshot Snapshot

	// Owned by the Run loop.
	runCtx        context.Context
	state         State
	gen           uint64
	attemptID     string
	attemptStart  time.Time
	attemptCtx    context.Context
	attemptCancel context.CancelFunc
	methodList    []lnvps.PaymentMethod
	method        string
	payment       *lnvps.VmPayment
	address       string
	errMsg        string
	autoSelected  bool
	created       bool
	stopPoll      func()
	unregister    func()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithPreselectedMethod skips method selection and creates the payment on
// name as soon as methods are loaded. It fires at most once per Mount.
func WithPreselectedMethod(name string) Option {
	return func(o *Orchestrator) error {
		o.preselected = name
		return nil
	}
}

// WithMethodCache shares a method cache between orchestrators.
func WithMethodCache(mc *MethodCache) Option {
	return func(o *Orchestrator) error {
		if mc == nil {
			return fmt.Errorf("method cache cannot be nil")
		}
		o.methods = mc
		return nil
	}
}

// WithTimeouts sets poll interval and timeout.
func WithTimeouts(tc lnvps.TimeoutConfig) Option {
	return func(o *Orchestrator) error {
		if err := tc.Validate(); err != nil {
			return err
		}
		o.timeouts = tc
		return nil
	}
}

// WithRailKinds overrides the settlement strategy per rail name.
func WithRailKinds(kinds map[string]RailKind) Option {
	return func(o *Orchestrator) error {
		o.railKinds = kinds
		return nil
	}
}

// WithHub registers pending payments with hub so external reports reach them.
func WithHub(hub *Hub) Option {
	return func(o *Orchestrator) error {
		o.hub = hub
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		o.logger = logger
		return nil
	}
}

// WithStateListener receives every snapshot, in order, from the Run loop.
func WithStateListener(fn func(Snapshot)) Option {
	return func(o *Orchestrator) error {
		o.onState = fn
		return nil
	}
}

// WithCompletionHandler is called once per settled payment, after the
// attempt state has been cleared.
func WithCompletionHandler(fn func(Completion)) Option {
	return func(o *Orchestrator) error {
		o.onComplete = fn
		return nil
	}
}

// WithPaymentCallback receives payment lifecycle events.
func WithPaymentCallback(cb lnvps.PaymentCallback) Option {
	return func(o *Orchestrator) error {
		o.onEvent = cb
		return nil
	}
}

// New creates an Orchestrator for target. Renewal intervals off the plan's
// ladder and upgrades that increase nothing are rejected here, before any
// network call.
func New(api backend.PaymentAPI, target Target, opts ...Option) (*Orchestrator, error) {
	if api == nil {
		return nil, fmt.Errorf("payment api cannot be nil")
	}

	o := &Orchestrator{
		api:      api,
		target:   target,
		timeouts: lnvps.DefaultTimeouts,
		logger:   slog.Default(),
		inbox:    newMailbox(),
		state:    StateIdle,
	}

	switch target.Operation {
	case OperationRenew:
		if err := validation.ValidateIntervals(target.IntervalType, target.Intervals); err != nil {
			return nil, err
		}
	case OperationUpgrade:
		req, err := validation.BuildUpgradeRequest(target.Current, target.Desired)
		if err != nil {
			return nil, err
		}
		o.upgrade = req
	default:
		return nil, lnvps.NewValidationError(fmt.Sprintf("unknown operation %q", target.Operation), nil)
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.methods == nil {
		o.methods = NewMethodCache(api, cache.NewMemoryStore(), cache.WithLogger(o.logger))
	}
	o.poller = NewPoller(api,
		WithPollInterval(o.timeouts.PollInterval),
		WithPollTimeout(o.timeouts.PollTimeout),
		WithPollerLogger(o.logger),
	)
	o.logger = o.logger.With("vm_id", target.VMID, "operation", string(target.Operation))
	o.snapshot = o.buildSnapshot()

	return o, nil
}

// Dispatch queues ev for the Run loop. It never blocks.
func (o *Orchestrator) Dispatch(ev Event) {
	o.inbox.push(ev)
}

// Snapshot returns the current observable state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot
}

// Run applies queued events until ctx ends. Timers and in-flight requests of
// the current attempt are cancelled on return.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return fmt.Errorf("orchestrator already running")
	}
	defer o.running.Store(false)

	o.runCtx = ctx
	for {
		select {
		case <-ctx.Done():
			o.endAttempt()
			return ctx.Err()
		case <-o.inbox.ready:
			for _, ev := range o.inbox.drain() {
				o.handle(ev)
			}
		}
	}
}

func (o *Orchestrator) handle(ev Event) {
	switch e := ev.(type) {
	case Mount:
		o.onMount()
	case SelectMethod:
		o.onSelectMethod(e)
	case SetIntervals:
		o.onSetIntervals(e)
	case CheckoutResult:
		o.onCheckoutResult(e)
	case ExternalSettlement:
		o.onExternalSettlement(e)
	case Cancel:
		o.onCancel()
	case Retry:
		o.onRetry()
	case Reset:
		o.onReset()
	case methodsLoaded:
		if o.current(e.gen, ev) {
			o.onMethodsLoaded(e)
		}
	case paymentCreated:
		if o.current(e.gen, ev) {
			o.onPaymentCreated(e)
		}
	case pollFinished:
		if o.current(e.gen, ev) {
			o.onPollFinished(e)
		}
	default:
		o.logger.Warn("unknown event", "event", fmt.Sprintf("%T", ev))
	}
}

// current reports whether a result belongs to the running attempt.
func (o *Orchestrator) current(gen uint64, ev Event) bool {
	if gen == o.gen {
		return true
	}
	staleEvents.WithLabelValues(ev.eventName()).Inc()
	o.logger.Debug("discarding stale result", "event", ev.eventName())
	return false
}

func (o *Orchestrator) ignore(ev Event) {
	o.logger.Debug("event ignored", "event", ev.eventName(), "state", o.state.String())
}

func (o *Orchestrator) onMount() {
	if o.state != StateIdle && !o.state.Terminal() {
		o.ignore(Mount{})
		return
	}
	o.endAttempt()
	o.clearAttempt()
	o.autoSelected = false
	o.beginAttempt()
	o.transition(StateMethodsLoading)
	o.loadMethods()
}

func (o *Orchestrator) onRetry() {
	if o.state != StateFailed {
		o.ignore(Retry{})
		return
	}
	o.clearAttempt()
	o.beginAttempt()
	o.transition(StateMethodsLoading)
	o.loadMethods()
}

func (o *Orchestrator) onReset() {
	if !o.state.Terminal() {
		o.ignore(Reset{})
		return
	}
	o.endAttempt()
	o.clearAttempt()
	o.transition(StateIdle)
}

func (o *Orchestrator) onCancel() {
	if !o.state.Cancellable() {
		o.ignore(Cancel{})
		return
	}
	if o.attemptID != "" {
		o.emit(lnvps.PaymentEventCancelled, nil)
	}
	o.endAttempt()
	o.clearAttempt()
	o.transition(StateCancelled)
}

func (o *Orchestrator) onSetIntervals(e SetIntervals) {
	if o.target.Operation != OperationRenew {
		o.ignore(e)
		return
	}
	switch o.state {
	case StateIdle, StateMethodsLoading, StateMethodSelection:
	default:
		o.ignore(e)
		return
	}
	if err := validation.ValidateIntervals(o.target.IntervalType, e.N); err != nil {
		o.logger.Warn("ignoring renewal interval", "intervals", e.N, "error", err)
		return
	}
	o.target.Intervals = e.N
	o.publish()
}

func (o *Orchestrator) loadMethods() {
	gen, ctx := o.gen, o.attemptCtx
	go func() {
		methods, err := o.methods.Get(ctx)
		if err != nil {
			o.Dispatch(methodsLoaded{gen: gen, err: fmt.Errorf("load payment methods: %w", err)})
			return
		}
		account, err := o.api.Account(ctx)
		if err != nil {
			o.Dispatch(methodsLoaded{gen: gen, err: fmt.Errorf("load account: %w", err)})
			return
		}
		o.Dispatch(methodsLoaded{gen: gen, methods: methods, account: account})
	}()
}

func (o *Orchestrator) onMethodsLoaded(e methodsLoaded) {
	if o.state != StateMethodsLoading {
		o.ignore(e)
		return
	}
	if e.err != nil {
		o.fail(e.err)
		return
	}

	o.methodList = lnvps.SelectMethods(e.methods, e.account)

	// The list is advisory for a preselected rail.
	if o.preselected != "" && !o.autoSelected {
		o.autoSelected = true
		o.method = o.preselected
		o.create()
		return
	}
	o.transition(StateMethodSelection)
}

func (o *Orchestrator) onSelectMethod(e SelectMethod) {
	if o.state == StateCreating || o.state == StatePending {
		o.logger.Warn("refusing payment creation", "method", e.Name, "error", lnvps.ErrDuplicatePayment)
		return
	}
	if o.state != StateMethodSelection {
		o.ignore(e)
		return
	}
	// The preselected rail stays selectable after a retry even when unlisted.
	_, listed := lnvps.FindMethod(o.methodList, e.Name)
	if e.Name == "" || (!listed && e.Name != o.preselected) {
		o.logger.Warn("ignoring unknown payment method", "method", e.Name)
		return
	}
	o.method = e.Name
	o.create()
}

func (o *Orchestrator) create() {
	if o.created {
		o.logger.Warn("refusing payment creation", "method", o.method, "error", lnvps.ErrDuplicatePayment)
		return
	}
	o.created = true
	o.transition(StateCreating)
	o.emit(lnvps.PaymentEventAttempt, nil)

	gen, ctx := o.gen, o.attemptCtx
	target, method, upgrade := o.target, o.method, o.upgrade
	go func() {
		var (
			p   *lnvps.VmPayment
			err error
		)
		switch target.Operation {
		case OperationRenew:
			p, err = o.api.RenewVM(ctx, target.VMID, target.Intervals, method)
		case OperationUpgrade:
			p, err = o.api.UpgradePayment(ctx, target.VMID, upgrade, method)
		}
		if err == nil && p == nil {
			err = errors.New("empty payment response")
		}
		if err != nil {
			err = fmt.Errorf("create payment: %w", err)
		}
		o.Dispatch(paymentCreated{gen: gen, payment: p, err: err})
	}()
}

func (o *Orchestrator) onPaymentCreated(e paymentCreated) {
	if o.state != StateCreating {
		o.ignore(e)
		return
	}
	if e.err != nil {
		o.fail(e.err)
		return
	}

	o.payment = e.payment
	o.emit(lnvps.PaymentEventCreated, nil)
	o.logger.Info("payment created", "payment_id", e.payment.ID, "method", o.method)

	rail := KindOf(o.method, o.railKinds)
	if o.hub != nil {
		o.unregister = o.hub.Register(e.payment.ID, rail, o)
	}
	if e.payment.IsPaid {
		o.complete(e.payment)
		return
	}

	if rail == RailPull {
		m, _ := lnvps.FindMethod(o.methodList, o.method)
		o.address = pullAddress(e.payment, m)
	}
	o.transition(StatePending)

	if rail.Polls() {
		gen := o.gen
		o.stopPoll = o.poller.Start(o.attemptCtx, *e.payment, func(out PollOutcome) {
			o.Dispatch(pollFinished{gen: gen, outcome: out})
		})
	}
}

func (o *Orchestrator) onPollFinished(e pollFinished) {
	if o.state != StatePending {
		o.ignore(e)
		return
	}
	if e.outcome.Err != nil {
		o.fail(fmt.Errorf("await settlement: %w", e.outcome.Err))
		return
	}
	o.complete(e.outcome.Payment)
}

func (o *Orchestrator) onCheckoutResult(e CheckoutResult) {
	if o.state != StatePending || KindOf(o.method, o.railKinds) != RailCard || !o.matches(e.PaymentID) {
		o.ignore(e)
		return
	}
	if !e.Success {
		o.onCancel()
		return
	}
	o.completePending()
}

func (o *Orchestrator) onExternalSettlement(e ExternalSettlement) {
	if o.state != StatePending || !o.matches(e.PaymentID) {
		o.ignore(e)
		return
	}
	o.completePending()
}

func (o *Orchestrator) matches(paymentID string) bool {
	return paymentID == "" || (o.payment != nil && o.payment.ID == paymentID)
}

func (o *Orchestrator) completePending() {
	settled := *o.payment
	settled.IsPaid = true
	o.complete(&settled)
}

func (o *Orchestrator) complete(p *lnvps.VmPayment) {
	o.payment = p
	completion := Completion{
		AttemptID: o.attemptID,
		Target:    o.target,
		Method:    o.method,
		Payment:   *p,
		Duration:  time.Since(o.attemptStart),
	}
	o.emit(lnvps.PaymentEventSuccess, nil)
	o.logger.Info("payment settled", "payment_id", p.ID, "method", o.method)

	o.endAttempt()
	o.clearAttempt()
	o.transition(StateCompleted)

	if o.onComplete != nil {
		o.onComplete(completion)
	}
}

func (o *Orchestrator) fail(err error) {
	o.logger.Warn("payment attempt failed", "error", err)
	o.emit(lnvps.PaymentEventFailure, err)
	o.endAttempt()
	o.clearAttempt()
	o.errMsg = err.Error()
	o.transition(StateFailed)
}

func (o *Orchestrator) beginAttempt() {
	o.gen++
	o.attemptID = uuid.NewString()
	o.attemptStart = time.Now()
	o.attemptCtx, o.attemptCancel = context.WithCancel(o.runCtx)
}

// endAttempt stops all work of the current attempt. Results still in flight
// carry the old generation and are discarded.
func (o *Orchestrator) endAttempt() {
	if o.stopPoll != nil {
		o.stopPoll()
		o.stopPoll = nil
	}
	if o.unregister != nil {
		o.unregister()
		o.unregister = nil
	}
	if o.attemptCancel != nil {
		o.attemptCancel()
		o.attemptCancel = nil
	}
	o.gen++
}

func (o *Orchestrator) clearAttempt() {
	o.attemptID = ""
	o.methodList = nil
	o.method = ""
	o.payment = nil
	o.address = ""
	o.errMsg = ""
	o.created = false
}

func (o *Orchestrator) transition(to State) {
	transitions.WithLabelValues(o.state.String(), to.String()).Inc()
	o.logger.Debug("state transition", "from", o.state.String(), "to", to.String())
	o.state = to
	o.publish()
}

func (o *Orchestrator) publish() {
	snap := o.buildSnapshot()
	o.mu.Lock()
	o.snapshot = snap
	o.mu.Unlock()
	if o.onState != nil {
		o.onState(snap)
	}
}

func (o *Orchestrator) buildSnapshot() Snapshot {
	snap := Snapshot{
		State:     o.state,
		AttemptID: o.attemptID,
		Method:    o.method,
		Intervals: o.target.Intervals,
		Address:   o.address,
		Error:     o.errMsg,
	}
	if o.method != "" {
		snap.Rail = KindOf(o.method, o.railKinds)
	}
	if len(o.methodList) > 0 {
		snap.Methods = append([]lnvps.PaymentMethod(nil), o.methodList...)
	}
	if o.payment != nil {
		p := *o.payment
		snap.Payment = &p
	}
	return snap
}

func (o *Orchestrator) emit(typ lnvps.PaymentEventType, err error) {
	if o.onEvent == nil {
		return
	}
	ev := lnvps.PaymentEvent{
		Type:      typ,
		Timestamp: time.Now(),
		AttemptID: o.attemptID,
		VMID:      o.target.VMID,
		Operation: string(o.target.Operation),
		Method:    o.method,
		Error:     err,
		Duration:  time.Since(o.attemptStart),
	}
	if o.payment != nil {
		ev.PaymentID = o.payment.ID
		ev.Amount = o.payment.Amount
		ev.Currency = o.payment.Currency
	}
	o.onEvent(ev)
}

// mailbox is an unbounded event queue so Dispatch never blocks the poller,
// the hub or the caller.
type mailbox struct {
	mu    sync.Mutex
	queue []Event
	ready chan struct{}
}

func newMailbox() mailbox {
	return mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) push(ev Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}
