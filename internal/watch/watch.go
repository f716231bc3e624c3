// Package watch runs payment status polls for in-flight payment intents.
// An intent is persisted before its poll starts and removed once the poll
// resolves, so polls can be resumed after a restart.
package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"zelton/internal/intents"
	"zelton/internal/metrics"
	"zelton/internal/payments"
	"zelton/internal/poller"

	"go.uber.org/zap"
)

var (
	ErrNotFound        = errors.New("payment is not being watched")
	ErrInvalidIntent   = errors.New("invalid payment intent")
	ErrNotRetryable    = errors.New("payment completed and cannot be retried")
	ErrUnsupportedKind = errors.New("unsupported payment kind")
	ErrIntentMismatch  = errors.New("order id already belongs to a different payment")
)

// Notifier is told about every poll that resolves with an outcome.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, intent payments.Intent, res poller.Result) error
}

const (
	StateInFlight = "in_flight"
	StateResolved = "resolved"
	StateCanceled = "canceled"
)

// Status is a snapshot of one watched payment.
type Status struct {
	OrderID    string          `json:"order_id"`
	State      string          `json:"state"`
	Intent     payments.Intent `json:"intent"`
	StartedAt  time.Time       `json:"started_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	Result     *poller.Result  `json:"result,omitempty"`
}

type Config struct {
	Interval    time.Duration
	MaxAttempts int
	// NotifyTimeout bounds the fan-out to all notifiers for one outcome.
	NotifyTimeout time.Duration
}

type entry struct {
	intent     payments.Intent
	state      string
	startedAt  time.Time
	resolvedAt time.Time
	result     *poller.Result
}

type Watcher struct {
	poller    *poller.Poller
	verifiers *payments.PaymentManager
	store     intents.Store
	notifiers []Notifier
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
}

func New(
	verifiers *payments.PaymentManager,
	store intents.Store,
	notifiers []Notifier,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
	cfg Config,
) *Watcher {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		poller:    poller.New(verifiers.ForKind(payments.KindRent), logger),
		verifiers: verifiers,
		store:     store,
		notifiers: notifiers,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[string]*entry),
	}
}

// Options overrides the watcher's poll interval and attempt budget for a
// single payment. Zero values keep the configured defaults.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
}

func (w *Watcher) normalize(in payments.Intent) (payments.Intent, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	if in.OrderID == "" {
		return in, fmt.Errorf("%w: order id is required", ErrInvalidIntent)
	}
	if in.Amount <= 0 {
		return in, fmt.Errorf("%w: amount must be positive", ErrInvalidIntent)
	}
	if strings.TrimSpace(in.PayerID) == "" {
		return in, fmt.Errorf("%w: payer id is required", ErrInvalidIntent)
	}
	if in.Kind == "" {
		in.Kind = payments.KindRent
	}
	if !w.verifiers.Supports(in.Kind) {
		return in, fmt.Errorf("%w: %s", ErrUnsupportedKind, in.Kind)
	}
	if in.Currency == "" {
		in.Currency = "INR"
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	return in, nil
}

// Start persists intent and begins polling its status. Watching an order
// that is already being polled replaces the running poll. An order id keeps
// the intent it was first watched with; only contact details may change.
func (w *Watcher) Start(ctx context.Context, intent payments.Intent, opts Options) (Status, error) {
	intent, err := w.normalize(intent)
	if err != nil {
		return Status{}, err
	}

	existing, err := w.Lookup(ctx, intent.OrderID)
	switch {
	case err == nil:
		if !sameIntent(existing, intent) {
			return Status{}, fmt.Errorf("%w: %s", ErrIntentMismatch, intent.OrderID)
		}
		existing.PayerName = intent.PayerName
		existing.PayerEmail = intent.PayerEmail
		existing.PushToken = intent.PushToken
		intent = existing
	case !errors.Is(err, ErrNotFound):
		return Status{}, err
	}

	if err := w.store.Save(ctx, intent); err != nil {
		return Status{}, fmt.Errorf("persist intent: %w", err)
	}
	return w.startPoll(intent, opts)
}

func (w *Watcher) startPoll(intent payments.Intent, opts Options) (Status, error) {
	e := &entry{intent: intent, state: StateInFlight, startedAt: time.Now()}

	pollOpts := poller.Options{
		Interval:    w.cfg.Interval,
		MaxAttempts: w.cfg.MaxAttempts,
		OnTerminal:  func(res poller.Result) { w.resolve(e, res) },
		OnError:     func(res poller.Result) { w.resolve(e, res) },
	}
	if opts.Interval > 0 {
		pollOpts.Interval = opts.Interval
	}
	if opts.MaxAttempts > 0 {
		pollOpts.MaxAttempts = opts.MaxAttempts
	}

	// Register before polling so a fast resolution always finds its entry.
	// A poll the poller no longer tracks resolves through its own callback,
	// so only a poll stopped here counts as canceled.
	w.mu.Lock()
	prev := w.entries[intent.OrderID]
	w.entries[intent.OrderID] = e
	stopped := w.poller.Cancel(intent.OrderID)
	if stopped && prev != nil {
		prev.state = StateCanceled
		prev.resolvedAt = time.Now()
	}
	w.mu.Unlock()

	if stopped && w.metrics != nil {
		w.metrics.PollCanceled()
	}

	_, err := w.poller.PollWith(w.ctx, w.verifiers.ForKind(intent.Kind), intent.OrderID, pollOpts)
	if err != nil {
		w.mu.Lock()
		if w.entries[intent.OrderID] == e {
			if prev != nil {
				w.entries[intent.OrderID] = prev
			} else {
				delete(w.entries, intent.OrderID)
			}
		}
		w.mu.Unlock()
		return Status{}, err
	}

	w.mu.Lock()
	st := e.status()
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.PollStarted(string(intent.Kind))
	}
	w.logger.Infow("watching payment",
		"order_id", intent.OrderID, "kind", intent.Kind, "payer_id", intent.PayerID,
		"interval", pollOpts.Interval, "max_attempts", pollOpts.MaxAttempts)

	return st, nil
}

// resolve runs once per poll that reached an outcome.
func (w *Watcher) resolve(e *entry, res poller.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.NotifyTimeout)
	defer cancel()

	if err := w.store.Delete(ctx, e.intent.OrderID); err != nil {
		w.logger.Errorw("failed to remove resolved intent", "order_id", e.intent.OrderID, "error", err)
	}

	resolvedAt := time.Now()
	if w.metrics != nil {
		w.metrics.PollResolved(string(e.intent.Kind), string(res.Outcome), res.Reason, res.Attempts, resolvedAt.Sub(e.startedAt))
	}

	for _, n := range w.notifiers {
		if err := n.Notify(ctx, e.intent, res); err != nil {
			w.logger.Errorw("failed to notify payment outcome",
				"notifier", n.Name(), "order_id", e.intent.OrderID, "error", err)
			if w.metrics != nil {
				w.metrics.NotifyFailed(n.Name())
			}
		}
	}

	// Marked last so a resolved status implies notifiers have run.
	w.mu.Lock()
	e.state = StateResolved
	e.resolvedAt = resolvedAt
	e.result = &res
	w.mu.Unlock()
}

// Resume restarts polling for every persisted intent not already watched.
func (w *Watcher) Resume(ctx context.Context) (int, error) {
	pending, err := w.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list intents: %w", err)
	}

	resumed := 0
	for _, in := range pending {
		w.mu.Lock()
		e, ok := w.entries[in.OrderID]
		inFlight := ok && e.state == StateInFlight
		w.mu.Unlock()
		if inFlight {
			continue
		}
		if !w.verifiers.Supports(in.Kind) {
			w.logger.Warnw("skipping intent with unsupported kind", "order_id", in.OrderID, "kind", in.Kind)
			continue
		}

		if _, err := w.startPoll(in, Options{}); err != nil {
			w.logger.Errorw("failed to resume payment watch", "order_id", in.OrderID, "error", err)
			continue
		}
		resumed++
	}
	return resumed, nil
}

// Lookup returns the intent recorded for orderID, from memory or, failing
// that, from the store.
func (w *Watcher) Lookup(ctx context.Context, orderID string) (payments.Intent, error) {
	w.mu.Lock()
	e, ok := w.entries[orderID]
	w.mu.Unlock()
	if ok {
		return e.intent, nil
	}

	in, err := w.store.Get(ctx, orderID)
	if errors.Is(err, intents.ErrNotFound) {
		return payments.Intent{}, ErrNotFound
	}
	if err != nil {
		return payments.Intent{}, fmt.Errorf("load intent: %w", err)
	}
	return *in, nil
}

// sameIntent reports whether b describes the same payment as a.
func sameIntent(a, b payments.Intent) bool {
	return a.OrderID == b.OrderID &&
		a.Kind == b.Kind &&
		a.Amount == b.Amount &&
		a.Currency == b.Currency &&
		a.PayerID == b.PayerID &&
		a.PlanOrUnitRef == b.PlanOrUnitRef
}

// Status reports the latest known state of orderID.
func (w *Watcher) Status(orderID string) (Status, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[orderID]
	if !ok {
		return Status{}, ErrNotFound
	}
	return e.status(), nil
}

// Cancel stops watching orderID and drops its persisted intent.
func (w *Watcher) Cancel(ctx context.Context, orderID string) error {
	w.mu.Lock()
	e, ok := w.entries[orderID]
	if !ok || e.state != StateInFlight {
		w.mu.Unlock()
		return ErrNotFound
	}
	// A poll the poller no longer tracks has already resolved and its
	// outcome is being delivered.
	if !w.poller.Cancel(orderID) {
		w.mu.Unlock()
		return ErrNotFound
	}
	e.state = StateCanceled
	e.resolvedAt = time.Now()
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.PollCanceled()
	}

	if err := w.store.Delete(ctx, orderID); err != nil {
		return fmt.Errorf("remove intent: %w", err)
	}
	w.logger.Infow("payment watch canceled", "order_id", orderID)
	return nil
}

// Retry polls a payment again after it failed, timed out or was canceled.
func (w *Watcher) Retry(ctx context.Context, orderID string, opts Options) (Status, error) {
	w.mu.Lock()
	e, ok := w.entries[orderID]
	var intent payments.Intent
	if ok {
		intent = e.intent
	}
	completed := ok && e.result != nil && e.result.Outcome == payments.Completed
	w.mu.Unlock()

	if !ok {
		return Status{}, ErrNotFound
	}
	if completed {
		return Status{}, ErrNotRetryable
	}
	return w.Start(ctx, intent, opts)
}

// Verify checks the payment once without starting a poll.
func (w *Watcher) Verify(ctx context.Context, kind payments.Kind, orderID string) (payments.Outcome, error) {
	if kind == "" {
		kind = payments.KindRent
	}
	if !w.verifiers.Supports(kind) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	resp, err := w.verifiers.VerifyPayment(ctx, kind, orderID)
	if err != nil {
		return "", err
	}
	return payments.Classify(resp), nil
}

// Prune forgets resolved and canceled payments older than maxAge.
func (w *Watcher) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	w.mu.Lock()
	defer w.mu.Unlock()

	pruned := 0
	for id, e := range w.entries {
		if e.state != StateInFlight && e.resolvedAt.Before(cutoff) {
			delete(w.entries, id)
			pruned++
		}
	}
	return pruned
}

// InFlight returns the order ids currently being polled.
func (w *Watcher) InFlight() []string {
	return w.poller.Active()
}

// Close stops every running poll. Persisted intents are kept so the next
// process can resume them.
func (w *Watcher) Close(ctx context.Context) error {
	w.cancel()
	return w.poller.Shutdown(ctx)
}

func (e *entry) status() Status {
	st := Status{
		OrderID:   e.intent.OrderID,
		State:     e.state,
		Intent:    e.intent,
		StartedAt: e.startedAt,
		Result:    e.result,
	}
	if !e.resolvedAt.IsZero() {
		at := e.resolvedAt
		st.ResolvedAt = &at
	}
	return st
}
