// Package poller polls a payment's status on a fixed interval until the
// backend reports a terminal state or the attempt budget runs out.
package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"zelton/internal/payments"

	"go.uber.org/zap"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultMaxAttempts = 30
)

var (
	ErrEmptyOrderID    = errors.New("order id is required")
	ErrInvalidOptions  = errors.New("interval and max attempts must be positive")
	ErrTimeout         = errors.New("payment still pending after max attempts")
	ErrTerminalFailure = errors.New("payment failed")
	ErrCanceled        = errors.New("polling canceled")
)

// Reasons attached to a Result.
const (
	ReasonNone          = ""
	ReasonGatewayFailed = "gateway_failed"
	ReasonTimeout       = "timeout"
	ReasonNetwork       = "network"
	ReasonCanceled      = "canceled"
)

// Result is the single outcome of a poll task.
type Result struct {
	OrderID  string           `json:"order_id"`
	Outcome  payments.Outcome `json:"outcome"`
	Reason   string           `json:"reason,omitempty"`
	Attempts int              `json:"attempts"`
	Err      error            `json:"-"`
}

type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// OnTerminal fires once when the backend reports COMPLETED or FAILED, or
	// when the order is still pending after MaxAttempts.
	OnTerminal func(Result)
	// OnError fires once when the last allowed attempt failed in transport.
	OnError func(Result)
}

func (o Options) withDefaults() (Options, error) {
	if o.Interval < 0 || o.MaxAttempts < 0 {
		return o, ErrInvalidOptions
	}
	if o.Interval == 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	return o, nil
}

type Poller struct {
	verifier payments.Verifier
	logger   *zap.SugaredLogger

	mu     sync.Mutex
	active map[string]*Task
}

func New(verifier payments.Verifier, logger *zap.SugaredLogger) *Poller {
	return &Poller{
		verifier: verifier,
		logger:   logger,
		active:   make(map[string]*Task),
	}
}

// Poll starts polling orderID in the background. Any poll already running
// for the same order is canceled first and never reports an outcome.
func (p *Poller) Poll(ctx context.Context, orderID string, opts Options) (*Task, error) {
	return p.PollWith(ctx, p.verifier, orderID, opts)
}

// PollWith is Poll with an explicit verifier, for orders whose status lives
// behind a different endpoint than the poller's default.
func (p *Poller) PollWith(ctx context.Context, verifier payments.Verifier, orderID string, opts Options) (*Task, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrEmptyOrderID
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if verifier == nil {
		return nil, fmt.Errorf("poll %s: no verifier configured", orderID)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{
		orderID: orderID,
		cancel:  cancel,
		done:    make(chan struct{}),
		poller:  p,
	}

	p.mu.Lock()
	if prev, ok := p.active[orderID]; ok {
		prev.canceled = true
		prev.cancel()
		p.logger.Infow("superseding poll", "order_id", orderID)
	}
	p.active[orderID] = t
	p.mu.Unlock()

	go p.run(taskCtx, t, verifier, opts)

	return t, nil
}

func (p *Poller) run(ctx context.Context, t *Task, verifier payments.Verifier, opts Options) {
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			p.finish(t, Result{Outcome: payments.Pending, Reason: ReasonCanceled, Attempts: attempts, Err: ErrCanceled}, nil)
			return
		case <-ticker.C:
		}

		attempts++
		resp, err := verifier.VerifyPayment(ctx, t.orderID)
		if ctx.Err() != nil {
			continue
		}

		if err != nil {
			p.logger.Warnw("payment status check failed",
				"order_id", t.orderID, "attempt", attempts, "max_attempts", opts.MaxAttempts, "error", err)
			if attempts >= opts.MaxAttempts {
				p.finish(t, Result{
					Outcome:  payments.Failed,
					Reason:   ReasonNetwork,
					Attempts: attempts,
					Err:      fmt.Errorf("unable to verify payment status: %w", err),
				}, opts.OnError)
				return
			}
			continue
		}

		switch payments.Classify(resp) {
		case payments.Completed:
			p.finish(t, Result{Outcome: payments.Completed, Attempts: attempts}, opts.OnTerminal)
			return
		case payments.Failed:
			p.finish(t, Result{Outcome: payments.Failed, Reason: ReasonGatewayFailed, Attempts: attempts, Err: ErrTerminalFailure}, opts.OnTerminal)
			return
		default:
			p.logger.Debugw("payment pending", "order_id", t.orderID, "attempt", attempts, "state", resp.State)
			if attempts >= opts.MaxAttempts {
				p.finish(t, Result{Outcome: payments.Failed, Reason: ReasonTimeout, Attempts: attempts, Err: ErrTimeout}, opts.OnTerminal)
				return
			}
		}
	}
}

// finish resolves t. A task that was superseded or canceled resolves as
// canceled and its callback is dropped.
func (p *Poller) finish(t *Task, res Result, cb func(Result)) {
	res.OrderID = t.orderID

	p.mu.Lock()
	if t.canceled {
		res = Result{OrderID: t.orderID, Outcome: payments.Pending, Reason: ReasonCanceled, Attempts: res.Attempts, Err: ErrCanceled}
		cb = nil
	}
	if p.active[t.orderID] == t {
		delete(p.active, t.orderID)
	}
	t.canceled = true
	p.mu.Unlock()

	p.logger.Infow("poll finished",
		"order_id", res.OrderID, "outcome", res.Outcome, "reason", res.Reason, "attempts", res.Attempts)

	// Callbacks run before Done is closed so Wait observes their effects.
	if cb != nil {
		cb(res)
	}

	t.result = res
	t.cancel()
	close(t.done)
}

// Cancel stops the poll running for orderID, if any.
func (p *Poller) Cancel(orderID string) bool {
	p.mu.Lock()
	t, ok := p.active[orderID]
	if ok {
		t.canceled = true
		t.cancel()
	}
	p.mu.Unlock()
	return ok
}

// Active returns the order ids currently being polled.
func (p *Poller) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.active))
	for id := range p.active {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown cancels every running poll and waits for them to stop.
func (p *Poller) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	tasks := make([]*Task, 0, len(p.active))
	for _, t := range p.active {
		t.canceled = true
		t.cancel()
		tasks = append(tasks, t)
	}
	p.mu.Unlock()

	for _, t := range tasks {
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Task is a running poll for one order.
type Task struct {
	orderID string
	cancel  context.CancelFunc
	done    chan struct{}
	poller  *Poller

	canceled bool // guarded by poller.mu
	result   Result
}

func (t *Task) OrderID() string { return t.orderID }

// Done is closed once the task has resolved.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops the task. It is a no-op once the task has resolved.
func (t *Task) Cancel() {
	t.poller.mu.Lock()
	t.canceled = true
	t.poller.mu.Unlock()
	t.cancel()
}

// Wait blocks until the task resolves or ctx is done.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the task's outcome and whether it has resolved yet.
func (t *Task) Result() (Result, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return Result{}, false
	}
}
