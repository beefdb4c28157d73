package services

import (
	"context"
	"log"
	"sync"
	"time"

	"ticketpesa/internal/models"
)

// StatusClient is the slice of the ticketing backend the poller needs.
type StatusClient interface {
	GetTransactionStatus(ctx context.Context, transactionID string) (models.PaymentStatus, error)
}

// PollerConfig represents status polling policy
type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollerConfig returns the standard polling policy: one query every
// ten seconds, thirty attempts, a five minute total ceiling.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:    10 * time.Second,
		MaxAttempts: 30,
	}
}

// TerminalFunc is invoked exactly once when the poller reaches a terminal
// payment status, whether via the timer or a manual check.
type TerminalFunc func(status models.PaymentStatus, message string)

// Buyer-facing status messages
const (
	msgPaymentCompleted  = "Payment received. Your tickets are confirmed."
	msgPaymentCancelled  = "Payment was cancelled on your device."
	msgPaymentFailed     = "Payment failed. Please try again from your details."
	msgPaymentTimedOut   = "We did not receive payment confirmation in time. Please try again from your details."
	msgStillProcessing   = "Payment is still processing. Complete the prompt on your device first."
	msgCheckInProgress   = "A payment check is already in progress."
	msgCheckUnavailable  = "Could not reach the payment service. We will keep checking automatically."
	msgPushSent          = "A payment prompt has been sent to your phone. Enter your PIN to complete the purchase."
)

// StatusPoller watches a single transaction until it reaches a terminal
// status. It owns its timer: Start acquires it and every exit path
// (terminal status, attempt budget exhaustion, Stop on host teardown)
// releases it. The manual check path and the timer path converge on one
// transition routine that is a no-op after a terminal state, so a late
// response can never apply a second transition.
type StatusPoller struct {
	client        StatusClient
	transactionID string
	interval      time.Duration
	maxAttempts   int
	onTerminal    TerminalFunc

	mu       sync.Mutex
	status   models.PaymentStatus
	message  string
	attempts int
	checking bool // manual check in flight
	started  bool
	stopped  bool
	done     chan struct{}
}

// NewStatusPoller creates a poller for one transaction. The poller reports
// pending until Start moves it to processing.
func NewStatusPoller(client StatusClient, transactionID string, config PollerConfig, onTerminal TerminalFunc) *StatusPoller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollerConfig().Interval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultPollerConfig().MaxAttempts
	}

	return &StatusPoller{
		client:        client,
		transactionID: transactionID,
		interval:      config.Interval,
		maxAttempts:   config.MaxAttempts,
		onTerminal:    onTerminal,
		status:        models.PaymentPending,
		message:       msgPushSent,
		done:          make(chan struct{}),
	}
}

// Start moves the poller to processing and begins timer-driven polling.
// Calling Start more than once is a no-op.
func (p *StatusPoller) Start() {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.status = models.PaymentProcessing
	p.mu.Unlock()

	go p.run()
}

// Stop releases the timer without transitioning the payment status. It is
// safe to call at any time, from any exit path, more than once.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
}

// Status returns the last observed payment status.
func (p *StatusPoller) Status() models.PaymentStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Message returns the current buyer-facing status message.
func (p *StatusPoller) Message() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

// Attempts returns how many timer-driven status queries have been issued.
func (p *StatusPoller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// CheckNow performs one immediate status query, independent of the timer.
// While one manual check is in flight a second invocation is a no-op. A
// terminal observation applies the same transition as the timer path and
// stops the timer; a non-terminal one reports progress without changing
// state.
func (p *StatusPoller) CheckNow(ctx context.Context) (models.PaymentStatus, string) {
	p.mu.Lock()
	if p.status.IsTerminal() {
		status, message := p.status, p.message
		p.mu.Unlock()
		return status, message
	}
	if p.checking {
		status := p.status
		p.mu.Unlock()
		return status, msgCheckInProgress
	}
	p.checking = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.checking = false
		p.mu.Unlock()
	}()

	status, err := p.client.GetTransactionStatus(ctx, p.transactionID)
	if err != nil {
		log.Printf("Manual payment check for %s failed: %v", p.transactionID, err)
		return p.Status(), msgCheckUnavailable
	}

	if status.IsTerminal() {
		p.finish(status, terminalMessage(status))
		return p.Status(), p.Message()
	}

	return status, msgStillProcessing
}

// run drives the polling loop until a terminal status or Stop.
func (p *StatusPoller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if p.tick() {
				return
			}
		}
	}
}

// tick issues one timer-driven status query. It returns true when polling
// should stop.
func (p *StatusPoller) tick() bool {
	p.mu.Lock()
	if p.stopped || p.status.IsTerminal() {
		p.mu.Unlock()
		return true
	}
	p.attempts++
	attempt := p.attempts
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	status, err := p.client.GetTransactionStatus(ctx, p.transactionID)
	cancel()

	if err != nil {
		// A transient query failure is not a payment failure. Log and wait
		// for the next tick, unless this was the last budgeted attempt.
		log.Printf("Payment poll %d/%d for %s failed: %v", attempt, p.maxAttempts, p.transactionID, err)
		if attempt >= p.maxAttempts {
			return p.finish(models.PaymentFailed, msgPaymentTimedOut)
		}
		return false
	}

	if status.IsTerminal() {
		return p.finish(status, terminalMessage(status))
	}

	if attempt >= p.maxAttempts {
		return p.finish(models.PaymentFailed, msgPaymentTimedOut)
	}

	return false
}

// finish applies a terminal transition once. Responses arriving after a
// terminal state has been reached are discarded here, which makes the
// routine safe to reach from the timer and the manual path in any order.
// Returns true in either case, since polling must not continue.
func (p *StatusPoller) finish(status models.PaymentStatus, message string) bool {
	p.mu.Lock()
	if p.status.IsTerminal() {
		p.mu.Unlock()
		return true
	}
	p.status = status
	p.message = message
	p.stopLocked()
	onTerminal := p.onTerminal
	p.mu.Unlock()

	if onTerminal != nil {
		onTerminal(status, message)
	}
	return true
}

// stopLocked releases the timer. Callers must hold p.mu.
func (p *StatusPoller) stopLocked() {
	if !p.stopped {
		p.stopped = true
		close(p.done)
	}
}

// terminalMessage maps a server-reported terminal status to its
// buyer-facing message. Budget exhaustion uses msgPaymentTimedOut instead so
// a timeout is distinguishable from a payment the server rejected.
func terminalMessage(status models.PaymentStatus) string {
	switch status {
	case models.PaymentCompleted:
		return msgPaymentCompleted
	case models.PaymentCancelled:
		return msgPaymentCancelled
	default:
		return msgPaymentFailed
	}
}
