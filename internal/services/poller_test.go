package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketpesa/internal/models"
)

// fakeStatusClient serves a scripted sequence of statuses; the last entry
// repeats once the script runs out.
type fakeStatusClient struct {
	mu      sync.Mutex
	queries int
	script  []statusReply
	// when set, GetTransactionStatus blocks until the channel is closed
	block chan struct{}
}

type statusReply struct {
	status models.PaymentStatus
	err    error
}

func (f *fakeStatusClient) GetTransactionStatus(ctx context.Context, transactionID string) (models.PaymentStatus, error) {
	f.mu.Lock()
	f.queries++
	idx := f.queries - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	reply := f.script[idx]
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return reply.status, reply.err
}

func (f *fakeStatusClient) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// repeat builds a script of n identical replies followed by the rest.
func repeat(n int, status models.PaymentStatus, rest ...statusReply) []statusReply {
	script := make([]statusReply, 0, n+len(rest))
	for i := 0; i < n; i++ {
		script = append(script, statusReply{status: status})
	}
	return append(script, rest...)
}

func newTestPoller(client StatusClient, maxAttempts int, terminal chan models.PaymentStatus) *StatusPoller {
	var onTerminal TerminalFunc
	if terminal != nil {
		onTerminal = func(status models.PaymentStatus, message string) {
			terminal <- status
		}
	}
	return NewStatusPoller(client, "txn-1", PollerConfig{
		Interval:    2 * time.Millisecond,
		MaxAttempts: maxAttempts,
	}, onTerminal)
}

func waitTerminal(t *testing.T, terminal chan models.PaymentStatus) models.PaymentStatus {
	t.Helper()
	select {
	case status := <-terminal:
		return status
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not reach a terminal status in time")
		return ""
	}
}

func TestStatusPoller_CompletesAfterProcessingTicks(t *testing.T) {
	// 29 ticks of processing, completed on tick 30, with a budget of
	// exactly 30 attempts. Completion on the final attempt must still land.
	client := &fakeStatusClient{
		script: repeat(29, models.PaymentProcessing, statusReply{status: models.PaymentCompleted}),
	}
	terminal := make(chan models.PaymentStatus, 1)
	poller := newTestPoller(client, 30, terminal)
	poller.Start()

	status := waitTerminal(t, terminal)

	assert.Equal(t, models.PaymentCompleted, status)
	assert.Equal(t, models.PaymentCompleted, poller.Status())
	assert.Equal(t, 30, client.queryCount())
	assert.Equal(t, msgPaymentCompleted, poller.Message())
}

func TestStatusPoller_AttemptBudgetExhaustion(t *testing.T) {
	client := &fakeStatusClient{script: repeat(1, models.PaymentProcessing)}
	terminal := make(chan models.PaymentStatus, 1)
	poller := newTestPoller(client, 5, terminal)
	poller.Start()

	status := waitTerminal(t, terminal)

	assert.Equal(t, models.PaymentFailed, status)
	assert.Equal(t, msgPaymentTimedOut, poller.Message(), "timeout must be distinguishable from a server-reported failure")
	assert.Equal(t, 5, client.queryCount())

	// The timer is cleared: no further queries after the terminal state.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, client.queryCount())
	assert.Equal(t, 5, poller.Attempts())
}

func TestStatusPoller_CancelledByPayer(t *testing.T) {
	client := &fakeStatusClient{
		script: repeat(2, models.PaymentProcessing, statusReply{status: models.PaymentCancelled}),
	}
	terminal := make(chan models.PaymentStatus, 1)
	poller := newTestPoller(client, 30, terminal)
	poller.Start()

	status := waitTerminal(t, terminal)

	assert.Equal(t, models.PaymentCancelled, status)
	assert.Equal(t, msgPaymentCancelled, poller.Message())
}

func TestStatusPoller_TransientErrorsDoNotTerminate(t *testing.T) {
	client := &fakeStatusClient{
		script: []statusReply{
			{err: errors.New("connection reset")},
			{err: errors.New("connection reset")},
			{status: models.PaymentCompleted},
		},
	}
	terminal := make(chan models.PaymentStatus, 1)
	poller := newTestPoller(client, 30, terminal)
	poller.Start()

	status := waitTerminal(t, terminal)

	assert.Equal(t, models.PaymentCompleted, status, "a network blip must not become a payment failure")
	assert.Equal(t, 3, client.queryCount())
}

func TestStatusPoller_NeverExceedsMaxQueries(t *testing.T) {
	client := &fakeStatusClient{script: repeat(1, models.PaymentProcessing)}
	terminal := make(chan models.PaymentStatus, 1)
	poller := newTestPoller(client, 8, terminal)
	poller.Start()

	waitTerminal(t, terminal)
	time.Sleep(30 * time.Millisecond)

	assert.LessOrEqual(t, client.queryCount(), 8)
}

func TestStatusPoller_CheckNowPreemptsTimer(t *testing.T) {
	client := &fakeStatusClient{script: repeat(1, models.PaymentCompleted)}
	terminal := make(chan models.PaymentStatus, 1)
	// Interval far in the future so only the manual path can query.
	poller := NewStatusPoller(client, "txn-1", PollerConfig{
		Interval:    time.Hour,
		MaxAttempts: 30,
	}, func(status models.PaymentStatus, message string) {
		terminal <- status
	})
	poller.Start()

	status, message := poller.CheckNow(context.Background())

	assert.Equal(t, models.PaymentCompleted, status)
	assert.Equal(t, msgPaymentCompleted, message)
	assert.Equal(t, models.PaymentCompleted, waitTerminal(t, terminal))
	assert.Zero(t, poller.Attempts(), "manual checks are not timer attempts")

	// A second manual check after the terminal state changes nothing and
	// issues no query.
	queries := client.queryCount()
	status, _ = poller.CheckNow(context.Background())
	assert.Equal(t, models.PaymentCompleted, status)
	assert.Equal(t, queries, client.queryCount())
}

func TestStatusPoller_CheckNowNonTerminal(t *testing.T) {
	client := &fakeStatusClient{script: repeat(1, models.PaymentProcessing)}
	poller := NewStatusPoller(client, "txn-1", PollerConfig{Interval: time.Hour, MaxAttempts: 30}, nil)
	poller.Start()

	status, message := poller.CheckNow(context.Background())

	assert.Equal(t, models.PaymentProcessing, status)
	assert.Equal(t, msgStillProcessing, message)
	assert.False(t, poller.Status().IsTerminal(), "a non-terminal observation must not change state")
}

func TestStatusPoller_CheckNowInFlightGuard(t *testing.T) {
	block := make(chan struct{})
	client := &fakeStatusClient{script: repeat(1, models.PaymentProcessing), block: block}
	poller := NewStatusPoller(client, "txn-1", PollerConfig{Interval: time.Hour, MaxAttempts: 30}, nil)
	poller.Start()

	first := make(chan string, 1)
	go func() {
		_, message := poller.CheckNow(context.Background())
		first <- message
	}()

	// Wait until the first check has reached the backend, then invoke again
	// while it is still in flight.
	require.Eventually(t, func() bool { return client.queryCount() == 1 }, time.Second, time.Millisecond)
	_, message := poller.CheckNow(context.Background())
	assert.Equal(t, msgCheckInProgress, message)
	assert.Equal(t, 1, client.queryCount(), "a concurrent manual check must not issue a second query")

	close(block)
	assert.Equal(t, msgStillProcessing, <-first)
}

func TestStatusPoller_CheckNowQueryErrorKeepsPolling(t *testing.T) {
	client := &fakeStatusClient{script: []statusReply{{err: errors.New("timeout")}}}
	poller := NewStatusPoller(client, "txn-1", PollerConfig{Interval: time.Hour, MaxAttempts: 30}, nil)
	poller.Start()

	status, message := poller.CheckNow(context.Background())

	assert.Equal(t, models.PaymentProcessing, status)
	assert.Equal(t, msgCheckUnavailable, message)
	assert.False(t, poller.Status().IsTerminal())
}

func TestStatusPoller_StopReleasesTimer(t *testing.T) {
	client := &fakeStatusClient{script: repeat(1, models.PaymentProcessing)}
	poller := newTestPoller(client, 1000, nil)
	poller.Start()

	require.Eventually(t, func() bool { return client.queryCount() >= 2 }, time.Second, time.Millisecond)
	poller.Stop()
	queries := client.queryCount()

	time.Sleep(20 * time.Millisecond)
	// Allow for one tick that was already in flight when Stop was called.
	assert.LessOrEqual(t, client.queryCount(), queries+1)

	// Stop is idempotent.
	poller.Stop()
}
