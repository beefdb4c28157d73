package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"ticketpesa/internal/models"
)

// Gateway is the ticketing backend surface the checkout service uses.
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Transaction, error)
	InitiatePush(ctx context.Context, transactionID string) (bool, error)
	GetTransactionStatus(ctx context.Context, transactionID string) (models.PaymentStatus, error)
}

// CheckoutService owns the live checkouts of this instance, keyed by the
// opaque checkout ID stored in the buyer's session cookie.
type CheckoutService struct {
	gateway      Gateway
	pollerConfig PollerConfig

	mu        sync.Mutex
	checkouts map[string]*Checkout
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(gateway Gateway, pollerConfig PollerConfig) *CheckoutService {
	return &CheckoutService{
		gateway:      gateway,
		pollerConfig: pollerConfig,
		checkouts:    make(map[string]*Checkout),
	}
}

// Begin creates a checkout from a freshly loaded session. The session is
// read once here; later reads go through the checkout's own snapshot.
func (s *CheckoutService) Begin(session *models.CheckoutSession) (*Checkout, error) {
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	if session.EventID <= 0 {
		return nil, fmt.Errorf("%w: checkout session has no event", models.ErrInvalidInput)
	}
	for i := range session.TicketTypes {
		if err := session.TicketTypes[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
	}

	checkout := &Checkout{
		ID:           uuid.NewString(),
		gateway:      s.gateway,
		pollerConfig: s.pollerConfig,
		session:      session,
		step:         models.StepDetails,
		payment:      models.PaymentPending,
	}

	s.mu.Lock()
	s.checkouts[checkout.ID] = checkout
	s.mu.Unlock()

	return checkout, nil
}

// Get returns the live checkout for an ID.
func (s *CheckoutService) Get(id string) (*Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkout, ok := s.checkouts[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return checkout, nil
}

// Teardown stops a checkout's poller and forgets it. Called when the buyer
// navigates away, and after a completed checkout has been acknowledged.
func (s *CheckoutService) Teardown(id string) {
	s.mu.Lock()
	checkout, ok := s.checkouts[id]
	if ok {
		delete(s.checkouts, id)
	}
	s.mu.Unlock()

	if ok {
		checkout.teardown()
	}
}

// Checkout is one buyer's checkout: the three-step state machine plus the
// transaction and poller it owns once payment starts.
type Checkout struct {
	ID           string
	gateway      Gateway
	pollerConfig PollerConfig

	mu          sync.Mutex
	session     *models.CheckoutSession
	step        models.CheckoutStep
	transaction *models.Transaction
	poller      *StatusPoller
	payment     models.PaymentStatus // used until the poller owns the status
	message     string
	submitting  bool
}

// CheckoutStatus is the read-only observable state exposed to the UI layer.
type CheckoutStatus struct {
	Step              models.CheckoutStep  `json:"step"`
	StepName          string               `json:"step_name"`
	PaymentStatus     models.PaymentStatus `json:"payment_status"`
	PaymentStatusName string               `json:"payment_status_name"`
	Message           string               `json:"message,omitempty"`
	PollAttempts      int                  `json:"poll_attempts"`
	TransactionID     string               `json:"transaction_id,omitempty"`
	AmountDue         int                  `json:"amount_due,omitempty"`
	SessionActive     bool                 `json:"session_active"`
}

// Status returns a snapshot of the checkout's observable state.
func (c *Checkout) Status() CheckoutStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	payment := c.paymentStatusLocked()
	status := CheckoutStatus{
		Step:              c.step,
		StepName:          c.step.GetDisplayName(),
		PaymentStatus:     payment,
		PaymentStatusName: payment.GetDisplayName(),
		Message:           c.messageLocked(),
		SessionActive:     c.session != nil,
	}
	if c.poller != nil {
		status.PollAttempts = c.poller.Attempts()
	}
	if c.transaction != nil {
		status.TransactionID = c.transaction.ID
		status.AmountDue = c.transaction.AmountDue
	}
	return status
}

// Session returns a deep copy of the checkout session, or nil once it has
// been destroyed by a successful payment. A copy, not the live pointer:
// ApplyPromo mutates the session under c.mu, and callers read the returned
// value without holding the lock.
func (c *Checkout) Session() *models.CheckoutSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// ApplyPromo attaches a validated promo code to the session, or clears the
// current one when promo is nil. A code that arrived via a referral link is
// locked: the buyer cannot replace or remove it manually.
func (c *Checkout) ApplyPromo(promo *models.PromoCode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != models.StepDetails {
		return models.ErrInvalidStep
	}
	if c.session == nil {
		return models.ErrSessionNotFound
	}

	if existing := c.session.Promo; existing != nil && existing.Locked() {
		if promo == nil || promo.Source == models.PromoSourceManual {
			return models.ErrPromoCodeLocked
		}
	}

	c.session.Promo = promo
	return nil
}

// Submit converts the cart into exactly one order, then fires the push
// payment and starts polling. The submitting guard keeps a double-click
// from producing duplicate orders: the backend's createOrder is not
// idempotent, so this client must not call it twice for one session.
func (c *Checkout) Submit(ctx context.Context) (*models.Transaction, error) {
	c.mu.Lock()
	if c.step != models.StepDetails || c.transaction != nil {
		c.mu.Unlock()
		return nil, models.ErrOrderAlreadySubmitted
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, models.ErrSubmitInProgress
	}
	if c.session == nil {
		c.mu.Unlock()
		return nil, models.ErrSessionNotFound
	}
	if err := c.session.Validate(); err != nil {
		c.message = err.Error()
		c.mu.Unlock()
		return nil, err
	}
	c.submitting = true
	req := buildOrderRequest(c.session)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	transaction, err := c.gateway.CreateOrder(ctx, req)
	if err != nil {
		// Both a backend rejection and a transport failure leave the buyer
		// on the details step; re-submitting is the retry path.
		c.mu.Lock()
		c.message = orderErrorMessage(err)
		c.mu.Unlock()
		return nil, err
	}

	log.Printf("Checkout %s created transaction %s for KES %.2f (%d tickets)",
		c.ID, transaction.ID, transaction.AmountDueInCurrency(), len(transaction.Tickets))

	c.mu.Lock()
	c.transaction = transaction
	c.step = models.StepPayment
	c.payment = models.PaymentPending
	c.message = ""
	c.mu.Unlock()

	accepted, err := c.gateway.InitiatePush(ctx, transaction.ID)
	if err != nil || !accepted {
		// Terminal: the prompt never reached the buyer's phone, so there is
		// nothing to poll for. The buyer restarts from details.
		if err != nil {
			log.Printf("Checkout %s push initiation for %s failed: %v", c.ID, transaction.ID, err)
		}
		c.mu.Lock()
		c.payment = models.PaymentFailed
		c.message = "We could not send a payment prompt to your phone. Please start again."
		c.mu.Unlock()
		if err != nil {
			return transaction, fmt.Errorf("payment initiation failed: %w", err)
		}
		return transaction, models.ErrPushNotAccepted
	}

	poller := NewStatusPoller(c.gateway, transaction.ID, c.pollerConfig, c.handleTerminal)
	c.mu.Lock()
	c.poller = poller
	c.mu.Unlock()
	poller.Start()

	return transaction, nil
}

// ConfirmNow is the "I have completed payment" action: one immediate status
// check, independent of the poll timer.
func (c *Checkout) ConfirmNow(ctx context.Context) (models.PaymentStatus, string, error) {
	c.mu.Lock()
	if c.step != models.StepPayment || c.poller == nil {
		c.mu.Unlock()
		return "", "", models.ErrInvalidStep
	}
	poller := c.poller
	c.mu.Unlock()

	status, message := poller.CheckNow(ctx)
	return status, message, nil
}

// Restart returns a checkout to the details step after a terminal payment
// failure or cancellation, discarding the dead transaction. The unpaid
// tickets it issued are the backend's to expire.
func (c *Checkout) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != models.StepPayment {
		return models.ErrInvalidStep
	}
	payment := c.paymentStatusLocked()
	if !payment.IsTerminal() || payment == models.PaymentCompleted {
		return models.ErrInvalidStep
	}

	if c.poller != nil {
		c.poller.Stop()
		c.poller = nil
	}
	c.transaction = nil
	c.payment = models.PaymentPending
	c.message = ""
	c.step = models.StepDetails
	return nil
}

// teardown releases the poll timer when the hosting view goes away while
// still processing. Leaving the timer running past the checkout's lifetime
// is the defect this exists to prevent.
func (c *Checkout) teardown() {
	c.mu.Lock()
	poller := c.poller
	c.session = nil
	c.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
}

// handleTerminal is the poller's terminal callback, reached exactly once
// per transaction by either the timer or the manual check path.
func (c *Checkout) handleTerminal(status models.PaymentStatus, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if status == models.PaymentCompleted && c.step.CanTransitionTo(models.StepConfirmation) {
		c.step = models.StepConfirmation
		// Destroy the session so the cart cannot be resubmitted after a
		// successful payment.
		c.session = nil
	}
	c.message = message
}

// paymentStatusLocked returns the authoritative last observed status.
// Callers must hold c.mu.
func (c *Checkout) paymentStatusLocked() models.PaymentStatus {
	if c.poller != nil {
		return c.poller.Status()
	}
	return c.payment
}

// messageLocked returns the current buyer-facing message. Callers must hold
// c.mu.
func (c *Checkout) messageLocked() string {
	if c.message != "" {
		return c.message
	}
	if c.poller != nil {
		return c.poller.Message()
	}
	return ""
}

// buildOrderRequest turns the session into the single order submission.
// Items are sorted for stable request bodies.
func buildOrderRequest(session *models.CheckoutSession) CreateOrderRequest {
	pruned := session.Cart.Pruned()
	items := make([]OrderItem, 0, len(pruned))
	for ticketTypeID, quantity := range pruned {
		items = append(items, OrderItem{TicketTypeID: ticketTypeID, Quantity: quantity})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TicketTypeID < items[j].TicketTypeID })

	req := CreateOrderRequest{
		Reference:     uuid.NewString(),
		EventID:       session.EventID,
		Items:         items,
		CustomerName:  session.Attendee.Name,
		CustomerEmail: session.Attendee.Email,
		CustomerPhone: session.Attendee.Phone,
	}
	if session.Promo != nil {
		req.PromoCode = session.Promo.Code
	}
	return req
}

// orderErrorMessage converts an order submission error into the message the
// buyer sees on the details step.
func orderErrorMessage(err error) string {
	if models.IsOrderRejected(err) {
		return err.Error()
	}
	return "We could not submit your order. Please check your connection and try again."
}
