package models

import (
	"errors"
	"regexp"
	"strings"
)

// CheckoutStep represents the buyer-visible step of a checkout session.
type CheckoutStep string

const (
	StepDetails      CheckoutStep = "details"
	StepPayment      CheckoutStep = "payment"
	StepConfirmation CheckoutStep = "confirmation"
)

// Forward-only from the buyer's perspective. The single backward edge,
// payment back to details, covers a rejected push or an explicit restart
// after a terminal payment failure. Confirmation is terminal.
var checkoutTransitions = map[CheckoutStep][]CheckoutStep{
	StepDetails:      {StepPayment},
	StepPayment:      {StepConfirmation, StepDetails},
	StepConfirmation: {},
}

// CanTransitionTo reports whether moving from this step to next is legal.
func (s CheckoutStep) CanTransitionTo(next CheckoutStep) bool {
	for _, allowed := range checkoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// GetDisplayName returns a human-readable step name.
func (s CheckoutStep) GetDisplayName() string {
	switch s {
	case StepDetails:
		return "Your Details"
	case StepPayment:
		return "Payment"
	case StepConfirmation:
		return "Confirmation"
	default:
		return string(s)
	}
}

// Email validation regex for attendee contact details
var attendeeEmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// AttendeeDetails holds the buyer contact fields collected on the details step.
type AttendeeDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Validate checks the attendee contact fields required before submission.
func (a *AttendeeDetails) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("attendee name is required")
	}

	if strings.TrimSpace(a.Email) == "" {
		return errors.New("attendee email is required")
	}

	if !attendeeEmailRegex.MatchString(a.Email) {
		return errors.New("attendee email format is invalid")
	}

	if strings.TrimSpace(a.Phone) == "" {
		return errors.New("attendee phone is required")
	}

	return nil
}

// CheckoutSession is the ephemeral state of one checkout, scoped to a single
// browser session. It is read once when the checkout mounts and destroyed on
// successful payment or when the buyer navigates away before submission.
type CheckoutSession struct {
	EventID     int             `json:"event_id"`
	EventTitle  string          `json:"event_title"`
	TicketTypes []TicketTypeRef `json:"ticket_types"`
	Cart        CartSelection   `json:"cart"`
	Attendee    AttendeeDetails `json:"attendee"`
	Promo       *PromoCode      `json:"promo,omitempty"`
}

// Clone returns a deep copy of the session. Reads that happen outside the
// owning checkout's lock must go through a clone so a concurrent promo or
// cart mutation can never race with them.
func (s *CheckoutSession) Clone() *CheckoutSession {
	if s == nil {
		return nil
	}

	clone := *s
	clone.TicketTypes = append([]TicketTypeRef(nil), s.TicketTypes...)
	clone.Cart = make(CartSelection, len(s.Cart))
	for ticketTypeID, quantity := range s.Cart {
		clone.Cart[ticketTypeID] = quantity
	}
	if s.Promo != nil {
		promo := *s.Promo
		clone.Promo = &promo
	}
	return &clone
}

// Validate checks the session holds everything an order submission needs.
func (s *CheckoutSession) Validate() error {
	if s.EventID <= 0 {
		return errors.New("checkout session has no event")
	}

	if err := s.Cart.Validate(); err != nil {
		return err
	}

	return s.Attendee.Validate()
}

// Subtotal returns the session cart subtotal in cents.
func (s *CheckoutSession) Subtotal() int {
	return Subtotal(s.Cart, s.TicketTypes)
}

// DiscountAmount returns the promo discount for the session in cents.
func (s *CheckoutSession) DiscountAmount() int {
	return DiscountAmount(s.Subtotal(), s.Promo.EffectiveDiscountPercentage())
}

// Total returns the amount the buyer pays in cents.
func (s *CheckoutSession) Total() int {
	subtotal := s.Subtotal()
	return Total(subtotal, DiscountAmount(subtotal, s.Promo.EffectiveDiscountPercentage()))
}
