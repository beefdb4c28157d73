package models

import "errors"

// CartSelection maps a ticket type ID to the quantity the buyer has chosen.
// Zero and negative quantities are pruned before submission.
type CartSelection map[int]int

// TicketTypeRef describes a ticket type as loaded for a checkout session.
// It is immutable once the session has been created.
type TicketTypeRef struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price int    `json:"price"` // in cents
}

// Pruned returns a copy of the selection without zero or negative quantities.
func (c CartSelection) Pruned() CartSelection {
	pruned := make(CartSelection, len(c))
	for ticketTypeID, quantity := range c {
		if quantity > 0 {
			pruned[ticketTypeID] = quantity
		}
	}
	return pruned
}

// Validate checks that the selection can be submitted as an order.
func (c CartSelection) Validate() error {
	for _, quantity := range c {
		if quantity < 0 {
			return errors.New("ticket quantity cannot be negative")
		}
	}

	if TicketCount(c) < 1 {
		return ErrEmptyCart
	}

	return nil
}

// Validate checks the ticket type reference data.
func (t *TicketTypeRef) Validate() error {
	if t.Name == "" {
		return errors.New("ticket type name is required")
	}

	if t.Price < 0 {
		return errors.New("ticket price cannot be negative")
	}

	return nil
}
