package models

import "math"

// Pricing is computed fresh on every read. All functions here are pure so
// they can be tested directly against the cart and promo invariants.

// Subtotal returns the sum of quantity times unit price over every ticket
// type present in the cart with a positive quantity, in cents. Ticket type
// IDs in the cart that are not part of the session's loaded types contribute
// nothing; they are not an error.
func Subtotal(cart CartSelection, ticketTypes []TicketTypeRef) int {
	prices := make(map[int]int, len(ticketTypes))
	for _, tt := range ticketTypes {
		prices[tt.ID] = tt.Price
	}

	subtotal := 0
	for ticketTypeID, quantity := range cart {
		if quantity <= 0 {
			continue
		}
		if price, ok := prices[ticketTypeID]; ok {
			subtotal += price * quantity
		}
	}

	return subtotal
}

// DiscountAmount returns the promo discount in cents for a subtotal. The
// percentage is clamped to [0, 100] so the discount can never exceed the
// subtotal or go negative.
func DiscountAmount(subtotal int, discountPercentage float64) int {
	pct := ClampDiscountPercentage(discountPercentage)
	return int(math.Round(float64(subtotal) * pct / 100.0))
}

// Total returns subtotal minus discount, floored at zero.
func Total(subtotal, discountAmount int) int {
	total := subtotal - discountAmount
	if total < 0 {
		return 0
	}
	return total
}

// TicketCount returns the total number of tickets selected in the cart.
func TicketCount(cart CartSelection) int {
	count := 0
	for _, quantity := range cart {
		if quantity > 0 {
			count += quantity
		}
	}
	return count
}

// ClampDiscountPercentage constrains a discount percentage to [0, 100].
func ClampDiscountPercentage(pct float64) float64 {
	if pct < 0 || math.IsNaN(pct) {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
