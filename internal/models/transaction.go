package models

// PaymentStatus represents the status of a payment attempt. The status is
// authoritative server-side; this client only relays the last value it
// observed, never asserts one locally.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
)

// IsTerminal returns true once no further status change is possible.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentCompleted, PaymentFailed, PaymentCancelled:
		return true
	default:
		return false
	}
}

// IsKnown returns true for statuses this client understands.
func (s PaymentStatus) IsKnown() bool {
	switch s {
	case PaymentPending, PaymentProcessing, PaymentCompleted, PaymentFailed, PaymentCancelled:
		return true
	default:
		return false
	}
}

// GetDisplayName returns a human-readable status name.
func (s PaymentStatus) GetDisplayName() string {
	switch s {
	case PaymentPending:
		return "Awaiting Payment"
	case PaymentProcessing:
		return "Processing Payment"
	case PaymentCompleted:
		return "Payment Completed"
	case PaymentFailed:
		return "Payment Failed"
	case PaymentCancelled:
		return "Payment Cancelled"
	default:
		return string(s)
	}
}

// IssuedTicket is a ticket record created by order submission. Tickets are
// issued in awaiting-payment status and become valid only when the backend
// marks the transaction completed.
type IssuedTicket struct {
	ID           int    `json:"id"`
	TicketTypeID int    `json:"ticket_type_id"`
	Status       string `json:"status"`
}

// Transaction is the server-recognized payable order created from a cart.
// It is created exactly once per checkout session and never mutated here.
type Transaction struct {
	ID        string         `json:"id"`
	Reference string         `json:"reference"`
	AmountDue int            `json:"amount_due"` // in cents
	Tickets   []IssuedTicket `json:"tickets"`
}

// AmountDueInCurrency returns the amount due in the main currency as a float.
func (t *Transaction) AmountDueInCurrency() float64 {
	return float64(t.AmountDue) / 100.0
}
