package models

import (
	"errors"
	"fmt"
)

// Common errors used throughout the checkout subsystem
var (
	ErrSessionNotFound       = errors.New("checkout session not found")
	ErrEmptyCart             = errors.New("at least one ticket must be selected")
	ErrInvalidInput          = errors.New("invalid input")
	ErrPromoCodeLocked       = errors.New("promo code was applied from a referral link and cannot be changed")
	ErrOrderAlreadySubmitted = errors.New("order has already been submitted for this session")
	ErrSubmitInProgress      = errors.New("order submission is already in progress")
	ErrPushNotAccepted       = errors.New("payment request was not accepted")
	ErrInvalidStep           = errors.New("operation not allowed in the current checkout step")
)

// OrderRejectedError is returned when the backend rejects an order request,
// for example when a ticket type sold out between selection and submission.
// The message is safe to show to the buyer.
type OrderRejectedError struct {
	StatusCode int
	Message    string
}

func (e *OrderRejectedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("order was rejected (status %d)", e.StatusCode)
}

// IsOrderRejected reports whether err is a backend order rejection.
func IsOrderRejected(err error) bool {
	var rejected *OrderRejectedError
	return errors.As(err, &rejected)
}
