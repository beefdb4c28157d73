package services

import (
	"context"
	"log"

	"ticketpesa/internal/models"
)

// PromoClient is the slice of the ticketing backend the validator needs.
type PromoClient interface {
	ValidatePromoCode(ctx context.Context, code string, eventID int) (*PromoValidation, error)
}

// PromoService validates promo codes against the ticketing backend.
type PromoService struct {
	client PromoClient
}

// NewPromoService creates a new promo code validator
func NewPromoService(client PromoClient) *PromoService {
	return &PromoService{client: client}
}

// Validate checks a code against the backend for an event and returns the
// promo attached with the given source. An unknown or malformed code is a
// normal negative result. A backend failure degrades gracefully: the code
// stays on the session unconfirmed with no discount, and checkout is never
// blocked on it.
func (s *PromoService) Validate(ctx context.Context, code string, eventID int, source models.PromoSource) *models.PromoCode {
	normalized := models.NormalizePromoCode(code)
	if normalized == "" {
		return nil
	}

	promo := &models.PromoCode{
		Code:   normalized,
		Source: source,
	}

	result, err := s.client.ValidatePromoCode(ctx, normalized, eventID)
	if err != nil {
		log.Printf("Promo validation for %q unavailable, keeping code unconfirmed: %v", normalized, err)
		return promo
	}

	promo.Confirmed = true
	promo.Valid = result.Valid
	promo.DiscountPercentage = models.ClampDiscountPercentage(result.DiscountPercentage)

	return promo
}
