package models

import "strings"

// PromoSource records how a promo code arrived on the checkout session.
type PromoSource string

const (
	// PromoSourceURL marks a code auto-applied from an inbound referral link.
	// These are locked against manual edits so the buyer cannot silently
	// override an attributed referral.
	PromoSourceURL PromoSource = "url"
	// PromoSourceManual marks a code typed by the buyer.
	PromoSourceManual PromoSource = "manual"
)

// PromoCode represents a referral or discount code attached to a checkout
// session. A code may carry no buyer discount at all (commission-only
// attribution), in which case DiscountPercentage is zero.
type PromoCode struct {
	Code               string      `json:"code"`
	DiscountPercentage float64     `json:"discount_percentage"`
	Source             PromoSource `json:"source"`
	// Valid reports whether the backend confirmed the code for this event.
	Valid bool `json:"valid"`
	// Confirmed is false when validation could not be completed (backend
	// unreachable). An unconfirmed code stays on the session with no
	// discount rather than blocking checkout.
	Confirmed bool `json:"confirmed"`
}

// NormalizePromoCode upper-cases and trims a raw code. Codes are
// case-insensitive; normalization is idempotent.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Locked reports whether the code may not be edited by the buyer.
func (p *PromoCode) Locked() bool {
	return p.Source == PromoSourceURL
}

// EffectiveDiscountPercentage returns the discount to apply to the order:
// zero unless the backend confirmed the code as valid, clamped to [0, 100].
func (p *PromoCode) EffectiveDiscountPercentage() float64 {
	if p == nil || !p.Confirmed || !p.Valid {
		return 0
	}
	return ClampDiscountPercentage(p.DiscountPercentage)
}
