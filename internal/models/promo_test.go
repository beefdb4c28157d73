package models

import "testing"

func TestNormalizePromoCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "lower case", code: "launch10", want: "LAUNCH10"},
		{name: "mixed case with spaces", code: "  LaUnCh10 ", want: "LAUNCH10"},
		{name: "already normalized", code: "LAUNCH10", want: "LAUNCH10"},
		{name: "empty", code: "", want: ""},
		{name: "whitespace only", code: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePromoCode(tt.code)
			if got != tt.want {
				t.Errorf("NormalizePromoCode(%q) = %q, want %q", tt.code, got, tt.want)
			}
			// Normalization is idempotent.
			if again := NormalizePromoCode(got); again != got {
				t.Errorf("NormalizePromoCode(%q) = %q, not idempotent", got, again)
			}
		})
	}
}

func TestPromoCode_Locked(t *testing.T) {
	urlPromo := &PromoCode{Code: "REF5", Source: PromoSourceURL}
	if !urlPromo.Locked() {
		t.Error("url-sourced promo must be locked against manual edits")
	}

	manualPromo := &PromoCode{Code: "LAUNCH10", Source: PromoSourceManual}
	if manualPromo.Locked() {
		t.Error("manually entered promo must stay editable")
	}
}

func TestPromoCode_EffectiveDiscountPercentage(t *testing.T) {
	tests := []struct {
		name  string
		promo *PromoCode
		want  float64
	}{
		{
			name:  "no promo",
			promo: nil,
			want:  0,
		},
		{
			name:  "confirmed valid promo",
			promo: &PromoCode{Code: "LAUNCH10", DiscountPercentage: 10, Valid: true, Confirmed: true},
			want:  10,
		},
		{
			name:  "commission-only promo carries no buyer discount",
			promo: &PromoCode{Code: "REF5", DiscountPercentage: 0, Valid: true, Confirmed: true},
			want:  0,
		},
		{
			name:  "unconfirmed promo applies no discount",
			promo: &PromoCode{Code: "LAUNCH10", DiscountPercentage: 10, Valid: true, Confirmed: false},
			want:  0,
		},
		{
			name:  "invalid promo applies no discount",
			promo: &PromoCode{Code: "BOGUS", DiscountPercentage: 50, Valid: false, Confirmed: true},
			want:  0,
		},
		{
			name:  "out-of-range percentage is clamped",
			promo: &PromoCode{Code: "WILD", DiscountPercentage: 250, Valid: true, Confirmed: true},
			want:  100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.promo.EffectiveDiscountPercentage(); got != tt.want {
				t.Errorf("EffectiveDiscountPercentage() = %v, want %v", got, tt.want)
			}
		})
	}
}
