package money

import (
	"math"
	"testing"
)

func TestCalculateRowSubtotal(t *testing.T) {
	tests := []struct {
		name                                     string
		unit, weight, customs, charge, insurance float64
		mode                                     PricingMode
		want                                     int64
	}{
		{"per weight", 1000, 2, 100, 50, 25, PricingPerWeight, 2175},
		{"flat ignores weight charge insurance", 1000, 2, 100, 50, 25, PricingFlat, 1100},
		{"ceil fractional weight", 999, 1.5, 0, 0, 0, PricingPerWeight, 1499},
		{"nan coerced to zero", math.NaN(), 2, 100, math.NaN(), 25, PricingPerWeight, 125},
		{"inf coerced to zero", 1000, math.Inf(1), 0, 0, 0, PricingPerWeight, 0},
		{"unknown mode prices by weight", 500, 3, 0, 0, 0, PricingMode("other"), 1500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateRowSubtotal(tt.unit, tt.weight, tt.customs, tt.charge, tt.insurance, tt.mode)
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCalculateOrderTotal(t *testing.T) {
	if got := CalculateOrderTotal(nil); got != 0 {
		t.Fatalf("empty total = %d, want 0", got)
	}
	items := []LineItem{
		{UnitPriceCents: 1000, Weight: 2, CustomsFeeCents: 100, ChargeFeeCents: 50, InsuranceFeeCents: 25, Mode: PricingPerWeight},
		{UnitPriceCents: 1000, Weight: 2, CustomsFeeCents: 100, ChargeFeeCents: 50, InsuranceFeeCents: 25, Mode: PricingFlat},
	}
	if got := CalculateOrderTotal(items); got != 3275 {
		t.Fatalf("total = %d, want 3275", got)
	}
}

func TestParsePricingMode(t *testing.T) {
	if m, err := ParsePricingMode(" flat "); err != nil || m != PricingFlat {
		t.Fatalf("ParsePricingMode(flat) = %q, %v", m, err)
	}
	if m, err := ParsePricingMode("PER_WEIGHT"); err != nil || m != PricingPerWeight {
		t.Fatalf("ParsePricingMode(PER_WEIGHT) = %q, %v", m, err)
	}
	if _, err := ParsePricingMode("hourly"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
