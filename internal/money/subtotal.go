package money

import (
	"fmt"
	"math"
	"strings"
)

type PricingMode string

const (
	PricingPerWeight PricingMode = "PER_WEIGHT"
	PricingFlat      PricingMode = "FLAT"
)

func ParsePricingMode(s string) (PricingMode, error) {
	switch PricingMode(strings.ToUpper(strings.TrimSpace(s))) {
	case PricingPerWeight:
		return PricingPerWeight, nil
	case PricingFlat:
		return PricingFlat, nil
	}
	return "", fmt.Errorf("unknown pricing mode %q", s)
}

// LineItem is one billable row of an order. Amounts are in cents.
type LineItem struct {
	UnitPriceCents    int64       `json:"unit_price_cents"`
	Weight            float64     `json:"weight"`
	CustomsFeeCents   int64       `json:"customs_fee_cents"`
	ChargeFeeCents    int64       `json:"charge_fee_cents"`
	InsuranceFeeCents int64       `json:"insurance_fee_cents"`
	Mode              PricingMode `json:"pricing_mode"`
}

func (li LineItem) Subtotal() int64 {
	return CalculateRowSubtotal(
		float64(li.UnitPriceCents),
		li.Weight,
		float64(li.CustomsFeeCents),
		float64(li.ChargeFeeCents),
		float64(li.InsuranceFeeCents),
		li.Mode,
	)
}

// CalculateRowSubtotal prices one row in cents.
// FLAT rows only carry unit price and customs fee; weight, charge and insurance are ignored.
func CalculateRowSubtotal(unitPrice, weight, customsFee, chargeFee, insuranceFee float64, mode PricingMode) int64 {
	unitPrice = finiteOrZero(unitPrice)
	weight = finiteOrZero(weight)
	customsFee = finiteOrZero(customsFee)
	chargeFee = finiteOrZero(chargeFee)
	insuranceFee = finiteOrZero(insuranceFee)

	if mode == PricingFlat {
		return int64(math.Ceil(unitPrice + customsFee))
	}
	return int64(math.Ceil(unitPrice*weight + customsFee + chargeFee + insuranceFee))
}

func CalculateOrderTotal(items []LineItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
