package parcels

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Delivery fee rules, in cents.
const (
	capitalBaseFee      int64 = 500
	provinceBaseFee     int64 = 1000
	lightWeightLimit          = 0.5 // kg
	standardWeightLimit       = 1.0 // kg
	standardSurcharge   int64 = 100
	extraKgFee                = 150.0
)

// Provinces served from the capital hub.
var capitalZone = map[string]bool{
	"la habana": true,
	"artemisa":  true,
	"mayabeque": true,
}

// DeliveryFee prices home delivery of a parcel of weight kg to province.
// Up to 0.5 kg pays the zone base and up to 1 kg adds a surcharge. Weight above
// 1 kg is charged per kg on top, rounded up to the cent.
func DeliveryFee(province string, weight float64) int64 {
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
		weight = 0
	}
	fee := provinceBaseFee
	if InCapitalZone(province) {
		fee = capitalBaseFee
	}
	switch {
	case weight <= lightWeightLimit:
		return fee
	case weight <= standardWeightLimit:
		return fee + standardSurcharge
	default:
		extra := weight - standardWeightLimit
		return fee + standardSurcharge + int64(math.Ceil(extra*extraKgFee))
	}
}

func InCapitalZone(province string) bool {
	return capitalZone[normalizeProvince(province)]
}

func normalizeProvince(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
