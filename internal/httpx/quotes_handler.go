package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/money"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
)

// QuotesHandler prices order lines. Amounts come in as dollars and go out as cents
// plus a display string.
type QuotesHandler struct {
	Locale   string
	Currency string
}

type quoteItemReq struct {
	UnitPrice    json.Number `json:"unit_price"`
	Weight       float64     `json:"weight"`
	CustomsFee   json.Number `json:"customs_fee"`
	ChargeFee    json.Number `json:"charge_fee"`
	InsuranceFee json.Number `json:"insurance_fee"`
	PricingMode  string      `json:"pricing_mode"`
}

type QuoteReq struct {
	Items    []quoteItemReq `json:"items"`
	Province string         `json:"province,omitempty"`
	Locale   string         `json:"locale,omitempty"`
	Currency string         `json:"currency,omitempty"`
}

type quoteRow struct {
	SubtotalCents int64  `json:"subtotal_cents"`
	Subtotal      string `json:"subtotal"`
}

type QuoteResp struct {
	Rows             []quoteRow `json:"rows"`
	TotalCents       int64      `json:"total_cents"`
	Total            string     `json:"total"`
	DeliveryFeeCents int64      `json:"delivery_fee_cents,omitempty"`
	DeliveryFee      string     `json:"delivery_fee,omitempty"`
	GrandTotalCents  int64      `json:"grand_total_cents"`
	GrandTotal       string     `json:"grand_total"`
}

func (h *QuotesHandler) Register(r chi.Router) {
	withTimeout(r).Post("/quotes", h.createQuote)
}

func optionalCents(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	return money.DollarsToCents(n)
}

func (it quoteItemReq) lineItem() (money.LineItem, error) {
	var li money.LineItem
	var err error
	if li.UnitPriceCents, err = optionalCents(it.UnitPrice); err != nil {
		return li, fmt.Errorf("unit_price: %w", err)
	}
	if li.CustomsFeeCents, err = optionalCents(it.CustomsFee); err != nil {
		return li, fmt.Errorf("customs_fee: %w", err)
	}
	if li.ChargeFeeCents, err = optionalCents(it.ChargeFee); err != nil {
		return li, fmt.Errorf("charge_fee: %w", err)
	}
	if li.InsuranceFeeCents, err = optionalCents(it.InsuranceFee); err != nil {
		return li, fmt.Errorf("insurance_fee: %w", err)
	}
	if it.Weight < 0 {
		return li, errors.New("weight: negative")
	}
	li.Weight = it.Weight
	li.Mode = money.PricingPerWeight
	if it.PricingMode != "" {
		if li.Mode, err = money.ParsePricingMode(it.PricingMode); err != nil {
			return li, err
		}
	}
	return li, nil
}

func (h *QuotesHandler) createQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteReq
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "missing items")
		return
	}

	locale, cur := req.Locale, req.Currency
	if locale == "" {
		locale = h.Locale
	}
	if cur == "" {
		cur = h.Currency
	}
	format := func(c int64) string { return money.FormatMoney(c, locale, cur) }

	items := make([]money.LineItem, 0, len(req.Items))
	resp := QuoteResp{Rows: make([]quoteRow, 0, len(req.Items))}
	var weight float64
	for i, it := range req.Items {
		li, err := it.lineItem()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("item %d: %v", i, err))
			return
		}
		items = append(items, li)
		sub := li.Subtotal()
		resp.Rows = append(resp.Rows, quoteRow{SubtotalCents: sub, Subtotal: format(sub)})
		weight += it.Weight
	}

	resp.TotalCents = money.CalculateOrderTotal(items)
	resp.Total = format(resp.TotalCents)
	resp.GrandTotalCents = resp.TotalCents
	if req.Province != "" {
		resp.DeliveryFeeCents = parcels.DeliveryFee(req.Province, weight)
		resp.DeliveryFee = format(resp.DeliveryFeeCents)
		resp.GrandTotalCents += resp.DeliveryFeeCents
	}
	resp.GrandTotal = format(resp.GrandTotalCents)
	writeJSON(w, http.StatusOK, resp)
}
