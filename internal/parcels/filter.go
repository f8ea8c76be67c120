package parcels

import (
	"sort"
	"strconv"
	"strings"
)

// Filter selects parcels by status and free-text search. Zero value matches everything.
type Filter struct {
	Status Status `json:"status,omitempty"`
	Search string `json:"search,omitempty"`
}

// searchTerm returns the trimmed search text and, when the whole text is a base-10
// integer, the order id it also matches.
func (f Filter) searchTerm() (text string, orderID int64, numeric bool) {
	text = strings.TrimSpace(f.Search)
	if text == "" {
		return "", 0, false
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return text, n, true
	}
	return text, 0, false
}

func (f Filter) Match(p Parcel) bool {
	var statusOK, searchOK *bool

	if f.Status != "" {
		ok := p.Status == f.Status
		statusOK = &ok
	}

	if text, orderID, numeric := f.searchTerm(); text != "" {
		needle := strings.ToLower(text)
		ok := strings.Contains(strings.ToLower(p.TrackingNumber), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle)
		if numeric {
			ok = ok || p.OrderID == orderID
		}
		searchOK = &ok
	}

	switch {
	case statusOK != nil && searchOK != nil:
		return *statusOK && *searchOK
	case statusOK != nil:
		return *statusOK
	case searchOK != nil:
		return *searchOK
	default:
		return true
	}
}

// Apply returns the matching parcels, newest update first.
func (f Filter) Apply(in []Parcel) []Parcel {
	out := make([]Parcel, 0, len(in))
	for _, p := range in {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	SortByUpdatedDesc(out)
	return out
}

// SortByUpdatedDesc orders by updated_at descending; equal timestamps fall back to id.
func SortByUpdatedDesc(ps []Parcel) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].UpdatedAt.Equal(ps[j].UpdatedAt) {
			return ps[i].UpdatedAt.After(ps[j].UpdatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
