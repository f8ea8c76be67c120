package parcels

import "time"

type Parcel struct {
	ID             string    `json:"id"`
	TrackingNumber string    `json:"tracking_number"`
	Description    string    `json:"description"`
	Status         Status    `json:"status"` // lihat status.go
	OrderID        int64     `json:"order_id"`
	Weight         float64   `json:"weight"`
	AgencyIDs      []string  `json:"agency_ids,omitempty"`
	Version        int64     `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}
