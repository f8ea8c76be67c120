package redisx

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cache halaman list parcel: parcels:page:{status}:{offset}:{limit}:{xxhash(search)} -> {"rows":[...],"total":n}
	KeyParcelPage    = "parcels:page:%s:%d:%d:%016x"
	PrefixParcelPage = "parcels:page:"

	// Selection per session: session:{id}:selection -> Selection JSON
	KeySessionSelection = "session:%s:selection"
)

var (
	TTLDedup     = 48 * time.Hour
	TTLPageCache = 30 * time.Second
	TTLSession   = 12 * time.Hour
)

func DedupKey(service, eventID string) string { return fmt.Sprintf(KeyDedup, service, eventID) }

// ParcelPageKey hashes the search text so arbitrary input never leaks into the key layout.
func ParcelPageKey(status, search string, offset, limit int) string {
	if status == "" {
		status = "*"
	}
	return fmt.Sprintf(KeyParcelPage, status, offset, limit, xxhash.Sum64String(search))
}

func SessionKey(id string) string { return fmt.Sprintf(KeySessionSelection, id) }
