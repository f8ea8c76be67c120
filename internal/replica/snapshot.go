package replica

import (
	"time"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
)

// Snapshot is the immutable result of one fold step. Readers may keep it as long as
// they like; the replica never mutates a published snapshot.
type Snapshot struct {
	Version  uint64
	FoldedAt time.Time
	Err      error // transport error at the time of the snapshot, nil when connected
	rows     map[string]parcels.Parcel
	seqs     map[string]int64 // includes tombstones of deleted ids
	offsets  map[int]int64    // last feed offset folded, per partition
}

func emptySnapshot() *Snapshot {
	return &Snapshot{rows: map[string]parcels.Parcel{}, seqs: map[string]int64{}, offsets: map[int]int64{}}
}

// Offsets returns the last feed offset folded into this snapshot for each partition.
func (s *Snapshot) Offsets() map[int]int64 {
	out := make(map[int]int64, len(s.offsets))
	for p, o := range s.offsets {
		out[p] = o
	}
	return out
}

func (s *Snapshot) Len() int { return len(s.rows) }

func (s *Snapshot) Get(id string) (parcels.Parcel, bool) {
	p, ok := s.rows[id]
	return p, ok
}

// Seq returns the last change seq folded for id, deleted ids included.
func (s *Snapshot) Seq(id string) int64 { return s.seqs[id] }

func (s *Snapshot) Parcels() []parcels.Parcel {
	out := make([]parcels.Parcel, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, p)
	}
	return out
}

// Query evaluates f against the snapshot, newest update first.
func (s *Snapshot) Query(f parcels.Filter) []parcels.Parcel {
	out := make([]parcels.Parcel, 0)
	for _, p := range s.rows {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	parcels.SortByUpdatedDesc(out)
	return out
}
