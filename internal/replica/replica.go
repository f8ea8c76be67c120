package replica

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/metrics"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
)

// Replica is the local copy of server-side parcels, folded from the change feed.
// There is one writer (the feed consumer); readers only see published snapshots.
type Replica struct {
	mu       sync.Mutex // serializes folds and guards watchers
	current  atomic.Pointer[Snapshot]
	watchers map[uint64]chan struct{}
	nextID   uint64
	m        *metrics.Registry
	now      func() time.Time
}

func New(m *metrics.Registry) *Replica {
	if m == nil {
		m = metrics.NewRegistry()
	}
	r := &Replica{watchers: map[uint64]chan struct{}{}, m: m, now: time.Now}
	r.current.Store(emptySnapshot())
	return r
}

func (r *Replica) Snapshot() *Snapshot { return r.current.Load() }

// Position is where a change sits in the feed.
type Position struct {
	Partition int
	Offset    int64
}

// Apply folds changes in arrival order, last write wins per id. A sequenced change
// (Seq > 0) that is not newer than what the replica holds for that id is a redelivery
// and is skipped. Returns how many changes were applied.
func (r *Replica) Apply(changes ...parcels.Change) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(nil, changes)
}

// ApplyAt folds changes read from pos and records pos as consumed, whether or not
// any change was applied.
func (r *Replica) ApplyAt(pos Position, changes ...parcels.Change) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(&pos, changes)
}

// Advance records pos as consumed without folding anything, e.g. for a message that
// could not be decoded.
func (r *Replica) Advance(pos Position) {
	r.ApplyAt(pos)
}

func (r *Replica) applyLocked(pos *Position, changes []parcels.Change) int {
	cur := r.current.Load()
	var rows map[string]parcels.Parcel
	var seqs map[string]int64
	applied := 0

	for _, c := range changes {
		if err := c.Validate(); err != nil {
			r.m.ChangesRejected.Inc()
			continue
		}
		last, seen := cur.seqs[c.ID]
		if seqs != nil {
			last, seen = seqs[c.ID]
		}
		if seen && c.Seq > 0 && c.Seq <= last {
			r.m.ChangesSkipped.Inc()
			continue
		}
		if rows == nil {
			rows, seqs = copyMaps(cur)
		}
		switch c.Op {
		case parcels.OpUpsert:
			rows[c.ID] = *c.Parcel
		case parcels.OpDelete:
			delete(rows, c.ID)
		}
		seqs[c.ID] = c.Seq
		applied++
	}
	offsets, moved := cur.offsets, false
	if pos != nil {
		if last, ok := cur.offsets[pos.Partition]; !ok || pos.Offset > last {
			offsets = copyOffsets(cur.offsets)
			offsets[pos.Partition] = pos.Offset
			moved = true
		}
	}
	if applied == 0 {
		if moved {
			// position moved, rows did not: no watcher needs to recompute
			r.storeLocked(&Snapshot{rows: cur.rows, seqs: cur.seqs, offsets: offsets, Err: cur.Err}, false)
		}
		return 0
	}
	r.m.ChangesApplied.Add(float64(applied))
	r.publishLocked(&Snapshot{rows: rows, seqs: seqs, offsets: offsets, Err: cur.Err})
	return applied
}

// Load seeds the replica with server rows, each treated as an upsert at its version.
func (r *Replica) Load(ps []parcels.Parcel) int {
	changes := make([]parcels.Change, 0, len(ps))
	for _, p := range ps {
		changes = append(changes, parcels.UpsertChange(p))
	}
	return r.Apply(changes...)
}

// SetTransportError marks the feed as disconnected. Rows stay as they are.
func (r *Replica) SetTransportError(err error) {
	if err == nil {
		r.ClearTransportError()
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.current.Load()
	r.m.TransportErrors.Inc()
	r.publishLocked(&Snapshot{rows: cur.rows, seqs: cur.seqs, offsets: cur.offsets, Err: err})
}

func (r *Replica) ClearTransportError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.current.Load()
	if cur.Err == nil {
		return
	}
	r.publishLocked(&Snapshot{rows: cur.rows, seqs: cur.seqs, offsets: cur.offsets})
}

// Watch registers for change notifications. Notifications coalesce: a burst of folds
// between two reads is delivered as one signal. Call the returned func to unregister.
func (r *Replica) Watch() (<-chan struct{}, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	ch := make(chan struct{}, 1)
	r.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.watchers, id)
			r.mu.Unlock()
		})
	}
}

func (r *Replica) Watchers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watchers)
}

func (r *Replica) publishLocked(s *Snapshot) { r.storeLocked(s, true) }

func (r *Replica) storeLocked(s *Snapshot, notify bool) {
	s.Version = r.current.Load().Version + 1
	s.FoldedAt = r.now()
	if s.offsets == nil {
		s.offsets = map[int]int64{}
	}
	r.current.Store(s)
	r.m.ReplicaRows.Set(float64(len(s.rows)))
	if !notify {
		return
	}
	for _, ch := range r.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func copyMaps(s *Snapshot) (map[string]parcels.Parcel, map[string]int64) {
	rows := make(map[string]parcels.Parcel, len(s.rows)+1)
	for k, v := range s.rows {
		rows[k] = v
	}
	seqs := make(map[string]int64, len(s.seqs)+1)
	for k, v := range s.seqs {
		seqs[k] = v
	}
	return rows, seqs
}

func copyOffsets(in map[int]int64) map[int]int64 {
	out := make(map[int]int64, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
