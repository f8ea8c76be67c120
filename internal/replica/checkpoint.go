package replica

import (
	"sync"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
)

// Entry is the persisted form of one id: the parcel (nil for a tombstone) and the
// last seq folded for it.
type Entry struct {
	Parcel *parcels.Parcel `json:"parcel,omitempty"`
	Seq    int64           `json:"seq"`
}

// State is what a checkpoint holds: every id the replica has seen and the last feed
// offset folded per partition. Both come from the same snapshot.
type State struct {
	Entries map[string]Entry
	Offsets map[int]int64
}

// Checkpoint persists replica contents so a restart serves the last known rows
// before the feed catches up.
type Checkpoint interface {
	Save(st State) error
	Load() (State, error)
}

// Restore replaces the replica contents with the checkpoint.
func (r *Replica) Restore(cp Checkpoint) (int, error) {
	st, err := cp.Load()
	if err != nil {
		return 0, err
	}
	rows := make(map[string]parcels.Parcel, len(st.Entries))
	seqs := make(map[string]int64, len(st.Entries))
	for id, e := range st.Entries {
		if e.Parcel != nil {
			rows[id] = *e.Parcel
		}
		seqs[id] = e.Seq
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishLocked(&Snapshot{rows: rows, seqs: seqs, offsets: copyOffsets(st.Offsets), Err: r.current.Load().Err})
	return len(rows), nil
}

// SaveTo writes the current snapshot and returns it. Offsets of the returned snapshot
// are safe to commit to the feed once SaveTo succeeds.
func (r *Replica) SaveTo(cp Checkpoint) (*Snapshot, error) {
	s := r.Snapshot()
	entries := make(map[string]Entry, len(s.seqs))
	for id, seq := range s.seqs {
		e := Entry{Seq: seq}
		if p, ok := s.rows[id]; ok {
			p := p
			e.Parcel = &p
		}
		entries[id] = e
	}
	if err := cp.Save(State{Entries: entries, Offsets: s.Offsets()}); err != nil {
		return nil, err
	}
	r.m.CheckpointSaves.Inc()
	return s, nil
}

type MemoryCheckpoint struct {
	mu sync.RWMutex
	st State
}

func NewMemoryCheckpoint() *MemoryCheckpoint {
	return &MemoryCheckpoint{st: State{Entries: map[string]Entry{}, Offsets: map[int]int64{}}}
}

func (m *MemoryCheckpoint) Save(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = cloneState(st)
	return nil
}

func (m *MemoryCheckpoint) Load() (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneState(m.st), nil
}

func cloneState(st State) State {
	out := State{Entries: make(map[string]Entry, len(st.Entries)), Offsets: copyOffsets(st.Offsets)}
	for k, v := range st.Entries {
		out.Entries[k] = v
	}
	return out
}
