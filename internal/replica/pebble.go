package replica

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/pebble"
)

var (
	entryPrefix  = []byte("parcel/")
	entryEnd     = []byte("parcel0") // '0' follows '/'
	offsetPrefix = []byte("offset/")
	offsetEnd    = []byte("offset0")
)

// PebbleCheckpoint stores one key per parcel id under "parcel/" and one key per feed
// partition under "offset/".
type PebbleCheckpoint struct {
	db *pebble.DB
}

func NewPebbleCheckpoint(dir string) (*PebbleCheckpoint, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleCheckpoint{db: db}, nil
}

func (p *PebbleCheckpoint) Close() error { return p.db.Close() }

// Save replaces the stored state in one batch, so rows and offsets never disagree.
func (p *PebbleCheckpoint) Save(st State) error {
	b := p.db.NewBatch()
	defer b.Close()

	if err := b.DeleteRange(entryPrefix, entryEnd, nil); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	if err := b.DeleteRange(offsetPrefix, offsetEnd, nil); err != nil {
		return fmt.Errorf("clear offsets: %w", err)
	}
	for id, e := range st.Entries {
		v, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s: %w", id, err)
		}
		if err := b.Set(prefixed(entryPrefix, id), v, nil); err != nil {
			return err
		}
	}
	for part, off := range st.Offsets {
		v := binary.BigEndian.AppendUint64(nil, uint64(off))
		if err := b.Set(prefixed(offsetPrefix, strconv.Itoa(part)), v, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (p *PebbleCheckpoint) Load() (State, error) {
	st := State{Entries: map[string]Entry{}, Offsets: map[int]int64{}}

	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: entryPrefix, UpperBound: entryEnd})
	if err != nil {
		return st, err
	}
	for it.First(); it.Valid(); it.Next() {
		var e Entry
		if err := json.Unmarshal(it.Value(), &e); err != nil {
			it.Close()
			return st, fmt.Errorf("decode %s: %w", it.Key(), err)
		}
		st.Entries[string(it.Key()[len(entryPrefix):])] = e
	}
	if err := it.Close(); err != nil {
		return st, err
	}

	it, err = p.db.NewIter(&pebble.IterOptions{LowerBound: offsetPrefix, UpperBound: offsetEnd})
	if err != nil {
		return st, err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		part, err := strconv.Atoi(string(it.Key()[len(offsetPrefix):]))
		if err != nil || len(it.Value()) != 8 {
			return st, fmt.Errorf("decode offset %s", it.Key())
		}
		st.Offsets[part] = int64(binary.BigEndian.Uint64(it.Value()))
	}
	return st, it.Error()
}

func prefixed(prefix []byte, id string) []byte {
	k := make([]byte, 0, len(prefix)+len(id))
	k = append(k, prefix...)
	return append(k, id...)
}
