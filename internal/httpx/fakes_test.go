package httpx

import (
	"context"
	"encoding/json"
	"path"
	"sync"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/paging"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/redisx"
)

// fakeStore draws every version and delete seq from one counter, like the
// parcel_change_seq sequence in postgres.
type fakeStore struct {
	mu        sync.Mutex
	rows      map[string]parcels.Parcel
	seq       int64
	listCalls int
}

func newFakeStore(ps ...parcels.Parcel) *fakeStore {
	s := &fakeStore{rows: map[string]parcels.Parcel{}}
	for _, p := range ps {
		s.rows[p.ID] = p
		if p.Version > s.seq {
			s.seq = p.Version
		}
	}
	return s
}

func (s *fakeStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *fakeStore) ListPage(_ context.Context, f parcels.Filter, offset, limit int) (paging.Page[parcels.Parcel], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	all := make([]parcels.Parcel, 0, len(s.rows))
	for _, p := range s.rows {
		all = append(all, p)
	}
	matched := f.Apply(all)
	page := paging.Page[parcels.Parcel]{Total: len(matched)}
	if offset < len(matched) {
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Rows = matched[offset:end]
	}
	return page, nil
}

func (s *fakeStore) Get(_ context.Context, id string) (parcels.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return parcels.Parcel{}, parcels.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) Create(_ context.Context, p parcels.Parcel) (parcels.Parcel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[p.ID]; ok {
		return existing, false, nil
	}
	p.Version = s.nextSeq()
	s.rows[p.ID] = p
	return p, true, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id string, to parcels.Status) (parcels.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return parcels.Parcel{}, parcels.ErrNotFound
	}
	if !parcels.CanTransition(p.Status, to) {
		return parcels.Parcel{}, parcels.ErrInvalidTransition
	}
	p.Status = to
	p.Version = s.nextSeq()
	s.rows[id] = p
	return p, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return 0, parcels.ErrNotFound
	}
	delete(s.rows, id)
	return s.nextSeq(), nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (c *fakeCache) GetJSON(_ context.Context, key string, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return redisx.ErrMiss
	}
	return json.Unmarshal(b, out)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// DeleteByPrefix follows redis SCAN MATCH: prefix is a glob pattern.
func (c *fakeCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if ok, _ := path.Match(prefix+"*", k); ok {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *fakeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

type fakeFeed struct {
	mu      sync.Mutex
	changes []parcels.Change
}

func (f *fakeFeed) Publish(c parcels.Change, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, c)
	return nil
}

func (f *fakeFeed) published() []parcels.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]parcels.Change(nil), f.changes...)
}
