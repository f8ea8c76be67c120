package paging

import (
	"context"
	"sync"
)

type FetchFunc[T any] func(ctx context.Context, offset, limit int) (Page[T], error)

// Pager accumulates pages of a paginated endpoint into one flat list.
// The total comes from the first page and is kept for the life of the pager.
type Pager[T any] struct {
	fetch FetchFunc[T]
	limit int

	mu       sync.Mutex
	rows     []T
	total    int
	loaded   bool
	done     bool
	fetching bool
	err      error
	gen      uint64
}

func NewPager[T any](fetch FetchFunc[T], limit int) *Pager[T] {
	_, limit = Clamp(0, limit)
	return &Pager[T]{fetch: fetch, limit: limit}
}

// FetchNext loads the page after the rows already held. It is a no-op once every row
// has been loaded or while another fetch is in flight.
func (p *Pager[T]) FetchNext(ctx context.Context) error {
	p.mu.Lock()
	if p.fetching || !p.hasNextLocked() {
		p.mu.Unlock()
		return nil
	}
	p.fetching = true
	offset := len(p.rows)
	gen := p.gen
	p.mu.Unlock()

	page, err := p.fetch(ctx, offset, p.limit)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		// Reset ran while this page was in flight.
		return nil
	}
	p.fetching = false
	if err != nil {
		p.err = err
		return err
	}
	p.err = nil
	if !p.loaded {
		p.total = page.Total
		p.loaded = true
	}
	p.rows = append(p.rows, page.Rows...)
	if len(page.Rows) < p.limit || len(p.rows) >= p.total {
		p.done = true
	}
	return nil
}

func (p *Pager[T]) HasNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasNextLocked()
}

func (p *Pager[T]) hasNextLocked() bool {
	return !p.loaded || !p.done
}

// Rows returns a copy of everything fetched so far.
func (p *Pager[T]) Rows() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]T, len(p.rows))
	copy(out, p.rows)
	return out
}

func (p *Pager[T]) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Err is the error of the last fetch; rows already fetched stay available.
func (p *Pager[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pager[T]) IsError() bool { return p.Err() != nil }

// Reset drops every row. A fetch still in flight is discarded when it returns.
func (p *Pager[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.fetching = false
	p.rows = nil
	p.total = 0
	p.loaded = false
	p.done = false
	p.err = nil
}
