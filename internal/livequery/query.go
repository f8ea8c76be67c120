package livequery

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/metrics"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/replica"
)

// Result is one emitted projection of the replica. Rows must not be modified.
type Result struct {
	Rows           []parcels.Parcel `json:"rows"`
	Filter         parcels.Filter   `json:"filter"`
	State          State            `json:"state"`
	Err            error            `json:"-"`
	ReplicaVersion uint64           `json:"replica_version"`
	Seq            uint64           `json:"seq"`
}

func (r Result) IsError() bool { return r.State == StateError }

type Option func(*Query)

// WithDebounce waits d after a change before recomputing, folding in any further
// changes that arrive meanwhile.
func WithDebounce(d time.Duration) Option { return func(q *Query) { q.debounce = d } }

func WithMetrics(m *metrics.Registry) Option { return func(q *Query) { q.m = m } }

// Query is a live, filtered view of a replica. It recomputes whenever the replica
// publishes a snapshot or the filter changes, and pushes each Result to Updates.
type Query struct {
	replica  *replica.Replica
	m        *metrics.Registry
	debounce time.Duration

	mu      sync.Mutex
	filter  parcels.Filter
	state   State
	last    Result
	seq     uint64
	started bool

	filterCh  chan struct{}
	updates   chan Result
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func New(r *replica.Replica, f parcels.Filter, opts ...Option) *Query {
	q := &Query{
		replica:  r,
		filter:   f,
		state:    StateIdle,
		filterCh: make(chan struct{}, 1),
		updates:  make(chan Result, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	if q.m == nil {
		q.m = metrics.NewRegistry()
	}
	return q
}

// Start subscribes to the replica and computes the first result. The subscription
// ends when ctx is done or Close is called.
func (q *Query) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.state = StateSubscribed
	q.mu.Unlock()

	notify, unwatch := q.replica.Watch()
	q.m.ActiveQueries.Inc()
	go q.run(ctx, notify, unwatch)
}

func (q *Query) run(ctx context.Context, notify <-chan struct{}, unwatch func()) {
	defer close(q.done)
	defer close(q.updates)
	defer q.m.ActiveQueries.Dec()
	defer unwatch()

	q.recompute()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case <-notify:
		case <-q.filterCh:
		}
		if q.debounce > 0 && !q.settle(ctx, notify) {
			return
		}
		q.recompute()
	}
}

// settle absorbs further signals until the debounce window passes quietly.
func (q *Query) settle(ctx context.Context, notify <-chan struct{}) bool {
	t := time.NewTimer(q.debounce)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-q.stop:
			return false
		case <-notify:
		case <-q.filterCh:
		case <-t.C:
			return true
		}
	}
}

func (q *Query) recompute() {
	start := time.Now()
	snap := q.replica.Snapshot()

	q.mu.Lock()
	f := q.filter
	if snap.Err == nil {
		q.state = StateComputing
	}
	q.mu.Unlock()

	rows := snap.Query(f)

	q.mu.Lock()
	q.seq++
	res := Result{Rows: rows, Filter: f, State: StateReady, ReplicaVersion: snap.Version, Seq: q.seq}
	if snap.Err != nil {
		res.State = StateError
		res.Err = snap.Err
	}
	q.state = res.State
	q.last = res
	q.mu.Unlock()

	q.m.Recomputes.Inc()
	q.m.RecomputeSec.Observe(time.Since(start).Seconds())
	q.emit(res)
}

// emit keeps only the newest result in the buffer; run is the only sender.
func (q *Query) emit(res Result) {
	select {
	case <-q.updates:
	default:
	}
	q.updates <- res
}

// SetFilter replaces the filter and triggers a recomputation.
func (q *Query) SetFilter(f parcels.Filter) {
	q.mu.Lock()
	q.filter = f
	q.mu.Unlock()
	select {
	case q.filterCh <- struct{}{}:
	default:
	}
}

func (q *Query) Filter() parcels.Filter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.filter
}

func (q *Query) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Current returns the last emitted result; zero Result before the first computation.
func (q *Query) Current() Result {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last
}

// Updates delivers results as they are computed. Slow readers only see the newest.
// The channel is closed when the query stops.
func (q *Query) Updates() <-chan Result { return q.updates }

// Close unregisters from the replica and waits for the query to stop.
func (q *Query) Close() {
	q.closeOnce.Do(func() {
		close(q.stop)
		q.mu.Lock()
		started := q.started
		q.started = true
		q.mu.Unlock()
		if !started {
			close(q.updates)
			close(q.done)
		}
	})
	<-q.done
}

// Done is closed once the query has stopped.
func (q *Query) Done() <-chan struct{} { return q.done }
