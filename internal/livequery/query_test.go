package livequery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/replica"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seeded() *replica.Replica {
	r := replica.New(nil)
	r.Load([]parcels.Parcel{
		{ID: "1", TrackingNumber: "CU-001", Description: "ropa", Status: parcels.StatusInAgency, OrderID: 500, Version: 1, UpdatedAt: t0},
		{ID: "2", TrackingNumber: "CU-002", Description: "medicinas", Status: parcels.StatusDelivered, OrderID: 501, Version: 1, UpdatedAt: t0.Add(time.Minute)},
	})
	return r
}

func ids(ps []parcels.Parcel) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func sameIDs(got []parcels.Parcel, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

// waitFor reads updates until ok accepts one or the deadline passes.
func waitFor(t *testing.T, q *Query, ok func(Result) bool) Result {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case res, open := <-q.Updates():
			if !open {
				t.Fatalf("updates closed while waiting")
			}
			if ok(res) {
				return res
			}
		case <-deadline:
			t.Fatalf("timed out; last result %+v", q.Current())
		}
	}
}

func TestQuery_PushesReplicaChanges(t *testing.T) {
	r := seeded()
	q := New(r, parcels.Filter{Status: parcels.StatusInAgency})
	q.Start(context.Background())
	defer q.Close()

	first := waitFor(t, q, func(res Result) bool { return res.State == StateReady })
	if !sameIDs(first.Rows, "1") {
		t.Fatalf("first result = %v, want [1]", ids(first.Rows))
	}

	p2, _ := r.Snapshot().Get("2")
	p2.Status = parcels.StatusInAgency
	p2.Version = 2
	p2.UpdatedAt = t0.Add(2 * time.Minute)
	r.Apply(parcels.UpsertChange(p2))

	got := waitFor(t, q, func(res Result) bool { return len(res.Rows) == 2 })
	if !sameIDs(got.Rows, "2", "1") {
		t.Fatalf("after change = %v, want [2 1]", ids(got.Rows))
	}
	if got.State != StateReady || q.State() != StateReady {
		t.Fatalf("state = %s / %s", got.State, q.State())
	}
}

func TestQuery_SearchMatchesOrderID(t *testing.T) {
	q := New(seeded(), parcels.Filter{Search: "500"})
	q.Start(context.Background())
	defer q.Close()

	res := waitFor(t, q, func(res Result) bool { return res.State == StateReady })
	if !sameIDs(res.Rows, "1") {
		t.Fatalf("rows = %v, want [1]", ids(res.Rows))
	}
}

func TestQuery_SetFilterRecomputes(t *testing.T) {
	q := New(seeded(), parcels.Filter{Status: parcels.StatusInAgency})
	q.Start(context.Background())
	defer q.Close()
	waitFor(t, q, func(res Result) bool { return res.State == StateReady })

	q.SetFilter(parcels.Filter{Status: parcels.StatusDelivered})
	res := waitFor(t, q, func(res Result) bool { return res.Filter.Status == parcels.StatusDelivered })
	if !sameIDs(res.Rows, "2") {
		t.Fatalf("rows = %v, want [2]", ids(res.Rows))
	}
	if q.Filter().Status != parcels.StatusDelivered {
		t.Fatalf("Filter() = %+v", q.Filter())
	}
}

func TestQuery_TransportErrorKeepsRows(t *testing.T) {
	r := seeded()
	q := New(r, parcels.Filter{})
	q.Start(context.Background())
	defer q.Close()
	waitFor(t, q, func(res Result) bool { return res.State == StateReady })

	boom := errors.New("feed disconnected")
	r.SetTransportError(boom)
	res := waitFor(t, q, func(res Result) bool { return res.IsError() })
	if !errors.Is(res.Err, boom) || len(res.Rows) != 2 {
		t.Fatalf("error result err=%v rows=%v", res.Err, ids(res.Rows))
	}
	if q.State() != StateError {
		t.Fatalf("state = %s, want error", q.State())
	}

	r.ClearTransportError()
	res = waitFor(t, q, func(res Result) bool { return res.State == StateReady })
	if res.Err != nil || len(res.Rows) != 2 {
		t.Fatalf("recovered result err=%v rows=%v", res.Err, ids(res.Rows))
	}
}

func TestQuery_CloseUnregisters(t *testing.T) {
	r := seeded()
	q := New(r, parcels.Filter{})
	if q.State() != StateIdle {
		t.Fatalf("new query state = %s", q.State())
	}
	q.Start(context.Background())
	waitFor(t, q, func(res Result) bool { return res.State == StateReady })
	if r.Watchers() != 1 {
		t.Fatalf("watchers = %d, want 1", r.Watchers())
	}

	q.Close()
	if r.Watchers() != 0 {
		t.Fatalf("watchers after Close = %d", r.Watchers())
	}
	for range q.Updates() {
	}
}

func TestQuery_ContextCancelStops(t *testing.T) {
	r := seeded()
	ctx, cancel := context.WithCancel(context.Background())
	q := New(r, parcels.Filter{})
	q.Start(ctx)
	cancel()

	select {
	case <-q.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("query did not stop on context cancel")
	}
	if r.Watchers() != 0 {
		t.Fatalf("watchers = %d after cancel", r.Watchers())
	}
	q.Close()
}

func TestQuery_CloseWithoutStart(t *testing.T) {
	q := New(seeded(), parcels.Filter{})
	q.Close()
	q.Start(context.Background())
	if _, open := <-q.Updates(); open {
		t.Fatal("updates should be closed")
	}
}

func TestQuery_DebounceBatchesBurst(t *testing.T) {
	r := seeded()
	q := New(r, parcels.Filter{}, WithDebounce(50*time.Millisecond))
	q.Start(context.Background())
	defer q.Close()
	first := waitFor(t, q, func(res Result) bool { return res.State == StateReady })

	for i := int64(2); i <= 6; i++ {
		r.Apply(parcels.UpsertChange(parcels.Parcel{ID: "1", Status: parcels.StatusInAgency, Version: i, UpdatedAt: t0}))
	}
	res := waitFor(t, q, func(res Result) bool { return res.Seq > first.Seq })
	if res.Seq != first.Seq+1 {
		t.Fatalf("burst produced %d recomputations, want 1", res.Seq-first.Seq)
	}
	if p := res.Rows; len(p) != 2 {
		t.Fatalf("rows = %v", ids(p))
	}
}
