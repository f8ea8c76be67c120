package replica

import (
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func parcel(id string, status parcels.Status, version int64) parcels.Parcel {
	return parcels.Parcel{ID: id, TrackingNumber: "TRK-" + id, Status: status, Version: version, UpdatedAt: t0.Add(time.Duration(version) * time.Second)}
}

func TestApply_LastWriteWins(t *testing.T) {
	r := New(nil)
	n := r.Apply(
		parcels.UpsertChange(parcel("1", parcels.StatusInAgency, 1)),
		parcels.UpsertChange(parcel("1", parcels.StatusInPallet, 2)),
		parcels.UpsertChange(parcel("2", parcels.StatusDelivered, 1)),
	)
	if n != 3 {
		t.Fatalf("applied = %d, want 3", n)
	}
	s := r.Snapshot()
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if p, _ := s.Get("1"); p.Status != parcels.StatusInPallet {
		t.Fatalf("parcel 1 status = %s, want IN_PALLET", p.Status)
	}
}

func TestApply_SkipsRedelivery(t *testing.T) {
	r := New(nil)
	r.Apply(parcels.UpsertChange(parcel("1", parcels.StatusInPallet, 5)))
	v := r.Snapshot().Version

	if n := r.Apply(parcels.UpsertChange(parcel("1", parcels.StatusInAgency, 4))); n != 0 {
		t.Fatalf("older seq applied")
	}
	if n := r.Apply(parcels.UpsertChange(parcel("1", parcels.StatusInAgency, 5))); n != 0 {
		t.Fatalf("same seq applied")
	}
	if r.Snapshot().Version != v {
		t.Fatalf("skipped changes must not publish a new snapshot")
	}
	if p, _ := r.Snapshot().Get("1"); p.Status != parcels.StatusInPallet {
		t.Fatalf("status = %s", p.Status)
	}
}

func TestApply_UnsequencedAlwaysApplies(t *testing.T) {
	r := New(nil)
	r.Apply(parcels.UpsertChange(parcel("1", parcels.StatusInAgency, 0)))
	r.Apply(parcels.UpsertChange(parcel("1", parcels.StatusInPallet, 0)))
	if p, _ := r.Snapshot().Get("1"); p.Status != parcels.StatusInPallet {
		t.Fatalf("status = %s, want last arrival", p.Status)
	}
}

func TestApply_DeleteLeavesTombstone(t *testing.T) {
	r := New(nil)
	r.Apply(parcels.UpsertChange(parcel("1", parcels.StatusInAgency, 1)))
	r.Apply(parcels.DeleteChange("1", 2))
	if _, ok := r.Snapshot().Get("1"); ok {
		t.Fatalf("deleted parcel still visible")
	}
	// late upsert from before the delete
	r.Apply(parcels.UpsertChange(parcel("1", parcels.StatusInAgency, 1)))
	if _, ok := r.Snapshot().Get("1"); ok {
		t.Fatalf("stale upsert resurrected a deleted parcel")
	}
}

func TestApply_RecreateAfterDelete(t *testing.T) {
	r := New(nil)
	r.Apply(parcels.UpsertChange(parcel("p1", parcels.StatusInAgency, 1)))
	r.Apply(parcels.DeleteChange("p1", 2))

	// versions come from one shared sequence, so the new row is newer than the tombstone
	if n := r.Apply(parcels.UpsertChange(parcel("p1", parcels.StatusInAgency, 3))); n != 1 {
		t.Fatalf("re-created parcel applied = %d, want 1", n)
	}
	if _, ok := r.Snapshot().Get("p1"); !ok {
		t.Fatal("re-created parcel missing from replica")
	}
}

func TestApplyAt_TracksOffsets(t *testing.T) {
	r := New(nil)
	notify, stop := r.Watch()
	defer stop()

	r.ApplyAt(Position{Partition: 2, Offset: 10}, parcels.UpsertChange(parcel("1", parcels.StatusInAgency, 1)))
	<-notify

	// redelivery: nothing folds, offset still only moves forward
	r.ApplyAt(Position{Partition: 2, Offset: 4}, parcels.UpsertChange(parcel("1", parcels.StatusInAgency, 1)))
	r.Advance(Position{Partition: 2, Offset: 11})
	if off := r.Snapshot().Offsets(); off[2] != 11 {
		t.Fatalf("offsets = %v, want partition 2 at 11", off)
	}
	select {
	case <-notify:
		t.Fatal("offset-only change woke a watcher")
	default:
	}
	if r.Snapshot().Len() != 1 {
		t.Fatalf("len = %d", r.Snapshot().Len())
	}
}

func TestApply_RejectsInvalid(t *testing.T) {
	r := New(nil)
	if n := r.Apply(parcels.Change{Op: parcels.OpUpsert, ID: "x"}); n != 0 {
		t.Fatalf("invalid change applied")
	}
}

func TestSnapshotsAreImmutable(t *testing.T) {
	r := New(nil)
	r.Apply(parcels.UpsertChange(parcel("1", parcels.StatusInAgency, 1)))
	old := r.Snapshot()
	r.Apply(parcels.UpsertChange(parcel("1", parcels.StatusInPallet, 2)), parcels.UpsertChange(parcel("2", parcels.StatusInAgency, 1)))

	if p, _ := old.Get("1"); p.Status != parcels.StatusInAgency || old.Len() != 1 {
		t.Fatalf("old snapshot changed: %+v len=%d", p, old.Len())
	}
	if r.Snapshot().Version <= old.Version {
		t.Fatalf("version did not advance")
	}
}

func TestWatch_CoalescesAndUnregisters(t *testing.T) {
	r := New(nil)
	ch, cancel := r.Watch()
	if r.Watchers() != 1 {
		t.Fatalf("watchers = %d", r.Watchers())
	}

	for i := int64(1); i <= 5; i++ {
		r.Apply(parcels.UpsertChange(parcel("1", parcels.StatusInAgency, i)))
	}
	select {
	case <-ch:
	default:
		t.Fatalf("expected a notification")
	}
	select {
	case <-ch:
		t.Fatalf("burst should coalesce into one notification")
	default:
	}

	cancel()
	cancel()
	if r.Watchers() != 0 {
		t.Fatalf("watcher not removed")
	}
}

func TestTransportError_KeepsRows(t *testing.T) {
	r := New(nil)
	r.Apply(parcels.UpsertChange(parcel("1", parcels.StatusInAgency, 1)))
	ch, cancel := r.Watch()
	defer cancel()

	boom := errors.New("broker unreachable")
	r.SetTransportError(boom)
	<-ch
	s := r.Snapshot()
	if !errors.Is(s.Err, boom) || s.Len() != 1 {
		t.Fatalf("snapshot err=%v len=%d", s.Err, s.Len())
	}

	r.Apply(parcels.UpsertChange(parcel("2", parcels.StatusInAgency, 1)))
	if r.Snapshot().Err == nil {
		t.Fatalf("folding must not clear the transport error")
	}

	r.ClearTransportError()
	if r.Snapshot().Err != nil || r.Snapshot().Len() != 2 {
		t.Fatalf("after clear: err=%v len=%d", r.Snapshot().Err, r.Snapshot().Len())
	}
}

func TestLoad(t *testing.T) {
	r := New(nil)
	n := r.Load([]parcels.Parcel{parcel("a", parcels.StatusInAgency, 3), parcel("b", parcels.StatusDelivered, 7)})
	if n != 2 || r.Snapshot().Seq("b") != 7 {
		t.Fatalf("load applied=%d seq(b)=%d", n, r.Snapshot().Seq("b"))
	}
}

func TestSnapshotQuery(t *testing.T) {
	r := New(nil)
	r.Load([]parcels.Parcel{
		parcel("a", parcels.StatusInAgency, 1),
		parcel("b", parcels.StatusDelivered, 2),
		parcel("c", parcels.StatusInAgency, 3),
	})
	got := r.Snapshot().Query(parcels.Filter{Status: parcels.StatusInAgency})
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "a" {
		t.Fatalf("query = %+v", got)
	}
}
