package replica

import (
	"testing"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
)

func checkpointRoundTrip(t *testing.T, cp Checkpoint) {
	t.Helper()
	src := New(nil)
	src.ApplyAt(Position{Partition: 0, Offset: 7},
		parcels.UpsertChange(parcel("1", parcels.StatusInAgency, 2)),
		parcels.UpsertChange(parcel("2", parcels.StatusDelivered, 4)),
	)
	src.ApplyAt(Position{Partition: 1, Offset: 3},
		parcels.UpsertChange(parcel("3", parcels.StatusInAgency, 1)),
		parcels.DeleteChange("3", 2),
	)
	saved, err := src.SaveTo(cp)
	if err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	if saved.Version != src.Snapshot().Version {
		t.Fatalf("saved version %d, current %d", saved.Version, src.Snapshot().Version)
	}

	dst := New(nil)
	n, err := dst.Restore(cp)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 2 {
		t.Fatalf("restored rows = %d, want 2", n)
	}
	if p, ok := dst.Snapshot().Get("2"); !ok || p.Status != parcels.StatusDelivered || !p.UpdatedAt.Equal(parcel("2", "", 4).UpdatedAt) {
		t.Fatalf("parcel 2 = %+v ok=%v", p, ok)
	}
	if off := dst.Snapshot().Offsets(); off[0] != 7 || off[1] != 3 || len(off) != 2 {
		t.Fatalf("restored offsets = %v", off)
	}
	// tombstone survives the restore
	if dst.Apply(parcels.UpsertChange(parcel("3", parcels.StatusInAgency, 1))) != 0 {
		t.Fatalf("tombstone lost: stale upsert applied after restore")
	}

	// a second save replaces the first
	src.Apply(parcels.DeleteChange("1", 3))
	if _, err := src.SaveTo(cp); err != nil {
		t.Fatal(err)
	}
	again := New(nil)
	if n, _ := again.Restore(cp); n != 1 {
		t.Fatalf("restored rows after second save = %d, want 1", n)
	}
}

func TestMemoryCheckpoint(t *testing.T) {
	checkpointRoundTrip(t, NewMemoryCheckpoint())
}

func TestPebbleCheckpoint(t *testing.T) {
	cp, err := NewPebbleCheckpoint(t.TempDir())
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = cp.Close() })
	checkpointRoundTrip(t, cp)
}

func TestPebbleCheckpoint_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	cp, err := NewPebbleCheckpoint(dir)
	if err != nil {
		t.Fatal(err)
	}
	r := New(nil)
	r.Apply(parcels.UpsertChange(parcel("z", parcels.StatusInTransit, 9)))
	if _, err := r.SaveTo(cp); err != nil {
		t.Fatal(err)
	}
	if err := cp.Close(); err != nil {
		t.Fatal(err)
	}

	cp2, err := NewPebbleCheckpoint(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cp2.Close() })
	r2 := New(nil)
	if n, err := r2.Restore(cp2); err != nil || n != 1 {
		t.Fatalf("restore after reopen n=%d err=%v", n, err)
	}
	if r2.Snapshot().Seq("z") != 9 {
		t.Fatalf("seq = %d", r2.Snapshot().Seq("z"))
	}
}
