package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/sim/catalogs"
	"voxelmesh.ai/internal/sim/mesh"
	"voxelmesh.ai/internal/sim/terrain/store"
	"voxelmesh.ai/internal/sim/tuning"
	"voxelmesh.ai/internal/sim/world"
)

func TestSQLiteIndex_BuildsAndCatalogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		rec := world.BuildRecord{
			WorldID:     "w1",
			Key:         store.ChunkKey{CX: 4, CZ: -7},
			Digest:      "d",
			Stats:       mesh.Stats{OpaqueFaces: 10 * i, WaterFaces: i},
			LightRounds: 2,
			Time:        at.Add(time.Duration(i) * time.Second),
		}
		if err := idx.WriteBuild(rec); err != nil {
			t.Fatalf("WriteBuild: %v", err)
		}
	}
	_ = idx.WriteBuild(world.BuildRecord{WorldID: "w1", Key: store.ChunkKey{CX: 5}, Time: at})
	idx.RecordSnapshot("/tmp/1.snap.zst", snapshot.SnapshotV1{Header: snapshot.Header{Seq: 1}, Seed: 9, Height: 256})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if st := idx.Stats(); st.WrittenTotal != 5 || st.DropTotal != 0 || st.WriteErrorTotal != 0 {
		t.Fatalf("stats=%+v", st)
	}
	// Writes after close are ignored.
	if err := idx.WriteBuild(world.BuildRecord{}); err != nil {
		t.Fatalf("WriteBuild after close: %v", err)
	}

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	n, err := idx.CountBuilds(ctx)
	if err != nil || n != 4 {
		t.Fatalf("CountBuilds=%d err=%v", n, err)
	}
	row, ok, err := idx.LatestBuild(ctx, store.ChunkKey{CX: 4, CZ: -7})
	if err != nil || !ok {
		t.Fatalf("LatestBuild ok=%v err=%v", ok, err)
	}
	if row.OpaqueFaces != 30 || row.WaterFaces != 3 || row.LightRounds != 2 || row.WorldID != "w1" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if _, ok, _ := idx.LatestBuild(ctx, store.ChunkKey{CX: 99}); ok {
		t.Fatalf("expected no build for an unknown chunk")
	}
	d, ok, err := idx.CatalogDigest(ctx, "blocks_palette")
	if err != nil || !ok || d != cats.Blocks.PaletteDigest {
		t.Fatalf("palette digest=%q ok=%v err=%v", d, ok, err)
	}
	if _, ok, _ := idx.CatalogDigest(ctx, "tuning"); !ok {
		t.Fatalf("tuning row missing")
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqBuild}

	_ = s.WriteBuild(world.BuildRecord{})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTotal != 2 {
		t.Fatalf("DropTotal=%d want=2", st.DropTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 || st.Backend != "sqlite" {
		t.Fatalf("queue stats mismatch: %+v", st)
	}
}
