package world

import (
	"context"
	"path/filepath"
	"testing"

	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/sim/terrain/gen"
	"voxelmesh.ai/internal/sim/terrain/store"
	"voxelmesh.ai/internal/sim/tuning"
)

func TestSnapshotResumeMatchesLiveWorld(t *testing.T) {
	cats := loadCatalogs(t)
	tune := tuning.Defaults()
	st := newGenStore(t, cats, 77)
	b := New(st, &cats.Blocks, Config{Workers: 2, RelightRounds: 1})
	defer b.Close()
	if _, err := b.BuildRegion(context.Background(), region(1)); err != nil {
		t.Fatalf("BuildRegion: %v", err)
	}

	meta := SnapshotMeta{
		WorldID:       "w1",
		Seq:           3,
		Seed:          77,
		Shape:         tune.WorldGen,
		CatalogDigest: cats.Blocks.PaletteDigest,
	}
	path := filepath.Join(t.TempDir(), snapshot.FileName(meta.Seq))
	if err := snapshot.WriteSnapshot(path, ExportSnapshot(st, meta)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if err := CheckSnapshot(snap, "w1", cats.Blocks.PaletteDigest); err != nil {
		t.Fatalf("CheckSnapshot: %v", err)
	}
	if snap.Header.ChunkCount != st.Len() {
		t.Fatalf("chunk count=%d want %d", snap.Header.ChunkCount, st.Len())
	}

	blocks, err := gen.BlocksFrom(&cats.Blocks)
	if err != nil {
		t.Fatalf("BlocksFrom: %v", err)
	}
	shape := ResumeShape(snap, tuning.WorldGen{DirtDepth: tune.WorldGen.DirtDepth, GlassPermille: tune.WorldGen.GlassPermille, TorchPermille: tune.WorldGen.TorchPermille})
	if shape != tune.WorldGen {
		t.Fatalf("resumed shape %+v differs from %+v", shape, tune.WorldGen)
	}
	g := gen.New(gen.Params{Seed: snap.Seed, Shape: shape, Blocks: blocks})
	resumed, err := store.ImportChunks(g, snap.Chunks)
	if err != nil {
		t.Fatalf("ImportChunks: %v", err)
	}

	// A chunk outside the saved set regenerates identically.
	far := store.ChunkKey{CX: 5, CZ: 5}
	st.GetOrGen(far)
	resumed.GetOrGen(far)
	d1, _ := st.Digest(far)
	d2, _ := resumed.Digest(far)
	if d1 != d2 {
		t.Fatalf("regenerated chunk differs after resume")
	}
	for _, k := range region(1) {
		a, _ := st.Light(k)
		c, ok := resumed.Light(k)
		if !ok || len(a) != len(c) {
			t.Fatalf("%v: light not restored", k)
		}
		for i := range a {
			if a[i] != c[i] {
				t.Fatalf("%v: light differs at %d", k, i)
			}
		}
	}
}

func TestCheckSnapshotRejectsMismatch(t *testing.T) {
	ok := snapshot.SnapshotV1{Header: snapshot.Header{WorldID: "w1"}, Height: 256, CatalogDigest: "abc"}
	if err := CheckSnapshot(ok, "w1", "abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []snapshot.SnapshotV1{
		{Header: snapshot.Header{WorldID: "w2"}, Height: 256},
		{Height: 128},
		{Height: 256, CatalogDigest: "def"},
	}
	for i, s := range bad {
		if err := CheckSnapshot(s, "w1", "abc"); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
