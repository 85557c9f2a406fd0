package world

import (
	"fmt"

	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/terrain/store"
	"voxelmesh.ai/internal/sim/tuning"
)

// SnapshotMeta is the world-level state saved next to the chunks.
type SnapshotMeta struct {
	WorldID         string
	Seq             uint64
	Seed            int64
	Shape           tuning.WorldGen
	CatalogDigest   string
	ProtocolVersion string
}

// ExportSnapshot captures every loaded chunk of st.
func ExportSnapshot(st *store.ChunkStore, m SnapshotMeta) snapshot.SnapshotV1 {
	return snapshot.SnapshotV1{
		Header:          snapshot.Header{Version: snapshot.Version, WorldID: m.WorldID, Seq: m.Seq},
		Seed:            m.Seed,
		Height:          chunk.Height,
		CatalogDigest:   m.CatalogDigest,
		ProtocolVersion: m.ProtocolVersion,
		BaseHeight:      m.Shape.BaseHeight,
		HeightAmplitude: m.Shape.HeightAmplitude,
		NoiseScale:      m.Shape.NoiseScale,
		SeaLevel:        m.Shape.SeaLevel,
		BiomeRegionSize: m.Shape.BiomeRegionSize,
		Chunks:          st.ExportChunks(),
	}
}

// ResumeShape overlays the terrain shape stored in snap on base, so chunks
// generated after a resume match the ones already saved.
func ResumeShape(snap snapshot.SnapshotV1, base tuning.WorldGen) tuning.WorldGen {
	base.BaseHeight = snap.BaseHeight
	base.HeightAmplitude = snap.HeightAmplitude
	base.NoiseScale = snap.NoiseScale
	base.SeaLevel = snap.SeaLevel
	base.BiomeRegionSize = snap.BiomeRegionSize
	return base
}

// CheckSnapshot rejects snapshots taken for another world or block palette.
func CheckSnapshot(snap snapshot.SnapshotV1, worldID, catalogDigest string) error {
	if snap.Header.WorldID != "" && snap.Header.WorldID != worldID {
		return fmt.Errorf("snapshot world id mismatch: want=%s snap=%s", worldID, snap.Header.WorldID)
	}
	if snap.Height != chunk.Height {
		return fmt.Errorf("snapshot height %d, want %d", snap.Height, chunk.Height)
	}
	if snap.CatalogDigest != "" && snap.CatalogDigest != catalogDigest {
		return fmt.Errorf("snapshot block palette %s does not match catalogs %s", snap.CatalogDigest, catalogDigest)
	}
	return nil
}
