package store

import (
	"encoding/hex"
	"fmt"

	snapv1 "voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/terrain/gen"
)

// ExportChunks converts loaded chunks into snapshot chunks, sorted by key.
// Meshes are derived data and are not exported.
func (s *ChunkStore) ExportChunks() []snapv1.ChunkV1 {
	keys := s.Keys()
	out := make([]snapv1.ChunkV1, 0, len(keys))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		ch := s.chunks[k]
		if ch == nil {
			continue
		}
		d := ch.Digest()
		c := snapv1.ChunkV1{
			CX:     k.CX,
			CZ:     k.CZ,
			Height: chunk.Height,
			Blocks: append([]uint16(nil), ch.Blocks...),
			Digest: hex.EncodeToString(d[:]),
		}
		if ch.Light != nil {
			c.Light = append([]uint8(nil), ch.Light...)
		}
		out = append(out, c)
	}
	return out
}

// ImportChunks rebuilds a chunk store from snapshot chunks, verifying each
// chunk's shape and digest.
func ImportChunks(g *gen.Generator, chunks []snapv1.ChunkV1) (*ChunkStore, error) {
	s := NewChunkStore(g)
	for _, c := range chunks {
		if c.Height != chunk.Height {
			return nil, fmt.Errorf("snapshot chunk height mismatch: got %d want %d", c.Height, chunk.Height)
		}
		if len(c.Blocks) != chunk.Volume {
			return nil, fmt.Errorf("snapshot chunk blocks length mismatch: got %d want %d", len(c.Blocks), chunk.Volume)
		}
		if c.Light != nil && len(c.Light) != chunk.Volume {
			return nil, fmt.Errorf("snapshot chunk light length mismatch: got %d want %d", len(c.Light), chunk.Volume)
		}
		k := ChunkKey{CX: c.CX, CZ: c.CZ}
		if _, dup := s.chunks[k]; dup {
			return nil, fmt.Errorf("snapshot chunk (%d,%d) appears twice", k.CX, k.CZ)
		}
		ch := NewChunk(k)
		copy(ch.Blocks, c.Blocks)
		if c.Light != nil {
			ch.Light = append([]uint8(nil), c.Light...)
		}
		d := ch.Digest()
		if c.Digest != "" && c.Digest != hex.EncodeToString(d[:]) {
			return nil, fmt.Errorf("snapshot chunk (%d,%d) digest mismatch", k.CX, k.CZ)
		}
		s.chunks[k] = ch
	}
	return s, nil
}
