package store

import (
	"encoding/hex"

	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/terrain/gen"
)

func (s *ChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *ChunkStore) Has(k ChunkKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[k]
	return ok
}

// Keys returns the loaded chunk keys sorted by (CX, CZ).
func (s *ChunkStore) Keys() []ChunkKey {
	s.mu.RLock()
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	SortKeys(keys)
	return keys
}

// Put stores ch under ch.Key, replacing any loaded chunk. The store takes
// ownership of ch.
func (s *ChunkStore) Put(ch *Chunk) {
	_ = ch.Digest()
	s.mu.Lock()
	s.chunks[ch.Key] = ch
	s.mu.Unlock()
}

func (s *ChunkStore) Delete(k ChunkKey) {
	s.mu.Lock()
	delete(s.chunks, k)
	s.mu.Unlock()
}

// Blocks returns a copy of a chunk's cells.
func (s *ChunkStore) Blocks(k ChunkKey) ([]uint16, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[k]
	if !ok {
		return nil, false
	}
	return append([]uint16(nil), ch.Blocks...), true
}

// Light returns a copy of a chunk's light map. ok is false for unloaded or
// unlit chunks.
func (s *ChunkStore) Light(k ChunkKey) ([]uint8, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[k]
	if !ok || ch.Light == nil {
		return nil, false
	}
	return append([]uint8(nil), ch.Light...), true
}

// MeshOf returns the last mesh. Meshes are replaced, never mutated, so the
// result may be shared.
func (s *ChunkStore) MeshOf(k ChunkKey) (*Mesh, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[k]
	if !ok || ch.Mesh == nil {
		return nil, false
	}
	return ch.Mesh, true
}

func (s *ChunkStore) Digest(k ChunkKey) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chunks[k]
	if !ok {
		return "", false
	}
	d := ch.Digest()
	return hex.EncodeToString(d[:]), true
}

// NeighborBlocks copies the cells of the four adjacent chunks in -X,+X,-Z,+Z
// order. Unloaded neighbours are nil.
func (s *ChunkStore) NeighborBlocks(k ChunkKey) [chunk.NumSides][]uint16 {
	var out [chunk.NumSides][]uint16
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, side := range chunk.Sides {
		if ch, ok := s.chunks[k.Neighbor(side)]; ok {
			out[side] = append([]uint16(nil), ch.Blocks...)
		}
	}
	return out
}

// NeighborLight copies the light maps of the four adjacent chunks. Unloaded
// or unlit neighbours are nil.
func (s *ChunkStore) NeighborLight(k ChunkKey) [chunk.NumSides][]uint8 {
	var out [chunk.NumSides][]uint8
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, side := range chunk.Sides {
		if ch, ok := s.chunks[k.Neighbor(side)]; ok && ch.Light != nil {
			out[side] = append([]uint8(nil), ch.Light...)
		}
	}
	return out
}

// SetLight replaces a chunk's light map and drops its mesh. It reports false
// if the chunk is not loaded or the map has the wrong size.
func (s *ChunkStore) SetLight(k ChunkKey, lightMap []uint8) bool {
	if len(lightMap) != chunk.Volume {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chunks[k]
	if !ok {
		return false
	}
	ch.Light = lightMap
	ch.Mesh = nil
	return true
}

func (s *ChunkStore) SetMesh(k ChunkKey, m *Mesh) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chunks[k]
	if !ok {
		return false
	}
	ch.Mesh = m
	return true
}

// GetBlock reads a world-space cell, loading its chunk when needed.
func (s *ChunkStore) GetBlock(x, y, z int) uint16 {
	if y < 0 || y >= chunk.Height {
		return 0
	}
	k, lx, lz := split(x, z)
	s.GetOrGen(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[k]
	if !ok {
		return 0
	}
	return ch.Get(lx, y, lz)
}

// SetBlock writes a world-space cell and returns the chunks whose light or
// mesh it invalidates: the owning chunk plus any neighbour sharing the edge.
func (s *ChunkStore) SetBlock(x, y, z int, b uint16) []ChunkKey {
	if y < 0 || y >= chunk.Height {
		return nil
	}
	k, lx, lz := split(x, z)
	s.GetOrGen(k)
	s.mu.Lock()
	ch, ok := s.chunks[k]
	changed := ok && ch.Set(lx, y, lz, b)
	s.mu.Unlock()
	if !changed {
		return nil
	}
	out := []ChunkKey{k}
	if lx == 0 {
		out = append(out, k.Neighbor(chunk.SideNegX))
	}
	if lx == chunk.Width-1 {
		out = append(out, k.Neighbor(chunk.SidePosX))
	}
	if lz == 0 {
		out = append(out, k.Neighbor(chunk.SideNegZ))
	}
	if lz == chunk.Width-1 {
		out = append(out, k.Neighbor(chunk.SidePosZ))
	}
	return out
}

func split(x, z int) (k ChunkKey, lx, lz int) {
	k = ChunkKey{CX: gen.FloorDiv(x, chunk.Width), CZ: gen.FloorDiv(z, chunk.Width)}
	return k, gen.Mod(x, chunk.Width), gen.Mod(z, chunk.Width)
}

// KeyOf returns the chunk holding world column (x, z).
func KeyOf(x, z int) ChunkKey {
	k, _, _ := split(x, z)
	return k
}
