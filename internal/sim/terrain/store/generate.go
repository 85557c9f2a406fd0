package store

import "voxelmesh.ai/internal/sim/chunk"

// GetOrGen makes sure chunk k is loaded, generating it when missing, and
// reports whether it was created by this call.
func (s *ChunkStore) GetOrGen(k ChunkKey) bool {
	if s.Has(k) {
		return false
	}
	ch := NewChunk(k)
	if s.Gen != nil {
		s.Gen.Fill(k.CX, k.CZ, ch.Blocks)
	}
	_ = ch.Digest()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[k]; ok {
		// lost a race with another generator; keep the first.
		return false
	}
	s.chunks[k] = ch
	return true
}

// EnsureRegion loads every key plus its four neighbours so that light and
// meshes near the region border see real terrain.
func (s *ChunkStore) EnsureRegion(keys []ChunkKey) (created int) {
	seen := make(map[ChunkKey]bool, len(keys)*2)
	visit := func(k ChunkKey) {
		if seen[k] {
			return
		}
		seen[k] = true
		if s.GetOrGen(k) {
			created++
		}
	}
	for _, k := range keys {
		visit(k)
		for _, side := range chunk.Sides {
			visit(k.Neighbor(side))
		}
	}
	return created
}
