package store

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"sync"

	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/mesh"
	"voxelmesh.ai/internal/sim/terrain/gen"
)

type ChunkKey struct {
	CX int `json:"cx"`
	CZ int `json:"cz"`
}

// Neighbor is the key of the chunk adjacent on side s.
func (k ChunkKey) Neighbor(s chunk.Side) ChunkKey {
	dx, dz := s.Offset()
	return ChunkKey{CX: k.CX + dx, CZ: k.CZ + dz}
}

func SortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
}

// Mesh is the last build of a chunk: the written prefixes of both buffers.
type Mesh struct {
	Opaque []uint32
	Water  []uint32
	Stats  mesh.Stats
}

type Chunk struct {
	Key    ChunkKey
	Blocks []uint16 // len = chunk.Volume
	Light  []uint8  // len = chunk.Volume, nil until lit
	Mesh   *Mesh

	dirty bool
	hash  [32]byte
}

func NewChunk(k ChunkKey) *Chunk {
	return &Chunk{Key: k, Blocks: make([]uint16, chunk.Volume), dirty: true}
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[chunk.Index(x, y, z)]
}

// Set reports whether the cell changed. A change drops light and mesh.
func (c *Chunk) Set(x, y, z int, b uint16) bool {
	i := chunk.Index(x, y, z)
	if c.Blocks[i] == b {
		return false
	}
	c.Blocks[i] = b
	c.dirty = true
	c.Light = nil
	c.Mesh = nil
	return true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// ChunkStore holds the loaded chunks. Readers get copies of chunk buffers so
// that builds running on other goroutines never share a slice with the map.
type ChunkStore struct {
	Gen *gen.Generator

	mu     sync.RWMutex
	chunks map[ChunkKey]*Chunk
}

// NewChunkStore creates an empty store. With a nil generator missing chunks
// load as air.
func NewChunkStore(g *gen.Generator) *ChunkStore {
	return &ChunkStore{
		Gen:    g,
		chunks: map[ChunkKey]*Chunk{},
	}
}
