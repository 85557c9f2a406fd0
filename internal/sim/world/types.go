package world

import (
	"errors"
	"time"

	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/mesh"
	"voxelmesh.ai/internal/sim/terrain/store"
)

var (
	ErrClosed    = errors.New("world: builder closed")
	ErrNotLoaded = errors.New("world: chunk not loaded")
)

// BuildRecord describes one finished mesh build.
type BuildRecord struct {
	WorldID     string         `json:"world_id"`
	Key         store.ChunkKey `json:"key"`
	Digest      string         `json:"digest"`
	Stats       mesh.Stats     `json:"stats"`
	OpaqueWords int            `json:"opaque_words"`
	WaterWords  int            `json:"water_words"`
	LightRounds int            `json:"light_rounds"`
	BuildMicros int64          `json:"build_us"`
	Time        time.Time      `json:"time"`
}

// BuildLogger receives a record per mesh build. Implementations must be safe
// for concurrent use; workers call it directly.
type BuildLogger interface {
	WriteBuild(rec BuildRecord) error
}

type LightResult struct {
	Key store.ChunkKey
	// Edges marks the sides whose boundary light changed.
	Edges [chunk.NumSides]bool
}

type MeshResult struct {
	Key         store.ChunkKey
	Stats       mesh.Stats
	OpaqueWords int
	WaterWords  int
}

// Region summarises a BuildRegion call.
type Region struct {
	Keys        []store.ChunkKey `json:"keys"`
	Generated   int              `json:"generated"`
	LightRounds int              `json:"light_rounds"`
	LightBuilds int              `json:"light_builds"`
	Meshes      []MeshResult     `json:"-"`
	Stats       mesh.Stats       `json:"stats"`
	Elapsed     time.Duration    `json:"elapsed"`
}

type Metrics struct {
	Workers      int    `json:"workers"`
	QueueDepth   int    `json:"queue_depth"`
	LightBuilds  uint64 `json:"light_builds"`
	MeshBuilds   uint64 `json:"mesh_builds"`
	DroppedFaces uint64 `json:"dropped_faces"`
	Failures     uint64 `json:"failures"`
}
