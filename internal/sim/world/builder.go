// Package world runs lighting and meshing for chunks held in a store on a
// fixed pool of worker goroutines.
package world

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"voxelmesh.ai/internal/sim/catalogs"
	"voxelmesh.ai/internal/sim/light"
	"voxelmesh.ai/internal/sim/mesh"
	"voxelmesh.ai/internal/sim/terrain/store"
)

type Config struct {
	WorldID       string
	Workers       int
	RelightRounds int
	QueueSize     int
	MaxRegion     int // 0 = unlimited

	Logger   *log.Logger
	BuildLog BuildLogger
}

type Builder struct {
	cfg   Config
	store *store.ChunkStore
	log   *log.Logger

	transparent *light.BlockSet
	sources     *light.BlockSet
	tables      mesh.Tables

	jobs      chan job
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	lightBuilds atomic.Uint64
	meshBuilds  atomic.Uint64
	dropped     atomic.Uint64
	failures    atomic.Uint64
}

// New starts the worker pool. Callers must Close the builder to stop it.
func New(st *store.ChunkStore, blocks *catalogs.BlockCatalog, cfg Config) *Builder {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RelightRounds < 0 {
		cfg.RelightRounds = 0
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	transparent, sources := blocks.LightSets()
	b := &Builder{
		cfg:         cfg,
		store:       st,
		log:         logger,
		transparent: transparent,
		sources:     sources,
		tables:      blocks.MeshTables(),
		jobs:        make(chan job, cfg.QueueSize),
		quit:        make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

// Close stops the workers. Calls in flight return ErrClosed.
func (b *Builder) Close() {
	b.closeOnce.Do(func() {
		close(b.quit)
		b.wg.Wait()
	})
}

func (b *Builder) Store() *store.ChunkStore { return b.store }

func (b *Builder) Metrics() Metrics {
	return Metrics{
		Workers:      b.cfg.Workers,
		QueueDepth:   len(b.jobs),
		LightBuilds:  b.lightBuilds.Load(),
		MeshBuilds:   b.meshBuilds.Load(),
		DroppedFaces: b.dropped.Load(),
		Failures:     b.failures.Load(),
	}
}

// Relight recomputes the light of every key from its blocks and the current
// light of its neighbours. All maps are computed against the same neighbour
// state and stored together at the end, so the result does not depend on
// worker scheduling.
func (b *Builder) Relight(ctx context.Context, keys []store.ChunkKey) ([]LightResult, error) {
	res, err := b.dispatch(ctx, jobLight, keys, 0)
	out := make([]LightResult, 0, len(res))
	var firstErr error
	for _, r := range res {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("light (%d,%d): %w", r.key.CX, r.key.CZ, r.err)
			}
			continue
		}
		b.store.SetLight(r.key, r.light)
		out = append(out, LightResult{Key: r.key, Edges: r.edges})
	}
	if err != nil {
		return out, err
	}
	return out, firstErr
}

// Remesh rebuilds the mesh of every key from stored blocks and light.
func (b *Builder) Remesh(ctx context.Context, keys []store.ChunkKey) ([]MeshResult, error) {
	return b.remesh(ctx, keys, 0)
}

func (b *Builder) remesh(ctx context.Context, keys []store.ChunkKey, rounds int) ([]MeshResult, error) {
	res, err := b.dispatch(ctx, jobMesh, keys, rounds)
	out := make([]MeshResult, 0, len(res))
	var firstErr error
	for _, r := range res {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("mesh (%d,%d): %w", r.key.CX, r.key.CZ, r.err)
			}
			continue
		}
		out = append(out, MeshResult{
			Key:         r.key,
			Stats:       r.mesh.Stats,
			OpaqueWords: len(r.mesh.Opaque),
			WaterWords:  len(r.mesh.Water),
		})
	}
	if err != nil {
		return out, err
	}
	return out, firstErr
}

var ErrRegionTooLarge = errors.New("world: region too large")

// BuildRegion loads (or generates) the keys and their neighbours, lights the
// keys, relights those whose neighbours' boundary light changed for up to
// RelightRounds extra rounds, then meshes every key.
func (b *Builder) BuildRegion(ctx context.Context, keys []store.ChunkKey) (Region, error) {
	keys = uniqueKeys(keys)
	if b.cfg.MaxRegion > 0 && len(keys) > b.cfg.MaxRegion {
		return Region{}, fmt.Errorf("%w: %d chunks, max %d", ErrRegionTooLarge, len(keys), b.cfg.MaxRegion)
	}
	start := time.Now()
	reg := Region{Keys: keys}
	reg.Generated = b.store.EnsureRegion(keys)

	inRegion := make(map[store.ChunkKey]bool, len(keys))
	for _, k := range keys {
		inRegion[k] = true
	}
	pending := keys
	for round := 0; len(pending) > 0 && round <= b.cfg.RelightRounds; round++ {
		res, err := b.Relight(ctx, pending)
		reg.LightRounds++
		reg.LightBuilds += len(res)
		if err != nil {
			return reg, err
		}
		next := map[store.ChunkKey]bool{}
		for _, r := range res {
			for s, changed := range r.Edges {
				if nk := r.Key.Neighbor(sides[s]); changed && inRegion[nk] {
					next[nk] = true
				}
			}
		}
		pending = pending[:0:0]
		for k := range next {
			pending = append(pending, k)
		}
		store.SortKeys(pending)
	}

	meshes, err := b.remesh(ctx, keys, reg.LightRounds)
	reg.Meshes = meshes
	for _, m := range meshes {
		reg.Stats.OpaqueFaces += m.Stats.OpaqueFaces
		reg.Stats.IceFaces += m.Stats.IceFaces
		reg.Stats.WaterFaces += m.Stats.WaterFaces
		reg.Stats.DroppedFaces += m.Stats.DroppedFaces
	}
	reg.Elapsed = time.Since(start)
	if err != nil {
		return reg, err
	}
	b.log.Printf("built region chunks=%d generated=%d rounds=%d lit=%d faces=%d dropped=%d in %s",
		len(keys), reg.Generated, reg.LightRounds, reg.LightBuilds,
		reg.Stats.OpaqueFaces+reg.Stats.IceFaces, reg.Stats.DroppedFaces, reg.Elapsed)
	return reg, nil
}

func uniqueKeys(keys []store.ChunkKey) []store.ChunkKey {
	seen := make(map[store.ChunkKey]bool, len(keys))
	out := make([]store.ChunkKey, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	store.SortKeys(out)
	return out
}
