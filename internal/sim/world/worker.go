package world

import (
	"context"
	"sort"
	"time"

	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/light"
	"voxelmesh.ai/internal/sim/mesh"
	"voxelmesh.ai/internal/sim/terrain/store"
)

var sides = chunk.Sides

type jobKind uint8

const (
	jobLight jobKind = iota
	jobMesh
)

type job struct {
	ctx    context.Context
	kind   jobKind
	key    store.ChunkKey
	rounds int
	reply  chan<- jobResult
}

type jobResult struct {
	key   store.ChunkKey
	err   error
	light []uint8
	edges [chunk.NumSides]bool
	mesh  *store.Mesh
}

// scratch is owned by one worker goroutine.
type scratch struct {
	prop   light.Propagator
	out    *mesh.Output
	wide   [chunk.NumSides][]uint16
	strips [chunk.NumSides][]uint8
}

func newScratch() *scratch {
	s := &scratch{out: mesh.NewOutput()}
	for i := range s.strips {
		s.strips[i] = make([]uint8, chunk.StripSize)
	}
	return s
}

func (b *Builder) worker() {
	defer b.wg.Done()
	s := newScratch()
	for {
		select {
		case <-b.quit:
			return
		case j := <-b.jobs:
			var r jobResult
			if err := j.ctx.Err(); err != nil {
				r = jobResult{key: j.key, err: err}
			} else if j.kind == jobLight {
				r = b.lightJob(s, j)
			} else {
				r = b.meshJob(s, j)
			}
			if r.err != nil && r.err != context.Canceled && r.err != context.DeadlineExceeded {
				b.failures.Add(1)
			}
			j.reply <- r
		}
	}
}

// dispatch queues one job per key and collects every reply, sorted by key.
func (b *Builder) dispatch(ctx context.Context, kind jobKind, keys []store.ChunkKey, rounds int) ([]jobResult, error) {
	reply := make(chan jobResult, len(keys))
	sent := 0
	var err error
send:
	for _, k := range keys {
		select {
		case b.jobs <- job{ctx: ctx, kind: kind, key: k, rounds: rounds, reply: reply}:
			sent++
		case <-ctx.Done():
			err = ctx.Err()
			break send
		case <-b.quit:
			return nil, ErrClosed
		}
	}
	out := make([]jobResult, 0, sent)
	for len(out) < sent {
		select {
		case r := <-reply:
			out = append(out, r)
		case <-b.quit:
			return nil, ErrClosed
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i].key, out[j].key
		if a.CX != c.CX {
			return a.CX < c.CX
		}
		return a.CZ < c.CZ
	})
	if err == nil {
		err = ctx.Err()
	}
	return out, err
}

func (b *Builder) lightJob(s *scratch, j job) jobResult {
	blocks, ok := b.store.Blocks(j.key)
	if !ok {
		return jobResult{key: j.key, err: ErrNotLoaded}
	}
	nl := b.store.NeighborLight(j.key)
	var nb [chunk.NumSides][]uint16
	for _, side := range sides {
		if nl[side] == nil {
			continue
		}
		s.wide[side] = widenInto(s.wide[side], nl[side])
		nb[side] = s.wide[side]
	}
	lm := make([]uint8, chunk.Volume)
	if err := s.prop.Run(lm, blocks, nb, b.transparent, b.sources); err != nil {
		return jobResult{key: j.key, err: err}
	}
	prev, _ := b.store.Light(j.key)
	b.lightBuilds.Add(1)
	return jobResult{key: j.key, light: lm, edges: light.EdgeChanges(prev, lm)}
}

func (b *Builder) meshJob(s *scratch, j job) jobResult {
	start := time.Now()
	blocks, ok := b.store.Blocks(j.key)
	if !ok {
		return jobResult{key: j.key, err: ErrNotLoaded}
	}
	lm, lit := b.store.Light(j.key)
	if !lit {
		lm = make([]uint8, chunk.Volume)
	}
	nl := b.store.NeighborLight(j.key)
	for _, side := range sides {
		light.FillStrip(s.strips[side], side, nl[side])
	}
	in := mesh.Input{
		Blocks:    blocks,
		Light:     lm,
		Neighbors: b.store.NeighborBlocks(j.key),
		Strips:    s.strips,
	}

	s.out.Reset()
	clear(s.out.Water)
	st, err := mesh.Build(in, b.tables, s.out)
	if err != nil {
		return jobResult{key: j.key, err: err}
	}
	m := &store.Mesh{
		Opaque: append([]uint32(nil), s.out.OpaqueWords()...),
		Water:  append([]uint32(nil), s.out.WaterWords()...),
		Stats:  st,
	}
	if !b.store.SetMesh(j.key, m) {
		return jobResult{key: j.key, err: ErrNotLoaded}
	}
	b.meshBuilds.Add(1)
	b.dropped.Add(uint64(st.DroppedFaces))

	if b.cfg.BuildLog != nil {
		digest, _ := b.store.Digest(j.key)
		rec := BuildRecord{
			WorldID:     b.cfg.WorldID,
			Key:         j.key,
			Digest:      digest,
			Stats:       st,
			OpaqueWords: len(m.Opaque),
			WaterWords:  len(m.Water),
			LightRounds: j.rounds,
			BuildMicros: time.Since(start).Microseconds(),
			Time:        start.UTC(),
		}
		if err := b.cfg.BuildLog.WriteBuild(rec); err != nil {
			b.log.Printf("build log (%d,%d): %v", j.key.CX, j.key.CZ, err)
		}
	}
	return jobResult{key: j.key, mesh: m}
}

func widenInto(dst []uint16, src []uint8) []uint16 {
	if cap(dst) < len(src) {
		dst = make([]uint16, len(src))
	}
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = uint16(v)
	}
	return dst
}
