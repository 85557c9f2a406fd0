// Package light computes per-voxel light for one chunk by BFS flood fill.
//
// Light is seeded from columns open to the sky, from light-source blocks and
// from the boundary columns of the four horizontal neighbours, then decays by
// one per hop through transparent blocks. Bleed from neighbours is sampled
// once when seeding; the BFS itself never leaves the chunk.
package light

import (
	"errors"
	"fmt"

	"voxelmesh.ai/internal/sim/chunk"
)

const (
	SkyLight    = chunk.MaxLight - 1
	SourceLight = chunk.MaxLight
)

var ErrShape = errors.New("light: buffer shape mismatch")

// Propagator owns the BFS queue so a worker can reuse it across chunks.
// A Propagator must not be shared between goroutines.
type Propagator struct {
	q ring

	onWrite func(i int, old, cur uint8)
}

// Calculate runs one propagation with a fresh queue.
func Calculate(lightMap []uint8, blocks []uint16, neighbors [chunk.NumSides][]uint16, transparent, sources *BlockSet) error {
	var p Propagator
	return p.Run(lightMap, blocks, neighbors, transparent, sources)
}

// Run raises lightMap in place. neighbors carries the light of the -X, +X, -Z
// and +Z chunks; a nil entry means no bleed from that side.
func (p *Propagator) Run(lightMap []uint8, blocks []uint16, neighbors [chunk.NumSides][]uint16, transparent, sources *BlockSet) error {
	if err := checkShape(lightMap, blocks, neighbors); err != nil {
		return err
	}
	p.q.reset()
	p.seed(blocks, &neighbors, transparent, sources)
	p.drain(lightMap, blocks, transparent)
	return nil
}

func checkShape(lightMap []uint8, blocks []uint16, neighbors [chunk.NumSides][]uint16) error {
	if len(blocks) != chunk.Volume {
		return fmt.Errorf("%w: blocks len %d want %d", ErrShape, len(blocks), chunk.Volume)
	}
	if len(lightMap) != chunk.Volume {
		return fmt.Errorf("%w: light map len %d want %d", ErrShape, len(lightMap), chunk.Volume)
	}
	for _, s := range chunk.Sides {
		if n := neighbors[s]; n != nil && len(n) != chunk.Volume {
			return fmt.Errorf("%w: %s neighbour len %d want %d", ErrShape, s, len(n), chunk.Volume)
		}
	}
	return nil
}

func (p *Propagator) seed(blocks []uint16, neighbors *[chunk.NumSides][]uint16, transparent, sources *BlockSet) {
	for x := 0; x < chunk.Width; x++ {
		for z := 0; z < chunk.Width; z++ {
			isSky := true
			for y := chunk.Height - 1; y >= 0; y-- {
				b := uint8(blocks[chunk.Index(x, y, z)] & 0xff)
				passes := transparent.Has(b)

				if isSky && passes {
					p.push(x, y, z, SkyLight)
				}
				if sources.Has(b) {
					p.push(x, y, z, SourceLight)
				}
				if !passes {
					// Topmost solid block of an open column is fully lit.
					if isSky {
						p.push(x, y, z, SourceLight)
					}
					isSky = false
					continue
				}
				if !isSky {
					p.seedEdges(x, y, z, neighbors)
				}
			}
		}
	}
}

// seedEdges enqueues light bleeding in from one neighbour. Corner columns
// sample only their X neighbour; the Z side reaches them through the BFS.
func (p *Propagator) seedEdges(x, y, z int, neighbors *[chunk.NumSides][]uint16) {
	switch {
	case x == 0:
		p.bleed(neighbors[chunk.SideNegX], chunk.SideNegX, z, x, y, z)
	case x == chunk.Width-1:
		p.bleed(neighbors[chunk.SidePosX], chunk.SidePosX, z, x, y, z)
	case z == 0:
		p.bleed(neighbors[chunk.SideNegZ], chunk.SideNegZ, x, x, y, z)
	case z == chunk.Width-1:
		p.bleed(neighbors[chunk.SidePosZ], chunk.SidePosZ, x, x, y, z)
	}
}

func (p *Propagator) bleed(n []uint16, s chunk.Side, a, x, y, z int) {
	if n == nil {
		return
	}
	l := n[chunk.MirrorIndex(s, a, y)]
	if l > chunk.MaxLight {
		l = chunk.MaxLight
	}
	if l > 0 {
		p.push(x, y, z, int(l)-1)
	}
}

func (p *Propagator) push(x, y, z, light int) {
	p.q.push(entry{x: int16(x), y: int16(y), z: int16(z), light: int8(light)})
}

func (p *Propagator) drain(lightMap []uint8, blocks []uint16, transparent *BlockSet) {
	for p.q.len() > 0 {
		e, _ := p.q.pop()
		if e.light <= 0 {
			continue
		}
		x, y, z := int(e.x), int(e.y), int(e.z)
		if !chunk.InBounds(x, y, z) {
			continue
		}
		i := chunk.Index(x, y, z)
		if !transparent.Has(uint8(blocks[i] & 0xff)) {
			continue
		}
		l := uint8(e.light)
		if lightMap[i] >= l {
			continue
		}
		if p.onWrite != nil {
			p.onWrite(i, lightMap[i], l)
		}
		lightMap[i] = l

		next := int(e.light) - 1
		if next <= 0 {
			continue
		}
		for _, f := range chunk.Faces {
			dx, dy, dz := f.Offset()
			p.push(x+dx, y+dy, z+dz, next)
		}
	}
}
