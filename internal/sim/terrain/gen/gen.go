// Package gen produces deterministic chunk terrain from a world seed.
package gen

import (
	"fmt"

	"github.com/ojrac/opensimplex-go"

	"voxelmesh.ai/internal/sim/catalogs"
	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/tuning"
)

type Biome uint8

const (
	Plains Biome = iota
	Forest
	Desert
	Tundra

	numBiomes = 4
)

func (b Biome) String() string {
	switch b {
	case Plains:
		return "PLAINS"
	case Forest:
		return "FOREST"
	case Desert:
		return "DESERT"
	case Tundra:
		return "TUNDRA"
	default:
		return fmt.Sprintf("BIOME_%d", uint8(b))
	}
}

func BiomeFrom(noise uint64) Biome {
	return Biome(noise % numBiomes)
}

func BiomeAt(seed int64, x, z, regionSize int) Biome {
	if regionSize <= 0 {
		regionSize = 1
	}
	return BiomeFrom(Hash2(seed, FloorDiv(x, regionSize), FloorDiv(z, regionSize)))
}

// Blocks are the catalog codes the generator places.
type Blocks struct {
	Air, Stone, Dirt, Grass, Sand, Gravel uint8
	Water, Ice, Snow                      uint8
	Log, Leaves, Glass, Torch, CoalOre    uint8
}

func BlocksFrom(cat *catalogs.BlockCatalog) (Blocks, error) {
	var b Blocks
	fields := []struct {
		id  string
		dst *uint8
	}{
		{"AIR", &b.Air}, {"STONE", &b.Stone}, {"DIRT", &b.Dirt}, {"GRASS", &b.Grass},
		{"SAND", &b.Sand}, {"GRAVEL", &b.Gravel}, {"WATER", &b.Water}, {"ICE", &b.Ice},
		{"SNOW", &b.Snow}, {"LOG", &b.Log}, {"LEAVES", &b.Leaves}, {"GLASS", &b.Glass},
		{"TORCH", &b.Torch}, {"COAL_ORE", &b.CoalOre},
	}
	for _, f := range fields {
		code, ok := cat.Code(f.id)
		if !ok {
			return b, fmt.Errorf("worldgen: catalog has no %s", f.id)
		}
		*f.dst = code
	}
	return b, nil
}

type Params struct {
	Seed   int64
	Shape  tuning.WorldGen
	Blocks Blocks
}

// Generator is safe for concurrent use; it holds only read-only noise tables.
type Generator struct {
	p      Params
	height opensimplex.Noise
	detail opensimplex.Noise
}

func New(p Params) *Generator {
	if p.Shape.NoiseScale <= 0 {
		p.Shape.NoiseScale = tuning.Defaults().WorldGen.NoiseScale
	}
	if p.Shape.BiomeRegionSize <= 0 {
		p.Shape.BiomeRegionSize = 1
	}
	return &Generator{
		p:      p,
		height: opensimplex.New(p.Seed),
		detail: opensimplex.New(p.Seed + 1),
	}
}

func (g *Generator) Seed() int64 { return g.p.Seed }

// HeightAt is the surface y of a world column, clamped to [1, 254].
func (g *Generator) HeightAt(wx, wz int) int {
	s := g.p.Shape
	x, z := float64(wx)*s.NoiseScale, float64(wz)*s.NoiseScale
	n := g.height.Eval2(x, z) + 0.35*g.detail.Eval2(x*4, z*4)
	h := s.BaseHeight + int(n*float64(s.HeightAmplitude))
	if h < 1 {
		h = 1
	}
	if h > chunk.Height-2 {
		h = chunk.Height - 2
	}
	return h
}

// Fill writes the cells of chunk (cx, cz) into blocks, which must hold a
// full chunk.
func (g *Generator) Fill(cx, cz int, blocks []uint16) {
	for i := range blocks {
		blocks[i] = 0
	}
	for z := 0; z < chunk.Width; z++ {
		for x := 0; x < chunk.Width; x++ {
			g.column(blocks, x, z, cx*chunk.Width+x, cz*chunk.Width+z)
		}
	}
}

func (g *Generator) column(blocks []uint16, x, z, wx, wz int) {
	s, b, seed := g.p.Shape, g.p.Blocks, g.p.Seed
	biome := BiomeAt(seed, wx, wz, s.BiomeRegionSize)
	h := g.HeightAt(wx, wz)
	wet := h < s.SeaLevel

	set := func(y int, block uint8) {
		blocks[chunk.Index(x, y, z)] = uint16(chunk.MakeCell(block, uint8(biome)))
	}

	for y := 0; y <= h; y++ {
		var block uint8
		switch {
		case y == h:
			block = g.surface(biome, wet)
		case y > h-s.DirtDepth:
			block = b.Dirt
			if biome == Desert || wet {
				block = b.Sand
			}
		case y > 0 && Roll(Hash3(seed+7, wx, y, wz), s.CavePermille):
			block = b.Air
		case y < h-4 && Roll(Hash3(seed+104, wx, y, wz), 8):
			block = b.CoalOre
		case y < h-4 && Roll(Hash3(seed+105, wx, y, wz), 12):
			block = b.Gravel
		default:
			block = b.Stone
		}
		if block != b.Air {
			set(y, block)
		}
	}

	if wet {
		for y := h + 1; y <= s.SeaLevel; y++ {
			set(y, b.Water)
		}
		if biome == Tundra {
			set(s.SeaLevel, b.Ice)
		}
		return
	}

	top := h + 1
	if top >= chunk.Height-1 {
		return
	}
	switch {
	case biome == Forest && x >= 1 && x <= 14 && z >= 1 && z <= 14 && Roll(Hash2(seed+201, wx, wz), 25):
		trunk := 3 + int(Hash2(seed+202, wx, wz)%3)
		for y := top; y < top+trunk && y < chunk.Height-1; y++ {
			set(y, b.Log)
		}
		if y := top + trunk; y < chunk.Height-1 {
			set(y, b.Leaves)
		}
	case Roll(Hash2(seed+501, wx, wz), s.GlassPermille):
		set(top, b.Glass)
	case Roll(Hash2(seed+502, wx, wz), s.TorchPermille):
		set(top, b.Torch)
	}
}

func (g *Generator) surface(biome Biome, wet bool) uint8 {
	b := g.p.Blocks
	if wet {
		return b.Sand
	}
	switch biome {
	case Desert:
		return b.Sand
	case Tundra:
		return b.Snow
	default:
		return b.Grass
	}
}
