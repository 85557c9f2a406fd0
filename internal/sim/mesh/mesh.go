// Package mesh turns one chunk's voxels into packed face vertices.
//
// Every visible cube face becomes one (light, geometry) word pair; faces are
// never merged. Opaque and transparent solids go to the opaque buffer, ice
// goes to the water buffer, and water itself is only counted.
package mesh

import (
	"errors"
	"fmt"

	"voxelmesh.ai/internal/sim/chunk"
)

const (
	OpaqueCapacity = chunk.Volume * 3
	WaterCapacity  = OpaqueCapacity / 6
)

// Cursor slots.
const (
	CursorOpaque = 0
	CursorWater  = 1
)

var ErrShape = errors.New("mesh: buffer shape mismatch")

// Tables are the per-block lookups supplied by the block catalog. Both are
// indexed by block type; lookups past the end read as 0 (opaque, texture 0).
type Tables struct {
	Textures    []byte // block*6 + face
	Transparent []byte // 1 = transparent
}

func (t *Tables) transparent(block uint8) bool {
	return int(block) < len(t.Transparent) && t.Transparent[block] == 1
}

func (t *Tables) texture(block uint8, f chunk.Face) uint8 {
	i := int(block)*chunk.NumFaces + int(f)
	if i >= len(t.Textures) {
		return 0
	}
	return t.Textures[i]
}

// Input is one chunk plus what it needs from its four neighbours. Neighbors
// hold blocks and Strips the light of the layer across each shared face, both
// in -X,+X,-Z,+Z order. Nil neighbours sample as air, nil strips as dark.
type Input struct {
	Blocks    []uint16
	Light     []uint8
	Neighbors [chunk.NumSides][]uint16
	Strips    [chunk.NumSides][]uint8
}

// Output receives the vertex words. Cursor holds the running write offsets
// and is advanced, not reset, by Build.
type Output struct {
	Opaque []uint32
	Water  []uint32
	Cursor [2]uint32
}

func NewOutput() *Output {
	return &Output{
		Opaque: make([]uint32, OpaqueCapacity),
		Water:  make([]uint32, WaterCapacity),
	}
}

func (o *Output) Reset() { o.Cursor = [2]uint32{} }

// OpaqueWords is the written prefix of the opaque buffer.
func (o *Output) OpaqueWords() []uint32 { return prefix(o.Opaque, o.Cursor[CursorOpaque]) }

// WaterWords is the prefix of the water buffer up to its cursor. Counted water
// faces advance the cursor without writing, so the prefix may hold stale words.
func (o *Output) WaterWords() []uint32 { return prefix(o.Water, o.Cursor[CursorWater]) }

func prefix(buf []uint32, n uint32) []uint32 {
	if uint64(n) > uint64(len(buf)) {
		return buf
	}
	return buf[:n]
}

type Stats struct {
	OpaqueFaces  int `json:"opaque_faces"`
	IceFaces     int `json:"ice_faces"`
	WaterFaces   int `json:"water_faces"`
	DroppedFaces int `json:"dropped_faces"`
}

func checkShape(in *Input, out *Output) error {
	switch {
	case out == nil:
		return fmt.Errorf("%w: nil output", ErrShape)
	case len(in.Blocks) != chunk.Volume:
		return fmt.Errorf("%w: blocks len %d want %d", ErrShape, len(in.Blocks), chunk.Volume)
	case len(in.Light) != chunk.Volume:
		return fmt.Errorf("%w: light map len %d want %d", ErrShape, len(in.Light), chunk.Volume)
	case len(out.Opaque) != OpaqueCapacity:
		return fmt.Errorf("%w: opaque buffer len %d want %d", ErrShape, len(out.Opaque), OpaqueCapacity)
	case len(out.Water) != WaterCapacity:
		return fmt.Errorf("%w: water buffer len %d want %d", ErrShape, len(out.Water), WaterCapacity)
	}
	for _, s := range chunk.Sides {
		if n := in.Neighbors[s]; n != nil && len(n) != chunk.Volume {
			return fmt.Errorf("%w: %s neighbour len %d want %d", ErrShape, s, len(n), chunk.Volume)
		}
		if st := in.Strips[s]; st != nil && len(st) != chunk.StripSize {
			return fmt.Errorf("%w: %s strip len %d want %d", ErrShape, s, len(st), chunk.StripSize)
		}
	}
	return nil
}

// Build meshes one chunk into out.
func Build(in Input, tables Tables, out *Output) (Stats, error) {
	var st Stats
	if err := checkShape(&in, out); err != nil {
		return st, err
	}

	for i := 0; i < chunk.Volume; i++ {
		cell := chunk.Cell(in.Blocks[i])
		b := cell.Block()
		if b == chunk.Air {
			continue
		}
		x, y, z := chunk.Coords(i)

		if b == chunk.Water {
			// Surface water is counted only; there is no water geometry yet.
			if !covered(in.Blocks, x, y, z) {
				out.Cursor[CursorWater]++
				st.WaterFaces++
			}
			continue
		}

		var light [chunk.NumFaces]uint8
		mask := chunk.AllFaces
		if tables.transparent(b) {
			for f := range light {
				light[f] = in.Light[i]
			}
		} else {
			mask = cull(&in, &tables, x, y, z, &light)
		}

		if b == chunk.Ice {
			n, dropped := emitCube(out.Water, out.Cursor[CursorWater], x, y, z, b, mask, cell.Biome(), &light, &tables)
			out.Cursor[CursorWater] += n
			st.IceFaces += int(n) / WordsPerFace
			st.DroppedFaces += dropped
		} else {
			n, dropped := emitCube(out.Opaque, out.Cursor[CursorOpaque], x, y, z, b, mask, cell.Biome(), &light, &tables)
			out.Cursor[CursorOpaque] += n
			st.OpaqueFaces += int(n) / WordsPerFace
			st.DroppedFaces += dropped
		}
	}
	return st, nil
}

// covered reports whether water at (x,y,z) has water or ice on top. The top
// layer has nothing above it and is never covered.
func covered(blocks []uint16, x, y, z int) bool {
	if y+1 >= chunk.Height {
		return false
	}
	above := uint8(blocks[chunk.Index(x, y+1, z)] & 0xff)
	return above == chunk.Water || above == chunk.Ice
}

// cull returns the visible-face mask of an opaque voxel and fills the light
// each face sees.
func cull(in *Input, tables *Tables, x, y, z int, light *[chunk.NumFaces]uint8) uint8 {
	var mask uint8
	for _, f := range chunk.Faces {
		dx, dy, dz := f.Offset()
		visible, l := sample(in, tables, x+dx, y+dy, z+dz)
		light[f] = l
		if visible {
			mask |= f.Bit()
		}
	}
	return mask
}

// sample resolves the voxel at a neighbour coordinate that may lie one block
// outside the chunk and reports whether it lets a face show, and its light.
func sample(in *Input, tables *Tables, nx, ny, nz int) (bool, uint8) {
	if ny < 0 || ny >= chunk.Height {
		return true, 0
	}
	if s, a, outside := chunk.SideOf(nx, nz); outside {
		nb := chunk.Air
		if n := in.Neighbors[s]; n != nil {
			nb = uint8(n[chunk.MirrorIndex(s, a, ny)] & 0xff)
		}
		if !tables.transparent(nb) {
			return false, 0
		}
		var l uint8
		if strip := in.Strips[s]; strip != nil {
			if j := chunk.StripIndex(a, ny); j < len(strip) {
				l = strip[j]
			}
		}
		return true, l
	}
	ix := chunk.Index(nx, ny, nz)
	nb := uint8(in.Blocks[ix] & 0xff)
	if !tables.transparent(nb) {
		return false, 0
	}
	return true, in.Light[ix]
}

// emitCube writes a (light, geometry) pair for every face set in mask,
// starting at start. Faces that would run past the buffer are dropped and
// counted. It returns the number of words written.
func emitCube(buf []uint32, start uint32, x, y, z int, block, mask, biome uint8, light *[chunk.NumFaces]uint8, tables *Tables) (uint32, int) {
	if x < 0 || x >= chunk.Width || z < 0 || z >= chunk.Width || y < 0 || y >= chunk.Height {
		return 0, 0
	}
	at := uint64(start)
	var words uint32
	dropped := 0
	for _, f := range chunk.Faces {
		if mask&f.Bit() == 0 {
			continue
		}
		if at+WordsPerFace > uint64(len(buf)) {
			dropped++
			continue
		}
		buf[at] = uint32(light[f])
		buf[at+1] = Pack(x, y, z, f, tables.texture(block, f), biome)
		at += WordsPerFace
		words += WordsPerFace
	}
	return words, dropped
}
