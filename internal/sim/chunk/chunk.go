// Package chunk holds the fixed chunk geometry shared by lighting and meshing.
package chunk

const (
	Width     = 16
	Height    = 256
	Area      = Width * Width
	Volume    = Area * Height // 65536
	StripSize = Width * Height

	MaxLight = 15
)

// Block types the pipelines treat specially.
const (
	Air   uint8 = 0
	Water uint8 = 4
	Ice   uint8 = 13
)

// Index flattens a local coordinate: x fastest, then z, then y.
func Index(x, y, z int) int {
	return x + z*Width + y*Area
}

// Coords is the inverse of Index.
func Coords(i int) (x, y, z int) {
	return i % Width, i / Area, (i / Width) % Width
}

// InBounds reports whether a local coordinate lies inside the chunk.
func InBounds(x, y, z int) bool {
	return x >= 0 && x < Width && z >= 0 && z < Width && y >= 0 && y < Height
}

// Cell is a packed voxel: block type in the low byte, biome in the high byte.
type Cell uint16

func MakeCell(block, biome uint8) Cell {
	return Cell(uint16(biome)<<8 | uint16(block))
}

func (c Cell) Block() uint8 { return uint8(c & 0xff) }
func (c Cell) Biome() uint8 { return uint8(c >> 8) }
