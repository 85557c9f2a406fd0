package chunk

// Side names one of the four horizontally adjacent chunks. The order is the
// order neighbour arrays are laid out in flat buffers.
type Side uint8

const (
	SideNegX Side = iota
	SidePosX
	SideNegZ
	SidePosZ

	NumSides = 4
)

var Sides = [NumSides]Side{SideNegX, SidePosX, SideNegZ, SidePosZ}

// Opposite is the side this chunk occupies as seen from the neighbour.
func (s Side) Opposite() Side {
	return s ^ 1
}

// Offset is the chunk-coordinate delta towards the neighbour.
func (s Side) Offset() (dcx, dcz int) {
	switch s {
	case SideNegX:
		return -1, 0
	case SidePosX:
		return 1, 0
	case SideNegZ:
		return 0, -1
	default:
		return 0, 1
	}
}

func (s Side) String() string {
	switch s {
	case SideNegX:
		return "nx"
	case SidePosX:
		return "px"
	case SideNegZ:
		return "nz"
	case SidePosZ:
		return "pz"
	default:
		return "?"
	}
}

// SideOf reports which neighbour a local x/z that stepped one block outside
// the chunk falls into. a is the coordinate along the shared edge.
func SideOf(x, z int) (s Side, a int, ok bool) {
	switch {
	case x < 0:
		return SideNegX, z, true
	case x >= Width:
		return SidePosX, z, true
	case z < 0:
		return SideNegZ, x, true
	case z >= Width:
		return SidePosZ, x, true
	}
	return 0, 0, false
}

// MirrorIndex is the index inside the neighbour on side s of the voxel that
// touches our edge at edge coordinate a and height y: -X reads the
// neighbour's x=15 column, +X its x=0, -Z its z=15, +Z its z=0.
func MirrorIndex(s Side, a, y int) int {
	switch s {
	case SideNegX:
		return Index(Width-1, y, a)
	case SidePosX:
		return Index(0, y, a)
	case SideNegZ:
		return Index(a, y, Width-1)
	default:
		return Index(a, y, 0)
	}
}

// EdgeIndex is the index of our own voxel on the edge facing side s.
func EdgeIndex(s Side, a, y int) int {
	return MirrorIndex(s.Opposite(), a, y)
}

// StripIndex addresses an immediate neighbour light strip.
func StripIndex(a, y int) int {
	return a + y*Width
}

// SplitNeighbors cuts a flat -X,+X,-Z,+Z buffer into four chunk-sized views.
func SplitNeighbors[T any](flat []T, size int) ([NumSides][]T, bool) {
	var out [NumSides][]T
	if len(flat) != size*NumSides {
		return out, false
	}
	for i := range out {
		out[i] = flat[i*size : (i+1)*size : (i+1)*size]
	}
	return out, true
}
