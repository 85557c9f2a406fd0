package chunk

// Face is a cube face direction. The numeric value is also the bit position
// in a culled-face mask and the texture slot (block*6+face).
type Face uint8

const (
	Up   Face = iota // +Y
	Down             // -Y
	NegX
	PosX
	PosZ
	NegZ

	NumFaces = 6
)

// AllFaces has every face bit set.
const AllFaces uint8 = 1<<NumFaces - 1

var offsets = [NumFaces][3]int{
	{0, 1, 0},
	{0, -1, 0},
	{-1, 0, 0},
	{1, 0, 0},
	{0, 0, 1},
	{0, 0, -1},
}

// Faces lists the directions in mask order.
var Faces = [NumFaces]Face{Up, Down, NegX, PosX, PosZ, NegZ}

func (f Face) Offset() (dx, dy, dz int) {
	o := offsets[f%NumFaces]
	return o[0], o[1], o[2]
}

func (f Face) Bit() uint8 { return 1 << f }

func (f Face) String() string {
	switch f {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	case NegX:
		return "NEG_X"
	case PosX:
		return "POS_X"
	case PosZ:
		return "POS_Z"
	case NegZ:
		return "NEG_Z"
	default:
		return "UNKNOWN"
	}
}
