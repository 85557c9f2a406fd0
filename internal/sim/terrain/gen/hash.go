package gen

// FloorDiv rounds toward negative infinity. b must be > 0.
func FloorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

// Mod is always in [0, b). b must be > 0.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// splitmix64 finalizer
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ ux*0x9e3779b97f4a7c15 ^ uz*0xbf58476d1ce4e5b9)
}

func Hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ ux*0x9e3779b97f4a7c15 ^ uy*0xc2b2ae3d27d4eb4f ^ uz*0xbf58476d1ce4e5b9)
}

// Roll reports whether a hash lands under a per-mille chance.
func Roll(h uint64, permille int) bool {
	if permille <= 0 {
		return false
	}
	return h%1000 < uint64(permille)
}
