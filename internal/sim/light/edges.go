package light

import "voxelmesh.ai/internal/sim/chunk"

// EdgeChanges reports, per side, whether the boundary column facing that
// neighbour differs between two light maps. A neighbour whose flag is set has
// to be re-lit and re-meshed. A missing or malformed prev marks every side.
func EdgeChanges(prev, next []uint8) [chunk.NumSides]bool {
	var out [chunk.NumSides]bool
	if len(next) != chunk.Volume {
		return out
	}
	if len(prev) != chunk.Volume {
		return [chunk.NumSides]bool{true, true, true, true}
	}
	for _, s := range chunk.Sides {
	scan:
		for y := 0; y < chunk.Height; y++ {
			for a := 0; a < chunk.Width; a++ {
				i := chunk.EdgeIndex(s, a, y)
				if prev[i] != next[i] {
					out[s] = true
					break scan
				}
			}
		}
	}
	return out
}

// FillStrip copies into dst the light of the single layer of the neighbour on
// side s that touches this chunk. A nil neighbour yields zeros.
func FillStrip(dst []uint8, s chunk.Side, neighborLight []uint8) bool {
	if len(dst) != chunk.StripSize {
		return false
	}
	if len(neighborLight) != chunk.Volume {
		clear(dst)
		return neighborLight == nil
	}
	for y := 0; y < chunk.Height; y++ {
		for a := 0; a < chunk.Width; a++ {
			dst[chunk.StripIndex(a, y)] = neighborLight[chunk.MirrorIndex(s, a, y)]
		}
	}
	return true
}

func Strip(s chunk.Side, neighborLight []uint8) []uint8 {
	dst := make([]uint8, chunk.StripSize)
	FillStrip(dst, s, neighborLight)
	return dst
}
