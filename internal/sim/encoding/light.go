package encoding

import "fmt"

// EncodeLight run-length encodes a light map. Light maps are mostly long runs
// of sky light and darkness, so they share the cell id encoding.
func EncodeLight(lightMap []uint8) string {
	ids := make([]uint16, len(lightMap))
	for i, v := range lightMap {
		ids[i] = uint16(v)
	}
	return EncodeRLE(ids)
}

func DecodeLight(b64 string, want int) ([]uint8, error) {
	ids, err := DecodeChunkRLE(b64, want)
	if err != nil {
		return nil, err
	}
	out := make([]uint8, len(ids))
	for i, v := range ids {
		if v > 0xff {
			return nil, fmt.Errorf("light value too large at %d: %d", i, v)
		}
		out[i] = uint8(v)
	}
	return out, nil
}
