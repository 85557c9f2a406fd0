package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeWords packs vertex words as base64 of little-endian uint32s.
func EncodeWords(words []uint32) string {
	raw := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(raw[4*i:], w)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func DecodeWords(b64 string) ([]uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("word payload length %d is not a multiple of 4", len(raw))
	}
	out := make([]uint32, len(raw)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return out, nil
}
