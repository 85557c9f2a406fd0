package mesh

import "voxelmesh.ai/internal/sim/chunk"

// Geometry word layout:
//
//	bits 25..31 biome
//	bits 19..24 texture
//	bits 16..18 face
//	bits 12..15 x, 4..11 y, 0..3 z
const (
	biomeShift   = 25
	textureShift = 19
	faceShift    = 16

	textureMask = 0x3f
)

// WordsPerFace is the number of uint32 words one visible face occupies.
const WordsPerFace = 2

// Pack builds the geometry word of one face.
func Pack(x, y, z int, face chunk.Face, texture, biome uint8) uint32 {
	pos := uint32(x)<<12 | uint32(y)<<4 | uint32(z)
	return uint32(biome)<<biomeShift |
		uint32(texture&textureMask)<<textureShift |
		uint32(face)<<faceShift |
		pos
}

type Vertex struct {
	Light   uint8
	Biome   uint8
	Texture uint8
	Face    chunk.Face
	X, Y, Z int
}

func Unpack(lightWord, geom uint32) Vertex {
	return Vertex{
		Light:   uint8(lightWord & 0xf),
		Biome:   uint8(geom >> biomeShift),
		Texture: uint8(geom>>textureShift) & textureMask,
		Face:    chunk.Face((geom >> faceShift) & 0x7),
		X:       int(geom>>12) & 0xf,
		Y:       int(geom>>4) & 0xff,
		Z:       int(geom) & 0xf,
	}
}

// Decode splits an emitted buffer prefix into vertices.
func Decode(words []uint32) []Vertex {
	out := make([]Vertex, 0, len(words)/WordsPerFace)
	for i := 0; i+1 < len(words); i += WordsPerFace {
		out = append(out, Unpack(words[i], words[i+1]))
	}
	return out
}
