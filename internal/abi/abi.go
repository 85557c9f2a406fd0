// Package abi exposes lighting and meshing through flat numeric slices only,
// the shape a host embedding (wasm, cgo, worker message) can hand across a
// narrow boundary. Wrongly sized inputs make a call return without touching
// any output; there is no other error signal.
package abi

import (
	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/light"
	"voxelmesh.ai/internal/sim/mesh"
)

const (
	NeighborsLen = chunk.Volume * chunk.NumSides
	StripsLen    = chunk.StripSize * chunk.NumSides
	VertsLen     = mesh.OpaqueCapacity
	WaterLen     = mesh.WaterCapacity
)

// CalculateLight raises lightMap in place. neighbours holds the light of the
// -X, +X, -Z, +Z chunks back to back; transparent and lightSources list block
// ids.
func CalculateLight(lightMap []uint8, blocks, neighbours, transparent, lightSources []uint16) {
	sides, ok := chunk.SplitNeighbors(neighbours, chunk.Volume)
	if !ok {
		return
	}
	_ = light.Calculate(lightMap, blocks, sides, light.NewBlockSet(transparent), light.NewBlockSet(lightSources))
}

// MeshGen writes face vertices for one chunk. vi[0] and vi[1] are the start
// offsets into verts and waterVerts and receive the advanced cursors.
func MeshGen(blocks []uint16, lightMap []uint8, neighbourBlocks []uint16, immediateNeighbourLight []uint8, textures, transparentBlocks []byte, verts, waterVerts, vi []uint32) {
	if len(vi) != 2 {
		return
	}
	sides, ok := chunk.SplitNeighbors(neighbourBlocks, chunk.Volume)
	if !ok {
		return
	}
	strips, ok := chunk.SplitNeighbors(immediateNeighbourLight, chunk.StripSize)
	if !ok {
		return
	}
	out := mesh.Output{
		Opaque: verts,
		Water:  waterVerts,
		Cursor: [2]uint32{vi[0], vi[1]},
	}
	in := mesh.Input{
		Blocks:    blocks,
		Light:     lightMap,
		Neighbors: sides,
		Strips:    strips,
	}
	if _, err := mesh.Build(in, mesh.Tables{Textures: textures, Transparent: transparentBlocks}, &out); err != nil {
		return
	}
	vi[0], vi[1] = out.Cursor[0], out.Cursor[1]
}
