package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"voxelmesh.ai/internal/protocol"
	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/encoding"
	"voxelmesh.ai/internal/sim/mesh"
	"voxelmesh.ai/internal/sim/terrain/store"
	"voxelmesh.ai/internal/sim/world"
)

// handle serves one request and returns the message to send back.
func (s *Server) handle(ctx context.Context, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return errorMsg("", protocol.ErrProtoBadRequest, "bad json")
	}
	if base.ProtocolVersion != protocol.Version {
		return errorMsg(base.ID, protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	switch base.Type {
	case protocol.TypeChunk:
		var req protocol.ChunkReq
		if err := json.Unmarshal(msg, &req); err != nil {
			return errorMsg(base.ID, protocol.ErrProtoBadRequest, err.Error())
		}
		return s.handleChunk(req)
	case protocol.TypeBuild:
		var req protocol.BuildReq
		if err := json.Unmarshal(msg, &req); err != nil {
			return errorMsg(base.ID, protocol.ErrProtoBadRequest, err.Error())
		}
		return s.handleBuild(ctx, req)
	case protocol.TypeLight, protocol.TypeMesh:
		var q protocol.ChunkQuery
		if err := json.Unmarshal(msg, &q); err != nil {
			return errorMsg(base.ID, protocol.ErrProtoBadRequest, err.Error())
		}
		if base.Type == protocol.TypeLight {
			return s.handleLight(q)
		}
		return s.handleMesh(q)
	default:
		return errorMsg(base.ID, protocol.ErrProtoBadRequest, fmt.Sprintf("unknown type %q", base.Type))
	}
}

func (s *Server) handleChunk(req protocol.ChunkReq) any {
	st := s.builder.Store()
	key := store.ChunkKey{CX: req.CX, CZ: req.CZ}
	resp := protocol.ChunkMsg{
		Type:            protocol.TypeChunk,
		ProtocolVersion: protocol.Version,
		ID:              req.ID,
		CX:              key.CX,
		CZ:              key.CZ,
	}

	switch req.Op {
	case protocol.ChunkGet, "":
		st.GetOrGen(key)
		blocks, ok := st.Blocks(key)
		if !ok {
			return errorMsg(req.ID, protocol.ErrNotFound, "chunk not loaded")
		}
		resp.Blocks = encoding.EncodeRLE(blocks)

	case protocol.ChunkPut:
		blocks, err := encoding.DecodeChunkRLE(req.Blocks, chunk.Volume)
		if err != nil {
			return errorMsg(req.ID, protocol.ErrBadRequest, err.Error())
		}
		ch := store.NewChunk(key)
		copy(ch.Blocks, blocks)
		st.Put(ch)
		resp.Affected = append(resp.Affected, ref(key))
		for _, side := range chunk.Sides {
			if nk := key.Neighbor(side); st.Has(nk) {
				resp.Affected = append(resp.Affected, ref(nk))
			}
		}

	case protocol.ChunkSet:
		x, y, z := req.Pos[0], req.Pos[1], req.Pos[2]
		if y < 0 || y >= chunk.Height {
			return errorMsg(req.ID, protocol.ErrBadRequest, fmt.Sprintf("y=%d out of range", y))
		}
		key = store.KeyOf(x, z)
		resp.CX, resp.CZ = key.CX, key.CZ
		for _, k := range st.SetBlock(x, y, z, req.Block) {
			resp.Affected = append(resp.Affected, ref(k))
		}

	default:
		return errorMsg(req.ID, protocol.ErrBadRequest, fmt.Sprintf("unknown op %q", req.Op))
	}

	resp.Digest, _ = st.Digest(key)
	return resp
}

func (s *Server) handleBuild(ctx context.Context, req protocol.BuildReq) any {
	if len(req.Chunks) == 0 {
		return errorMsg(req.ID, protocol.ErrBadRequest, "no chunks")
	}
	keys := make([]store.ChunkKey, 0, len(req.Chunks))
	for _, c := range req.Chunks {
		keys = append(keys, store.ChunkKey{CX: c.CX, CZ: c.CZ})
	}
	reg, err := s.builder.BuildRegion(ctx, keys)
	switch {
	case errors.Is(err, world.ErrRegionTooLarge):
		return errorMsg(req.ID, protocol.ErrTooLarge, err.Error())
	case errors.Is(err, world.ErrClosed), errors.Is(err, context.Canceled):
		return errorMsg(req.ID, protocol.ErrBusy, err.Error())
	case err != nil:
		return errorMsg(req.ID, protocol.ErrInternal, err.Error())
	}

	resp := protocol.BuildMsg{
		Type:            protocol.TypeBuild,
		ProtocolVersion: protocol.Version,
		ID:              req.ID,
		Generated:       reg.Generated,
		LightRounds:     reg.LightRounds,
		LightBuilds:     reg.LightBuilds,
		ElapsedMicros:   reg.Elapsed.Microseconds(),
		Stats:           faceStats(reg.Stats),
		Chunks:          make([]protocol.BuiltChunk, 0, len(reg.Meshes)),
	}
	for _, m := range reg.Meshes {
		resp.Chunks = append(resp.Chunks, protocol.BuiltChunk{
			CX:          m.Key.CX,
			CZ:          m.Key.CZ,
			Stats:       faceStats(m.Stats),
			OpaqueWords: m.OpaqueWords,
			WaterWords:  m.WaterWords,
		})
	}
	return resp
}

func (s *Server) handleLight(q protocol.ChunkQuery) any {
	lm, ok := s.builder.Store().Light(store.ChunkKey{CX: q.CX, CZ: q.CZ})
	if !ok {
		return errorMsg(q.ID, protocol.ErrNotFound, "chunk not lit")
	}
	return protocol.LightMsg{
		Type:            protocol.TypeLight,
		ProtocolVersion: protocol.Version,
		ID:              q.ID,
		CX:              q.CX,
		CZ:              q.CZ,
		Light:           encoding.EncodeLight(lm),
	}
}

func (s *Server) handleMesh(q protocol.ChunkQuery) any {
	m, ok := s.builder.Store().MeshOf(store.ChunkKey{CX: q.CX, CZ: q.CZ})
	if !ok || m == nil {
		return errorMsg(q.ID, protocol.ErrNotFound, "chunk not meshed")
	}
	return protocol.MeshMsg{
		Type:            protocol.TypeMesh,
		ProtocolVersion: protocol.Version,
		ID:              q.ID,
		CX:              q.CX,
		CZ:              q.CZ,
		Stats:           faceStats(m.Stats),
		Opaque:          encoding.EncodeWords(m.Opaque),
		Water:           encoding.EncodeWords(m.Water),
	}
}

func errorMsg(id, code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		ID:              id,
		Code:            code,
		Message:         message,
	}
}

func ref(k store.ChunkKey) protocol.ChunkRef { return protocol.ChunkRef{CX: k.CX, CZ: k.CZ} }

func faceStats(st mesh.Stats) protocol.FaceStats {
	return protocol.FaceStats{
		OpaqueFaces:  st.OpaqueFaces,
		IceFaces:     st.IceFaces,
		WaterFaces:   st.WaterFaces,
		DroppedFaces: st.DroppedFaces,
	}
}
