package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelmesh.ai/internal/protocol"
	"voxelmesh.ai/internal/sim/catalogs"
	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/encoding"
	"voxelmesh.ai/internal/sim/mesh"
	"voxelmesh.ai/internal/sim/terrain/gen"
	"voxelmesh.ai/internal/sim/terrain/store"
	"voxelmesh.ai/internal/sim/tuning"
	"voxelmesh.ai/internal/sim/world"
)

func newTestServer(t *testing.T) (*httptest.Server, *world.Builder) {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	blocks, err := gen.BlocksFrom(&cats.Blocks)
	if err != nil {
		t.Fatalf("BlocksFrom: %v", err)
	}
	g := gen.New(gen.Params{Seed: 3, Shape: tuning.Defaults().WorldGen, Blocks: blocks})
	b := world.New(store.NewChunkStore(g), &cats.Blocks, world.Config{Workers: 2, RelightRounds: 1, MaxRegion: 9})
	s := NewServer(b, Config{
		WorldID: "w1",
		Params:  protocol.WorldParams{ChunkWidth: chunk.Width, Height: chunk.Height, Seed: 3, RelightRounds: 1, MaxRegion: 9},
		Catalogs: protocol.CatalogDigests{
			BlockPalette: protocol.DigestRef{Digest: cats.Blocks.PaletteDigest, Count: len(cats.Blocks.Palette)},
		},
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		b.Close()
	})
	return srv, b
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, conn *websocket.Conn, v any) protocol.BaseMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode base: %v", err)
	}
	if v != nil {
		if err := json.Unmarshal(b, v); err != nil {
			t.Fatalf("unmarshal %s: %v", base.Type, err)
		}
	}
	return base
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"})
	var w protocol.WelcomeMsg
	if base := recv(t, conn, &w); base.Type != protocol.TypeWelcome {
		t.Fatalf("expected WELCOME, got %s", base.Type)
	}
	return w
}

func TestServer_BuildRoundTrip(t *testing.T) {
	srv, b := newTestServer(t)
	conn := dial(t, srv)

	w := hello(t, conn)
	if w.WorldID != "w1" || w.SessionID == "" || w.WorldParams.Height != chunk.Height {
		t.Fatalf("unexpected welcome: %+v", w)
	}

	send(t, conn, protocol.BuildReq{
		Type:            protocol.TypeBuild,
		ProtocolVersion: protocol.Version,
		ID:              "b1",
		Chunks:          []protocol.ChunkRef{{CX: 0, CZ: 0}, {CX: 1, CZ: 0}},
	})
	var built protocol.BuildMsg
	if base := recv(t, conn, &built); base.Type != protocol.TypeBuild || base.ID != "b1" {
		t.Fatalf("expected BUILD b1, got %s %s", base.Type, base.ID)
	}
	if len(built.Chunks) != 2 || built.LightRounds < 1 || built.Stats.OpaqueFaces == 0 {
		t.Fatalf("unexpected build: %+v", built)
	}

	send(t, conn, protocol.ChunkQuery{Type: protocol.TypeMesh, ProtocolVersion: protocol.Version, ID: "m1", CX: 0, CZ: 0})
	var m protocol.MeshMsg
	if base := recv(t, conn, &m); base.Type != protocol.TypeMesh {
		t.Fatalf("expected MESH, got %s", base.Type)
	}
	words, err := encoding.DecodeWords(m.Opaque)
	if err != nil {
		t.Fatalf("decode words: %v", err)
	}
	if len(words) != built.Chunks[0].OpaqueWords || len(words) != mesh.WordsPerFace*m.Stats.OpaqueFaces {
		t.Fatalf("words=%d want %d", len(words), built.Chunks[0].OpaqueWords)
	}
	stored, _ := b.Store().MeshOf(store.ChunkKey{})
	for i := range words {
		if words[i] != stored.Opaque[i] {
			t.Fatalf("word %d differs from stored mesh", i)
		}
	}

	send(t, conn, protocol.ChunkQuery{Type: protocol.TypeLight, ProtocolVersion: protocol.Version, CX: 1, CZ: 0})
	var l protocol.LightMsg
	if base := recv(t, conn, &l); base.Type != protocol.TypeLight {
		t.Fatalf("expected LIGHT, got %s", base.Type)
	}
	lm, err := encoding.DecodeLight(l.Light, chunk.Volume)
	if err != nil {
		t.Fatalf("decode light: %v", err)
	}
	if lm[chunk.Index(0, chunk.Height-1, 0)] != 14 {
		t.Fatalf("open sky light=%d", lm[chunk.Index(0, chunk.Height-1, 0)])
	}
}

func TestServer_ChunkOps(t *testing.T) {
	srv, b := newTestServer(t)
	conn := dial(t, srv)
	hello(t, conn)

	send(t, conn, protocol.ChunkReq{Type: protocol.TypeChunk, ProtocolVersion: protocol.Version, Op: protocol.ChunkGet, CX: 2, CZ: 2})
	var got protocol.ChunkMsg
	if base := recv(t, conn, &got); base.Type != protocol.TypeChunk {
		t.Fatalf("expected CHUNK, got %s", base.Type)
	}
	blocks, err := encoding.DecodeChunkRLE(got.Blocks, chunk.Volume)
	if err != nil {
		t.Fatalf("decode blocks: %v", err)
	}
	want, _ := b.Store().Blocks(store.ChunkKey{CX: 2, CZ: 2})
	for i := range blocks {
		if blocks[i] != want[i] {
			t.Fatalf("block %d differs", i)
		}
	}

	// (32, 250, 47) is the -X, +Z corner of chunk (2, 2).
	send(t, conn, protocol.ChunkReq{Type: protocol.TypeChunk, ProtocolVersion: protocol.Version, Op: protocol.ChunkSet, Pos: [3]int{32, 250, 47}, Block: 1})
	var set protocol.ChunkMsg
	recv(t, conn, &set)
	if set.CX != 2 || set.CZ != 2 || len(set.Affected) != 3 || set.Digest == got.Digest {
		t.Fatalf("unexpected SET reply: %+v", set)
	}

	var puts []uint16
	for i := 0; i < chunk.Volume; i++ {
		puts = append(puts, 1)
	}
	send(t, conn, protocol.ChunkReq{Type: protocol.TypeChunk, ProtocolVersion: protocol.Version, Op: protocol.ChunkPut, CX: 9, CZ: 9, Blocks: encoding.EncodeRLE(puts)})
	var put protocol.ChunkMsg
	recv(t, conn, &put)
	if len(put.Affected) != 1 || put.Digest == "" {
		t.Fatalf("unexpected PUT reply: %+v", put)
	}
	if got := b.Store().GetBlock(9*chunk.Width, 0, 9*chunk.Width); got != 1 {
		t.Fatalf("PUT not stored, block=%d", got)
	}
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	hello(t, conn)

	cases := []struct {
		req  any
		code string
	}{
		{protocol.ChunkQuery{Type: protocol.TypeMesh, ProtocolVersion: protocol.Version, CX: 40}, protocol.ErrNotFound},
		{protocol.ChunkQuery{Type: protocol.TypeLight, ProtocolVersion: protocol.Version, CX: 40}, protocol.ErrNotFound},
		{protocol.ChunkQuery{Type: protocol.TypeMesh, ProtocolVersion: "0.1"}, protocol.ErrProtoBadRequest},
		{protocol.BaseMessage{Type: "OBS", ProtocolVersion: protocol.Version}, protocol.ErrProtoBadRequest},
		{protocol.BuildReq{Type: protocol.TypeBuild, ProtocolVersion: protocol.Version}, protocol.ErrBadRequest},
		{protocol.ChunkReq{Type: protocol.TypeChunk, ProtocolVersion: protocol.Version, Op: protocol.ChunkPut, Blocks: "AQE="}, protocol.ErrBadRequest},
		{protocol.ChunkReq{Type: protocol.TypeChunk, ProtocolVersion: protocol.Version, Op: protocol.ChunkSet, Pos: [3]int{0, 300, 0}}, protocol.ErrBadRequest},
	}
	big := protocol.BuildReq{Type: protocol.TypeBuild, ProtocolVersion: protocol.Version}
	for cx := 0; cx < 10; cx++ {
		big.Chunks = append(big.Chunks, protocol.ChunkRef{CX: cx})
	}
	cases = append(cases, struct {
		req  any
		code string
	}{big, protocol.ErrTooLarge})

	for i, c := range cases {
		send(t, conn, c.req)
		var e protocol.ErrorMsg
		if base := recv(t, conn, &e); base.Type != protocol.TypeError {
			t.Fatalf("case %d: expected ERROR, got %s", i, base.Type)
		}
		if e.Code != c.code || !protocol.IsKnownCode(e.Code) {
			t.Fatalf("case %d: code=%s want %s (%s)", i, e.Code, c.code, e.Message)
		}
	}
}

func TestServer_RejectsMissingHello(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, protocol.BuildReq{Type: protocol.TypeBuild, ProtocolVersion: protocol.Version})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}
