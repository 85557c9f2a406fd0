package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	WorldID         string         `json:"world_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	ChunkWidth    int   `json:"chunk_width"`
	Height        int   `json:"height"`
	Seed          int64 `json:"seed"`
	RelightRounds int   `json:"relight_rounds"`
	MaxRegion     int   `json:"max_region"`
}

type CatalogDigests struct {
	BlockPalette DigestRef `json:"block_palette"`
	TuningDigest string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

type ChunkRef struct {
	CX int `json:"cx"`
	CZ int `json:"cz"`
}

// Chunk ops.
const (
	ChunkGet = "GET"
	ChunkPut = "PUT"
	ChunkSet = "SET"
)

// CHUNK (client -> server). GET reads a chunk (generating it if needed), PUT
// replaces its blocks, SET edits one block at world coordinates.
type ChunkReq struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Op              string `json:"op"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
	Blocks          string `json:"blocks,omitempty"`
	Pos             [3]int `json:"pos,omitempty"`
	Block           uint16 `json:"block,omitempty"`
}

// CHUNK (server -> client)
type ChunkMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ID              string     `json:"id,omitempty"`
	CX              int        `json:"cx"`
	CZ              int        `json:"cz"`
	Digest          string     `json:"digest"`
	Blocks          string     `json:"blocks,omitempty"`
	Affected        []ChunkRef `json:"affected,omitempty"`
}

// BUILD (client -> server)
type BuildReq struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ID              string     `json:"id,omitempty"`
	Chunks          []ChunkRef `json:"chunks"`
}

// BUILD (server -> client)
type BuildMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	ID              string       `json:"id,omitempty"`
	Generated       int          `json:"generated"`
	LightRounds     int          `json:"light_rounds"`
	LightBuilds     int          `json:"light_builds"`
	ElapsedMicros   int64        `json:"elapsed_us"`
	Stats           FaceStats    `json:"stats"`
	Chunks          []BuiltChunk `json:"chunks"`
}

type BuiltChunk struct {
	CX          int       `json:"cx"`
	CZ          int       `json:"cz"`
	Stats       FaceStats `json:"stats"`
	OpaqueWords int       `json:"opaque_words"`
	WaterWords  int       `json:"water_words"`
}

type FaceStats struct {
	OpaqueFaces  int `json:"opaque_faces"`
	IceFaces     int `json:"ice_faces"`
	WaterFaces   int `json:"water_faces"`
	DroppedFaces int `json:"dropped_faces"`
}

// LIGHT / MESH requests (client -> server) name one chunk.
type ChunkQuery struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
}

// LIGHT (server -> client). Light is the RLE of the light map.
type LightMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
	Light           string `json:"light"`
}

// MESH (server -> client). Opaque and Water carry base64 little-endian words.
type MeshMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	ID              string    `json:"id,omitempty"`
	CX              int       `json:"cx"`
	CZ              int       `json:"cz"`
	Stats           FaceStats `json:"stats"`
	Opaque          string    `json:"opaque"`
	Water           string    `json:"water"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
