package indexdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/sim/catalogs"
	"voxelmesh.ai/internal/sim/tuning"
	"voxelmesh.ai/internal/sim/world"
)

// Stats is shared by every index backend.
type Stats struct {
	Backend         string `json:"backend"`
	QueueDepth      int    `json:"queue_depth"`
	QueueCapacity   int    `json:"queue_capacity"`
	WrittenTotal    uint64 `json:"written_total"`
	DropTotal       uint64 `json:"drop_total"`
	WriteErrorTotal uint64 `json:"write_error_total"`
}

type catalogRow struct {
	Name   string
	Digest string
	JSON   []byte
}

// catalogRows returns the catalog documents to index: the raw block defs as
// read from disk, the palette, and the tuning values actually applied.
func catalogRows(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) []catalogRow {
	var rows []catalogRow
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil && len(b) > 0 {
			rows = append(rows, catalogRow{Name: "blocks_defs", Digest: cats.Blocks.DefsDigest, JSON: b})
		}
	}
	if b, err := json.Marshal(cats.Blocks.Palette); err == nil && len(b) > 0 {
		rows = append(rows, catalogRow{Name: "blocks_palette", Digest: cats.Blocks.PaletteDigest, JSON: b})
	}
	if b, err := json.Marshal(tune); err == nil && len(b) > 0 {
		sum := sha256.Sum256(b)
		rows = append(rows, catalogRow{Name: "tuning", Digest: hex.EncodeToString(sum[:]), JSON: b})
	}
	return rows
}

// BuildRow is one indexed mesh build.
type BuildRow struct {
	WorldID      string `json:"world_id"`
	CX           int    `json:"cx"`
	CZ           int    `json:"cz"`
	Digest       string `json:"digest"`
	OpaqueFaces  int    `json:"opaque_faces"`
	IceFaces     int    `json:"ice_faces"`
	WaterFaces   int    `json:"water_faces"`
	DroppedFaces int    `json:"dropped_faces"`
	LightRounds  int    `json:"light_rounds"`
	BuildMicros  int64  `json:"build_us"`
	BuiltAt      string `json:"built_at"`
}

func buildRow(rec world.BuildRecord) BuildRow {
	return BuildRow{
		WorldID:      rec.WorldID,
		CX:           rec.Key.CX,
		CZ:           rec.Key.CZ,
		Digest:       rec.Digest,
		OpaqueFaces:  rec.Stats.OpaqueFaces,
		IceFaces:     rec.Stats.IceFaces,
		WaterFaces:   rec.Stats.WaterFaces,
		DroppedFaces: rec.Stats.DroppedFaces,
		LightRounds:  rec.LightRounds,
		BuildMicros:  rec.BuildMicros,
		BuiltAt:      rec.Time.UTC().Format(time.RFC3339Nano),
	}
}

type snapshotRow struct {
	Seq    uint64 `json:"seq"`
	Path   string `json:"path"`
	Seed   int64  `json:"seed"`
	Height int    `json:"height"`
	Chunks int    `json:"chunks"`
}

func snapshotRowOf(path string, snap snapshot.SnapshotV1) snapshotRow {
	return snapshotRow{
		Seq:    snap.Header.Seq,
		Path:   path,
		Seed:   snap.Seed,
		Height: snap.Height,
		Chunks: len(snap.Chunks),
	}
}
