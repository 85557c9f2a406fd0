package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/light"
	"voxelmesh.ai/internal/sim/mesh"
)

type Catalogs struct {
	Blocks BlockCatalog
}

type BlockCatalog struct {
	Palette       []string // ids ordered by code
	Index         map[string]uint8
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string

	byCode [256]*BlockDef
}

type BlockDef struct {
	ID          string       `json:"id"`
	Code        int          `json:"code"`
	Transparent bool         `json:"transparent"`
	LightSource bool         `json:"light_source,omitempty"`
	Textures    FaceTextures `json:"textures,omitempty"`
}

// FaceTextures are atlas slots per cube face.
type FaceTextures struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`  // -X
	Right  int `json:"right"` // +X
	Front  int `json:"front"` // +Z
	Back   int `json:"back"`  // -Z
}

func (t FaceTextures) For(f chunk.Face) int {
	switch f {
	case chunk.Up:
		return t.Top
	case chunk.Down:
		return t.Bottom
	case chunk.NegX:
		return t.Left
	case chunk.PosX:
		return t.Right
	case chunk.PosZ:
		return t.Front
	default:
		return t.Back
	}
}

// Blocks the pipelines hard-code by code.
var required = map[string]uint8{
	"AIR":   chunk.Air,
	"WATER": chunk.Water,
	"ICE":   chunk.Ice,
}

//go:embed blocks.schema.json
var blocksSchemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func blocksSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("blocks.schema.json", blocksSchemaJSON)
	})
	return schema, schemaErr
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := ParseBlocks(raw, out); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	return nil
}

// ParseBlocks validates raw blocks.json content and fills out.
func ParseBlocks(raw []byte, out *BlockCatalog) error {
	s, err := blocksSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return err
	}

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	*out = BlockCatalog{
		Defs:       make(map[string]BlockDef, len(defs)),
		Index:      make(map[string]uint8, len(defs)),
		DefsDigest: sha256Hex(raw),
	}
	for i := range defs {
		d := defs[i]
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("duplicate id %s", d.ID)
		}
		if prev := out.byCode[d.Code]; prev != nil {
			return fmt.Errorf("code %d used by %s and %s", d.Code, prev.ID, d.ID)
		}
		out.Defs[d.ID] = d
		out.Index[d.ID] = uint8(d.Code)
		out.byCode[d.Code] = &d
	}
	for id, code := range required {
		d, ok := out.Defs[id]
		if !ok {
			return fmt.Errorf("missing %s", id)
		}
		if d.Code != int(code) {
			return fmt.Errorf("%s must have code %d, got %d", id, code, d.Code)
		}
	}
	if !out.Defs["AIR"].Transparent || !out.Defs["WATER"].Transparent {
		return fmt.Errorf("AIR and WATER must be transparent")
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return out.Index[ids[i]] < out.Index[ids[j]] })
	out.Palette = ids
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func (c *BlockCatalog) Code(id string) (uint8, bool) {
	code, ok := c.Index[id]
	return code, ok
}

// MustCode is for generators and tests that only use ids they ship with.
func (c *BlockCatalog) MustCode(id string) uint8 {
	code, ok := c.Index[id]
	if !ok {
		panic("catalogs: unknown block " + id)
	}
	return code
}

func (c *BlockCatalog) ByCode(code uint8) (BlockDef, bool) {
	d := c.byCode[code]
	if d == nil {
		return BlockDef{}, false
	}
	return *d, true
}

// TransparentIDs lists codes that let light and visibility through.
func (c *BlockCatalog) TransparentIDs() []uint16 {
	return c.collect(func(d *BlockDef) bool { return d.Transparent })
}

func (c *BlockCatalog) SourceIDs() []uint16 {
	return c.collect(func(d *BlockDef) bool { return d.LightSource })
}

func (c *BlockCatalog) collect(keep func(*BlockDef) bool) []uint16 {
	var out []uint16
	for code, d := range c.byCode {
		if d != nil && keep(d) {
			out = append(out, uint16(code))
		}
	}
	return out
}

// LightSets returns the membership tables for light propagation.
func (c *BlockCatalog) LightSets() (transparent, sources *light.BlockSet) {
	return light.NewBlockSet(c.TransparentIDs()), light.NewBlockSet(c.SourceIDs())
}

// MeshTables returns the lookup tables for meshing, sized for every block type.
func (c *BlockCatalog) MeshTables() mesh.Tables {
	t := mesh.Tables{
		Textures:    make([]byte, 256*chunk.NumFaces),
		Transparent: make([]byte, 256),
	}
	for code, d := range c.byCode {
		if d == nil {
			continue
		}
		if d.Transparent {
			t.Transparent[code] = 1
		}
		for _, f := range chunk.Faces {
			t.Textures[code*chunk.NumFaces+int(f)] = byte(d.Textures.For(f))
		}
	}
	return t
}
