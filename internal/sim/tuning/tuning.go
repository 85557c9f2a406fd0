package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Workers       int `yaml:"workers"`
	RelightRounds int `yaml:"relight_rounds"`
	JobQueue      int `yaml:"job_queue"`
	SendQueue     int `yaml:"send_queue"`
	MaxRegion     int `yaml:"max_region"`

	Seed     int64    `yaml:"seed"`
	WorldGen WorldGen `yaml:"worldgen"`

	SnapshotEverySeconds int  `yaml:"snapshot_every_seconds"`
	SnapshotKeep         int  `yaml:"snapshot_keep"`
	LogBuilds            bool `yaml:"log_builds"`
}

type WorldGen struct {
	BaseHeight      int     `yaml:"base_height"`
	HeightAmplitude int     `yaml:"height_amplitude"`
	NoiseScale      float64 `yaml:"noise_scale"`
	SeaLevel        int     `yaml:"sea_level"`
	BiomeRegionSize int     `yaml:"biome_region_size"`
	DirtDepth       int     `yaml:"dirt_depth"`

	GlassPermille int `yaml:"glass_permille"`
	TorchPermille int `yaml:"torch_permille"`
	CavePermille  int `yaml:"cave_permille"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:      "1.0",
		Workers:              4,
		RelightRounds:        2,
		JobQueue:             256,
		SendQueue:            64,
		MaxRegion:            64,
		Seed:                 1337,
		SnapshotEverySeconds: 300,
		SnapshotKeep:         8,
		LogBuilds:            true,
		WorldGen: WorldGen{
			BaseHeight:      64,
			HeightAmplitude: 24,
			NoiseScale:      0.015,
			SeaLevel:        62,
			BiomeRegionSize: 64,
			DirtDepth:       3,
			GlassPermille:   2,
			TorchPermille:   4,
			CavePermille:    0,
		},
	}
}

// Load reads a tuning file over Defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if strings.TrimSpace(t.ProtocolVersion) == "" {
		return fmt.Errorf("protocol_version must not be empty")
	}
	if t.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if t.RelightRounds < 0 {
		return fmt.Errorf("relight_rounds must be >= 0")
	}
	if t.JobQueue <= 0 || t.SendQueue <= 0 {
		return fmt.Errorf("job_queue and send_queue must be > 0")
	}
	if t.MaxRegion <= 0 {
		return fmt.Errorf("max_region must be > 0")
	}
	if t.SnapshotEverySeconds < 0 || t.SnapshotKeep < 0 {
		return fmt.Errorf("snapshot_every_seconds and snapshot_keep must be >= 0")
	}
	g := t.WorldGen
	if g.BaseHeight <= 0 || g.BaseHeight+g.HeightAmplitude >= 256 || g.BaseHeight-g.HeightAmplitude < 1 {
		return fmt.Errorf("worldgen base_height +/- height_amplitude must stay within [1, 255)")
	}
	if g.SeaLevel < 0 || g.SeaLevel >= 255 {
		return fmt.Errorf("worldgen sea_level must be in [0, 255)")
	}
	if g.NoiseScale <= 0 {
		return fmt.Errorf("worldgen noise_scale must be > 0")
	}
	if g.BiomeRegionSize <= 0 || g.DirtDepth < 0 {
		return fmt.Errorf("worldgen biome_region_size must be > 0 and dirt_depth >= 0")
	}
	for name, v := range map[string]int{"glass_permille": g.GlassPermille, "torch_permille": g.TorchPermille, "cave_permille": g.CavePermille} {
		if v < 0 || v > 1000 {
			return fmt.Errorf("worldgen %s must be in [0, 1000]", name)
		}
	}
	return nil
}
