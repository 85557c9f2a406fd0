package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

var ErrVersion = errors.New("snapshot: unsupported version")

type Header struct {
	Version    int    `json:"version"`
	WorldID    string `json:"world_id"`
	Seq        uint64 `json:"seq"`
	ChunkCount int    `json:"chunk_count"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed            int64  `json:"seed"`
	Height          int    `json:"height"`
	CatalogDigest   string `json:"catalog_digest"`
	ProtocolVersion string `json:"protocol_version"`

	// Worldgen shape captured so regenerated chunks match the saved ones.
	BaseHeight      int     `json:"base_height"`
	HeightAmplitude int     `json:"height_amplitude"`
	NoiseScale      float64 `json:"noise_scale"`
	SeaLevel        int     `json:"sea_level"`
	BiomeRegionSize int     `json:"biome_region_size"`

	Chunks []ChunkV1 `json:"chunks"`
}

type ChunkV1 struct {
	CX     int      `json:"cx"`
	CZ     int      `json:"cz"`
	Height int      `json:"height"`
	Blocks []uint16 `json:"blocks"`
	Light  []uint8  `json:"light,omitempty"`
	Digest string   `json:"digest"`
}

// WriteSnapshot stores a JSON header line followed by the gob-encoded
// snapshot, all inside one zstd stream. The file is written to a temp name
// and renamed into place.
func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	snap.Header.ChunkCount = len(snap.Chunks)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = enc.Close()
		}
	}()
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	if _, err := readHeader(br); err != nil {
		return snap, err
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return Header{}, err
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return h, nil
}

// FileName is the on-disk name for sequence seq.
func FileName(seq uint64) string {
	return fmt.Sprintf("%020d.snap.zst", seq)
}

// List returns snapshot paths under dir, oldest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Latest is the newest snapshot in dir, or "" when there is none.
func Latest(dir string) (string, error) {
	paths, err := List(dir)
	if err != nil || len(paths) == 0 {
		return "", err
	}
	return paths[len(paths)-1], nil
}

// Prune removes all but the newest keep snapshots. keep <= 0 keeps everything.
func Prune(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	paths, err := List(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(paths)-removed > keep {
		if err := os.Remove(paths[removed]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
