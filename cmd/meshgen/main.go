package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/protocol"
	"voxelmesh.ai/internal/sim/catalogs"
	"voxelmesh.ai/internal/sim/terrain/gen"
	"voxelmesh.ai/internal/sim/terrain/store"
	"voxelmesh.ai/internal/sim/tuning"
	"voxelmesh.ai/internal/sim/world"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "world seed (0 = tuning seed)")
		radius     = flag.Int("radius", 1, "build the (2r+1)^2 chunks around -cx/-cz")
		cx         = flag.Int("cx", 0, "center chunk x")
		cz         = flag.Int("cz", 0, "center chunk z")
		workers    = flag.Int("workers", 0, "build workers (0 = tuning workers)")
		snapPath   = flag.String("snapshot", "", "start from this .snap.zst instead of fresh terrain (optional)")
		outPath    = flag.String("out", "", "write the built chunks to this .snap.zst (optional)")
		logsDir    = flag.String("verify_logs", "", "builds dir containing builds-*.jsonl.zst; checks digests against -snapshot")
		asJSON     = flag.Bool("json", false, "print per-chunk results as JSON lines")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[meshgen] ", log.LstdFlags|log.Lmicroseconds)

	var snap *snapshot.SnapshotV1
	if *snapPath != "" {
		s, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		snap = &s
		fmt.Printf("snapshot v%d world=%s seq=%d seed=%d height=%d chunks=%d\n",
			s.Header.Version, s.Header.WorldID, s.Header.Seq, s.Seed, s.Height, len(s.Chunks))
	}

	if *logsDir != "" {
		if snap == nil {
			fmt.Fprintln(os.Stderr, "-verify_logs needs -snapshot")
			os.Exit(2)
		}
		res, err := verifyLogs(*logsDir, *snap)
		if err != nil {
			logger.Fatalf("verify: %v", err)
		}
		fmt.Printf("verify: records=%d chunks=%d matched=%d unknown=%d\n", res.Records, res.Chunks, res.Matched, res.Unknown)
		if len(res.Mismatched) > 0 {
			for _, k := range res.Mismatched {
				fmt.Printf("digest mismatch chunk=(%d,%d)\n", k.CX, k.CZ)
			}
			os.Exit(1)
		}
		return
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Printf("load tuning: %v; using defaults", err)
		tune = tuning.Defaults()
	}
	if *workers > 0 {
		tune.Workers = *workers
	}
	genBlocks, err := gen.BlocksFrom(&cats.Blocks)
	if err != nil {
		logger.Fatalf("worldgen blocks: %v", err)
	}

	meta := world.SnapshotMeta{
		WorldID:         "meshgen",
		Seq:             1,
		Seed:            tune.Seed,
		Shape:           tune.WorldGen,
		CatalogDigest:   cats.Blocks.PaletteDigest,
		ProtocolVersion: protocol.Version,
	}
	if *seed != 0 {
		meta.Seed = *seed
	}
	var st *store.ChunkStore
	if snap != nil {
		if err := world.CheckSnapshot(*snap, snap.Header.WorldID, cats.Blocks.PaletteDigest); err != nil {
			logger.Fatalf("snapshot: %v", err)
		}
		meta.WorldID = snap.Header.WorldID
		meta.Seed = snap.Seed
		meta.Shape = world.ResumeShape(*snap, tune.WorldGen)
		meta.Seq = snap.Header.Seq + 1
		g := gen.New(gen.Params{Seed: meta.Seed, Shape: meta.Shape, Blocks: genBlocks})
		if st, err = store.ImportChunks(g, snap.Chunks); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
	} else {
		st = store.NewChunkStore(gen.New(gen.Params{Seed: meta.Seed, Shape: meta.Shape, Blocks: genBlocks}))
	}

	b := world.New(st, &cats.Blocks, world.Config{
		WorldID:       meta.WorldID,
		Workers:       tune.Workers,
		RelightRounds: tune.RelightRounds,
		QueueSize:     tune.JobQueue,
		Logger:        logger,
	})
	defer b.Close()

	reg, err := b.BuildRegion(context.Background(), regionAround(*cx, *cz, *radius))
	if err != nil {
		logger.Fatalf("build: %v", err)
	}
	printRegion(os.Stdout, reg, *asJSON)

	if *outPath != "" {
		if err := snapshot.WriteSnapshot(*outPath, world.ExportSnapshot(st, meta)); err != nil {
			logger.Fatalf("write snapshot: %v", err)
		}
		fmt.Printf("wrote %s chunks=%d\n", *outPath, st.Len())
	}
}

func regionAround(cx, cz, r int) []store.ChunkKey {
	if r < 0 {
		r = 0
	}
	keys := make([]store.ChunkKey, 0, (2*r+1)*(2*r+1))
	for x := cx - r; x <= cx+r; x++ {
		for z := cz - r; z <= cz+r; z++ {
			keys = append(keys, store.ChunkKey{CX: x, CZ: z})
		}
	}
	return keys
}

func printRegion(w io.Writer, reg world.Region, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, m := range reg.Meshes {
			_ = enc.Encode(m)
		}
		return
	}
	for _, m := range reg.Meshes {
		fmt.Fprintf(w, "chunk=(%d,%d) opaque=%d ice=%d water=%d dropped=%d words=%d/%d\n",
			m.Key.CX, m.Key.CZ, m.Stats.OpaqueFaces, m.Stats.IceFaces, m.Stats.WaterFaces, m.Stats.DroppedFaces,
			m.OpaqueWords, m.WaterWords)
	}
	fmt.Fprintf(w, "region chunks=%d generated=%d light_rounds=%d light_builds=%d faces=%d dropped=%d elapsed=%s\n",
		len(reg.Meshes), reg.Generated, reg.LightRounds, reg.LightBuilds,
		reg.Stats.OpaqueFaces+reg.Stats.IceFaces+reg.Stats.WaterFaces, reg.Stats.DroppedFaces, reg.Elapsed)
}

type verifyResult struct {
	Records    int
	Chunks     int
	Matched    int
	Unknown    int
	Mismatched []store.ChunkKey
}

// verifyLogs checks that the last logged build of every chunk saw the same
// blocks the snapshot holds.
func verifyLogs(dir string, snap snapshot.SnapshotV1) (verifyResult, error) {
	var res verifyResult
	files, err := listBuildFiles(dir)
	if err != nil {
		return res, err
	}
	if len(files) == 0 {
		return res, fmt.Errorf("no builds files found in %s", dir)
	}
	last := map[store.ChunkKey]string{}
	for _, path := range files {
		if err := readBuildFile(path, func(rec world.BuildRecord) {
			res.Records++
			last[rec.Key] = rec.Digest
		}); err != nil {
			return res, err
		}
	}

	want := make(map[store.ChunkKey]string, len(snap.Chunks))
	for _, c := range snap.Chunks {
		want[store.ChunkKey{CX: c.CX, CZ: c.CZ}] = c.Digest
	}
	keys := make([]store.ChunkKey, 0, len(last))
	for k := range last {
		keys = append(keys, k)
	}
	store.SortKeys(keys)
	res.Chunks = len(keys)
	for _, k := range keys {
		d, ok := want[k]
		switch {
		case !ok:
			res.Unknown++
		case d == last[k]:
			res.Matched++
		default:
			res.Mismatched = append(res.Mismatched, k)
		}
	}
	return res, nil
}

func listBuildFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "builds-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func readBuildFile(path string, fn func(world.BuildRecord)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var rec world.BuildRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		fn(rec)
	}
	return sc.Err()
}
