package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "voxelmesh.ai/internal/persistence/log"
	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/protocol"
	"voxelmesh.ai/internal/sim/catalogs"
	"voxelmesh.ai/internal/sim/chunk"
	"voxelmesh.ai/internal/sim/terrain/gen"
	"voxelmesh.ai/internal/sim/terrain/store"
	"voxelmesh.ai/internal/sim/tuning"
	"voxelmesh.ai/internal/sim/world"
	"voxelmesh.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 0, "world seed for a fresh world (0 = tuning seed)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (builds + catalogs + snapshot metadata)")
		warmRadius = flag.Int("warm_radius", 0, "build the (2r+1)^2 chunks around the origin at startup")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	genBlocks, err := gen.BlocksFrom(&cats.Blocks)
	if err != nil {
		logger.Fatalf("worldgen blocks: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)
	snapDir := filepath.Join(worldDir, "snapshots")

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		if snapshotToLoad, err = snapshot.Latest(snapDir); err != nil {
			logger.Fatalf("list snapshots: %v", err)
		}
	}

	// Load tuning (required for fresh world; optional for snapshot resumes).
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if tune.ProtocolVersion != protocol.Version {
		logger.Fatalf("tuning protocol_version=%s, server speaks %s", tune.ProtocolVersion, protocol.Version)
	}

	// Optional: read-model index backend.
	idx, err := openRuntimeIndex(worldDir, *worldID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	// Create the chunk store (fresh or resumed from snapshot).
	meta := world.SnapshotMeta{
		WorldID:         *worldID,
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
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := world.CheckSnapshot(snap, *worldID, cats.Blocks.PaletteDigest); err != nil {
			logger.Fatalf("snapshot: %v", err)
		}
		meta.Seed = snap.Seed
		meta.Shape = world.ResumeShape(snap, tune.WorldGen)
		meta.Seq = snap.Header.Seq + 1
		g := gen.New(gen.Params{Seed: meta.Seed, Shape: meta.Shape, Blocks: genBlocks})
		if st, err = store.ImportChunks(g, snap.Chunks); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s seq=%d chunks=%d", filepath.Base(snapshotToLoad), snap.Header.Seq, st.Len())
	} else {
		st = store.NewChunkStore(gen.New(gen.Params{Seed: meta.Seed, Shape: meta.Shape, Blocks: genBlocks}))
	}

	var sinks multiBuildLogger
	var buildLog *persistlog.BuildLogger
	if tune.LogBuilds {
		buildLog = persistlog.NewBuildLogger(worldDir)
		defer buildLog.Close()
		sinks = append(sinks, buildLog)
	}
	if idx != nil {
		sinks = append(sinks, idx)
	}
	regionLog := persistlog.NewRegionLogger(worldDir)
	defer regionLog.Close()

	builder := world.New(st, &cats.Blocks, world.Config{
		WorldID:       *worldID,
		Workers:       tune.Workers,
		RelightRounds: tune.RelightRounds,
		QueueSize:     tune.JobQueue,
		MaxRegion:     tune.MaxRegion,
		Logger:        logger,
		BuildLog:      sinks,
	})
	defer builder.Close()

	ctx, cancel := signalContext()
	defer cancel()

	snaps := newSnapshotter(snapDir, tune.SnapshotKeep, st, meta, idx, logger)
	if tune.SnapshotEverySeconds > 0 {
		go snaps.run(ctx, time.Duration(tune.SnapshotEverySeconds)*time.Second)
	}

	if *warmRadius > 0 {
		reg, err := builder.BuildRegion(ctx, squareRegion(*warmRadius))
		if err != nil {
			logger.Fatalf("warm build: %v", err)
		}
		if err := regionLog.WriteRegion(reg); err != nil {
			logger.Printf("region log: %v", err)
		}
	}

	wsSrv := ws.NewServer(builder, ws.Config{
		WorldID: *worldID,
		Params: protocol.WorldParams{
			ChunkWidth:    chunk.Width,
			Height:        chunk.Height,
			Seed:          meta.Seed,
			RelightRounds: tune.RelightRounds,
			MaxRegion:     tune.MaxRegion,
		},
		Catalogs: protocol.CatalogDigests{
			BlockPalette: protocol.DigestRef{Digest: cats.Blocks.PaletteDigest, Count: len(cats.Blocks.Palette)},
			TuningDigest: tuningDigest(tune),
		},
		SendQueue: tune.SendQueue,
		Logger:    logger,
	})

	rt := &runtime{
		worldID:  *worldID,
		builder:  builder,
		ws:       wsSrv,
		idx:      idx,
		buildLog: buildLog,
		snaps:    snaps,
		logger:   logger,
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           rt.mux(envBool("VM_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()), envBool("VM_ENABLE_PPROF_HTTP", false)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Final snapshot so a restart resumes where this run stopped.
	if tune.SnapshotEverySeconds > 0 {
		if _, err := snaps.Write(); err != nil {
			logger.Printf("final snapshot: %v", err)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func squareRegion(r int) []store.ChunkKey {
	keys := make([]store.ChunkKey, 0, (2*r+1)*(2*r+1))
	for cx := -r; cx <= r; cx++ {
		for cz := -r; cz <= r; cz++ {
			keys = append(keys, store.ChunkKey{CX: cx, CZ: cz})
		}
	}
	return keys
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
