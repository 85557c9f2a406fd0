package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voxelmesh.ai/internal/persistence/indexdb"
	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/sim/catalogs"
	"voxelmesh.ai/internal/sim/tuning"
	"voxelmesh.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.BuildLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() indexdb.Stats
}

func openRuntimeIndex(worldDir, worldID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VM_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "world.sqlite")
		return indexdb.OpenSQLite(dbPath)
	case "d1":
		endpoint := strings.TrimSpace(os.Getenv("VM_INDEX_D1_INGEST_URL"))
		token := strings.TrimSpace(os.Getenv("VM_INDEX_D1_TOKEN"))
		if endpoint == "" {
			return nil, fmt.Errorf("VM_INDEX_BACKEND=d1 but VM_INDEX_D1_INGEST_URL is empty")
		}
		flushMS := envInt("VM_INDEX_D1_FLUSH_MS", 500)
		batchSize := envInt("VM_INDEX_D1_BATCH_SIZE", 128)
		idx, err := indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         token,
			WorldID:       worldID,
			BatchSize:     batchSize,
			FlushInterval: time.Duration(flushMS) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported VM_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// multiBuildLogger fans a build record out to the JSONL log and the index.
type multiBuildLogger []world.BuildLogger

func (m multiBuildLogger) WriteBuild(rec world.BuildRecord) error {
	for _, l := range m {
		if l != nil {
			_ = l.WriteBuild(rec)
		}
	}
	return nil
}
