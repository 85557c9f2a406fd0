package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/sim/terrain/store"
	"voxelmesh.ai/internal/sim/tuning"
	"voxelmesh.ai/internal/sim/world"
)

// snapshotter writes numbered snapshots of the store and prunes old ones.
type snapshotter struct {
	dir    string
	keep   int
	st     *store.ChunkStore
	idx    runtimeIndex
	logger *log.Logger

	mu   sync.Mutex
	meta world.SnapshotMeta

	written  atomic.Uint64
	lastUnix atomic.Int64
}

func newSnapshotter(dir string, keep int, st *store.ChunkStore, meta world.SnapshotMeta, idx runtimeIndex, logger *log.Logger) *snapshotter {
	return &snapshotter{dir: dir, keep: keep, st: st, meta: meta, idx: idx, logger: logger}
}

func (s *snapshotter) run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Write(); err != nil {
				s.logger.Printf("snapshot write: %v", err)
			}
		}
	}
}

// Write saves the next snapshot and returns its path.
func (s *snapshotter) Write() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := world.ExportSnapshot(s.st, s.meta)
	path := filepath.Join(s.dir, snapshot.FileName(s.meta.Seq))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	s.meta.Seq++
	s.written.Add(1)
	s.lastUnix.Store(time.Now().Unix())
	if s.idx != nil {
		s.idx.RecordSnapshot(path, snap)
	}
	if n, err := snapshot.Prune(s.dir, s.keep); err != nil {
		s.logger.Printf("snapshot prune: %v", err)
	} else if n > 0 {
		s.logger.Printf("pruned %d old snapshots", n)
	}
	s.logger.Printf("snapshot seq=%d chunks=%d path=%s", snap.Header.Seq, len(snap.Chunks), path)
	return path, nil
}

func tuningDigest(t tuning.Tuning) string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
