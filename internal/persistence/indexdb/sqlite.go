package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/sim/catalogs"
	"voxelmesh.ai/internal/sim/terrain/store"
	"voxelmesh.ai/internal/sim/tuning"
	"voxelmesh.ai/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	written    atomic.Uint64
	dropped    atomic.Uint64
	writeFails atomic.Uint64
}

type reqKind int

const (
	reqBuild reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	build    world.BuildRecord
	snapshot snapshotRow
}

const defaultQueue = 65536

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, defaultQueue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS builds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			world_id TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			digest TEXT NOT NULL,
			opaque_faces INTEGER NOT NULL,
			ice_faces INTEGER NOT NULL,
			water_faces INTEGER NOT NULL,
			dropped_faces INTEGER NOT NULL,
			light_rounds INTEGER NOT NULL,
			build_us INTEGER NOT NULL,
			built_at TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_builds_chunk ON builds(cx, cz, id);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			seq INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			height INTEGER NOT NULL,
			chunks INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		Backend:         "sqlite",
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		WrittenTotal:    s.written.Load(),
		DropTotal:       s.dropped.Load(),
		WriteErrorTotal: s.writeFails.Load(),
	}
}

func (s *SQLiteIndex) WriteBuild(rec world.BuildRecord) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqBuild, build: rec}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropped.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: snapshotRowOf(path, snap)}:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range catalogRows(configDir, cats, tune) {
		if r.Name == "" || r.Digest == "" || len(r.JSON) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.Name, r.Digest, string(r.JSON), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigest returns the stored digest for a catalog row.
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, bool, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name=?`, name).Scan(&d)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return d, true, nil
}

// LatestBuild returns the newest indexed build of a chunk.
func (s *SQLiteIndex) LatestBuild(ctx context.Context, k store.ChunkKey) (BuildRow, bool, error) {
	var r BuildRow
	err := s.db.QueryRowContext(ctx, `SELECT world_id,cx,cz,digest,opaque_faces,ice_faces,water_faces,dropped_faces,light_rounds,build_us,built_at
		FROM builds WHERE cx=? AND cz=? ORDER BY id DESC LIMIT 1`, k.CX, k.CZ).Scan(
		&r.WorldID, &r.CX, &r.CZ, &r.Digest,
		&r.OpaqueFaces, &r.IceFaces, &r.WaterFaces, &r.DroppedFaces,
		&r.LightRounds, &r.BuildMicros, &r.BuiltAt,
	)
	if err == sql.ErrNoRows {
		return BuildRow{}, false, nil
	}
	if err != nil {
		return BuildRow{}, false, err
	}
	return r, true, nil
}

func (s *SQLiteIndex) CountBuilds(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM builds`).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertBuild, _ := s.db.Prepare(`INSERT INTO builds(world_id,cx,cz,digest,opaque_faces,ice_faces,water_faces,dropped_faces,light_rounds,build_us,built_at,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(seq,path,seed,height,chunks) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertBuild != nil {
			_ = insertBuild.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		n := opCount
		if err := tx.Commit(); err != nil {
			s.writeFails.Add(uint64(n))
		} else {
			s.written.Add(uint64(n))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeFails.Add(uint64(opCount) + 1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	// Idle commits keep readers from waiting on an open transaction.
	idle := time.NewTicker(commitMaxWait)
	defer idle.Stop()

	for {
		var r req
		var ok bool
		select {
		case r, ok = <-s.ch:
			if !ok {
				commit()
				return
			}
		case <-idle.C:
			if time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}

		begin()
		if tx == nil {
			s.writeFails.Add(1)
			continue
		}
		switch r.kind {
		case reqBuild:
			b := buildRow(r.build)
			raw, _ := json.Marshal(r.build)
			if insertBuild == nil {
				continue
			}
			if _, err := tx.Stmt(insertBuild).Exec(
				b.WorldID, b.CX, b.CZ, b.Digest,
				b.OpaqueFaces, b.IceFaces, b.WaterFaces, b.DroppedFaces,
				b.LightRounds, b.BuildMicros, b.BuiltAt,
				string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot == nil {
				continue
			}
			if _, err := tx.Stmt(insertSnapshot).Exec(int64(sn.Seq), sn.Path, sn.Seed, sn.Height, sn.Chunks); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
}
