package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/sim/catalogs"
	"voxelmesh.ai/internal/sim/tuning"
	"voxelmesh.ai/internal/sim/world"
)

// D1Config configures the HTTP ingest backend. Events are posted in batches
// as {"events":[...]} to Endpoint.
type D1Config struct {
	Endpoint      string
	Token         string
	WorldID       string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Logger        *log.Logger
}

type D1Index struct {
	cfg        D1Config
	httpClient *http.Client

	ch   chan d1Event
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	written    atomic.Uint64
	dropped    atomic.Uint64
	flushFails atomic.Uint64
}

type d1Event struct {
	Kind    string `json:"kind"`
	WorldID string `json:"world_id"`
	Payload any    `json:"payload"`
}

type d1CatalogPayload struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	JSON      string `json:"json"`
	UpdatedAt string `json:"updated_at"`
}

func OpenD1(cfg D1Config) (*D1Index, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.WorldID = strings.TrimSpace(cfg.WorldID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty d1 ingest endpoint")
	}
	if cfg.WorldID == "" {
		return nil, fmt.Errorf("empty world id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	d := &D1Index{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		ch: make(chan d1Event, 32768),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()

	return d, nil
}

func (d *D1Index) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *D1Index) Stats() Stats {
	return Stats{
		Backend:         "d1",
		QueueDepth:      len(d.ch),
		QueueCapacity:   cap(d.ch),
		WrittenTotal:    d.written.Load(),
		DropTotal:       d.dropped.Load(),
		WriteErrorTotal: d.flushFails.Load(),
	}
}

func (d *D1Index) WriteBuild(rec world.BuildRecord) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	d.enqueue(d1Event{Kind: "build", WorldID: d.cfg.WorldID, Payload: buildRow(rec)})
	return nil
}

func (d *D1Index) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if d == nil || d.closed.Load() {
		return
	}
	d.enqueue(d1Event{Kind: "snapshot", WorldID: d.cfg.WorldID, Payload: snapshotRowOf(path, snap)})
}

func (d *D1Index) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if d == nil || d.closed.Load() || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range catalogRows(configDir, cats, tune) {
		if r.Name == "" || r.Digest == "" || len(r.JSON) == 0 {
			continue
		}
		d.enqueue(d1Event{Kind: "catalog", WorldID: d.cfg.WorldID, Payload: d1CatalogPayload{
			Name:      r.Name,
			Digest:    r.Digest,
			JSON:      string(r.JSON),
			UpdatedAt: now,
		}})
	}
	return nil
}

func (d *D1Index) enqueue(ev d1Event) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- ev:
	default:
		d.dropped.Add(1)
		d.printf("d1 index queue full; drop kind=%s world=%s", ev.Kind, ev.WorldID)
	}
}

func (d *D1Index) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	// A failed batch is kept and retried on the next flush, up to maxRetained
	// events; older events are dropped first.
	maxRetained := d.cfg.BatchSize * 64
	batch := make([]d1Event, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFails.Add(1)
			d.printf("d1 index flush failed batch=%d err=%v", len(batch), err)
			if over := len(batch) - maxRetained; over > 0 {
				d.dropped.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		d.written.Add(uint64(len(batch)))
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *D1Index) sendBatch(events []d1Event) error {
	if len(events) == 0 {
		return nil
	}

	body := struct {
		Events []d1Event `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-vm-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *D1Index) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
