package indexdb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"voxelmesh.ai/internal/sim/terrain/store"
	"voxelmesh.ai/internal/sim/world"
)

func TestD1Index_RetainsBatchOnFlushFailure(t *testing.T) {
	var mu sync.Mutex
	reqCount := 0
	var kinds []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		thisReq := reqCount
		mu.Unlock()

		if thisReq <= 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}

		var body struct {
			Events []d1Event `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mu.Lock()
		for _, ev := range body.Events {
			kinds = append(kinds, ev.Kind)
		}
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	idx, err := OpenD1(D1Config{
		Endpoint:      srv.URL,
		WorldID:       "world_1",
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
		HTTPTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("OpenD1: %v", err)
	}
	defer func() { _ = idx.Close() }()

	if err := idx.WriteBuild(world.BuildRecord{Key: store.ChunkKey{CX: 1}, Digest: "abc"}); err != nil {
		t.Fatalf("WriteBuild: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(kinds) >= 1
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	got := append([]string(nil), kinds...)
	finalReqCount := reqCount
	mu.Unlock()

	if len(got) < 1 || got[0] != "build" {
		t.Fatalf("expected retained batch to be eventually delivered; kinds=%v reqCount=%d", got, finalReqCount)
	}

	st := idx.Stats()
	if st.WriteErrorTotal == 0 {
		t.Fatalf("expected flush failures to be recorded, got 0")
	}
	if st.DropTotal != 0 {
		t.Fatalf("unexpected queue drops: %d", st.DropTotal)
	}
}

func TestOpenD1RequiresEndpointAndWorld(t *testing.T) {
	if _, err := OpenD1(D1Config{WorldID: "w"}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
	if _, err := OpenD1(D1Config{Endpoint: "http://127.0.0.1:1"}); err == nil {
		t.Fatalf("expected error for empty world id")
	}
}
