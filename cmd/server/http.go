package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"

	"voxelmesh.ai/internal/persistence/indexdb"
	persistlog "voxelmesh.ai/internal/persistence/log"
	"voxelmesh.ai/internal/sim/world"
	"voxelmesh.ai/internal/transport/ws"
)

type runtime struct {
	worldID  string
	builder  *world.Builder
	ws       *ws.Server
	idx      runtimeIndex
	buildLog *persistlog.BuildLogger
	snaps    *snapshotter
	logger   *log.Logger
}

func (rt *runtime) mux(enableAdmin, enablePprof bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", rt.metrics)

	if enableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string         `json:"world_id"`
				Chunks  int            `json:"chunks"`
				Builder world.Metrics  `json:"builder"`
				WS      ws.Stats       `json:"ws"`
				Index   *indexdb.Stats `json:"index,omitempty"`
			}{
				WorldID: rt.worldID,
				Chunks:  rt.builder.Store().Len(),
				Builder: rt.builder.Metrics(),
				WS:      rt.ws.Stats(),
			}
			if rt.idx != nil {
				st := rt.idx.Stats()
				resp.Index = &st
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			path, err := rt.snaps.Write()
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "path": path})
		})
	} else {
		rt.logger.Printf("admin endpoints disabled (VM_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		rt.logger.Printf("pprof endpoints disabled (VM_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", rt.ws.Handler())
	return mux
}

func (rt *runtime) metrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w := rt.worldID
	m := rt.builder.Metrics()
	wsStats := rt.ws.Stats()

	// Minimal Prometheus exposition format.
	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s{world=%q} %v\n", name, w, v)
	}
	counter := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s counter\n", name)
		fmt.Fprintf(rw, "%s{world=%q} %v\n", name, w, v)
	}

	gauge("voxelmesh_loaded_chunks", "Loaded chunk count.", rt.builder.Store().Len())
	gauge("voxelmesh_builder_workers", "Build worker goroutines.", m.Workers)
	gauge("voxelmesh_builder_queue_depth", "Queued build jobs.", m.QueueDepth)
	counter("voxelmesh_light_builds_total", "Light maps computed.", m.LightBuilds)
	counter("voxelmesh_mesh_builds_total", "Meshes built.", m.MeshBuilds)
	counter("voxelmesh_dropped_faces_total", "Faces dropped because a vertex buffer was full.", m.DroppedFaces)
	counter("voxelmesh_build_failures_total", "Failed light or mesh jobs.", m.Failures)

	gauge("voxelmesh_ws_connections", "Open websocket sessions.", wsStats.Connections)
	counter("voxelmesh_ws_requests_total", "Websocket requests served.", wsStats.Requests)
	counter("voxelmesh_ws_errors_total", "Websocket requests answered with ERROR.", wsStats.Errors)

	if rt.snaps != nil {
		counter("voxelmesh_snapshots_written_total", "Snapshots written by this process.", rt.snaps.written.Load())
		gauge("voxelmesh_snapshot_last_unix", "Unix time of the last snapshot.", rt.snaps.lastUnix.Load())
	}
	if rt.buildLog != nil {
		counter("voxelmesh_build_log_lines_total", "Build log lines written.", rt.buildLog.Lines())
	}
	if rt.idx != nil {
		s := rt.idx.Stats()
		fmt.Fprintf(rw, "# HELP voxelmesh_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE voxelmesh_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "voxelmesh_index_queue_depth{world=%q,backend=%q} %d\n", w, s.Backend, s.QueueDepth)
		fmt.Fprintf(rw, "# HELP voxelmesh_index_written_total Index rows written.\n")
		fmt.Fprintf(rw, "# TYPE voxelmesh_index_written_total counter\n")
		fmt.Fprintf(rw, "voxelmesh_index_written_total{world=%q,backend=%q} %d\n", w, s.Backend, s.WrittenTotal)
		fmt.Fprintf(rw, "# HELP voxelmesh_index_dropped_total Index rows dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE voxelmesh_index_dropped_total counter\n")
		fmt.Fprintf(rw, "voxelmesh_index_dropped_total{world=%q,backend=%q} %d\n", w, s.Backend, s.DropTotal)
		fmt.Fprintf(rw, "# HELP voxelmesh_index_write_errors_total Index writes that failed.\n")
		fmt.Fprintf(rw, "# TYPE voxelmesh_index_write_errors_total counter\n")
		fmt.Fprintf(rw, "voxelmesh_index_write_errors_total{world=%q,backend=%q} %d\n", w, s.Backend, s.WriteErrorTotal)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
