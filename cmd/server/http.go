package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"quarrysim.ai/internal/persistence/indexdb"
	"quarrysim.ai/internal/sim/world"
	"quarrysim.ai/internal/transport/observer"
	"quarrysim.ai/internal/transport/ws"
)

func newMux(w *world.World, idx *indexdb.SQLiteIndex, logger *log.Logger, enableAdmin bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, idx))

	if !enableAdmin {
		logger.Printf("admin endpoints disabled (QS_ENABLE_ADMIN_HTTP=false)")
		return mux
	}

	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID string             `json:"world_id"`
			RunID   string             `json:"run_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: w.ID(),
			RunID:   w.RunID(),
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		rep, err := w.RequestSnapshot(ctx2)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "snapshot": rep, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "snapshot": rep})
	})
	mux.HandleFunc("/admin/v1/outcomes", func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 || limit > 1000 {
			limit = 100
		}
		f := indexdb.OutcomeFilter{RunID: w.RunID(), Kind: q.Get("kind"), SiteID: q.Get("site_id"), AgentID: q.Get("agent_id"), Limit: limit}
		rows, err := idx.Outcomes(r.Context(), f)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(rows)
	})

	obsSrv := observer.NewServer(w, logger)
	mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	mux.HandleFunc("/admin/v1/control/ws", ws.NewServer(w, logger).Handler())
	return mux
}

func metricsHandler(w *world.World, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		id := w.ID()
		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP quarrysim_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE quarrysim_world_tick gauge\n")
		fmt.Fprintf(rw, "quarrysim_world_tick{world=%q} %d\n", id, tick)

		fmt.Fprintf(rw, "# HELP quarrysim_world_agents Agents in the world.\n")
		fmt.Fprintf(rw, "# TYPE quarrysim_world_agents gauge\n")
		fmt.Fprintf(rw, "quarrysim_world_agents{world=%q} %d\n", id, m.Agents)

		fmt.Fprintf(rw, "# HELP quarrysim_active_cycles Work cycles in progress.\n")
		fmt.Fprintf(rw, "# TYPE quarrysim_active_cycles gauge\n")
		fmt.Fprintf(rw, "quarrysim_active_cycles{world=%q} %d\n", id, m.ActiveCycles)

		fmt.Fprintf(rw, "# HELP quarrysim_items Item stacks on the ground or stored.\n")
		fmt.Fprintf(rw, "# TYPE quarrysim_items gauge\n")
		fmt.Fprintf(rw, "quarrysim_items{world=%q} %d\n", id, m.Items)

		fmt.Fprintf(rw, "# HELP quarrysim_outcomes_total Extraction outcomes produced.\n")
		fmt.Fprintf(rw, "# TYPE quarrysim_outcomes_total counter\n")
		fmt.Fprintf(rw, "quarrysim_outcomes_total{world=%q} %d\n", id, m.Outcomes)

		fmt.Fprintf(rw, "# HELP quarrysim_pick_hits_total Pick hits landed.\n")
		fmt.Fprintf(rw, "# TYPE quarrysim_pick_hits_total counter\n")
		fmt.Fprintf(rw, "quarrysim_pick_hits_total{world=%q} %d\n", id, m.PickHits)

		fmt.Fprintf(rw, "# HELP quarrysim_world_queue_depth Command inbox backlog.\n")
		fmt.Fprintf(rw, "# TYPE quarrysim_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "quarrysim_world_queue_depth{world=%q,queue=%q} %d\n", id, "inbox", m.Inbox)

		fmt.Fprintf(rw, "# HELP quarrysim_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE quarrysim_world_step_ms gauge\n")
		fmt.Fprintf(rw, "quarrysim_world_step_ms{world=%q} %.3f\n", id, m.StepMS)

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP quarrysim_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE quarrysim_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "quarrysim_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP quarrysim_index_dropped_total Index records dropped under backpressure.\n")
			fmt.Fprintf(rw, "# TYPE quarrysim_index_dropped_total counter\n")
			fmt.Fprintf(rw, "quarrysim_index_dropped_total{kind=%q} %d\n", "outcome", st.DropOutcomeTotal)
			fmt.Fprintf(rw, "quarrysim_index_dropped_total{kind=%q} %d\n", "table", st.DropTableTotal)
			fmt.Fprintf(rw, "quarrysim_index_dropped_total{kind=%q} %d\n", "snapshot", st.DropSnapshotTotal)
		}
	}
}
