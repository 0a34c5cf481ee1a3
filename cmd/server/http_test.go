package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quarrysim.ai/internal/sim/catalogs"
	"quarrysim.ai/internal/sim/layout"
	"quarrysim.ai/internal/sim/tuning"
	"quarrysim.ai/internal/sim/world"
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	c, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "w1", Seed: 9, Tuning: tuning.Defaults()}, c, world.WorldOptions{Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if err := layout.Defaults().Apply(w); err != nil {
		t.Fatalf("layout: %v", err)
	}
	for i := 0; i < 3; i++ {
		w.StepOnce(nil)
	}
	return w
}

func TestMetricsHandler(t *testing.T) {
	w := newTestWorld(t)
	mux := newMux(w, nil, log.New(io.Discard, "", 0), false)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`quarrysim_world_tick{world="w1"} 3`,
		`quarrysim_world_agents{world="w1"} 3`,
		`quarrysim_active_cycles{world="w1"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "quarrysim_index_queue_depth") {
		t.Fatalf("index metrics without an index")
	}
}

func TestAdminState(t *testing.T) {
	w := newTestWorld(t)
	var logs bytes.Buffer
	mux := newMux(w, nil, log.New(&logs, "", 0), true)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	var resp struct {
		WorldID string `json:"world_id"`
		Tick    uint64 `json:"tick"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WorldID != "w1" || resp.Tick != 3 {
		t.Fatalf("unexpected state: %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/outcomes", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without index, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "192.168.1.9:4000"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for remote peer, got %d", rr.Code)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("QS_TEST_FLAG", "off")
	if envBool("QS_TEST_FLAG", true) {
		t.Fatalf("expected false")
	}
	t.Setenv("QS_TEST_FLAG", "")
	if !envBool("QS_TEST_FLAG", true) {
		t.Fatalf("expected default")
	}
}
