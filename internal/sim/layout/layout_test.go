package layout

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"quarrysim.ai/internal/sim/catalogs"
	"quarrysim.ai/internal/sim/tuning"
	"quarrysim.ai/internal/sim/world"
)

func TestLoad_RepoLayout(t *testing.T) {
	cfg, err := Load("../../../configs/layout.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Sites) != 2 || cfg.Sites[1].Preset != "MINI_QUARRY" {
		t.Fatalf("unexpected sites: %+v", cfg.Sites)
	}
	if cfg.Sites[1].AutoHaul == nil || *cfg.Sites[1].AutoHaul {
		t.Fatalf("expected auto_haul=false on S2")
	}
	if len(cfg.Agents) != 4 || !cfg.Agents[3].Player {
		t.Fatalf("unexpected agents: %+v", cfg.Agents)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"dup.yaml":     "sites:\n  - id: S1\n  - id: S1\n",
		"nosite.yaml":  "agents:\n  - name: a\n",
		"storage.yaml": "sites:\n  - id: S1\nstorages:\n  - type: BARREL\n",
		"orphan.yaml":  "sites:\n  - id: S1\nstorages:\n  - type: platform\n    site_id: S9\n",
	}
	for name, body := range cases {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestApply(t *testing.T) {
	c, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	w, err := world.New(world.WorldConfig{Seed: 3, Tuning: tuning.Defaults()}, c, world.WorldOptions{Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	cfg, err := Load("../../../configs/layout.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Apply(w); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if w.Site("S2") == nil || w.Site("S2").AutoHaul() {
		t.Fatalf("S2 not applied with auto haul off")
	}
	if len(w.Site("S1").RockTypes()) == 0 {
		t.Fatalf("S1 has no rock types")
	}
	if w.Agent("A4") == nil || !w.Agent("A4").Player {
		t.Fatalf("player agent missing")
	}
	if st := w.Storage("ST1"); st == nil || st.SiteID != "S1" || len(st.Slots) != 8 {
		t.Fatalf("platform not applied: %+v", st)
	}
}
