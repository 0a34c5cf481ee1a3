package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RepoTuning(t *testing.T) {
	tune, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning.yaml: %v", err)
	}
	if tune.Quarry.MaxHealth != 2000 || tune.Quarry.JunkChance != 60 || tune.Quarry.ChunkChance != 50 {
		t.Fatalf("quarry settings mismatch: %+v", tune.Quarry)
	}
	if p := tune.Preset("MINI_QUARRY"); p.DamageMultiplier != 3 || p.SinkholeFrequency != 75 {
		t.Fatalf("mini preset mismatch: %+v", p)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("quarry:\n  junk_chance: 10\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tune, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tune.Quarry.JunkChance != 10 {
		t.Fatalf("expected junk_chance=10, got %d", tune.Quarry.JunkChance)
	}
	if tune.Quarry.MaxHealth != 2000 || tune.Work.BaseTicksBetweenHits != 120 {
		t.Fatalf("defaults lost: %+v %+v", tune.Quarry, tune.Work)
	}
}

func TestLoad_RejectsOutOfRangeChance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("quarry:\n  chunk_chance: 101\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestEffectiveMaxHealth(t *testing.T) {
	if got := (Quarry{MaxHealth: 2000}).EffectiveMaxHealth(); got != 2000 {
		t.Fatalf("expected 2000, got %d", got)
	}
	if got := (Quarry{MaxHealth: 10000}).EffectiveMaxHealth(); got != 10000 {
		t.Fatalf("expected 10000 (still bounded), got %d", got)
	}
	if got := (Quarry{MaxHealth: 10100}).EffectiveMaxHealth(); got != 0 {
		t.Fatalf("expected unbounded (0), got %d", got)
	}
}

func TestPreset_FallsBackToQuarry(t *testing.T) {
	tune := Defaults()
	if p := tune.Preset("NOPE"); p.SinkholeFrequency != 100 {
		t.Fatalf("expected QUARRY fallback, got %+v", p)
	}
}
