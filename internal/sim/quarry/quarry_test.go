package quarry

import (
	"bytes"
	"errors"
	"log"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"

	"quarrysim.ai/internal/sim/catalogs"
	"quarrysim.ai/internal/sim/extraction"
	"quarrysim.ai/internal/sim/oretable"
	"quarrysim.ai/internal/sim/tuning"
)

func loadCatalog(t *testing.T) *catalogs.Catalog {
	t.Helper()
	c, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func newEngine(t *testing.T) (*Engine, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	e := NewEngine(loadCatalog(t), tuning.Defaults().Quarry, 1, log.New(&buf, "", 0))
	return e, &buf
}

func TestEngine_LazyBuild(t *testing.T) {
	e, _ := newEngine(t)
	if e.TableEntries() != nil {
		t.Fatalf("table built before first use")
	}
	snap := e.TableSnapshot()
	if len(snap) == 0 || snap[len(snap)-1].Kind != "ComponentIndustrial" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !reflect.DeepEqual(snap, e.TableSnapshot()) {
		t.Fatalf("snapshot not idempotent")
	}
}

func TestEngine_MutationsAndHook(t *testing.T) {
	e, _ := newEngine(t)
	var changes []TableChange
	e.OnTableChange(func(ch TableChange) { changes = append(changes, ch) })

	if err := e.AddEntry("Artifact_Idol", 9); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if err := e.AddEntry("Artifact_Idol", 9); !errors.Is(err, oretable.ErrDuplicateKind) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if err := e.ReweightEntry("Artifact_Idol", 5000); err != nil {
		t.Fatalf("ReweightEntry: %v", err)
	}
	if err := e.RemoveEntry("Artifact_Idol"); err != nil {
		t.Fatalf("RemoveEntry: %v", err)
	}
	if err := e.RemoveEntry("Artifact_Idol"); !errors.Is(err, oretable.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	if changes[1].Op != OpReweight || changes[1].Weight != oretable.MaxWeight {
		t.Fatalf("reweight change mismatch: %+v", changes[1])
	}
	if changes[2].Revision <= changes[0].Revision {
		t.Fatalf("revision did not advance")
	}
}

func TestEngine_AddUnknownSuggests(t *testing.T) {
	e, _ := newEngine(t)
	err := e.AddEntry("Steal", 5)
	if !errors.Is(err, ErrUnknownKind) || !strings.Contains(err.Error(), "Steel") {
		t.Fatalf("expected suggestion for Steel, got %v", err)
	}
}

func TestEngine_ResetRebuilds(t *testing.T) {
	e, _ := newEngine(t)
	before := e.TableSnapshot()
	if err := e.ReweightEntry("Steel", 900); err != nil {
		t.Fatalf("ReweightEntry: %v", err)
	}
	if after := e.ResetTable(); !reflect.DeepEqual(before, after) {
		t.Fatalf("reset did not rebuild: %v vs %v", before, after)
	}
}

func TestEngine_RestoreDropsUnknownWithOneWarning(t *testing.T) {
	e, buf := newEngine(t)
	dropped := e.RestoreTable([]oretable.Entry{{Kind: "Steel", Weight: 10}, {Kind: "ModOreA", Weight: 3}, {Kind: "ModOreB", Weight: 3}})
	if len(dropped) != 2 {
		t.Fatalf("expected 2 dropped, got %v", dropped)
	}
	if n := strings.Count(buf.String(), "WARNING"); n != 1 {
		t.Fatalf("expected one warning line, got %d: %q", n, buf.String())
	}
	if got := e.TableEntries(); len(got) != 1 || got[0].Kind != "Steel" {
		t.Fatalf("restore mismatch: %v", got)
	}
}

func TestEngine_RestoreReportsDuplicates(t *testing.T) {
	e, buf := newEngine(t)
	dropped := e.RestoreTable([]oretable.Entry{{Kind: "Steel", Weight: 10}, {Kind: "Steel", Weight: 99}, {Kind: "ModOreA", Weight: 3}})
	if len(dropped) != 2 || !dropped[0].Duplicate || dropped[1].Duplicate {
		t.Fatalf("unexpected dropped entries: %+v", dropped)
	}
	out := buf.String()
	if strings.Count(out, "WARNING") != 1 || !strings.Contains(out, "Steel (duplicate)") || !strings.Contains(out, "ModOreA") {
		t.Fatalf("expected one warning naming both entries, got %q", out)
	}
	if got := e.TableEntries(); len(got) != 1 || got[0].Weight != 10 {
		t.Fatalf("first Steel entry should win: %v", got)
	}
}

func TestEngine_CandidatesExcludeTable(t *testing.T) {
	e, _ := newEngine(t)
	for _, k := range e.Candidates() {
		if k == "Steel" {
			t.Fatalf("Steel is already in the table")
		}
	}
}

func TestSite_RequestOutcomeAppliesWear(t *testing.T) {
	e, _ := newEngine(t)
	tu := tuning.Defaults()
	s := NewSite("S1", PresetQuarry, tu, []string{"Granite"}, e.Catalog(), nil)
	o := s.RequestOutcome(e, extraction.CategoryOre)
	if o.Kind == "" || o.Quantity < 1 {
		t.Fatalf("bad outcome: %+v", o)
	}
	if s.JobsCompleted() != 1 {
		t.Fatalf("expected 1 job, got %d", s.JobsCompleted())
	}
	if got := s.CurrentDepletionPercent(); math.Abs(got-99.95) > 1e-9 {
		t.Fatalf("expected 99.95%%, got %v", got)
	}

	mini := NewSite("S2", PresetMiniQuarry, tu, []string{"Granite"}, e.Catalog(), nil)
	mini.RequestOutcome(e, extraction.CategoryBlocks)
	if got := mini.CurrentDepletionPercent(); math.Abs(got-99.85) > 1e-9 {
		t.Fatalf("mini quarry: expected 99.85%%, got %v", got)
	}
}

func TestSite_DepletesWithinMaxHealthJobs(t *testing.T) {
	e, _ := newEngine(t)
	s := NewSite("S1", PresetQuarry, tuning.Defaults(), []string{"Granite"}, e.Catalog(), nil)
	for i := 0; i <= 2000 && !s.Depleted(); i++ {
		s.RequestOutcome(e, extraction.CategoryBlocks)
	}
	if !s.Depleted() {
		t.Fatalf("site not depleted after 2000 jobs: %v%%", s.CurrentDepletionPercent())
	}
}

func TestSite_Unbounded(t *testing.T) {
	e, _ := newEngine(t)
	tu := tuning.Defaults()
	tu.Quarry.MaxHealth = 20000
	s := NewSite("S1", PresetQuarry, tu, []string{"Granite"}, e.Catalog(), nil)
	for i := 0; i < 50; i++ {
		s.RequestOutcome(e, extraction.CategoryOre)
	}
	if s.CurrentDepletionPercent() != 100 || s.Depleted() {
		t.Fatalf("unbounded site changed: %v", s.CurrentDepletionPercent())
	}
}

func TestSite_ApplySettingsBoundedToUnbounded(t *testing.T) {
	e, _ := newEngine(t)
	tu := tuning.Defaults()
	tu.Quarry.MaxHealth = 100
	s := NewSite("S1", PresetQuarry, tu, []string{"Granite"}, e.Catalog(), nil)
	for i := 0; i < 10; i++ {
		s.RequestOutcome(e, extraction.CategoryOre)
	}
	worn := s.CurrentDepletionPercent()
	if worn >= 100 {
		t.Fatalf("expected wear, got %v", worn)
	}

	q := tu.Quarry
	q.MaxHealth = tuning.MaxHealthInfinite + 1
	if err := e.UpdateSettings(q); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	s.ApplySettings(q)
	if got := s.CurrentDepletionPercent(); got != 100 {
		t.Fatalf("unbounded site should report 100%%, got %v", got)
	}
	for i := 0; i < 20; i++ {
		s.RequestOutcome(e, extraction.CategoryOre)
	}
	if got := s.CurrentDepletionPercent(); got != 100 || s.Depleted() {
		t.Fatalf("unbounded site wore: %v", got)
	}

	q.MaxHealth = 100
	s.ApplySettings(q)
	if got := s.CurrentDepletionPercent(); math.Abs(got-worn) > 1e-9 {
		t.Fatalf("bounded again: expected %v, got %v", worn, got)
	}
}

func TestSite_FallbackRocks(t *testing.T) {
	var buf bytes.Buffer
	c := loadCatalog(t)
	s := NewSite("S1", PresetQuarry, tuning.Defaults(), []string{"Obsidian"}, c, log.New(&buf, "", 0))
	want := []string{"Sandstone", "Limestone", "Granite", "Marble", "Slate"}
	if got := s.RockTypes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("fallback mismatch: %v", got)
	}
	if !strings.Contains(buf.String(), "WARNING") {
		t.Fatalf("expected fallback warning")
	}
}

func TestSite_ConcurrentRequests(t *testing.T) {
	e, _ := newEngine(t)
	s := NewSite("S1", PresetQuarry, tuning.Defaults(), []string{"Granite"}, e.Catalog(), nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.RequestOutcome(e, extraction.CategoryOre)
			}
		}()
	}
	wg.Wait()
	if s.JobsCompleted() != 400 {
		t.Fatalf("expected 400 jobs, got %d", s.JobsCompleted())
	}
}

func TestSite_StateRoundTrip(t *testing.T) {
	e, _ := newEngine(t)
	tu := tuning.Defaults()
	s := NewSite("S1", PresetMiniQuarry, tu, []string{"Marble"}, e.Catalog(), nil)
	s.SetAutoHaul(false)
	s.ToggleMineMode()
	s.RequestOutcome(e, s.MineCategory())
	st := s.State()
	r := RestoreSite(st, tu, e.Catalog(), nil)
	if !reflect.DeepEqual(r.State(), st) {
		t.Fatalf("state mismatch:\n got %+v\nwant %+v", r.State(), st)
	}
	if r.MineCategory() != extraction.CategoryBlocks || r.AutoHaul() {
		t.Fatalf("flags not restored")
	}
}
