package catalogs

import (
	"testing"
)

func loadRepoCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func TestLoad_RepoThings(t *testing.T) {
	c := loadRepoCatalog(t)
	if c.Digest == "" {
		t.Fatalf("expected digest")
	}
	steel, ok := c.FindByName("Steel")
	if !ok {
		t.Fatalf("Steel missing")
	}
	if steel.StackLimit != 75 || !steel.UseHitPoints {
		t.Fatalf("Steel def mismatch: %+v", steel)
	}
	if _, ok := c.FindByName("NotAThing"); ok {
		t.Fatalf("unexpected hit for unknown kind")
	}
}

func TestParse_RejectsSchemaViolation(t *testing.T) {
	if _, err := Parse([]byte(`[{"id":"X","category":"WEIRD"}]`)); err == nil {
		t.Fatalf("expected schema error for bad category")
	}
	if _, err := Parse([]byte(`[{"category":"ITEM"}]`)); err == nil {
		t.Fatalf("expected schema error for missing id")
	}
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New([]ThingDef{{ID: "A", Category: CategoryItem}, {ID: "A", Category: CategoryItem}})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestQuarryRocks(t *testing.T) {
	c := loadRepoCatalog(t)
	rocks := c.QuarryRocks()
	want := []string{"Granite", "Limestone", "Marble", "Sandstone", "Slate"}
	if len(rocks) != len(want) {
		t.Fatalf("rocks mismatch: got %v want %v", rocks, want)
	}
	for i := range want {
		if rocks[i] != want[i] {
			t.Fatalf("rocks mismatch: got %v want %v", rocks, want)
		}
	}
	if c.IsQuarryRock("Obsidian") {
		t.Fatalf("Obsidian has no chunk/blocks and must not be valid")
	}
	chunk, ok := c.ChunkFor("Granite")
	if !ok || !chunk.IsChunk() {
		t.Fatalf("expected ChunkGranite tagged as stone chunk, got %+v ok=%v", chunk, ok)
	}
}

func TestResourceRockPredicate(t *testing.T) {
	c := loadRepoCatalog(t)
	rocks := c.Filter(ResourceRock("MineableComponentsIndustrial"))
	seen := map[string]bool{}
	for _, r := range rocks {
		seen[r.ID] = true
	}
	if seen["MineableComponentsIndustrial"] {
		t.Fatalf("excluded rock was accepted")
	}
	if seen["Granite"] {
		t.Fatalf("non-resource rock was accepted")
	}
	if !seen["MineableSteel"] || !seen["MineableJade"] {
		t.Fatalf("expected resource rocks, got %v", seen)
	}
}

func TestTableCandidate(t *testing.T) {
	c := loadRepoCatalog(t)
	got := map[string]bool{}
	for _, d := range c.Filter(TableCandidate) {
		got[d.ID] = true
	}
	if got["RawBerries"] {
		t.Fatalf("rottable item must not be a candidate")
	}
	if got["MineableSteel"] || got["Filth_RubbleRock"] {
		t.Fatalf("non-items must not be candidates")
	}
	if !got["Artifact_Idol"] || !got["Steel"] {
		t.Fatalf("expected scatterable items as candidates, got %v", got)
	}
}

func TestSuggest(t *testing.T) {
	c := loadRepoCatalog(t)
	s := c.Suggest("Steal", 3)
	if len(s) == 0 || s[0] != "Steel" {
		t.Fatalf("expected Steel first, got %v", s)
	}
	if s := c.Suggest("zzzzzzzzzzzzzzzzzzzzzzzz", 3); len(s) != 0 {
		t.Fatalf("expected no suggestions, got %v", s)
	}
}
