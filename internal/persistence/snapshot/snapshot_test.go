package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleSnapshot() SnapshotV1 {
	return SnapshotV1{
		Header:   Header{Version: Version, WorldID: "quarry_1", RunID: "run-1", Tick: 42},
		Seed:     7,
		TickRate: 60,
		Settings: SettingsV1{MaxHealth: 2000, JunkChance: 60, ChunkChance: 50, Difficulty: 1, FillerKind: "Filth_RubbleRock"},
		Table:    []TableEntryV1{{Kind: "Steel", Weight: 500}, {Kind: "ComponentIndustrial", Weight: 250}},
		Sites: []SiteV1{{
			ID: "S1", Preset: "QUARRY", Remaining: 1999, JobsCompleted: 1, AutoHaul: true,
			MineMode: "ORE", RockTypes: []string{"Granite"},
		}},
		Agents: []AgentV1{{
			ID: "A1", Name: "miner", HP: 100, MiningSpeed: 1,
			Cycle: &CycleV1{CycleID: "C1", SiteID: "S1", Phase: "EXTRACTING", TicksRemaining: 10,
				Outcome: &OutcomeV1{Kind: "Steel", Quantity: 3, Mote: "NONE"}},
		}},
		Storages: []StorageV1{{ID: "P1", Type: "PLATFORM", SiteID: "S1", Slots: []SlotV1{{}, {ItemID: "I1"}}}},
		Items:    []ItemV1{{ID: "I1", Item: "Steel", Count: 3, StoredIn: "P1"}},
		Counters: CountersV1{NextAgentNum: 1, NextCycleNum: 1, NextItemNum: 1},
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, 42)
	want := sampleSnapshot()
	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h != want.Header {
		t.Fatalf("header mismatch: %+v", h)
	}
}

func TestReadSnapshot_RejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	s := sampleSnapshot()
	s.Header.Version = 99
	if err := WriteSnapshot(path, s); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if _, ok := Latest(dir); ok {
		t.Fatalf("empty dir has no latest")
	}
	for _, tick := range []uint64{90, 1000, 300} {
		if err := WriteSnapshot(PathFor(dir, tick), sampleSnapshot()); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(PathFor(dir, 5000)+".tmp", []byte("partial"), 0o644)
	p, ok := Latest(dir)
	if !ok || filepath.Base(p) != "1000.snap.zst" {
		t.Fatalf("latest mismatch: %q", p)
	}
}

func TestWriteSnapshot_UnwritableTargetFails(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, 42)
	// A non-empty directory at the target path cannot be replaced.
	if err := os.MkdirAll(filepath.Join(path, "keep"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := WriteSnapshot(path, sampleSnapshot()); err == nil {
		t.Fatalf("expected error writing over a directory")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
	if p, ok := Latest(dir); ok {
		t.Fatalf("failed write produced a snapshot: %q", p)
	}
}

func TestWriteSnapshot_FailedWriteKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, 42)
	want := sampleSnapshot()
	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	// Block the temporary file so the second write fails before touching path.
	if err := os.MkdirAll(filepath.Join(path+".tmp", "keep"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	next := sampleSnapshot()
	next.Header.Tick = 43
	if err := WriteSnapshot(path, next); err == nil {
		t.Fatalf("expected error")
	}
	got, err := ReadSnapshot(path)
	if err != nil || got.Header.Tick != 42 {
		t.Fatalf("previous snapshot damaged: tick=%d err=%v", got.Header.Tick, err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("no space left on device") }

func TestEncodeSnapshot_ReportsWriteErrors(t *testing.T) {
	if err := encodeSnapshot(failingWriter{}, sampleSnapshot()); err == nil {
		t.Fatalf("write error was swallowed")
	}
}
