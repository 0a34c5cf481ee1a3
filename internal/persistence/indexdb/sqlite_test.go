package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"quarrysim.ai/internal/persistence/snapshot"
	"quarrysim.ai/internal/sim/catalogs"
	"quarrysim.ai/internal/sim/tuning"
	"quarrysim.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqOutcome}

	s.RecordOutcome(world.OutcomeEntry{Tick: 2})
	s.RecordTableChange(world.TableChangeEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropOutcomeTotal != 1 || st.DropTableTotal != 1 || st.DropSnapshotTotal != 1 {
		t.Fatalf("unexpected drop stats: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WriteAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if err := s.UpsertCatalog("../../../configs", c, tuning.Defaults()); err != nil {
		t.Fatalf("upsert catalog: %v", err)
	}

	outcomes := []world.OutcomeEntry{
		{Tick: 10, RunID: "r1", CycleID: "C000001", AgentID: "A1", SiteID: "S1", ItemID: "I000001", Kind: "Steel", Count: 30, Condition: 0.9, Quality: "NORMAL", Mote: "HIGH_YIELD", Remaining: 99.9},
		{Tick: 20, RunID: "r1", CycleID: "C000002", AgentID: "A1", SiteID: "S1", ItemID: "I000002", Kind: "Steel", Count: 12, Condition: 0.4, Quality: "POOR", Mote: "NONE", Hazard: true, Remaining: 99.5},
		{Tick: 25, RunID: "r1", CycleID: "C000003", AgentID: "A2", SiteID: "S2", ItemID: "I000003", Kind: "Jade", Count: 5, Condition: 1, Quality: "GOOD", Mote: "NONE", Remaining: 99.9},
	}
	for _, o := range outcomes {
		s.RecordOutcome(o)
	}
	s.RecordTableChange(world.TableChangeEntry{Tick: 3, RunID: "r1", Revision: 2, Op: "REWEIGHT", Kind: "Steel", Weight: 900, Entries: 8, Total: 1500})
	s.RecordTableChange(world.TableChangeEntry{Tick: 4, RunID: "r1", Revision: 3, Op: "RESET", Entries: 8, Total: 1000})
	s.RecordSnapshot("snap/30.snap.zst", snapshot.SnapshotV1{
		Header: snapshot.Header{Tick: 30, RunID: "r1"},
		Seed:   42,
		Sites:  []snapshot.SiteV1{{ID: "S1"}, {ID: "S2"}},
	})

	// Close drains the queue and commits.
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	steel, err := s.Outcomes(ctx, OutcomeFilter{Kind: "Steel"})
	if err != nil {
		t.Fatalf("outcomes: %v", err)
	}
	if len(steel) != 2 || steel[0].CycleID != "C000001" || !steel[1].Hazard || steel[1].Count != 12 {
		t.Fatalf("unexpected steel outcomes: %+v", steel)
	}
	bySite, err := s.Outcomes(ctx, OutcomeFilter{SiteID: "S2", FromTick: 21})
	if err != nil || len(bySite) != 1 || bySite[0].Kind != "Jade" {
		t.Fatalf("site filter: %+v %v", bySite, err)
	}

	totals, err := s.KindTotals(ctx, OutcomeFilter{RunID: "r1"})
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if len(totals) != 2 || totals[0].Kind != "Steel" || totals[0].Units != 42 || totals[0].Jobs != 2 || totals[0].Hazards != 1 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	revs, err := s.TableRevisions(ctx, "r1")
	if err != nil || len(revs) != 2 || revs[0].Op != "REWEIGHT" || revs[1].Revision != 3 {
		t.Fatalf("revisions: %+v %v", revs, err)
	}
	snaps, err := s.Snapshots(ctx)
	if err != nil || len(snaps) != 1 || snaps[0].Sites != 2 || snaps[0].Seed != 42 {
		t.Fatalf("snapshots: %+v %v", snaps, err)
	}

	var n int
	if err := s.db.Get(&n, `SELECT COUNT(*) FROM catalogs`); err != nil || n != 2 {
		t.Fatalf("expected 2 catalog rows, got %d (%v)", n, err)
	}
}
