package indexdb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"quarrysim.ai/internal/persistence/snapshot"
	"quarrysim.ai/internal/sim/catalogs"
	"quarrysim.ai/internal/sim/tuning"
	"quarrysim.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of outcomes, table revisions
// and snapshots. Writes are queued and applied by one goroutine; the JSONL
// event logs remain the source of truth.
type SQLiteIndex struct {
	db *sqlx.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropOutcome  atomic.Uint64
	dropTable    atomic.Uint64
	dropSnapshot atomic.Uint64
}

var _ world.OutcomeIndex = (*SQLiteIndex)(nil)

type reqKind int

const (
	reqOutcome reqKind = iota + 1
	reqTable
	reqSnapshot
)

type req struct {
	kind reqKind

	outcome  world.OutcomeEntry
	table    world.TableChangeEntry
	snapshot SnapshotRow
}

// SnapshotRow summarizes one written snapshot file.
type SnapshotRow struct {
	Tick     uint64 `db:"tick"`
	Path     string `db:"path"`
	RunID    string `db:"run_id"`
	Seed     int64  `db:"seed"`
	Revision int    `db:"table_revision"`
	Entries  int    `db:"table_entries"`
	Sites    int    `db:"sites"`
	Agents   int    `db:"agents"`
	Items    int    `db:"items"`
}

// OutcomeRow is one indexed extraction outcome.
type OutcomeRow struct {
	Tick      uint64  `db:"tick"`
	RunID     string  `db:"run_id"`
	CycleID   string  `db:"cycle_id"`
	AgentID   string  `db:"agent_id"`
	SiteID    string  `db:"site_id"`
	ItemID    string  `db:"item_id"`
	Kind      string  `db:"kind"`
	Count     int     `db:"count"`
	Condition float64 `db:"condition"`
	Quality   string  `db:"quality"`
	Mote      string  `db:"mote"`
	Hazard    bool    `db:"hazard"`
	Remaining float64 `db:"remaining"`
}

// TableRevisionRow is one resource table change.
type TableRevisionRow struct {
	Tick     uint64 `db:"tick"`
	RunID    string `db:"run_id"`
	Revision int    `db:"revision"`
	Op       string `db:"op"`
	Kind     string `db:"kind"`
	Weight   int    `db:"weight"`
	Entries  int    `db:"entries"`
	Total    int    `db:"total"`
}

// KindTotal aggregates outcomes for one item kind.
type KindTotal struct {
	Kind    string `db:"kind"`
	Jobs    int    `db:"jobs"`
	Units   int    `db:"units"`
	Hazards int    `db:"hazards"`
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropOutcomeTotal  uint64 `json:"drop_outcome_total"`
	DropTableTotal    uint64 `json:"drop_table_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func migrate(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS catalogs (
		name TEXT PRIMARY KEY,
		digest TEXT NOT NULL,
		json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		cycle_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent_id TEXT NOT NULL,
		site_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		count INTEGER NOT NULL,
		condition REAL NOT NULL,
		quality TEXT NOT NULL,
		mote TEXT NOT NULL,
		hazard INTEGER NOT NULL,
		remaining REAL NOT NULL,
		PRIMARY KEY (run_id, cycle_id)
	);

	CREATE TABLE IF NOT EXISTS table_revisions (
		run_id TEXT NOT NULL,
		revision INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		op TEXT NOT NULL,
		kind TEXT NOT NULL,
		weight INTEGER NOT NULL,
		entries INTEGER NOT NULL,
		total INTEGER NOT NULL,
		PRIMARY KEY (run_id, revision)
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		tick INTEGER PRIMARY KEY,
		path TEXT NOT NULL,
		run_id TEXT NOT NULL,
		seed INTEGER NOT NULL,
		table_revision INTEGER NOT NULL,
		table_entries INTEGER NOT NULL,
		sites INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		items INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_kind_tick ON outcomes(kind, tick);
	CREATE INDEX IF NOT EXISTS idx_outcomes_site_tick ON outcomes(site_id, tick);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropOutcomeTotal:  s.dropOutcome.Load(),
		DropTableTotal:    s.dropTable.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) RecordOutcome(entry world.OutcomeEntry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqOutcome, outcome: entry}:
	default:
		// Drop if the indexer falls behind.
		s.dropOutcome.Add(1)
	}
}

func (s *SQLiteIndex) RecordTableChange(entry world.TableChangeEntry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTable, table: entry}:
	default:
		s.dropTable.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := SnapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		RunID:    snap.Header.RunID,
		Seed:     snap.Seed,
		Revision: snap.TableRevision,
		Entries:  len(snap.Table),
		Sites:    len(snap.Sites),
		Agents:   len(snap.Agents),
		Items:    len(snap.Items),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// UpsertCatalog stores the thing definitions and the applied tuning so an
// index can be read without the config directory that produced it.
func (s *SQLiteIndex) UpsertCatalog(configDir string, c *catalogs.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" && c != nil {
		if b, err := os.ReadFile(filepath.Join(configDir, "things.json")); err == nil {
			rows = append(rows, kv{name: "things", digest: c.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// OutcomeFilter narrows Outcomes. Zero fields match everything.
type OutcomeFilter struct {
	RunID    string
	Kind     string
	SiteID   string
	AgentID  string
	FromTick uint64
	Limit    int
}

func (f OutcomeFilter) where() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}
	if f.RunID != "" {
		add("run_id = ?", f.RunID)
	}
	if f.Kind != "" {
		add("kind = ?", f.Kind)
	}
	if f.SiteID != "" {
		add("site_id = ?", f.SiteID)
	}
	if f.AgentID != "" {
		add("agent_id = ?", f.AgentID)
	}
	if f.FromTick > 0 {
		add("tick >= ?", int64(f.FromTick))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SQLiteIndex) Outcomes(ctx context.Context, f OutcomeFilter) ([]OutcomeRow, error) {
	where, args := f.where()
	q := `SELECT tick, run_id, cycle_id, agent_id, site_id, item_id, kind, count, condition, quality, mote, hazard, remaining
		FROM outcomes` + where + ` ORDER BY tick, cycle_id`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	var out []OutcomeRow
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// KindTotals aggregates outcomes per kind, most produced first.
func (s *SQLiteIndex) KindTotals(ctx context.Context, f OutcomeFilter) ([]KindTotal, error) {
	where, args := f.where()
	q := `SELECT kind, COUNT(*) AS jobs, COALESCE(SUM(count),0) AS units, COALESCE(SUM(hazard),0) AS hazards
		FROM outcomes` + where + ` GROUP BY kind ORDER BY units DESC, kind`
	var out []KindTotal
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteIndex) TableRevisions(ctx context.Context, runID string) ([]TableRevisionRow, error) {
	var out []TableRevisionRow
	err := s.db.SelectContext(ctx, &out,
		`SELECT tick, run_id, revision, op, kind, weight, entries, total
		FROM table_revisions WHERE run_id = ? ORDER BY revision`, runID)
	return out, err
}

func (s *SQLiteIndex) Snapshots(ctx context.Context) ([]SnapshotRow, error) {
	var out []SnapshotRow
	err := s.db.SelectContext(ctx, &out,
		`SELECT tick, path, run_id, seed, table_revision, table_entries, sites, agents, items
		FROM snapshots ORDER BY tick`)
	return out, err
}

func (s *SQLiteIndex) loop() {
	insertOutcome, _ := s.db.Preparex(`INSERT OR REPLACE INTO outcomes(cycle_id,run_id,tick,agent_id,site_id,item_id,kind,count,condition,quality,mote,hazard,remaining) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertTable, _ := s.db.Preparex(`INSERT OR REPLACE INTO table_revisions(run_id,revision,tick,op,kind,weight,entries,total) VALUES(?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Preparex(`INSERT OR REPLACE INTO snapshots(tick,path,run_id,seed,table_revision,table_entries,sites,agents,items) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sqlx.Stmt{insertOutcome, insertTable, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.Beginx()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sqlx.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmtx(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	// An idle writer still commits so readers on the single connection are
	// not blocked behind an open transaction.
	ticker := time.NewTicker(commitMaxWait / 4)
	defer ticker.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-ticker.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqOutcome:
			o := r.outcome
			exec(insertOutcome, o.CycleID, o.RunID, int64(o.Tick), o.AgentID, o.SiteID, o.ItemID,
				o.Kind, o.Count, o.Condition, o.Quality, o.Mote, o.Hazard, o.Remaining)
		case reqTable:
			t := r.table
			exec(insertTable, t.RunID, t.Revision, int64(t.Tick), t.Op, t.Kind, t.Weight, t.Entries, t.Total)
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.RunID, sn.Seed, sn.Revision, sn.Entries, sn.Sites, sn.Agents, sn.Items)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
}
