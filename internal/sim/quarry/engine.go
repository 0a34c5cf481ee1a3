// Package quarry owns the shared extraction state: the process-wide resource
// table and settings (Engine) and each worked site's depletion and job
// counter (Site).
package quarry

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync"

	"quarrysim.ai/internal/sim/catalogs"
	"quarrysim.ai/internal/sim/extraction"
	"quarrysim.ai/internal/sim/oretable"
	"quarrysim.ai/internal/sim/tuning"
)

var ErrUnknownKind = errors.New("kind not in catalog")

// TableChange describes one committed table mutation.
type TableChange struct {
	Revision int
	Op       string
	Kind     string
	Weight   int
	Entries  []oretable.Entry
}

// Table ops reported in TableChange.
const (
	OpReset    = "RESET"
	OpAdd      = "ADD"
	OpRemove   = "REMOVE"
	OpReweight = "REWEIGHT"
	OpRestore  = "RESTORE"
)

// Engine is the process-wide extraction service. Every table mutation, every
// decision and the random source are serialized on one mutex.
type Engine struct {
	mu sync.Mutex

	catalog  *catalogs.Catalog
	settings tuning.Quarry
	table    *oretable.Table
	revision int
	rng      *rand.Rand
	logger   *log.Logger

	onChange func(TableChange)
}

func NewEngine(c *catalogs.Catalog, q tuning.Quarry, seed uint64, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		catalog:  c,
		settings: q,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:   logger,
	}
}

// OnTableChange registers a hook called, outside the lock, after each table
// mutation.
func (e *Engine) OnTableChange(fn func(TableChange)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

func (e *Engine) Catalog() *catalogs.Catalog { return e.catalog }

func (e *Engine) Settings() tuning.Quarry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// UpdateSettings swaps the extraction settings. The world applies max health
// changes to existing sites through Site.ApplySettings.
func (e *Engine) UpdateSettings(q tuning.Quarry) error {
	t := tuning.Defaults()
	t.Quarry = q
	if err := t.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.settings = q
	e.mu.Unlock()
	return nil
}

func (e *Engine) Revision() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revision
}

// ensureTableLocked builds the table on first use.
func (e *Engine) ensureTableLocked() {
	if e.table != nil {
		return
	}
	e.table = e.buildLocked()
	e.revision++
	e.logger.Printf("resource table built: %d entries", e.table.Len())
}

func (e *Engine) buildLocked() *oretable.Table {
	return oretable.Build(e.catalog, oretable.BuildOptions{
		Eligible:      catalogs.ResourceRock(e.settings.ExcludedRocks...),
		ComponentKind: e.settings.ComponentKind,
	})
}

// ResetTable rebuilds the table from the catalog.
func (e *Engine) ResetTable() []oretable.Share {
	e.mu.Lock()
	e.table = e.buildLocked()
	e.revision++
	ch := e.changeLocked(OpReset, "", 0)
	snap := e.table.Snapshot()
	e.mu.Unlock()
	e.notify(ch)
	return snap
}

func (e *Engine) AddEntry(kind string, weight int) error {
	if _, ok := e.catalog.FindByName(kind); !ok {
		return e.unknownKind(kind)
	}
	return e.mutate(OpAdd, kind, weight, func(t *oretable.Table) error { return t.Add(kind, weight) })
}

func (e *Engine) RemoveEntry(kind string) error {
	return e.mutate(OpRemove, kind, 0, func(t *oretable.Table) error { return t.Remove(kind) })
}

func (e *Engine) ReweightEntry(kind string, weight int) error {
	return e.mutate(OpReweight, kind, weight, func(t *oretable.Table) error { return t.Reweight(kind, weight) })
}

func (e *Engine) mutate(op, kind string, weight int, fn func(*oretable.Table) error) error {
	e.mu.Lock()
	e.ensureTableLocked()
	if err := fn(e.table); err != nil {
		e.mu.Unlock()
		return err
	}
	e.revision++
	if w, ok := e.table.Weight(kind); ok {
		weight = w
	}
	ch := e.changeLocked(op, kind, weight)
	e.mu.Unlock()
	e.notify(ch)
	return nil
}

func (e *Engine) TableSnapshot() []oretable.Share {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureTableLocked()
	return e.table.Snapshot()
}

// TableEntries returns the table for persistence. An unbuilt table is
// reported as nil so a restore rebuilds it lazily.
func (e *Engine) TableEntries() []oretable.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.table == nil {
		return nil
	}
	return e.table.Entries()
}

// Candidates lists catalog kinds that may be added to the table and are not
// already in it.
func (e *Engine) Candidates() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureTableLocked()
	var out []string
	for _, d := range e.catalog.Filter(catalogs.TableCandidate) {
		if _, ok := e.table.Weight(d.ID); !ok {
			out = append(out, d.ID)
		}
	}
	return out
}

// RestoreTable installs persisted entries. Kinds missing from the catalog and
// repeated kinds are dropped with a single warning. An empty result leaves the table to be
// rebuilt on first use.
func (e *Engine) RestoreTable(entries []oretable.Entry) []oretable.UnresolvedKindWarning {
	if len(entries) == 0 {
		return nil
	}
	t, dropped := oretable.Restore(entries, func(kind string) bool {
		_, ok := e.catalog.FindByName(kind)
		return ok
	})
	if len(dropped) > 0 {
		kinds := make([]string, 0, len(dropped))
		for _, d := range dropped {
			if d.Duplicate {
				kinds = append(kinds, d.Kind+" (duplicate)")
			} else {
				kinds = append(kinds, d.Kind)
			}
		}
		e.logger.Printf("WARNING: resource table: dropped %d entries: %s", len(dropped), strings.Join(kinds, ", "))
	}
	e.mu.Lock()
	if t.Len() > 0 {
		e.table = t
	} else {
		e.table = nil
	}
	e.revision++
	var ch *TableChange
	if e.table != nil {
		ch = e.changeLocked(OpRestore, "", 0)
	}
	e.mu.Unlock()
	if ch != nil {
		e.notify(ch)
	}
	return dropped
}

// Decide runs one extraction decision against the table. The caller owns the
// site-specific fields of in and applies the returned mutations.
func (e *Engine) Decide(in extraction.Input) extraction.Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureTableLocked()
	in.Table = e.table
	in.Things = e.catalog
	in.JunkChance = e.settings.JunkChance
	in.ChunkChance = e.settings.ChunkChance
	in.Difficulty = e.settings.Difficulty
	in.FillerKind = e.settings.FillerKind
	in.ComponentKind = e.settings.ComponentKind
	d := extraction.Decide(in, e.rng)
	for _, a := range d.Anomalies {
		e.logger.Printf("WARNING: extraction: %s", a)
	}
	return d
}

// IntN draws from the engine's random source.
func (e *Engine) IntN(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.IntN(n)
}

func (e *Engine) changeLocked(op, kind string, weight int) *TableChange {
	if e.onChange == nil {
		return nil
	}
	return &TableChange{Revision: e.revision, Op: op, Kind: kind, Weight: weight, Entries: e.table.Entries()}
}

func (e *Engine) notify(ch *TableChange) {
	if ch == nil {
		return
	}
	e.mu.Lock()
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn(*ch)
	}
}

func (e *Engine) unknownKind(kind string) error {
	if s := e.catalog.Suggest(kind, 3); len(s) > 0 {
		return fmt.Errorf("%w: %s (did you mean %s?)", ErrUnknownKind, kind, strings.Join(s, ", "))
	}
	return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}
