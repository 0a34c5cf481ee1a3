// Package oretable holds the weighted resource table sampled when a quarry
// yields ore.
//
// A table is an ordered list of (kind, weight) entries. Build orders entries
// by ascending weight; Sample walks the entries in table order, so equal
// weights keep their insertion order and the last entry absorbs any remainder.
package oretable

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"quarrysim.ai/internal/sim/catalogs"
)

// MaxWeight bounds every entry weight.
const MaxWeight = 1000

var (
	ErrEmptyTable    = errors.New("resource table is empty")
	ErrDuplicateKind = errors.New("kind already in resource table")
	ErrNotFound      = errors.New("kind not in resource table")
	ErrMinimumSize   = errors.New("resource table must keep at least one entry")
)

type Entry struct {
	Kind   string `json:"kind"`
	Weight int    `json:"weight"`
}

// Share is one row of a table snapshot.
type Share struct {
	Kind    string  `json:"kind"`
	Weight  int     `json:"weight"`
	Percent float64 `json:"percent"`
}

// Rand is the subset of math/rand/v2.Rand used for sampling.
type Rand interface {
	IntN(n int) int
}

// Table is not safe for concurrent use; quarry.Engine serializes access.
type Table struct {
	entries []Entry
}

// New builds a table from explicit entries. Weights are clamped to
// [0, MaxWeight].
func New(entries []Entry) (*Table, error) {
	t := &Table{}
	for _, e := range entries {
		if err := t.Add(e.Kind, e.Weight); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// BuildOptions configures Build.
type BuildOptions struct {
	Eligible      catalogs.Predicate
	ComponentKind string
}

// Build derives a table from every eligible rock in the catalog. Each rock
// contributes its yielded kind; the component kind is appended last, rarer
// than the rarest ore.
func Build(c *catalogs.Catalog, opts BuildOptions) *Table {
	t := &Table{}
	if c == nil {
		return t
	}
	for _, rock := range c.Filter(opts.Eligible) {
		yielded, ok := c.FindByName(rock.Mineable.Yields)
		if !ok {
			continue
		}
		if t.indexOf(yielded.ID) >= 0 {
			continue
		}
		w := WeightFor(rock.Mineable.ScatterCommonality, yielded.DeepCommonality, yielded.MarketValue)
		t.entries = append(t.entries, Entry{Kind: yielded.ID, Weight: w})
	}
	sort.SliceStable(t.entries, func(i, j int) bool { return t.entries[i].Weight < t.entries[j].Weight })

	if opts.ComponentKind != "" && t.indexOf(opts.ComponentKind) < 0 {
		t.entries = append(t.entries, Entry{Kind: opts.ComponentKind, Weight: ComponentWeight(t.entries)})
	}
	return t
}

// WeightFor computes the commonality-derived weight of a mineable resource.
func WeightFor(scatter, deep, marketValue float64) int {
	valDeep := clamp(deep, 0, 1.5)
	valScatter := scatter * CommonalityCurve(scatter)
	valMarket := math.Max(marketValue/5, 2)
	return clampWeight(int(math.Floor(50 * valDeep * valScatter / valMarket)))
}

// CommonalityCurve maps scatter commonality to a multiplier. Each breakpoint's
// multiplier applies up to and including that breakpoint.
func CommonalityCurve(scatter float64) float64 {
	switch {
	case scatter <= 0:
		return 10
	case scatter <= 0.02:
		return 9
	case scatter <= 0.04:
		return 8
	case scatter <= 0.06:
		return 6
	case scatter <= 0.08:
		return 3
	default:
		return 1
	}
}

// ComponentWeight is 1.5x the minimum weight in entries (MaxWeight when
// empty), capped at MaxWeight.
func ComponentWeight(entries []Entry) int {
	lowest := MaxWeight
	for _, e := range entries {
		if e.Weight < lowest {
			lowest = e.Weight
		}
	}
	return clampWeight(lowest + lowest/2)
}

func (t *Table) Len() int { return len(t.entries) }

func (t *Table) Total() int {
	sum := 0
	for _, e := range t.entries {
		sum += e.Weight
	}
	return sum
}

// Entries returns a copy of the table in order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Table) Weight(kind string) (int, bool) {
	i := t.indexOf(kind)
	if i < 0 {
		return 0, false
	}
	return t.entries[i].Weight, true
}

// Sample draws one kind with probability weight/total.
func (t *Table) Sample(r Rand) (string, error) {
	total := t.Total()
	if len(t.entries) == 0 || total <= 0 {
		return "", ErrEmptyTable
	}
	return t.Pick(r.IntN(total))
}

// Pick resolves a roll in [0, Total()) to a kind.
func (t *Table) Pick(roll int) (string, error) {
	total := t.Total()
	if len(t.entries) == 0 || total <= 0 {
		return "", ErrEmptyTable
	}
	if roll < 0 || roll >= total {
		return "", fmt.Errorf("roll %d outside [0,%d)", roll, total)
	}
	for _, e := range t.entries {
		if roll < e.Weight {
			return e.Kind, nil
		}
		roll -= e.Weight
	}
	return t.entries[len(t.entries)-1].Kind, nil
}

func (t *Table) Add(kind string, weight int) error {
	if kind == "" {
		return fmt.Errorf("empty kind")
	}
	if t.indexOf(kind) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, kind)
	}
	t.entries = append(t.entries, Entry{Kind: kind, Weight: clampWeight(weight)})
	return nil
}

// Remove deletes kind. A table with a single entry rejects every removal.
func (t *Table) Remove(kind string) error {
	if len(t.entries) <= 1 {
		return ErrMinimumSize
	}
	i := t.indexOf(kind)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, kind)
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return nil
}

func (t *Table) Reweight(kind string, weight int) error {
	i := t.indexOf(kind)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, kind)
	}
	t.entries[i].Weight = clampWeight(weight)
	return nil
}

// ShareOf returns weight as a fraction of the total, or 0 for an empty table.
func (t *Table) ShareOf(weight int) float64 {
	total := t.Total()
	if total <= 0 {
		return 0
	}
	return float64(weight) / float64(total)
}

// Snapshot lists every entry with its share as a percentage.
func (t *Table) Snapshot() []Share {
	out := make([]Share, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, Share{Kind: e.Kind, Weight: e.Weight, Percent: t.ShareOf(e.Weight) * 100})
	}
	return out
}

func (t *Table) Clone() *Table {
	return &Table{entries: t.Entries()}
}

func (t *Table) indexOf(kind string) int {
	for i, e := range t.entries {
		if e.Kind == kind {
			return i
		}
	}
	return -1
}

func clampWeight(w int) int {
	if w < 0 {
		return 0
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
