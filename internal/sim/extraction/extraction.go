// Package extraction decides what a single quarry job yields.
//
// Decide is pure: it reads the table and site state handed to it and returns
// the outcome together with the mutations (wear, hazard damage, job counter)
// the caller must apply to the site.
package extraction

import (
	"fmt"
	"math"

	"quarrysim.ai/internal/protocol"
	"quarrysim.ai/internal/sim/catalogs"
	"quarrysim.ai/internal/sim/oretable"
)

type Category int

const (
	CategoryNone Category = iota
	CategoryOre
	CategoryBlocks
)

func (c Category) String() string {
	switch c {
	case CategoryOre:
		return "ORE"
	case CategoryBlocks:
		return "BLOCKS"
	default:
		return "NONE"
	}
}

func ParseCategory(s string) (Category, error) {
	switch s {
	case "ORE":
		return CategoryOre, nil
	case "BLOCKS":
		return CategoryBlocks, nil
	case "NONE", "":
		return CategoryNone, nil
	}
	return CategoryNone, fmt.Errorf("unknown category %q", s)
}

type Mote int

const (
	MoteNone Mote = iota
	MoteHighYield
	MoteFailure
)

func (m Mote) String() string {
	switch m {
	case MoteHighYield:
		return protocol.MoteHighYield
	case MoteFailure:
		return protocol.MoteFailure
	default:
		return protocol.MoteNone
	}
}

func ParseMote(s string) Mote {
	switch s {
	case protocol.MoteHighYield:
		return MoteHighYield
	case protocol.MoteFailure:
		return MoteFailure
	}
	return MoteNone
}

// HighYieldQuantity is the stack size from which an outcome is a high yield.
const HighYieldQuantity = 30

// Outcome is the transient result of one completed job.
type Outcome struct {
	Kind      string
	Quantity  int
	Condition float64
	Quality   Quality
	Mote      Mote
	Hazard    bool

	Filler    bool
	Chunk     bool
	Component bool
}

// Sampler draws a kind from the weighted resource table.
type Sampler interface {
	Sample(r oretable.Rand) (string, error)
}

// Lookup resolves kinds against the thing catalog.
type Lookup interface {
	FindByName(name string) (catalogs.ThingDef, bool)
}

// Rand is the subset of math/rand/v2.Rand used by Decide.
type Rand interface {
	IntN(n int) int
	Float64() float64
	NormFloat64() float64
}

type Input struct {
	Category Category

	// JobsCompleted is the site's job counter before this job.
	JobsCompleted     int
	SinkholeFrequency int
	Difficulty        float64
	Unbounded         bool

	JunkChance  int
	ChunkChance int

	FillerKind    string
	ComponentKind string

	Blocks []string
	Chunks []string
	Table  Sampler
	Things Lookup
}

// Decision carries the outcome and the mutations the caller applies.
type Decision struct {
	Outcome Outcome

	JobCounterDelta int
	WearDamage      int
	HazardDamage    int

	Anomalies []string
}

func Decide(in Input, r Rand) Decision {
	d := Decision{JobCounterDelta: 1}
	jobs := in.JobsCompleted + 1

	if in.SinkholeFrequency > 0 && jobs%in.SinkholeFrequency == 0 && chance(r, in.Difficulty/50) {
		d.Outcome.Hazard = true
		d.HazardDamage = 1 + r.IntN(3)
	}
	if !in.Unbounded {
		d.WearDamage = 1
	}

	// Both rolls are taken up front so every branch sees the same pair.
	junk := chance(r, float64(in.JunkChance)/100)
	chunk := chance(r, float64(in.ChunkChance)/100)

	var (
		kind string
		bulk bool
		mote = MoteNone
	)
	switch {
	case in.Category == CategoryBlocks && junk:
		kind, mote = in.FillerKind, MoteFailure
	case in.Category == CategoryBlocks:
		kind, bulk = pickUniform(in.Blocks, r), true
		if kind == "" {
			d.Anomalies = append(d.Anomalies, "no block kinds for site rock types")
		}
	case in.Category == CategoryOre && junk && !chunk:
		kind, mote = in.FillerKind, MoteFailure
	case in.Category == CategoryOre && junk:
		kind = pickUniform(in.Chunks, r)
		if kind == "" {
			d.Anomalies = append(d.Anomalies, "no chunk kinds for site rock types")
		}
	case in.Category == CategoryOre:
		sampled, err := in.Table.Sample(r)
		if err != nil {
			d.Anomalies = append(d.Anomalies, fmt.Sprintf("sample resource table: %v", err))
		}
		kind, bulk = sampled, true
	default:
		kind = in.FillerKind
	}

	def, ok := resolve(in.Things, kind)
	if !ok && kind != in.FillerKind {
		if kind != "" {
			d.Anomalies = append(d.Anomalies, fmt.Sprintf("unresolved kind %q, substituting %s", kind, in.FillerKind))
		}
		kind, bulk, mote = in.FillerKind, false, MoteNone
		def, ok = resolve(in.Things, kind)
	}

	out := &d.Outcome
	out.Kind = kind
	out.Mote = mote
	out.Quality = QualityNone
	out.Condition = 1
	out.Filler = kind == in.FillerKind
	out.Component = kind == in.ComponentKind
	out.Chunk = ok && def.IsChunk()

	stackLimit := 1
	if ok && def.StackLimit > 0 {
		stackLimit = def.StackLimit
	}
	switch {
	case !bulk:
		out.Quantity = 1
	case out.Component:
		out.Quantity = 1 + r.IntN(2)
	default:
		out.Quantity = BulkQuantity(def.MarketValue, stackLimit, r)
	}
	if out.Quantity >= HighYieldQuantity && out.Mote != MoteFailure && !out.Hazard {
		out.Mote = MoteHighYield
	}

	if ok && def.UseHitPoints && !out.Filler && !out.Chunk && !out.Component {
		minCondition := 0.25
		if def.HasQuality {
			out.Quality = GenerateTraderQuality(r)
			minCondition = clamp(float64(out.Quality)/10, 0.1, 0.7)
		}
		out.Condition = minCondition + r.Float64()*(1-minCondition)
	}
	return d
}

// BulkQuantity sizes a multi-unit stack: cheaper material comes in larger
// stacks, never above the stack limit.
func BulkQuantity(marketValue float64, stackLimit int, r Rand) int {
	sub := int(math.Floor(marketValue / 2))
	if sub < 0 {
		sub = 0
	}
	if sub > 10 {
		sub = 10
	}
	lo, hi := 15-sub, 40-2*sub
	n := lo + r.IntN(hi-lo+1)
	if stackLimit > 0 && n > stackLimit {
		n = stackLimit
	}
	if n < 1 {
		n = 1
	}
	return n
}

func resolve(things Lookup, kind string) (catalogs.ThingDef, bool) {
	if things == nil || kind == "" {
		return catalogs.ThingDef{}, false
	}
	return things.FindByName(kind)
}

func pickUniform(kinds []string, r Rand) string {
	if len(kinds) == 0 {
		return ""
	}
	return kinds[r.IntN(len(kinds))]
}

func chance(r Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	return r.Float64() < p
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
