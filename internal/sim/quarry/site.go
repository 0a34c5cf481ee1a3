package quarry

import (
	"log"
	"sync"

	"quarrysim.ai/internal/sim/catalogs"
	"quarrysim.ai/internal/sim/depletion"
	"quarrysim.ai/internal/sim/extraction"
	"quarrysim.ai/internal/sim/tuning"
)

// Site presets.
const (
	PresetQuarry     = "QUARRY"
	PresetMiniQuarry = "MINI_QUARRY"
)

// Site is one worked quarry structure. Its tracker and job counter are shared
// by every agent working it and guarded by mu.
type Site struct {
	mu sync.Mutex

	ID         string
	PresetName string
	preset     tuning.SitePreset

	tracker       depletion.Tracker
	jobsCompleted int

	autoHaul bool
	mineMode extraction.Category

	rockTypes []string
	blocks    []string
	chunks    []string
}

// SiteState is the persisted form of a Site.
type SiteState struct {
	ID            string
	PresetName    string
	Remaining     float64
	JobsCompleted int
	AutoHaul      bool
	MineMode      string
	RockTypes     []string
}

// NewSite creates a full site over the given rock types. Rocks without both a
// chunk and a blocks product are ignored; when none remain the settings'
// fallback rocks are used.
func NewSite(id, presetName string, t tuning.Tuning, rockTypes []string, c *catalogs.Catalog, logger *log.Logger) *Site {
	s := &Site{
		ID:         id,
		PresetName: presetName,
		preset:     t.Preset(presetName),
		tracker:    depletion.New(t.Quarry.EffectiveMaxHealth()),
		autoHaul:   true,
		mineMode:   extraction.CategoryOre,
	}
	s.setRockTypes(rockTypes, t.Quarry.FallbackRocks, c, logger)
	return s
}

// RestoreSite rebuilds a site from its persisted state.
func RestoreSite(st SiteState, t tuning.Tuning, c *catalogs.Catalog, logger *log.Logger) *Site {
	s := NewSite(st.ID, st.PresetName, t, st.RockTypes, c, logger)
	s.tracker.Remaining = st.Remaining
	s.jobsCompleted = st.JobsCompleted
	s.autoHaul = st.AutoHaul
	if cat, err := extraction.ParseCategory(st.MineMode); err == nil {
		s.mineMode = cat
	}
	return s
}

func (s *Site) setRockTypes(rocks, fallback []string, c *catalogs.Catalog, logger *log.Logger) {
	var valid []string
	for _, r := range rocks {
		if c != nil && c.IsQuarryRock(r) {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		if logger == nil {
			logger = log.Default()
		}
		logger.Printf("WARNING: site %s: no valid rock types in %v, using fallback %v", s.ID, rocks, fallback)
		for _, r := range fallback {
			if c == nil || c.IsQuarryRock(r) {
				valid = append(valid, r)
			}
		}
	}
	s.rockTypes = valid
	s.blocks = s.blocks[:0]
	s.chunks = s.chunks[:0]
	for _, r := range valid {
		s.blocks = append(s.blocks, catalogs.BlocksPrefix+r)
		s.chunks = append(s.chunks, catalogs.ChunkPrefix+r)
	}
}

// RequestOutcome runs one extraction and applies the resulting wear, hazard
// damage and job count to the site.
func (s *Site) RequestOutcome(e *Engine, category extraction.Category) extraction.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := e.Decide(extraction.Input{
		Category:          category,
		JobsCompleted:     s.jobsCompleted,
		SinkholeFrequency: s.preset.SinkholeFrequency,
		Unbounded:         s.tracker.Unbounded(),
		Blocks:            s.blocks,
		Chunks:            s.chunks,
	})
	s.jobsCompleted += d.JobCounterDelta
	s.tracker.ApplyDamage(d.WearDamage, s.preset.DamageMultiplier)
	s.tracker.ApplyDamage(d.HazardDamage, s.preset.DamageMultiplier)
	return d.Outcome
}

// MineCategory is the category requested under the current mine mode.
func (s *Site) MineCategory() extraction.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mineMode
}

// ToggleMineMode flips between ore and blocks.
func (s *Site) ToggleMineMode() extraction.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mineMode == extraction.CategoryBlocks {
		s.mineMode = extraction.CategoryOre
	} else {
		s.mineMode = extraction.CategoryBlocks
	}
	return s.mineMode
}

func (s *Site) AutoHaul() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoHaul
}

func (s *Site) SetAutoHaul(v bool) {
	s.mu.Lock()
	s.autoHaul = v
	s.mu.Unlock()
}

func (s *Site) CurrentDepletionPercent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Percent()
}

func (s *Site) Depleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.IsDepleted()
}

func (s *Site) JobsCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobsCompleted
}

func (s *Site) RockTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rockTypes...)
}

// ApplySettings picks up a max health change. The remaining fraction is
// kept, so a bounded site switched to unbounded reports 100% and stops
// wearing, and switching back resumes from where it was.
func (s *Site) ApplySettings(q tuning.Quarry) {
	s.mu.Lock()
	s.tracker.SetMaxHealth(q.EffectiveMaxHealth())
	s.mu.Unlock()
}

func (s *Site) State() SiteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SiteState{
		ID:            s.ID,
		PresetName:    s.PresetName,
		Remaining:     s.tracker.Remaining,
		JobsCompleted: s.jobsCompleted,
		AutoHaul:      s.autoHaul,
		MineMode:      s.mineMode.String(),
		RockTypes:     append([]string(nil), s.rockTypes...),
	}
}
