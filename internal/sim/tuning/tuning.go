package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxHealthInfinite is the configured max health above which sites never deplete.
const MaxHealthInfinite = 10000

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int   `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks"`
	Seed               int64 `yaml:"seed"`

	Quarry Quarry                `yaml:"quarry"`
	Sites  map[string]SitePreset `yaml:"sites"`
	Work   Work                  `yaml:"work"`
}

// Quarry holds the process-wide extraction settings.
type Quarry struct {
	MaxHealth   int     `yaml:"max_health"`
	JunkChance  int     `yaml:"junk_chance"`
	ChunkChance int     `yaml:"chunk_chance"`
	Difficulty  float64 `yaml:"difficulty"`

	FillerKind    string   `yaml:"filler_kind"`
	ComponentKind string   `yaml:"component_kind"`
	ExcludedRocks []string `yaml:"excluded_rocks"`
	FallbackRocks []string `yaml:"fallback_rocks"`
}

// SitePreset describes a kind of quarry structure.
type SitePreset struct {
	DamageMultiplier  int `yaml:"damage_multiplier"`
	SinkholeFrequency int `yaml:"sinkhole_frequency"`
	WallThickness     int `yaml:"wall_thickness"`
}

type Work struct {
	BaseTicksBetweenHits int     `yaml:"base_ticks_between_hits"`
	BaseDurationTicks    int     `yaml:"base_duration_ticks"`
	MinDurationTicks     int     `yaml:"min_duration_ticks"`
	MaxDurationTicks     int     `yaml:"max_duration_ticks"`
	MinNPCSpeed          float64 `yaml:"min_npc_speed"`
	SkillXPPerHit        float64 `yaml:"skill_xp_per_hit"`
	SinkholeDamage       int     `yaml:"sinkhole_damage"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         60,
		SnapshotEveryTicks: 3600,
		Seed:               1337,
		Quarry: Quarry{
			MaxHealth:     2000,
			JunkChance:    60,
			ChunkChance:   50,
			Difficulty:    1,
			FillerKind:    "Filth_RubbleRock",
			ComponentKind: "ComponentIndustrial",
			ExcludedRocks: []string{"MineableComponentsIndustrial"},
			FallbackRocks: []string{"Sandstone", "Limestone", "Granite", "Marble", "Slate"},
		},
		Sites: map[string]SitePreset{
			"QUARRY":      {DamageMultiplier: 1, SinkholeFrequency: 100, WallThickness: 2},
			"MINI_QUARRY": {DamageMultiplier: 3, SinkholeFrequency: 75, WallThickness: 1},
		},
		Work: Work{
			BaseTicksBetweenHits: 120,
			BaseDurationTicks:    3000,
			MinDurationTicks:     500,
			MaxDurationTicks:     10000,
			MinNPCSpeed:          0.5,
			SkillXPPerHit:        0.11,
			SinkholeDamage:       9,
		},
	}
}

// Load reads a tuning file. Fields missing from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	q := t.Quarry
	if q.MaxHealth <= 0 {
		return fmt.Errorf("quarry.max_health must be > 0")
	}
	if q.JunkChance < 0 || q.JunkChance > 100 {
		return fmt.Errorf("quarry.junk_chance out of range: %d", q.JunkChance)
	}
	if q.ChunkChance < 0 || q.ChunkChance > 100 {
		return fmt.Errorf("quarry.chunk_chance out of range: %d", q.ChunkChance)
	}
	if q.FillerKind == "" || q.ComponentKind == "" {
		return fmt.Errorf("quarry.filler_kind and quarry.component_kind are required")
	}
	for name, p := range t.Sites {
		if p.DamageMultiplier <= 0 || p.SinkholeFrequency <= 0 {
			return fmt.Errorf("sites.%s: damage_multiplier and sinkhole_frequency must be > 0", name)
		}
	}
	w := t.Work
	if w.MinDurationTicks <= 0 || w.MaxDurationTicks < w.MinDurationTicks {
		return fmt.Errorf("work: bad duration clamp [%d,%d]", w.MinDurationTicks, w.MaxDurationTicks)
	}
	return nil
}

// EffectiveMaxHealth maps the configured max health to the tracker value.
// Zero means unbounded.
func (q Quarry) EffectiveMaxHealth() int {
	if q.MaxHealth > MaxHealthInfinite {
		return 0
	}
	return q.MaxHealth
}

// Preset returns the named site preset, falling back to QUARRY.
func (t Tuning) Preset(name string) SitePreset {
	if p, ok := t.Sites[name]; ok {
		return p
	}
	if p, ok := t.Sites["QUARRY"]; ok {
		return p
	}
	return Defaults().Sites["QUARRY"]
}
