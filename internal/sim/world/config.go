package world

import "quarrysim.ai/internal/sim/tuning"

type WorldConfig struct {
	ID                 string
	TickRateHz         int
	SnapshotEveryTicks int
	Seed               int64

	Tuning tuning.Tuning

	// TerrainRocks are the rocks the terrain noise picks from. Empty means
	// every quarry rock in the catalog.
	TerrainRocks []string
	// SiteRadius is the footprint sampled for a site's rock composition.
	SiteRadius int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "quarry_1"
	}
	if c.Tuning.TickRateHz == 0 && c.Tuning.Work.BaseDurationTicks == 0 {
		c.Tuning = tuning.Defaults()
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = c.Tuning.TickRateHz
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 60
	}
	if c.SnapshotEveryTicks <= 0 {
		c.SnapshotEveryTicks = c.Tuning.SnapshotEveryTicks
	}
	if c.Seed == 0 {
		c.Seed = c.Tuning.Seed
	}
	if c.SiteRadius <= 0 {
		c.SiteRadius = 3
	}
}
