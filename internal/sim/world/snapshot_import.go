package world

import (
	"fmt"

	"quarrysim.ai/internal/persistence/snapshot"
	"quarrysim.ai/internal/sim/extraction"
	"quarrysim.ai/internal/sim/oretable"
	"quarrysim.ai/internal/sim/quarry"
	"quarrysim.ai/internal/sim/tasks"
	"quarrysim.ai/internal/sim/tuning"
	modelpkg "quarrysim.ai/internal/sim/world/kernel/model"
)

// ImportSnapshot replaces the world state. It must be called before Run.
// Resource table kinds missing from the catalog are dropped with a warning.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}

	q := QuarrySettingsFromV1(snap.Settings)
	if err := w.engine.UpdateSettings(q); err != nil {
		return fmt.Errorf("snapshot settings: %w", err)
	}
	w.cfg.Tuning.Quarry = q
	if snap.Header.WorldID != "" {
		w.cfg.ID = snap.Header.WorldID
	}
	if snap.Header.RunID != "" {
		w.runID = snap.Header.RunID
	}
	if snap.SnapshotEveryTicks > 0 {
		w.cfg.SnapshotEveryTicks = snap.SnapshotEveryTicks
	}

	entries := make([]oretable.Entry, 0, len(snap.Table))
	for _, e := range snap.Table {
		entries = append(entries, oretable.Entry{Kind: e.Kind, Weight: e.Weight})
	}
	w.engine.RestoreTable(entries)

	w.sites = map[string]*siteState{}
	for _, s := range snap.Sites {
		if _, ok := w.cfg.Tuning.Sites[s.Preset]; !ok {
			return fmt.Errorf("site %s: unknown preset %q", s.ID, s.Preset)
		}
		site := quarry.RestoreSite(quarry.SiteState{
			ID:            s.ID,
			PresetName:    s.Preset,
			Remaining:     s.Remaining,
			JobsCompleted: s.JobsCompleted,
			AutoHaul:      s.AutoHaul,
			MineMode:      s.MineMode,
			RockTypes:     s.RockTypes,
		}, w.cfg.Tuning, w.catalog, w.logger)
		w.sites[s.ID] = &siteState{
			site:         site,
			pos:          vecFromV1(s.Pos),
			workCell:     vecFromV1(s.WorkCell),
			forbidden:    s.Forbidden,
			inaccessible: s.Inaccessible,
			depletedSent: s.DepletedSent,
		}
	}

	w.agents = map[string]*Agent{}
	w.reservations = map[string]reservation{}
	for _, av := range snap.Agents {
		a := &Agent{
			ID:          av.ID,
			Name:        av.Name,
			Player:      av.Player,
			Pos:         vecFromV1(av.Pos),
			HP:          av.HP,
			MiningSpeed: av.MiningSpeed,
			MiningXP:    av.MiningXP,
			CellsMined:  av.CellsMined,
			Carrying:    av.Carrying,
		}
		if av.Cycle != nil {
			c, err := cycleFromV1(a.ID, *av.Cycle)
			if err != nil {
				w.logger.Printf("WARNING: agent %s: dropping cycle: %v", a.ID, err)
				a.Carrying = ""
			} else {
				a.Cycle = c
				if c.Reserved {
					w.reservations[c.CycleID] = reservation{ItemID: c.ItemID, StorageID: c.StorageID, Slot: c.Slot}
				}
			}
		}
		w.agents[a.ID] = a
	}

	w.storages = map[string]*Storage{}
	for _, sv := range snap.Storages {
		slots := make([]modelpkg.Slot, len(sv.Slots))
		for i, sl := range sv.Slots {
			slots[i] = modelpkg.Slot{ItemID: sl.ItemID, ReservedBy: sl.ReservedBy}
		}
		w.storages[sv.ID] = &Storage{
			StorageID: sv.ID,
			Type:      sv.Type,
			Pos:       vecFromV1(sv.Pos),
			SiteID:    sv.SiteID,
			Priority:  sv.Priority,
			Accepts:   append([]string(nil), sv.Accepts...),
			Slots:     slots,
		}
	}

	w.items = map[string]*ItemEntity{}
	for _, iv := range snap.Items {
		w.items[iv.ID] = &ItemEntity{
			EntityID:       iv.ID,
			Pos:            vecFromV1(iv.Pos),
			Item:           iv.Item,
			Count:          iv.Count,
			Condition:      iv.Condition,
			HitPoints:      iv.HitPoints,
			Quality:        iv.Quality,
			CreatedTick:    iv.CreatedTick,
			HaulDesignated: iv.HaulDesignated,
			StoredIn:       iv.StoredIn,
			ReservedBy:     iv.ReservedBy,
		}
	}

	w.jobs = map[string]*storageJob{}
	for _, j := range snap.Jobs {
		w.jobs[j.ID] = &storageJob{ID: j.ID, ItemID: j.ItemID, StorageID: j.StorageID, Slot: j.Slot, JobType: j.JobType, DueTick: j.DueTick}
	}

	w.nextAgentNum.Store(snap.Counters.NextAgentNum)
	w.nextCycleNum.Store(snap.Counters.NextCycleNum)
	w.nextItemNum.Store(snap.Counters.NextItemNum)
	w.nextJobNum.Store(snap.Counters.NextJobNum)
	w.nextSiteNum.Store(snap.Counters.NextSiteNum)
	w.nextStoreNum.Store(snap.Counters.NextStoreNum)

	w.sweepReservations()
	w.tick.Store(snap.Header.Tick + 1)
	return nil
}

// sweepReservations clears holds whose cycle or job no longer exists.
func (w *World) sweepReservations() {
	live := map[string]bool{}
	for _, a := range w.agents {
		if a.Cycle != nil {
			live[a.Cycle.CycleID] = true
		}
	}
	for id := range w.jobs {
		live[id] = true
	}
	for _, it := range w.items {
		if it.ReservedBy != "" && !live[it.ReservedBy] {
			it.ReservedBy = ""
		}
	}
	for _, st := range w.storages {
		for i := range st.Slots {
			if by := st.Slots[i].ReservedBy; by != "" && !live[by] {
				st.Slots[i].ReservedBy = ""
			}
		}
	}
}

// QuarrySettingsFromV1 converts persisted quarry settings.
func QuarrySettingsFromV1(s snapshot.SettingsV1) tuning.Quarry {
	return tuning.Quarry{
		MaxHealth:     s.MaxHealth,
		JunkChance:    s.JunkChance,
		ChunkChance:   s.ChunkChance,
		Difficulty:    s.Difficulty,
		FillerKind:    s.FillerKind,
		ComponentKind: s.ComponentKind,
		ExcludedRocks: append([]string(nil), s.ExcludedRocks...),
		FallbackRocks: append([]string(nil), s.FallbackRocks...),
	}
}

func vecFromV1(v [3]int) Vec3i { return Vec3i{X: v[0], Y: v[1], Z: v[2]} }

func cycleFromV1(agentID string, cv snapshot.CycleV1) (*tasks.WorkCycle, error) {
	phase, ok := tasks.ParsePhase(cv.Phase)
	if !ok {
		return nil, fmt.Errorf("unknown phase %q", cv.Phase)
	}
	if phase.Terminal() {
		return nil, fmt.Errorf("terminal phase %s", phase)
	}
	c := &tasks.WorkCycle{
		CycleID:        cv.CycleID,
		AgentID:        agentID,
		SiteID:         cv.SiteID,
		Phase:          phase,
		StartedTick:    cv.StartedTick,
		PhaseTick:      cv.PhaseTick,
		TicksRemaining: cv.TicksRemaining,
		TicksToPickHit: cv.TicksToPickHit,
		ItemID:         cv.ItemID,
		StorageID:      cv.StorageID,
		Slot:           cv.Slot,
		Reserved:       cv.Reserved,
	}
	if o := cv.Outcome; o != nil {
		c.LastOutcome = &extraction.Outcome{
			Kind:      o.Kind,
			Quantity:  o.Quantity,
			Condition: o.Condition,
			Quality:   extraction.Quality(o.Quality),
			Mote:      extraction.ParseMote(o.Mote),
			Hazard:    o.Hazard,
			Filler:    o.Filler,
			Chunk:     o.Chunk,
			Component: o.Component,
		}
	}
	return c, nil
}
