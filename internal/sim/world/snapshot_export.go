package world

import (
	"quarrysim.ai/internal/persistence/snapshot"
	"quarrysim.ai/internal/sim/extraction"
	"quarrysim.ai/internal/sim/tasks"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	// Snapshot must be called from the world loop goroutine.
	q := w.engine.Settings()
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			RunID:   w.runID,
			Tick:    nowTick,
		},
		Seed:               w.cfg.Seed,
		TickRate:           w.cfg.TickRateHz,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		Settings: snapshot.SettingsV1{
			MaxHealth:     q.MaxHealth,
			JunkChance:    q.JunkChance,
			ChunkChance:   q.ChunkChance,
			Difficulty:    q.Difficulty,
			FillerKind:    q.FillerKind,
			ComponentKind: q.ComponentKind,
			ExcludedRocks: append([]string(nil), q.ExcludedRocks...),
			FallbackRocks: append([]string(nil), q.FallbackRocks...),
		},
		TableRevision: w.engine.Revision(),
		Counters: snapshot.CountersV1{
			NextAgentNum: w.nextAgentNum.Load(),
			NextCycleNum: w.nextCycleNum.Load(),
			NextItemNum:  w.nextItemNum.Load(),
			NextJobNum:   w.nextJobNum.Load(),
			NextSiteNum:  w.nextSiteNum.Load(),
			NextStoreNum: w.nextStoreNum.Load(),
		},
	}
	for _, e := range w.engine.TableEntries() {
		snap.Table = append(snap.Table, snapshot.TableEntryV1{Kind: e.Kind, Weight: e.Weight})
	}

	for _, id := range w.sortedSiteIDs() {
		st := w.sites[id]
		s := st.site.State()
		snap.Sites = append(snap.Sites, snapshot.SiteV1{
			ID:            id,
			Preset:        s.PresetName,
			Pos:           vecV1(st.pos),
			WorkCell:      vecV1(st.workCell),
			Remaining:     s.Remaining,
			JobsCompleted: s.JobsCompleted,
			AutoHaul:      s.AutoHaul,
			MineMode:      s.MineMode,
			RockTypes:     s.RockTypes,
			Forbidden:     st.forbidden,
			Inaccessible:  st.inaccessible,
			DepletedSent:  st.depletedSent,
		})
	}

	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		snap.Agents = append(snap.Agents, snapshot.AgentV1{
			ID:          a.ID,
			Name:        a.Name,
			Player:      a.Player,
			Pos:         vecV1(a.Pos),
			HP:          a.HP,
			MiningSpeed: a.MiningSpeed,
			MiningXP:    a.MiningXP,
			CellsMined:  a.CellsMined,
			Carrying:    a.Carrying,
			Cycle:       cycleV1(a.Cycle),
		})
	}

	for _, id := range w.sortedStorageIDs() {
		st := w.storages[id]
		slots := make([]snapshot.SlotV1, len(st.Slots))
		for i, sl := range st.Slots {
			slots[i] = snapshot.SlotV1{ItemID: sl.ItemID, ReservedBy: sl.ReservedBy}
		}
		snap.Storages = append(snap.Storages, snapshot.StorageV1{
			ID:       st.StorageID,
			Type:     st.Type,
			Pos:      vecV1(st.Pos),
			SiteID:   st.SiteID,
			Priority: st.Priority,
			Accepts:  append([]string(nil), st.Accepts...),
			Slots:    slots,
		})
	}

	for _, it := range w.Items() {
		snap.Items = append(snap.Items, snapshot.ItemV1{
			ID:             it.EntityID,
			Pos:            vecV1(it.Pos),
			Item:           it.Item,
			Count:          it.Count,
			Condition:      it.Condition,
			HitPoints:      it.HitPoints,
			Quality:        it.Quality,
			CreatedTick:    it.CreatedTick,
			HaulDesignated: it.HaulDesignated,
			StoredIn:       it.StoredIn,
			ReservedBy:     it.ReservedBy,
		})
	}

	for _, id := range sortedKeys(w.jobs) {
		j := w.jobs[id]
		snap.Jobs = append(snap.Jobs, snapshot.JobV1{
			ID: j.ID, ItemID: j.ItemID, StorageID: j.StorageID, Slot: j.Slot, JobType: j.JobType, DueTick: j.DueTick,
		})
	}
	return snap
}

func vecV1(v Vec3i) [3]int { return [3]int{v.X, v.Y, v.Z} }

func cycleV1(c *tasks.WorkCycle) *snapshot.CycleV1 {
	if c == nil {
		return nil
	}
	out := &snapshot.CycleV1{
		CycleID:        c.CycleID,
		SiteID:         c.SiteID,
		Phase:          string(c.Phase),
		StartedTick:    c.StartedTick,
		PhaseTick:      c.PhaseTick,
		TicksRemaining: c.TicksRemaining,
		TicksToPickHit: c.TicksToPickHit,
		ItemID:         c.ItemID,
		StorageID:      c.StorageID,
		Slot:           c.Slot,
		Reserved:       c.Reserved,
	}
	if o := c.LastOutcome; o != nil {
		out.Outcome = outcomeV1(*o)
	}
	return out
}

func outcomeV1(o extraction.Outcome) *snapshot.OutcomeV1 {
	return &snapshot.OutcomeV1{
		Kind:      o.Kind,
		Quantity:  o.Quantity,
		Condition: o.Condition,
		Quality:   int(o.Quality),
		Mote:      o.Mote.String(),
		Hazard:    o.Hazard,
		Filler:    o.Filler,
		Chunk:     o.Chunk,
		Component: o.Component,
	}
}
