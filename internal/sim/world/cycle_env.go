package world

import (
	"fmt"
	"math"
	"sort"

	"quarrysim.ai/internal/sim/allocation"
	"quarrysim.ai/internal/sim/extraction"
	"quarrysim.ai/internal/sim/workcycle"
	modelpkg "quarrysim.ai/internal/sim/world/kernel/model"
)

// cycleEnv exposes world state to the work cycle state machine.
type cycleEnv struct {
	w *World
}

var _ workcycle.Env = cycleEnv{}

func (e cycleEnv) SiteStatus(siteID string, agentID string) workcycle.SiteStatus {
	st := e.w.sites[siteID]
	if st == nil {
		return workcycle.SiteStatus{}
	}
	return workcycle.SiteStatus{
		Exists:     true,
		Accessible: !st.inaccessible,
		Forbidden:  st.forbidden,
		Depleted:   st.site.Depleted(),
		AutoHaul:   st.site.AutoHaul(),
		WorkCell:   st.workCell,
	}
}

func (e cycleEnv) Extract(siteID string) (extraction.Outcome, error) {
	st := e.w.sites[siteID]
	if st == nil {
		return extraction.Outcome{}, fmt.Errorf("site %s not found", siteID)
	}
	return st.site.RequestOutcome(e.w.engine, st.site.MineCategory()), nil
}

func (e cycleEnv) Haulable(kind string) bool {
	def, ok := e.w.catalog.FindByName(kind)
	return ok && def.Haulable
}

// SpawnItem places the outcome on the ground at pos and records it for the
// outcome index.
func (e cycleEnv) SpawnItem(nowTick uint64, actor string, pos modelpkg.Vec3i, o extraction.Outcome) string {
	if o.Kind == "" || o.Quantity <= 0 {
		return ""
	}
	w := e.w
	it := &ItemEntity{
		EntityID:    w.newItemID(),
		Pos:         pos,
		Item:        o.Kind,
		Count:       o.Quantity,
		Condition:   o.Condition,
		Quality:     int(o.Quality),
		CreatedTick: nowTick,
	}
	if def, ok := w.catalog.FindByName(o.Kind); ok {
		it.HitPoints = def.MaxHitPoints
		if def.UseHitPoints && o.Condition > 0 {
			it.HitPoints = itemHitPoints(o.Condition, def.MaxHitPoints)
		}
	}
	w.items[it.EntityID] = it

	entry := OutcomeEntry{
		Tick:      nowTick,
		RunID:     w.runID,
		AgentID:   actor,
		ItemID:    it.EntityID,
		Kind:      o.Kind,
		Count:     o.Quantity,
		Condition: o.Condition,
		Quality:   o.Quality.String(),
		Mote:      o.Mote.String(),
		Hazard:    o.Hazard,
	}
	if a := w.agents[actor]; a != nil && a.Cycle != nil {
		entry.CycleID = a.Cycle.CycleID
		entry.SiteID = a.Cycle.SiteID
		if st := w.sites[entry.SiteID]; st != nil {
			entry.Remaining = st.site.CurrentDepletionPercent()
		}
	}
	w.outcomes = append(w.outcomes, entry)
	return it.EntityID
}

// itemHitPoints scales max hit points by condition, never below 1.
func itemHitPoints(condition float64, maxHP int) int {
	hp := int(math.Round(condition * float64(maxHP)))
	if hp < 1 {
		hp = 1
	}
	return hp
}

func (e cycleEnv) DesignateHaul(itemID string) {
	if it := e.w.items[itemID]; it != nil {
		it.HaulDesignated = true
	}
}

// Delegate hands the item to the storage's own haul job.
func (e cycleEnv) Delegate(nowTick uint64, itemID string, dst allocation.Destination) {
	w := e.w
	it := w.items[itemID]
	st := w.storages[dst.StorageID]
	if it == nil || st == nil {
		return
	}
	id := w.newJobID()
	if !st.Reserve(dst.Slot, id) {
		it.HaulDesignated = true
		return
	}
	it.ReservedBy = id
	dist := modelpkg.Manhattan(it.Pos, st.Pos)
	if dist < 1 {
		dist = 1
	}
	w.jobs[id] = &storageJob{
		ID:        id,
		ItemID:    itemID,
		StorageID: st.StorageID,
		Slot:      dst.Slot,
		JobType:   dst.JobType,
		DueTick:   nowTick + uint64(dist),
	}
}

func (e cycleEnv) DamageAgent(a *modelpkg.Agent, amount int, cause string) {
	a.HP -= amount
	if a.HP <= 0 {
		a.HP = 0
		e.w.logger.Printf("agent %s downed by %s", a.ID, cause)
	}
}

func (e cycleEnv) Reserve(cycleID string, itemID string, dst allocation.Destination) bool {
	w := e.w
	it := w.items[itemID]
	st := w.storages[dst.StorageID]
	if it == nil || st == nil || it.StoredIn != "" {
		return false
	}
	if it.ReservedBy != "" && it.ReservedBy != cycleID {
		return false
	}
	if !st.Allows(it.Item) || !st.Reserve(dst.Slot, cycleID) {
		return false
	}
	it.ReservedBy = cycleID
	w.reservations[cycleID] = reservation{ItemID: itemID, StorageID: st.StorageID, Slot: dst.Slot}
	return true
}

func (e cycleEnv) Release(cycleID string) {
	w := e.w
	r, ok := w.reservations[cycleID]
	if !ok {
		return
	}
	if it := w.items[r.ItemID]; it != nil && it.ReservedBy == cycleID {
		it.ReservedBy = ""
	}
	if st := w.storages[r.StorageID]; st != nil {
		st.Unreserve(cycleID)
	}
	delete(w.reservations, cycleID)
}

func (e cycleEnv) StoragePos(storageID string) (modelpkg.Vec3i, bool) {
	st := e.w.storages[storageID]
	if st == nil {
		return modelpkg.Vec3i{}, false
	}
	return st.Pos, true
}

func (e cycleEnv) PickUp(a *modelpkg.Agent, itemID string) bool {
	it := e.w.items[itemID]
	if it == nil || it.StoredIn != "" || a.Cycle == nil || it.ReservedBy != a.Cycle.CycleID {
		return false
	}
	a.Carrying = itemID
	return true
}

func (e cycleEnv) Store(a *modelpkg.Agent, itemID string, dst allocation.Destination) bool {
	w := e.w
	it := w.items[itemID]
	st := w.storages[dst.StorageID]
	if it == nil || st == nil || a.Carrying != itemID {
		return false
	}
	if !st.Place(dst.Slot, itemID) {
		return false
	}
	it.StoredIn = st.StorageID
	it.Pos = st.Pos
	it.ReservedBy = ""
	a.Carrying = ""
	return true
}

func (e cycleEnv) Drop(a *modelpkg.Agent, itemID string) {
	if it := e.w.items[itemID]; it != nil {
		it.Pos = a.Pos
	}
	a.Carrying = ""
}

func (e cycleEnv) OnPickHit(a *modelpkg.Agent, siteID string, nowTick uint64) {
	e.w.pickHits++
}

func (e cycleEnv) ConnectedStorage(siteID string, kind string, qty int) (allocation.Destination, bool) {
	for _, id := range e.w.sortedStorageIDs() {
		st := e.w.storages[id]
		if st.SiteID != siteID || !st.Allows(kind) {
			continue
		}
		if slot, ok := st.FreeSlot(); ok {
			return destinationFor(st, slot), true
		}
	}
	return allocation.Destination{}, false
}

// BestStorage ranks general storages by priority, then distance to the agent.
func (e cycleEnv) BestStorage(agentID string, kind string, qty int) (allocation.Destination, bool) {
	w := e.w
	var from modelpkg.Vec3i
	if a := w.agents[agentID]; a != nil {
		from = a.Pos
	}
	var cands []*Storage
	for _, st := range w.storages {
		if st.SiteID != "" || !st.Allows(kind) {
			continue
		}
		if _, ok := st.FreeSlot(); ok {
			cands = append(cands, st)
		}
	}
	if len(cands) == 0 {
		return allocation.Destination{}, false
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		da, db := modelpkg.Manhattan(from, a.Pos), modelpkg.Manhattan(from, b.Pos)
		if da != db {
			return da < db
		}
		return a.StorageID < b.StorageID
	})
	slot, _ := cands[0].FreeSlot()
	return destinationFor(cands[0], slot), true
}

func destinationFor(st *Storage, slot int) allocation.Destination {
	dst := allocation.Destination{StorageID: st.StorageID, Slot: slot, Simple: st.Simple()}
	if !dst.Simple {
		dst.JobType = "HAUL_TO_" + st.Type
	}
	return dst
}
