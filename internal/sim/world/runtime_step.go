package world

import (
	"sort"
	"time"

	"quarrysim.ai/internal/protocol"
	"quarrysim.ai/internal/sim/quarry"
	"quarrysim.ai/internal/sim/workcycle"
	modelpkg "quarrysim.ai/internal/sim/world/kernel/model"
)

func (w *World) stepInternal(cmds []Command) {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	env := cycleEnv{w}

	// Operator commands apply at the tick boundary in arrival order.
	for _, cmd := range cmds {
		w.applyCommand(cmd, nowTick)
	}

	// Systems: assignment -> cycles -> storage jobs -> site state.
	w.systemAssign(nowTick)
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		if a.Cycle != nil {
			workcycle.Tick(env, a, a.Cycle, w.cfg.Tuning.Work, nowTick)
		}
	}
	w.systemStorageJobs(nowTick)
	w.systemSites(nowTick)
	w.drainTableChanges(nowTick)

	events := w.collectEvents(nowTick)
	w.stepObservers(nowTick, events)

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	nextTick := w.tick.Add(1)
	active := 0
	for _, a := range w.agents {
		if a.Cycle != nil {
			active++
		}
	}
	w.metrics.Store(WorldMetrics{
		Tick:         nextTick,
		Agents:       len(w.agents),
		Sites:        len(w.sites),
		ActiveCycles: active,
		Items:        len(w.items),
		Outcomes:     w.outcomeTotal,
		PickHits:     w.pickHits,
		Inbox:        len(w.inbox),
		StepMS:       float64(time.Since(stepStart).Microseconds()) / 1000.0,
	})
}

// systemAssign sends idle non-player agents to the nearest workable site.
func (w *World) systemAssign(nowTick uint64) {
	siteIDs := w.sortedSiteIDs()
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		if a.Player || !a.Idle() {
			continue
		}
		best, bestDist := "", 0
		for _, sid := range siteIDs {
			if !w.workable(sid) {
				continue
			}
			d := modelpkg.Manhattan(a.Pos, w.sites[sid].workCell)
			if best == "" || d < bestDist {
				best, bestDist = sid, d
			}
		}
		if best != "" {
			workcycle.Start(a, w.newCycleID(), best, nowTick)
		}
	}
}

func (w *World) systemStorageJobs(nowTick uint64) {
	if len(w.jobs) == 0 {
		return
	}
	for _, id := range sortedKeys(w.jobs) {
		j := w.jobs[id]
		if j.DueTick > nowTick {
			continue
		}
		delete(w.jobs, id)
		it := w.items[j.ItemID]
		st := w.storages[j.StorageID]
		if st != nil {
			st.Unreserve(j.ID)
		}
		if it == nil {
			continue
		}
		if it.ReservedBy == j.ID {
			it.ReservedBy = ""
		}
		if st == nil || !st.Place(j.Slot, it.EntityID) {
			it.HaulDesignated = true
			continue
		}
		it.StoredIn = st.StorageID
		it.Pos = st.Pos
	}
}

func (w *World) systemSites(nowTick uint64) {
	for _, id := range w.sortedSiteIDs() {
		st := w.sites[id]
		if st.depletedSent || !st.site.Depleted() {
			continue
		}
		st.depletedSent = true
		w.logger.Printf("site %s depleted after %d jobs", id, st.site.JobsCompleted())
		w.emit(protocol.Event{"t": nowTick, "type": protocol.EventDepleted, "site_id": id, "jobs_completed": st.site.JobsCompleted()})
	}
}

func (w *World) drainTableChanges(nowTick uint64) {
	for {
		select {
		case ch := <-w.tableCh:
			typ := protocol.EventTableEdit
			if ch.Op == quarry.OpReset {
				typ = protocol.EventTableReset
			}
			total := 0
			for _, e := range ch.Entries {
				total += e.Weight
			}
			w.emit(protocol.Event{
				"t": nowTick, "type": typ, "op": ch.Op, "revision": ch.Revision,
				"kind": ch.Kind, "weight": ch.Weight, "entries": len(ch.Entries),
			})
			if w.outcomeIndex != nil {
				w.outcomeIndex.RecordTableChange(TableChangeEntry{
					Tick: nowTick, RunID: w.runID, Revision: ch.Revision, Op: ch.Op,
					Kind: ch.Kind, Weight: ch.Weight, Entries: len(ch.Entries), Total: total,
				})
			}
		default:
			return
		}
	}
}

// collectEvents drains agent and world events for this tick and feeds the
// event log and outcome index.
func (w *World) collectEvents(nowTick uint64) []EventLogEntry {
	var out []EventLogEntry
	for _, e := range w.worldEvents {
		out = append(out, EventLogEntry{Tick: nowTick, RunID: w.runID, Event: e})
	}
	w.worldEvents = w.worldEvents[:0]
	for _, id := range w.sortedAgentIDs() {
		for _, e := range w.agents[id].TakeEvents() {
			out = append(out, EventLogEntry{Tick: nowTick, RunID: w.runID, AgentID: id, Event: e})
		}
	}
	if w.eventLogger != nil {
		for _, e := range out {
			if err := w.eventLogger.WriteEvent(e); err != nil {
				w.logger.Printf("event log: %v", err)
				break
			}
		}
	}
	for _, o := range w.outcomes {
		w.outcomeTotal++
		if w.outcomeIndex != nil {
			w.outcomeIndex.RecordOutcome(o)
		}
	}
	w.outcomes = w.outcomes[:0]
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
