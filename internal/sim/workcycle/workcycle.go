// Package workcycle advances an agent's quarry work cycle one tick at a time.
package workcycle

import (
	"math"

	"quarrysim.ai/internal/protocol"
	"quarrysim.ai/internal/sim/allocation"
	"quarrysim.ai/internal/sim/extraction"
	"quarrysim.ai/internal/sim/tasks"
	"quarrysim.ai/internal/sim/tuning"
	modelpkg "quarrysim.ai/internal/sim/world/kernel/model"
)

// SiteStatus is the host's view of a quarry site for one agent.
type SiteStatus struct {
	Exists     bool
	Accessible bool
	Forbidden  bool
	Depleted   bool
	AutoHaul   bool
	// WorkCell is where the agent stands to mine.
	WorkCell modelpkg.Vec3i
}

type Env interface {
	allocation.Env

	SiteStatus(siteID string, agentID string) SiteStatus
	// Extract asks the site for one outcome and applies its wear.
	Extract(siteID string) (extraction.Outcome, error)
	Haulable(kind string) bool

	SpawnItem(nowTick uint64, actor string, pos modelpkg.Vec3i, o extraction.Outcome) string
	DesignateHaul(itemID string)
	Delegate(nowTick uint64, itemID string, dst allocation.Destination)
	DamageAgent(a *modelpkg.Agent, amount int, cause string)

	// Reserve holds both the item and the destination slot for cycleID, or
	// neither.
	Reserve(cycleID string, itemID string, dst allocation.Destination) bool
	Release(cycleID string)
	StoragePos(storageID string) (modelpkg.Vec3i, bool)
	PickUp(a *modelpkg.Agent, itemID string) bool
	Store(a *modelpkg.Agent, itemID string, dst allocation.Destination) bool
	Drop(a *modelpkg.Agent, itemID string)

	OnPickHit(a *modelpkg.Agent, siteID string, nowTick uint64)
}

// Start attaches a new cycle to the agent.
func Start(a *modelpkg.Agent, cycleID, siteID string, nowTick uint64) *tasks.WorkCycle {
	c := &tasks.WorkCycle{
		CycleID:     cycleID,
		AgentID:     a.ID,
		SiteID:      siteID,
		Phase:       tasks.PhaseTraveling,
		StartedTick: nowTick,
		PhaseTick:   nowTick,
	}
	a.Cycle = c
	a.AddEvent(protocol.Event{"t": nowTick, "type": protocol.EventCycleStart, "cycle_id": cycleID, "site_id": siteID})
	return c
}

// ExtractDuration is the Extracting phase length for a mining speed.
func ExtractDuration(w tuning.Work, speed float64) int {
	if speed <= 0 {
		return w.MaxDurationTicks
	}
	d := float64(w.BaseDurationTicks) / speed
	d = math.Max(float64(w.MinDurationTicks), math.Min(d, float64(w.MaxDurationTicks)))
	return int(d)
}

// PickHitInterval is the tick count between pick hits. Non-player agents are
// floored to the minimum NPC speed.
func PickHitInterval(w tuning.Work, speed float64, player bool) int {
	if !player && speed < w.MinNPCSpeed {
		speed = w.MinNPCSpeed
	}
	if speed <= 0 {
		return w.BaseTicksBetweenHits
	}
	n := int(math.Round(float64(w.BaseTicksBetweenHits) / speed))
	if n < 1 {
		n = 1
	}
	return n
}

// Tick advances c by one tick.
func Tick(env Env, a *modelpkg.Agent, c *tasks.WorkCycle, w tuning.Work, nowTick uint64) {
	if c == nil || c.Phase.Terminal() {
		return
	}
	st := env.SiteStatus(c.SiteID, a.ID)
	switch {
	case !st.Exists:
		fail(env, a, c, nowTick, protocol.ErrInvalidTarget, "site gone")
		return
	case !st.Accessible:
		fail(env, a, c, nowTick, protocol.ErrBlocked, "site inaccessible")
		return
	case st.Forbidden:
		fail(env, a, c, nowTick, protocol.ErrNoPermission, "site forbidden")
		return
	case st.Depleted:
		fail(env, a, c, nowTick, protocol.ErrDepleted, "site depleted")
		return
	}

	switch c.Phase {
	case tasks.PhaseTraveling:
		if a.Pos != st.WorkCell {
			a.Pos = modelpkg.StepToward(a.Pos, st.WorkCell)
		}
		if a.Pos == st.WorkCell {
			c.TicksRemaining = ExtractDuration(w, a.MiningSpeed)
			c.TicksToPickHit = 0
			setPhase(a, c, tasks.PhaseExtracting, nowTick)
		}
	case tasks.PhaseExtracting:
		tickExtracting(env, a, c, w, nowTick)
	case tasks.PhaseDeciding:
		decide(env, a, c, st, w, nowTick)
	case tasks.PhaseReservingOutput:
		dst := destination(c)
		if !env.Reserve(c.CycleID, c.ItemID, dst) {
			fail(env, a, c, nowTick, protocol.ErrBlocked, "reservation failed")
			return
		}
		c.Reserved = true
		if !env.PickUp(a, c.ItemID) {
			fail(env, a, c, nowTick, protocol.ErrInvalidTarget, "item gone")
			return
		}
		setPhase(a, c, tasks.PhaseTransporting, nowTick)
	case tasks.PhaseTransporting:
		tickTransporting(env, a, c, nowTick)
	}
}

// Cancel ends c at the current tick boundary and releases its reservations.
func Cancel(env Env, a *modelpkg.Agent, c *tasks.WorkCycle, nowTick uint64) {
	if c == nil || c.Phase.Terminal() {
		return
	}
	fail(env, a, c, nowTick, protocol.ErrCancelled, "cancelled")
}

func tickExtracting(env Env, a *modelpkg.Agent, c *tasks.WorkCycle, w tuning.Work, nowTick uint64) {
	c.TicksToPickHit--
	if c.TicksToPickHit <= 0 {
		a.MiningXP += w.SkillXPPerHit
		env.OnPickHit(a, c.SiteID, nowTick)
		c.TicksToPickHit = PickHitInterval(w, a.MiningSpeed, a.Player)
	}
	c.TicksRemaining--
	if c.TicksRemaining > 0 {
		return
	}
	setPhase(a, c, tasks.PhaseDeciding, nowTick)
	st := env.SiteStatus(c.SiteID, a.ID)
	decide(env, a, c, st, w, nowTick)
}

func decide(env Env, a *modelpkg.Agent, c *tasks.WorkCycle, st SiteStatus, w tuning.Work, nowTick uint64) {
	a.CellsMined++
	o, err := env.Extract(c.SiteID)
	if err != nil {
		fail(env, a, c, nowTick, protocol.ErrInternal, err.Error())
		return
	}
	itemID := env.SpawnItem(nowTick, a.ID, a.Pos, o)
	c.LastOutcome = &o
	c.ItemID = itemID
	a.AddEvent(protocol.Event{
		"t": nowTick, "type": protocol.EventOutcome, "cycle_id": c.CycleID, "site_id": c.SiteID,
		"item_id": itemID, "kind": o.Kind, "count": o.Quantity, "condition": o.Condition,
		"quality": o.Quality.String(), "mote": o.Mote.String(), "hazard": o.Hazard,
	})

	res := allocation.Resolve(env, allocation.Input{
		SiteID:       c.SiteID,
		AgentID:      a.ID,
		Outcome:      o,
		AutoHaul:     st.AutoHaul,
		Haulable:     env.Haulable(o.Kind),
		HazardDamage: w.SinkholeDamage,
	})
	if res.AgentDamage > 0 {
		env.DamageAgent(a, res.AgentDamage, "CRUSH")
		a.AddEvent(protocol.Event{"t": nowTick, "type": protocol.EventSinkhole, "cycle_id": c.CycleID, "site_id": c.SiteID, "agent_id": a.ID, "damage": res.AgentDamage})
	}
	if res.DesignateHaul && itemID != "" {
		env.DesignateHaul(itemID)
	}

	switch res.Action {
	case allocation.ActionHaul:
		c.StorageID = res.Target.StorageID
		c.Slot = res.Target.Slot
		setPhase(a, c, tasks.PhaseReservingOutput, nowTick)
	case allocation.ActionDelegate:
		env.Delegate(nowTick, itemID, res.Target)
		done(env, a, c, nowTick)
	case allocation.ActionFail:
		fail(env, a, c, nowTick, res.Reason, "no storage for "+o.Kind)
	default:
		done(env, a, c, nowTick)
	}
}

func tickTransporting(env Env, a *modelpkg.Agent, c *tasks.WorkCycle, nowTick uint64) {
	pos, ok := env.StoragePos(c.StorageID)
	if !ok {
		fail(env, a, c, nowTick, protocol.ErrInvalidTarget, "storage gone")
		return
	}
	if a.Pos != pos {
		a.Pos = modelpkg.StepToward(a.Pos, pos)
		if a.Pos != pos {
			return
		}
	}
	if !env.Store(a, c.ItemID, destination(c)) {
		fail(env, a, c, nowTick, protocol.ErrBlocked, "storage rejected item")
		return
	}
	done(env, a, c, nowTick)
}

func destination(c *tasks.WorkCycle) allocation.Destination {
	return allocation.Destination{StorageID: c.StorageID, Slot: c.Slot, Simple: true}
}

func setPhase(a *modelpkg.Agent, c *tasks.WorkCycle, p tasks.Phase, nowTick uint64) {
	c.Phase = p
	c.PhaseTick = nowTick
	a.AddEvent(protocol.Event{"t": nowTick, "type": protocol.EventPhase, "cycle_id": c.CycleID, "phase": string(p)})
}

func done(env Env, a *modelpkg.Agent, c *tasks.WorkCycle, nowTick uint64) {
	if c.Reserved {
		env.Release(c.CycleID)
		c.Reserved = false
	}
	c.Phase = tasks.PhaseDone
	c.PhaseTick = nowTick
	a.Cycle = nil
	a.AddEvent(protocol.Event{"t": nowTick, "type": protocol.EventTaskDone, "cycle_id": c.CycleID, "site_id": c.SiteID})
}

func fail(env Env, a *modelpkg.Agent, c *tasks.WorkCycle, nowTick uint64, code, msg string) {
	if a.Carrying != "" {
		env.Drop(a, a.Carrying)
	}
	env.Release(c.CycleID)
	c.Reserved = false
	c.Phase = tasks.PhaseFailed
	c.PhaseTick = nowTick
	c.FailCode = code
	a.Cycle = nil
	a.AddEvent(protocol.Event{"t": nowTick, "type": protocol.EventTaskFail, "cycle_id": c.CycleID, "site_id": c.SiteID, "code": code, "message": msg})
}
