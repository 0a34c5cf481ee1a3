// Package allocation decides where a freshly extracted item goes.
package allocation

import (
	"quarrysim.ai/internal/protocol"
	"quarrysim.ai/internal/sim/extraction"
)

type Action int

const (
	// ActionEnd finishes the cycle and leaves the item where it was placed.
	ActionEnd Action = iota
	// ActionHaul continues the cycle: reserve Target and carry the item there.
	ActionHaul
	// ActionDelegate finishes the cycle and hands the item to a storage job
	// of Target.JobType.
	ActionDelegate
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionHaul:
		return "HAUL"
	case ActionDelegate:
		return "DELEGATE"
	case ActionFail:
		return "FAIL"
	default:
		return "END"
	}
}

// Destination is a storage slot that accepts the item.
type Destination struct {
	StorageID string
	Slot      int
	// Simple storages take a direct carry; the rest run their own job.
	Simple  bool
	JobType string
}

// Env is the storage view the resolver needs from the host.
type Env interface {
	// ConnectedStorage finds free space on a storage attached to the site.
	ConnectedStorage(siteID string, kind string, qty int) (Destination, bool)
	// BestStorage finds the best general storage reachable by the agent.
	BestStorage(agentID string, kind string, qty int) (Destination, bool)
}

type Input struct {
	SiteID  string
	AgentID string
	Outcome extraction.Outcome

	AutoHaul bool
	// Haulable reports whether the item may carry a haul designation.
	Haulable bool

	HazardDamage int
}

type Resolution struct {
	Action Action
	// Reason is a protocol error code, set when Action is ActionFail.
	Reason string
	Target Destination

	AgentDamage   int
	DesignateHaul bool
}

// Resolve applies the allocation rules in order; the first match wins.
func Resolve(env Env, in Input) Resolution {
	o := in.Outcome
	switch {
	case o.Hazard:
		return Resolution{Action: ActionEnd, AgentDamage: in.HazardDamage}
	case o.Filler:
		return Resolution{Action: ActionEnd}
	case !in.AutoHaul:
		return Resolution{Action: ActionEnd}
	}

	if env == nil {
		return Resolution{Action: ActionFail, Reason: protocol.ErrNoStorage}
	}
	if !o.Chunk {
		if dst, ok := env.ConnectedStorage(in.SiteID, o.Kind, o.Quantity); ok {
			return Resolution{Action: ActionHaul, Target: dst, DesignateHaul: in.Haulable}
		}
	}
	dst, ok := env.BestStorage(in.AgentID, o.Kind, o.Quantity)
	if !ok {
		return Resolution{Action: ActionFail, Reason: protocol.ErrNoStorage}
	}
	if dst.Simple {
		return Resolution{Action: ActionHaul, Target: dst, DesignateHaul: in.Haulable}
	}
	return Resolution{Action: ActionDelegate, Target: dst}
}
