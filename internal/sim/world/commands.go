package world

import (
	"errors"
	"fmt"

	"quarrysim.ai/internal/protocol"
	"quarrysim.ai/internal/sim/oretable"
	"quarrysim.ai/internal/sim/quarry"
	"quarrysim.ai/internal/sim/workcycle"
)

type CommandOp string

const (
	CmdAssign         CommandOp = "ASSIGN"
	CmdCancel         CommandOp = "CANCEL"
	CmdForbid         CommandOp = "FORBID"
	CmdSetAccessible  CommandOp = "SET_ACCESSIBLE"
	CmdSetAutoHaul    CommandOp = "SET_AUTO_HAUL"
	CmdToggleMineMode CommandOp = "TOGGLE_MINE_MODE"
	CmdTableAdd       CommandOp = "TABLE_ADD"
	CmdTableRemove    CommandOp = "TABLE_REMOVE"
	CmdTableReweight  CommandOp = "TABLE_REWEIGHT"
	CmdTableReset     CommandOp = "TABLE_RESET"
	CmdSetSettings    CommandOp = "SET_QUARRY_SETTINGS"
)

func (op CommandOp) Valid() bool {
	switch op {
	case CmdAssign, CmdCancel, CmdForbid, CmdSetAccessible, CmdSetAutoHaul, CmdToggleMineMode,
		CmdTableAdd, CmdTableRemove, CmdTableReweight, CmdTableReset, CmdSetSettings:
		return true
	}
	return false
}

// Command is an operator request applied at the next tick boundary, in
// arrival order.
type Command struct {
	Op      CommandOp `json:"op"`
	AgentID string    `json:"agent_id,omitempty"`
	SiteID  string    `json:"site_id,omitempty"`
	Kind    string    `json:"kind,omitempty"`
	Weight  int       `json:"weight,omitempty"`
	Flag    bool      `json:"flag,omitempty"`

	// SET_QUARRY_SETTINGS; nil fields keep their current value.
	MaxHealth   *int     `json:"max_health,omitempty"`
	JunkChance  *int     `json:"junk_chance,omitempty"`
	ChunkChance *int     `json:"chunk_chance,omitempty"`
	Difficulty  *float64 `json:"difficulty,omitempty"`
}

var errCommand = errors.New("command rejected")

// Submit queues cmd for the world loop. It reports false when the inbox is
// full.
func (w *World) Submit(cmd Command) bool {
	select {
	case w.inbox <- cmd:
		return true
	default:
		return false
	}
}

func (w *World) applyCommand(cmd Command, nowTick uint64) {
	if err := w.execCommand(cmd, nowTick); err != nil {
		w.logger.Printf("command %s: %v", cmd.Op, err)
		w.emit(protocol.Event{
			"t":       nowTick,
			"type":    protocol.EventWarning,
			"code":    commandErrorCode(err),
			"message": fmt.Sprintf("%s: %v", cmd.Op, err),
		})
	}
}

func (w *World) execCommand(cmd Command, nowTick uint64) error {
	switch cmd.Op {
	case CmdAssign:
		return w.assign(cmd.AgentID, cmd.SiteID, nowTick)
	case CmdCancel:
		a := w.agents[cmd.AgentID]
		if a == nil {
			return fmt.Errorf("%w: unknown agent %s", errCommand, cmd.AgentID)
		}
		workcycle.Cancel(cycleEnv{w}, a, a.Cycle, nowTick)
		return nil
	case CmdForbid, CmdSetAccessible, CmdSetAutoHaul, CmdToggleMineMode:
		st := w.sites[cmd.SiteID]
		if st == nil {
			return fmt.Errorf("%w: unknown site %s", errCommand, cmd.SiteID)
		}
		switch cmd.Op {
		case CmdForbid:
			st.forbidden = cmd.Flag
		case CmdSetAccessible:
			st.inaccessible = !cmd.Flag
		case CmdSetAutoHaul:
			st.site.SetAutoHaul(cmd.Flag)
		case CmdToggleMineMode:
			st.site.ToggleMineMode()
		}
		return nil
	case CmdTableAdd:
		return w.engine.AddEntry(cmd.Kind, cmd.Weight)
	case CmdTableRemove:
		return w.engine.RemoveEntry(cmd.Kind)
	case CmdTableReweight:
		return w.engine.ReweightEntry(cmd.Kind, cmd.Weight)
	case CmdTableReset:
		w.engine.ResetTable()
		return nil
	case CmdSetSettings:
		return w.setQuarrySettings(cmd)
	}
	return fmt.Errorf("%w: unknown op %q", errCommand, cmd.Op)
}

// setQuarrySettings swaps the extraction settings and applies the new max
// health to every existing site.
func (w *World) setQuarrySettings(cmd Command) error {
	q := w.engine.Settings()
	if cmd.MaxHealth != nil {
		q.MaxHealth = *cmd.MaxHealth
	}
	if cmd.JunkChance != nil {
		q.JunkChance = *cmd.JunkChance
	}
	if cmd.ChunkChance != nil {
		q.ChunkChance = *cmd.ChunkChance
	}
	if cmd.Difficulty != nil {
		q.Difficulty = *cmd.Difficulty
	}
	if err := w.engine.UpdateSettings(q); err != nil {
		return fmt.Errorf("%w: %v", errCommand, err)
	}
	w.cfg.Tuning.Quarry = q
	for _, id := range w.sortedSiteIDs() {
		w.sites[id].site.ApplySettings(q)
	}
	w.logger.Printf("quarry settings: max_health=%d junk=%d chunk=%d difficulty=%.2f", q.MaxHealth, q.JunkChance, q.ChunkChance, q.Difficulty)
	return nil
}

// assign starts a cycle for an idle agent at a workable site.
func (w *World) assign(agentID, siteID string, nowTick uint64) error {
	a := w.agents[agentID]
	if a == nil {
		return fmt.Errorf("%w: unknown agent %s", errCommand, agentID)
	}
	if !a.Idle() {
		return fmt.Errorf("%w: agent %s busy", errCommand, agentID)
	}
	if !w.workable(siteID) {
		return fmt.Errorf("%w: site %s not workable", errCommand, siteID)
	}
	workcycle.Start(a, w.newCycleID(), siteID, nowTick)
	return nil
}

func (w *World) workable(siteID string) bool {
	st := w.sites[siteID]
	return st != nil && !st.forbidden && !st.inaccessible && !st.site.Depleted()
}

func commandErrorCode(err error) string {
	switch {
	case errors.Is(err, oretable.ErrDuplicateKind):
		return protocol.ErrDuplicateKind
	case errors.Is(err, oretable.ErrNotFound), errors.Is(err, quarry.ErrUnknownKind):
		return protocol.ErrNotFound
	case errors.Is(err, oretable.ErrMinimumSize):
		return protocol.ErrMinimumSize
	case errors.Is(err, oretable.ErrEmptyTable):
		return protocol.ErrEmptyTable
	}
	return protocol.ErrBadRequest
}
