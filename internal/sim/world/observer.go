package world

import (
	"encoding/json"

	"quarrysim.ai/internal/observerproto"
)

// ObserverJoinRequest registers a read-only observer session that receives
// one TickMsg per tick on TickOut.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte
	// SiteID limits events to one site; empty means all.
	SiteID string
}

type observerClient struct {
	id      string
	tickOut chan []byte
	siteID  string
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	w.observers[req.SessionID] = &observerClient{id: req.SessionID, tickOut: req.TickOut, siteID: req.SiteID}
}

func (w *World) handleObserverLeave(id string) {
	if c, ok := w.observers[id]; ok {
		delete(w.observers, id)
		close(c.tickOut)
	}
}

func (w *World) stepObservers(nowTick uint64, events []EventLogEntry) {
	if len(w.observers) == 0 {
		return
	}
	base := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            nowTick,
		Sites:           w.observerSites(),
		Agents:          w.observerAgents(),
	}
	var all []byte
	for _, c := range w.observers {
		msg := base
		msg.Events = filterEvents(events, c.siteID)
		if c.siteID == "" {
			if all == nil {
				b, err := json.Marshal(msg)
				if err != nil {
					return
				}
				all = b
			}
			sendLatest(c.tickOut, all)
			continue
		}
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		sendLatest(c.tickOut, b)
	}
}

func filterEvents(events []EventLogEntry, siteID string) []observerproto.EventMsg {
	out := make([]observerproto.EventMsg, 0, len(events))
	for _, e := range events {
		if siteID != "" {
			if sid, _ := e.Event["site_id"].(string); sid != siteID {
				continue
			}
		}
		out = append(out, observerproto.EventMsg{AgentID: e.AgentID, Event: e.Event})
	}
	return out
}

func (w *World) observerSites() []observerproto.SiteState {
	out := make([]observerproto.SiteState, 0, len(w.sites))
	for _, id := range w.sortedSiteIDs() {
		st := w.sites[id]
		s := st.site.State()
		out = append(out, observerproto.SiteState{
			ID:            id,
			Preset:        s.PresetName,
			Remaining:     st.site.CurrentDepletionPercent(),
			JobsCompleted: s.JobsCompleted,
			MineMode:      s.MineMode,
			AutoHaul:      s.AutoHaul,
			Forbidden:     st.forbidden,
			Depleted:      st.site.Depleted(),
			RockTypes:     s.RockTypes,
		})
	}
	return out
}

func (w *World) observerAgents() []observerproto.AgentState {
	out := make([]observerproto.AgentState, 0, len(w.agents))
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		as := observerproto.AgentState{
			ID:       a.ID,
			Name:     a.Name,
			Pos:      [3]int{a.Pos.X, a.Pos.Y, a.Pos.Z},
			HP:       a.HP,
			Carrying: a.Carrying,
		}
		if a.Cycle != nil {
			as.CycleID = a.Cycle.CycleID
			as.SiteID = a.Cycle.SiteID
			as.Phase = string(a.Cycle.Phase)
		}
		out = append(out, as)
	}
	return out
}

// TableShares reports the resource table for observer bootstrap.
func (w *World) TableShares() []observerproto.TableShare {
	snap := w.engine.TableSnapshot()
	out := make([]observerproto.TableShare, 0, len(snap))
	for _, s := range snap {
		out = append(out, observerproto.TableShare{Kind: s.Kind, Weight: s.Weight, Percent: s.Percent})
	}
	return out
}
