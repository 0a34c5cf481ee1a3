package observerproto

import "quarrysim.ai/internal/protocol"

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// SiteID limits events to one site; empty means all.
	SiteID string `json:"site_id,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string       `json:"protocol_version"`
	WorldID         string       `json:"world_id"`
	RunID           string       `json:"run_id"`
	Tick            uint64       `json:"tick"`
	TickRateHz      int          `json:"tick_rate_hz"`
	Table           []TableShare `json:"table"`
}

type TableShare struct {
	Kind    string  `json:"kind"`
	Weight  int     `json:"weight"`
	Percent float64 `json:"percent"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Sites  []SiteState  `json:"sites"`
	Agents []AgentState `json:"agents"`
	Events []EventMsg   `json:"events,omitempty"`
}

type SiteState struct {
	ID            string   `json:"id"`
	Preset        string   `json:"preset"`
	Remaining     float64  `json:"remaining"`
	JobsCompleted int      `json:"jobs_completed"`
	MineMode      string   `json:"mine_mode"`
	AutoHaul      bool     `json:"auto_haul"`
	Forbidden     bool     `json:"forbidden,omitempty"`
	Depleted      bool     `json:"depleted,omitempty"`
	RockTypes     []string `json:"rock_types"`
}

type AgentState struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Pos      [3]int `json:"pos"`
	HP       int    `json:"hp"`
	CycleID  string `json:"cycle_id,omitempty"`
	SiteID   string `json:"site_id,omitempty"`
	Phase    string `json:"phase,omitempty"`
	Carrying string `json:"carrying,omitempty"`
}

type EventMsg struct {
	AgentID string         `json:"agent_id,omitempty"`
	Event   protocol.Event `json:"event"`
}
