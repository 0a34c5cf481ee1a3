package protocol

import "encoding/json"

const Version = "1.0"

// Event is a single cycle/site notification delivered to observers and logs.
// Keys follow the wire convention: "t" tick, "type" event type, plus payload.
type Event map[string]interface{}

// Event types.
const (
	EventCycleStart = "CYCLE_START"
	EventPhase      = "CYCLE_PHASE"
	EventOutcome    = "OUTCOME"
	EventTaskDone   = "TASK_DONE"
	EventTaskFail   = "TASK_FAIL"
	EventSinkhole   = "SINKHOLE"
	EventDepleted   = "SITE_DEPLETED"
	EventTableReset = "TABLE_RESET"
	EventTableEdit  = "TABLE_EDIT"
	EventWarning    = "WARNING"
)

// Visual event tags attached to an outcome.
const (
	MoteNone      = "NONE"
	MoteHighYield = "HIGH_YIELD"
	MoteFailure   = "FAILURE"
)

// Control channel message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCommand = "COMMAND"
	TypeAck     = "ACK"
)

type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Client -> Server. First message on the control connection.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Operator        string `json:"operator"`
}

type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	WorldID         string `json:"world_id"`
	RunID           string `json:"run_id"`
	Tick            uint64 `json:"tick"`
}

// CommandMsg carries one operator command. Ref is echoed in the ACK.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	Op              string `json:"op"`
	AgentID         string `json:"agent_id,omitempty"`
	SiteID          string `json:"site_id,omitempty"`
	Kind            string `json:"kind,omitempty"`
	Weight          int    `json:"weight,omitempty"`
	Flag            bool   `json:"flag,omitempty"`

	MaxHealth   *int     `json:"max_health,omitempty"`
	JunkChance  *int     `json:"junk_chance,omitempty"`
	ChunkChance *int     `json:"chunk_chance,omitempty"`
	Difficulty  *float64 `json:"difficulty,omitempty"`
}

// AckMsg reports whether a command was queued. Rejections found while the
// command is applied arrive later as WARNING events.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}
