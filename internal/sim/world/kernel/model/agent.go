package model

import (
	"quarrysim.ai/internal/protocol"
	"quarrysim.ai/internal/sim/tasks"
)

type Vec3i struct {
	X int
	Y int
	Z int
}

func Manhattan(a, b Vec3i) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y) + absInt(a.Z-b.Z)
}

// StepToward moves one cell along X first, then Z.
func StepToward(from, to Vec3i) Vec3i {
	switch {
	case from.X < to.X:
		from.X++
	case from.X > to.X:
		from.X--
	case from.Z < to.Z:
		from.Z++
	case from.Z > to.Z:
		from.Z--
	}
	return from
}

type Agent struct {
	ID   string
	Name string
	// Player agents are not floored to the NPC minimum mining speed.
	Player bool

	Pos Vec3i
	HP  int

	MiningSpeed float64
	MiningXP    float64
	CellsMined  int

	Cycle *tasks.WorkCycle
	// Carrying is the item entity ID held during Transporting.
	Carrying string

	Events []protocol.Event
	// Monotonic count of events recorded for this agent.
	EventCursor uint64
	EventLog    []EventLogEntry
}

type EventLogEntry struct {
	Cursor uint64
	Event  protocol.Event
}

const eventLogCap = 1024

func (a *Agent) InitDefaults() {
	if a.HP == 0 {
		a.HP = 100
	}
	if a.MiningSpeed == 0 {
		a.MiningSpeed = 1
	}
}

func (a *Agent) Idle() bool { return a.Cycle == nil && a.HP > 0 }

func (a *Agent) AddEvent(e protocol.Event) {
	a.Events = append(a.Events, e)
	a.EventCursor++
	a.EventLog = append(a.EventLog, EventLogEntry{Cursor: a.EventCursor, Event: e})
	if len(a.EventLog) > eventLogCap {
		a.EventLog = append([]EventLogEntry(nil), a.EventLog[len(a.EventLog)-eventLogCap:]...)
	}
}

func (a *Agent) TakeEvents() []protocol.Event {
	ev := a.Events
	a.Events = nil
	return ev
}

// EventsAfter returns retained events with a cursor greater than cursor.
func (a *Agent) EventsAfter(cursor uint64, limit int) ([]EventLogEntry, uint64) {
	if limit <= 0 {
		limit = 100
	}
	out := make([]EventLogEntry, 0, limit)
	next := cursor
	for _, e := range a.EventLog {
		if e.Cursor <= cursor {
			continue
		}
		out = append(out, e)
		next = e.Cursor
		if len(out) >= limit {
			break
		}
	}
	return out, next
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
