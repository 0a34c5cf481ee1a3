package main

import (
	"testing"

	"quarrysim.ai/internal/protocol"
	"quarrysim.ai/internal/sim/world"
)

func TestEventFilter_Match(t *testing.T) {
	e := world.EventLogEntry{
		Tick:    12,
		AgentID: "A1",
		Event:   protocol.Event{"type": protocol.EventTaskFail, "site_id": "S1", "code": protocol.ErrNoStorage},
	}
	cases := []struct {
		name string
		f    eventFilter
		want bool
	}{
		{"empty", eventFilter{}, true},
		{"type", eventFilter{Type: protocol.EventTaskFail}, true},
		{"other type", eventFilter{Type: protocol.EventTaskDone}, false},
		{"agent", eventFilter{AgentID: "A1", SiteID: "S1"}, true},
		{"other agent", eventFilter{AgentID: "A2"}, false},
		{"other site", eventFilter{SiteID: "S2"}, false},
		{"from tick", eventFilter{FromTick: 12}, true},
		{"after", eventFilter{FromTick: 13}, false},
	}
	for _, tc := range cases {
		if got := tc.f.Match(e); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}
