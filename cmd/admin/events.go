package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "quarrysim.ai/internal/persistence/log"
	"quarrysim.ai/internal/sim/world"
)

var errLimit = errors.New("limit reached")

// eventsCmd prints logged cycle and site events as JSON lines.
func eventsCmd(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	typ := fs.String("type", "", "event type filter (e.g. TASK_FAIL)")
	agentID := fs.String("agent", "", "agent id filter")
	siteID := fs.String("site", "", "site id filter")
	fromTick := fs.Uint64("from_tick", 0, "first tick")
	limit := fs.Int("limit", 0, "max events (0: all)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	match := eventFilter{Type: strings.ToUpper(*typ), AgentID: *agentID, SiteID: *siteID, FromTick: *fromTick}

	n := 0
	enc := json.NewEncoder(os.Stdout)
	err := persistlog.ReadEvents(filepath.Join(*dataDir, "worlds", *worldID), func(e world.EventLogEntry) error {
		if !match.Match(e) {
			return nil
		}
		if err := enc.Encode(e); err != nil {
			return err
		}
		n++
		if *limit > 0 && n >= *limit {
			return errLimit
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		fmt.Fprintln(os.Stderr, "read events:", err)
		os.Exit(1)
	}
}

type eventFilter struct {
	Type     string
	AgentID  string
	SiteID   string
	FromTick uint64
}

func (f eventFilter) Match(e world.EventLogEntry) bool {
	if e.Tick < f.FromTick {
		return false
	}
	if f.Type != "" && fmt.Sprint(e.Event["type"]) != f.Type {
		return false
	}
	if f.AgentID != "" && e.AgentID != f.AgentID {
		return false
	}
	if f.SiteID != "" && fmt.Sprint(e.Event["site_id"]) != f.SiteID {
		return false
	}
	return true
}
