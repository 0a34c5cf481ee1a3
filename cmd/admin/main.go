package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quarrysim.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "table":
			tableCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "events":
			eventsCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		line := e.Name()
		if p, ok := snapshot.Latest(filepath.Join(base, e.Name(), "snapshots")); ok {
			line += "\t" + filepath.Base(p)
		}
		fmt.Println(line)
	}
}

// resolveSnapshot picks -snapshot, or the latest snapshot of -world.
func resolveSnapshot(dataDir, worldID, snapPath string) string {
	if p := strings.TrimSpace(snapPath); p != "" {
		return p
	}
	if strings.TrimSpace(worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
		os.Exit(2)
	}
	p, ok := snapshot.Latest(filepath.Join(dataDir, "worlds", worldID, "snapshots"))
	if !ok {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}
	return p
}

func readSnapshotOrExit(path string) snapshot.SnapshotV1 {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	return snap
}
