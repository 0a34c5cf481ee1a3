package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"quarrysim.ai/internal/persistence/snapshot"
)

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := resolveSnapshot(*dataDir, *worldID, *snapPath)
	snap := readSnapshotOrExit(path)
	var size int64
	if st, err := os.Stat(path); err == nil {
		size = st.Size()
	}
	fmt.Printf("%s (%s)\n", filepath.Base(path), humanize.Bytes(uint64(size)))
	printSummary(os.Stdout, snap)
}

func printSummary(w io.Writer, snap snapshot.SnapshotV1) {
	fmt.Fprintf(w, "world=%s run=%s tick=%s seed=%d table_rev=%d\n",
		snap.Header.WorldID, snap.Header.RunID, humanize.Comma(int64(snap.Header.Tick)), snap.Seed, snap.TableRevision)
	s := snap.Settings
	fmt.Fprintf(w, "settings: max_health=%s junk=%d%% chunk=%d%% difficulty=%.2f\n",
		humanize.Comma(int64(s.MaxHealth)), s.JunkChance, s.ChunkChance, s.Difficulty)

	fmt.Fprintln(w, "sites:")
	for _, st := range snap.Sites {
		flags := ""
		if st.Forbidden {
			flags += " forbidden"
		}
		if st.Inaccessible {
			flags += " inaccessible"
		}
		if st.Remaining <= 0 {
			flags += " depleted"
		}
		fmt.Fprintf(w, "  %-4s %-11s remaining=%6.2f%% jobs=%-6s mode=%s auto_haul=%v rocks=%v%s\n",
			st.ID, st.Preset, st.Remaining*100, humanize.Comma(int64(st.JobsCompleted)), st.MineMode, st.AutoHaul, st.RockTypes, flags)
	}

	fmt.Fprintln(w, "agents:")
	for _, a := range snap.Agents {
		phase := "idle"
		if a.Cycle != nil {
			phase = a.Cycle.Phase + "@" + a.Cycle.SiteID
		}
		fmt.Fprintf(w, "  %-4s %-14s hp=%-3d cells=%-5d xp=%.2f %s\n", a.ID, a.Name, a.HP, a.CellsMined, a.MiningXP, phase)
	}

	stored, ground := map[string]int{}, map[string]int{}
	for _, it := range snap.Items {
		if it.StoredIn != "" {
			stored[it.Item] += it.Count
		} else {
			ground[it.Item] += it.Count
		}
	}
	fmt.Fprintf(w, "items: %d stacks, %d pending storage jobs\n", len(snap.Items), len(snap.Jobs))
	for _, k := range sortedKinds(stored, ground) {
		fmt.Fprintf(w, "  %-24s stored=%-8s ground=%s\n", k, humanize.Comma(int64(stored[k])), humanize.Comma(int64(ground[k])))
	}
}

func sortedKinds(ms ...map[string]int) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range ms {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
