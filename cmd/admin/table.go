package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"quarrysim.ai/internal/persistence/snapshot"
	"quarrysim.ai/internal/sim/catalogs"
	"quarrysim.ai/internal/sim/oretable"
	"quarrysim.ai/internal/sim/quarry"
	"quarrysim.ai/internal/sim/world"
)

// tableCmd edits the resource table stored in a snapshot. The server picks
// the change up on its next resume.
//
//	admin table -world quarry_1 list
//	admin table -world quarry_1 add Artifact_Idol 40
//	admin table -world quarry_1 remove Uranium
//	admin table -world quarry_1 reweight Steel 900
//	admin table -world quarry_1 reset
func tableCmd(args []string) {
	fs := flag.NewFlagSet("table", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	configDir := fs.String("configs", "./configs", "config directory")
	outPath := fs.String("out", "", "output snapshot path (default: overwrite input)")
	_ = fs.Parse(args)

	op := "list"
	if fs.NArg() > 0 {
		op = strings.ToLower(fs.Arg(0))
	}
	path := resolveSnapshot(*dataDir, *worldID, *snapPath)
	snap := readSnapshotOrExit(path)

	cat, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	logger := log.New(os.Stderr, "[admin] ", 0)

	shares, err := editTable(&snap, cat, op, fs.Args()[min(1, fs.NArg()):], logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	printShares(os.Stdout, shares)
	if op == "list" {
		return
	}

	out := strings.TrimSpace(*outPath)
	if out == "" {
		out = path
	}
	if err := snapshot.WriteSnapshot(out, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (table revision %d)\n", out, snap.TableRevision)
}

// editTable applies op to the snapshot's table through a scratch engine so
// the same validation as the live world applies.
func editTable(snap *snapshot.SnapshotV1, cat *catalogs.Catalog, op string, args []string, logger *log.Logger) ([]oretable.Share, error) {
	e := quarry.NewEngine(cat, world.QuarrySettingsFromV1(snap.Settings), uint64(snap.Seed), logger)
	entries := make([]oretable.Entry, 0, len(snap.Table))
	for _, te := range snap.Table {
		entries = append(entries, oretable.Entry{Kind: te.Kind, Weight: te.Weight})
	}
	e.RestoreTable(entries)

	weightArg := func() (int, error) {
		if len(args) < 2 {
			return 0, fmt.Errorf("%s: expected <kind> <weight>", op)
		}
		var w int
		if _, err := fmt.Sscan(args[1], &w); err != nil {
			return 0, fmt.Errorf("%s: bad weight %q", op, args[1])
		}
		return w, nil
	}
	kindArg := func() (string, error) {
		if len(args) < 1 {
			return "", fmt.Errorf("%s: expected <kind>", op)
		}
		return args[0], nil
	}

	var err error
	switch op {
	case "list":
		return e.TableSnapshot(), nil
	case "reset":
		e.ResetTable()
	case "add":
		var kind string
		var w int
		if kind, err = kindArg(); err == nil {
			if w, err = weightArg(); err == nil {
				err = e.AddEntry(kind, w)
			}
		}
	case "remove":
		var kind string
		if kind, err = kindArg(); err == nil {
			err = e.RemoveEntry(kind)
		}
	case "reweight":
		var kind string
		var w int
		if kind, err = kindArg(); err == nil {
			if w, err = weightArg(); err == nil {
				err = e.ReweightEntry(kind, w)
			}
		}
	default:
		return nil, fmt.Errorf("unknown table op %q (list|add|remove|reweight|reset)", op)
	}
	if err != nil {
		return nil, err
	}

	snap.Table = snap.Table[:0]
	for _, te := range e.TableEntries() {
		snap.Table = append(snap.Table, snapshot.TableEntryV1{Kind: te.Kind, Weight: te.Weight})
	}
	snap.TableRevision++
	return e.TableSnapshot(), nil
}

func printShares(w io.Writer, shares []oretable.Share) {
	total := 0
	for _, s := range shares {
		total += s.Weight
	}
	for _, s := range shares {
		fmt.Fprintf(w, "%-24s %8s %6.2f%%\n", s.Kind, humanize.Comma(int64(s.Weight)), s.Percent)
	}
	fmt.Fprintf(w, "%d kinds, total weight %s\n", len(shares), humanize.Comma(int64(total)))
}
