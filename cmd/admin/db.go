package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"quarrysim.ai/internal/persistence/indexdb"
)

// dbCmd queries the outcome index: snapshots, outcomes, totals, revisions.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	runID := fs.String("run", "", "run id filter")
	kind := fs.String("kind", "", "item kind filter")
	siteID := fs.String("site", "", "site id filter")
	agentID := fs.String("agent", "", "agent id filter")
	fromTick := fs.Uint64("from_tick", 0, "only outcomes at or after this tick")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx := context.Background()
	f := indexdb.OutcomeFilter{RunID: *runID, Kind: *kind, SiteID: *siteID, AgentID: *agentID, FromTick: *fromTick, Limit: *limit}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	switch q {
	case "snapshots":
		rows, err := idx.Snapshots(ctx)
		exitOnErr(err)
		fmt.Fprintln(tw, "TICK\tRUN\tTABLE_REV\tSITES\tAGENTS\tITEMS\tPATH")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n", humanize.Comma(int64(r.Tick)), r.RunID, r.Revision, r.Sites, r.Agents, r.Items, r.Path)
		}
	case "outcomes":
		rows, err := idx.Outcomes(ctx, f)
		exitOnErr(err)
		fmt.Fprintln(tw, "TICK\tCYCLE\tAGENT\tSITE\tKIND\tCOUNT\tQUALITY\tMOTE\tHAZARD\tREMAINING")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%v\t%.2f%%\n", r.Tick, r.CycleID, r.AgentID, r.SiteID, r.Kind, r.Count, r.Quality, r.Mote, r.Hazard, r.Remaining)
		}
	case "totals":
		f.Limit = 0
		rows, err := idx.KindTotals(ctx, f)
		exitOnErr(err)
		fmt.Fprintln(tw, "KIND\tJOBS\tUNITS\tHAZARDS")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.Kind, humanize.Comma(int64(r.Jobs)), humanize.Comma(int64(r.Units)), r.Hazards)
		}
	case "revisions":
		if *runID == "" {
			fmt.Fprintln(os.Stderr, "revisions requires -run")
			os.Exit(2)
		}
		rows, err := idx.TableRevisions(ctx, *runID)
		exitOnErr(err)
		fmt.Fprintln(tw, "REV\tTICK\tOP\tKIND\tWEIGHT\tENTRIES\tTOTAL")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%d\t%s\n", r.Revision, r.Tick, r.Op, r.Kind, r.Weight, r.Entries, humanize.Comma(int64(r.Total)))
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown query %q (snapshots|outcomes|totals|revisions)\n", q)
		os.Exit(2)
	}
}

func exitOnErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}
