package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"quarrysim.ai/internal/persistence/indexdb"
	persistlog "quarrysim.ai/internal/persistence/log"
	"quarrysim.ai/internal/persistence/snapshot"
	"quarrysim.ai/internal/sim/catalogs"
	"quarrysim.ai/internal/sim/layout"
	"quarrysim.ai/internal/sim/tuning"
	"quarrysim.ai/internal/sim/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "quarry_1", "world id")
		seed       = flag.Int64("seed", 0, "world seed for a fresh world (0: tuning seed)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		layoutPath = flag.String("layout", "", "path to layout.yaml (default: <configs>/layout.yaml if present)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite outcome index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cat, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	logger.Printf("catalog loaded: %d things digest=%s", len(cat.Palette), short(cat.Digest))

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapDir := filepath.Join(worldDir, "snapshots")
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad, _ = snapshot.Latest(snapDir)
	}

	// Tuning is required for a fresh world; a snapshot carries its own quarry settings.
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalog(*configDir, cat, tune); err != nil {
			logger.Printf("index: upsert catalog: %v", err)
		}
	}

	eventLog := persistlog.NewEventLogger(worldDir)
	defer eventLog.Close()

	snapCh := make(chan snapshot.SnapshotV1, 2)
	opts := world.WorldOptions{
		Logger:       log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds),
		EventLogger:  eventLog,
		SnapshotSink: snapCh,
	}
	if idx != nil {
		opts.OutcomeIndex = idx
	}

	cfg := world.WorldConfig{
		ID:                 *worldID,
		TickRateHz:         tune.TickRateHz,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		Seed:               tune.Seed,
		Tuning:             tune,
	}

	var w *world.World
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		cfg.Seed = snap.Seed
		if snap.TickRate > 0 {
			cfg.TickRateHz = snap.TickRate
		}
		w, err = world.New(cfg, cat, opts)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d run=%s", filepath.Base(snapshotToLoad), w.CurrentTick(), w.RunID())
	} else {
		w, err = world.New(cfg, cat, opts)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		lp := strings.TrimSpace(*layoutPath)
		if lp == "" {
			if p := filepath.Join(*configDir, "layout.yaml"); fileExists(p) {
				lp = p
			}
		}
		lay, err := layout.Load(lp)
		if err != nil {
			logger.Fatalf("load layout: %v", err)
		}
		if err := lay.Apply(w); err != nil {
			logger.Fatalf("apply layout: %v", err)
		}
		logger.Printf("fresh world seed=%d sites=%d agents=%d run=%s", cfg.Seed, len(lay.Sites), len(lay.Agents), w.RunID())
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := snapshot.PathFor(snapDir, snap.Header.Tick)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(w, idx, logger, envBool("QS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
