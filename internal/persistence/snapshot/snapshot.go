package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	RunID   string `json:"run_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed               int64 `json:"seed"`
	TickRate           int   `json:"tick_rate_hz"`
	SnapshotEveryTicks int   `json:"snapshot_every_ticks,omitempty"`

	Settings SettingsV1 `json:"settings"`

	// Table is nil when the resource table was never built.
	TableRevision int            `json:"table_revision"`
	Table         []TableEntryV1 `json:"table,omitempty"`

	Sites    []SiteV1    `json:"sites"`
	Agents   []AgentV1   `json:"agents"`
	Storages []StorageV1 `json:"storages"`
	Items    []ItemV1    `json:"items"`
	Jobs     []JobV1     `json:"jobs,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type SettingsV1 struct {
	MaxHealth     int      `json:"max_health"`
	JunkChance    int      `json:"junk_chance"`
	ChunkChance   int      `json:"chunk_chance"`
	Difficulty    float64  `json:"difficulty"`
	FillerKind    string   `json:"filler_kind"`
	ComponentKind string   `json:"component_kind"`
	ExcludedRocks []string `json:"excluded_rocks,omitempty"`
	FallbackRocks []string `json:"fallback_rocks,omitempty"`
}

type TableEntryV1 struct {
	Kind   string `json:"kind"`
	Weight int    `json:"weight"`
}

type SiteV1 struct {
	ID            string   `json:"id"`
	Preset        string   `json:"preset"`
	Pos           [3]int   `json:"pos"`
	WorkCell      [3]int   `json:"work_cell"`
	Remaining     float64  `json:"remaining"`
	JobsCompleted int      `json:"jobs_completed"`
	AutoHaul      bool     `json:"auto_haul"`
	MineMode      string   `json:"mine_mode"`
	RockTypes     []string `json:"rock_types"`
	Forbidden     bool     `json:"forbidden,omitempty"`
	Inaccessible  bool     `json:"inaccessible,omitempty"`
	// DepletedSent marks that SITE_DEPLETED was already emitted.
	DepletedSent bool `json:"depleted_sent,omitempty"`
}

type AgentV1 struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Player      bool     `json:"player,omitempty"`
	Pos         [3]int   `json:"pos"`
	HP          int      `json:"hp"`
	MiningSpeed float64  `json:"mining_speed"`
	MiningXP    float64  `json:"mining_xp"`
	CellsMined  int      `json:"cells_mined"`
	Carrying    string   `json:"carrying,omitempty"`
	Cycle       *CycleV1 `json:"cycle,omitempty"`
}

type CycleV1 struct {
	CycleID        string     `json:"cycle_id"`
	SiteID         string     `json:"site_id"`
	Phase          string     `json:"phase"`
	StartedTick    uint64     `json:"started_tick"`
	PhaseTick      uint64     `json:"phase_tick"`
	TicksRemaining int        `json:"ticks_remaining"`
	TicksToPickHit int        `json:"ticks_to_pick_hit"`
	ItemID         string     `json:"item_id,omitempty"`
	StorageID      string     `json:"storage_id,omitempty"`
	Slot           int        `json:"slot"`
	Reserved       bool       `json:"reserved,omitempty"`
	Outcome        *OutcomeV1 `json:"outcome,omitempty"`
}

type OutcomeV1 struct {
	Kind      string  `json:"kind"`
	Quantity  int     `json:"quantity"`
	Condition float64 `json:"condition"`
	Quality   int     `json:"quality"`
	Mote      string  `json:"mote"`
	Hazard    bool    `json:"hazard,omitempty"`
	Filler    bool    `json:"filler,omitempty"`
	Chunk     bool    `json:"chunk,omitempty"`
	Component bool    `json:"component,omitempty"`
}

type StorageV1 struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Pos      [3]int   `json:"pos"`
	SiteID   string   `json:"site_id,omitempty"`
	Priority int      `json:"priority"`
	Accepts  []string `json:"accepts,omitempty"`
	Slots    []SlotV1 `json:"slots"`
}

type SlotV1 struct {
	ItemID     string `json:"item_id,omitempty"`
	ReservedBy string `json:"reserved_by,omitempty"`
}

type ItemV1 struct {
	ID             string  `json:"id"`
	Pos            [3]int  `json:"pos"`
	Item           string  `json:"item"`
	Count          int     `json:"count"`
	Condition      float64 `json:"condition"`
	HitPoints      int     `json:"hit_points"`
	Quality        int     `json:"quality"`
	CreatedTick    uint64  `json:"created_tick"`
	HaulDesignated bool    `json:"haul_designated,omitempty"`
	StoredIn       string  `json:"stored_in,omitempty"`
	ReservedBy     string  `json:"reserved_by,omitempty"`
}

// JobV1 is a storage-run haul handed off by a finished cycle.
type JobV1 struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	StorageID string `json:"storage_id"`
	Slot      int    `json:"slot"`
	JobType   string `json:"job_type"`
	DueTick   uint64 `json:"due_tick"`
}

type CountersV1 struct {
	NextAgentNum uint64 `json:"next_agent_num"`
	NextCycleNum uint64 `json:"next_cycle_num"`
	NextItemNum  uint64 `json:"next_item_num"`
	NextJobNum   uint64 `json:"next_job_num"`
	NextSiteNum  uint64 `json:"next_site_num"`
	NextStoreNum uint64 `json:"next_store_num"`
}

// WriteSnapshot writes snap to a temporary file next to path and renames it
// into place once every layer has been flushed and closed. A failed write
// leaves any previous file at path untouched.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encodeSnapshot(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func encodeSnapshot(w io.Writer, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flush: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("zstd close: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is informational; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

// PathFor is the file name used for a snapshot taken at tick.
func PathFor(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snap.zst", tick))
}

// Latest returns the snapshot in dir with the highest tick.
func Latest(dir string) (string, bool) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	type cand struct {
		tick uint64
		path string
	}
	var cands []cand
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		cands = append(cands, cand{tick: n, path: filepath.Join(dir, name)})
	}
	if len(cands) == 0 {
		return "", false
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].tick > cands[j].tick })
	return cands[0].path, true
}
