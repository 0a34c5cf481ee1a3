package world

import (
	"fmt"
	"log"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"

	"quarrysim.ai/internal/persistence/snapshot"
	"quarrysim.ai/internal/protocol"
	"quarrysim.ai/internal/sim/catalogs"
	"quarrysim.ai/internal/sim/quarry"
	modelpkg "quarrysim.ai/internal/sim/world/kernel/model"
)

type Vec3i = modelpkg.Vec3i
type Agent = modelpkg.Agent
type Storage = modelpkg.Storage
type ItemEntity = modelpkg.ItemEntity

// World hosts quarry sites, the agents working them and the storages their
// output goes to. It is single-threaded: all state must be accessed only from
// the world loop goroutine, except the Engine which locks itself.
type World struct {
	cfg     WorldConfig
	catalog *catalogs.Catalog
	engine  *quarry.Engine
	terrain *Terrain
	logger  *log.Logger
	runID   string
	tick    atomic.Uint64

	sites        map[string]*siteState
	agents       map[string]*Agent
	storages     map[string]*Storage
	items        map[string]*ItemEntity
	reservations map[string]reservation
	jobs         map[string]*storageJob

	nextAgentNum atomic.Uint64
	nextSiteNum  atomic.Uint64
	nextStoreNum atomic.Uint64
	nextCycleNum atomic.Uint64
	nextItemNum  atomic.Uint64
	nextJobNum   atomic.Uint64

	// Filled during a step and flushed at its end.
	worldEvents []protocol.Event
	outcomes    []OutcomeEntry
	tableCh     chan quarry.TableChange

	eventLogger  EventLogger
	outcomeIndex OutcomeIndex
	snapshotSink chan<- snapshot.SnapshotV1

	observers     map[string]*observerClient
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string

	inbox        chan Command
	snapshotReqs chan snapshotRequest
	stop         chan struct{}

	outcomeTotal uint64
	pickHits     uint64
	metrics      atomic.Value
}

type siteState struct {
	site     *quarry.Site
	pos      Vec3i
	workCell Vec3i

	forbidden    bool
	inaccessible bool
	depletedSent bool
}

type reservation struct {
	ItemID    string
	StorageID string
	Slot      int
}

// storageJob is a haul run by a non-simple storage after a cycle handed the
// item off.
type storageJob struct {
	ID        string
	ItemID    string
	StorageID string
	Slot      int
	JobType   string
	DueTick   uint64
}

// EventLogger receives every event emitted during a tick.
type EventLogger interface {
	WriteEvent(entry EventLogEntry) error
}

// OutcomeIndex receives outcome and table records for querying.
type OutcomeIndex interface {
	RecordOutcome(entry OutcomeEntry)
	RecordTableChange(entry TableChangeEntry)
}

type EventLogEntry struct {
	Tick    uint64         `json:"tick"`
	RunID   string         `json:"run_id"`
	AgentID string         `json:"agent_id,omitempty"`
	Event   protocol.Event `json:"event"`
}

type OutcomeEntry struct {
	Tick      uint64  `json:"tick"`
	RunID     string  `json:"run_id"`
	CycleID   string  `json:"cycle_id"`
	AgentID   string  `json:"agent_id"`
	SiteID    string  `json:"site_id"`
	ItemID    string  `json:"item_id"`
	Kind      string  `json:"kind"`
	Count     int     `json:"count"`
	Condition float64 `json:"condition"`
	Quality   string  `json:"quality"`
	Mote      string  `json:"mote"`
	Hazard    bool    `json:"hazard"`
	// Remaining is the site's depletion percentage after the job.
	Remaining float64 `json:"remaining"`
}

type TableChangeEntry struct {
	Tick     uint64 `json:"tick"`
	RunID    string `json:"run_id"`
	Revision int    `json:"revision"`
	Op       string `json:"op"`
	Kind     string `json:"kind,omitempty"`
	Weight   int    `json:"weight,omitempty"`
	Entries  int    `json:"entries"`
	Total    int    `json:"total"`
}

type WorldOptions struct {
	Logger       *log.Logger
	EventLogger  EventLogger
	OutcomeIndex OutcomeIndex
	SnapshotSink chan<- snapshot.SnapshotV1
}

func New(cfg WorldConfig, c *catalogs.Catalog, opts WorldOptions) (*World, error) {
	if c == nil {
		return nil, fmt.Errorf("nil catalog")
	}
	cfg.applyDefaults()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	rocks := cfg.TerrainRocks
	if len(rocks) == 0 {
		rocks = c.QuarryRocks()
	}
	w := &World{
		cfg:           cfg,
		catalog:       c,
		engine:        quarry.NewEngine(c, cfg.Tuning.Quarry, uint64(cfg.Seed), logger),
		terrain:       NewTerrain(cfg.Seed, rocks),
		logger:        logger,
		runID:         uuid.NewString(),
		sites:         map[string]*siteState{},
		agents:        map[string]*Agent{},
		storages:      map[string]*Storage{},
		items:         map[string]*ItemEntity{},
		reservations:  map[string]reservation{},
		jobs:          map[string]*storageJob{},
		tableCh:       make(chan quarry.TableChange, 256),
		eventLogger:   opts.EventLogger,
		outcomeIndex:  opts.OutcomeIndex,
		snapshotSink:  opts.SnapshotSink,
		observers:     map[string]*observerClient{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		inbox:         make(chan Command, 1024),
		snapshotReqs:  make(chan snapshotRequest, 16),
		stop:          make(chan struct{}),
	}
	w.engine.OnTableChange(func(ch quarry.TableChange) {
		select {
		case w.tableCh <- ch:
		default:
			w.logger.Printf("WARNING: table change %d dropped (queue full)", ch.Revision)
		}
	})
	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) ID() string                 { return w.cfg.ID }
func (w *World) RunID() string              { return w.runID }
func (w *World) Config() WorldConfig        { return w.cfg }
func (w *World) CurrentTick() uint64        { return w.tick.Load() }
func (w *World) Engine() *quarry.Engine     { return w.engine }
func (w *World) Catalog() *catalogs.Catalog { return w.catalog }
func (w *World) Terrain() *Terrain          { return w.terrain }

// SiteSpec places a quarry site. RockTypes overrides the terrain composition.
type SiteSpec struct {
	ID        string
	Preset    string
	Pos       Vec3i
	WorkCell  *Vec3i
	RockTypes []string
}

// AddSite creates a site. Setup methods must be called before Run.
func (w *World) AddSite(spec SiteSpec) (*quarry.Site, error) {
	if spec.Preset == "" {
		spec.Preset = quarry.PresetQuarry
	}
	if _, ok := w.cfg.Tuning.Sites[spec.Preset]; !ok {
		return nil, fmt.Errorf("unknown site preset %q", spec.Preset)
	}
	if spec.ID == "" {
		spec.ID = fmt.Sprintf("S%d", w.nextSiteNum.Add(1))
	}
	if _, ok := w.sites[spec.ID]; ok {
		return nil, fmt.Errorf("duplicate site %s", spec.ID)
	}
	rocks := spec.RockTypes
	if len(rocks) == 0 {
		rocks = w.terrain.Composition(spec.Pos, w.cfg.SiteRadius)
	}
	cell := spec.Pos
	if spec.WorkCell != nil {
		cell = *spec.WorkCell
	}
	s := quarry.NewSite(spec.ID, spec.Preset, w.cfg.Tuning, rocks, w.catalog, w.logger)
	w.sites[spec.ID] = &siteState{site: s, pos: spec.Pos, workCell: cell}
	return s, nil
}

func (w *World) Site(id string) *quarry.Site {
	if st := w.sites[id]; st != nil {
		return st.site
	}
	return nil
}

func (w *World) AddAgent(name string, pos Vec3i, player bool, speed float64) *Agent {
	id := fmt.Sprintf("A%d", w.nextAgentNum.Add(1))
	a := &Agent{ID: id, Name: name, Player: player, Pos: pos, MiningSpeed: speed}
	a.InitDefaults()
	w.agents[id] = a
	return a
}

func (w *World) Agent(id string) *Agent { return w.agents[id] }

// StorageSpec places a storage. A non-empty SiteID connects it to that site.
type StorageSpec struct {
	Type     string
	Pos      Vec3i
	SiteID   string
	Priority int
	Accepts  []string
	Slots    int
}

func (w *World) AddStorage(spec StorageSpec) (*Storage, error) {
	switch spec.Type {
	case modelpkg.StoragePlatform, modelpkg.StorageStockpile, modelpkg.StorageShelf:
	default:
		return nil, fmt.Errorf("unknown storage type %q", spec.Type)
	}
	if spec.SiteID != "" && w.sites[spec.SiteID] == nil {
		return nil, fmt.Errorf("unknown site %s", spec.SiteID)
	}
	if spec.Slots <= 0 {
		spec.Slots = 1
	}
	s := &Storage{
		StorageID: fmt.Sprintf("ST%d", w.nextStoreNum.Add(1)),
		Type:      spec.Type,
		Pos:       spec.Pos,
		SiteID:    spec.SiteID,
		Priority:  spec.Priority,
		Accepts:   append([]string(nil), spec.Accepts...),
		Slots:     make([]modelpkg.Slot, spec.Slots),
	}
	w.storages[s.StorageID] = s
	return s, nil
}

func (w *World) Storage(id string) *Storage { return w.storages[id] }
func (w *World) Item(id string) *ItemEntity { return w.items[id] }

// Items returns the item entities sorted by ID.
func (w *World) Items() []*ItemEntity {
	out := make([]*ItemEntity, 0, len(w.items))
	for _, it := range w.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func (w *World) sortedAgentIDs() []string {
	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) sortedSiteIDs() []string {
	ids := make([]string, 0, len(w.sites))
	for id := range w.sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) sortedStorageIDs() []string {
	ids := make([]string, 0, len(w.storages))
	for id := range w.storages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) newCycleID() string {
	return fmt.Sprintf("C%06d", w.nextCycleNum.Add(1))
}

func (w *World) newItemID() string {
	return fmt.Sprintf("I%06d", w.nextItemNum.Add(1))
}

func (w *World) newJobID() string {
	return fmt.Sprintf("J%06d", w.nextJobNum.Add(1))
}

func (w *World) emit(e protocol.Event) {
	w.worldEvents = append(w.worldEvents, e)
}
