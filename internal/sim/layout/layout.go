// Package layout loads the initial placement of quarry sites, agents and
// storages for a fresh world.
package layout

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"quarrysim.ai/internal/sim/quarry"
	"quarrysim.ai/internal/sim/world"
	modelpkg "quarrysim.ai/internal/sim/world/kernel/model"
)

type Config struct {
	Sites    []SiteSpec    `yaml:"sites"`
	Agents   []AgentSpec   `yaml:"agents"`
	Storages []StorageSpec `yaml:"storages"`
}

type SiteSpec struct {
	ID        string   `yaml:"id"`
	Preset    string   `yaml:"preset"`
	Pos       [3]int   `yaml:"pos"`
	WorkCell  *[3]int  `yaml:"work_cell,omitempty"`
	RockTypes []string `yaml:"rock_types,omitempty"`
	AutoHaul  *bool    `yaml:"auto_haul,omitempty"`
}

type AgentSpec struct {
	Name   string  `yaml:"name"`
	Pos    [3]int  `yaml:"pos"`
	Player bool    `yaml:"player"`
	Speed  float64 `yaml:"speed"`
}

type StorageSpec struct {
	Type     string   `yaml:"type"`
	Pos      [3]int   `yaml:"pos"`
	SiteID   string   `yaml:"site_id,omitempty"`
	Priority int      `yaml:"priority"`
	Accepts  []string `yaml:"accepts,omitempty"`
	Slots    int      `yaml:"slots"`
}

// Load reads a layout file. An empty path yields the default layout.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := Defaults()
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("layout.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("layout.yaml: %w", err)
	}
	return cfg, nil
}

// Defaults is one standard quarry with a connected platform, a general
// stockpile and a shelf, worked by three colonists.
func Defaults() Config {
	return Config{
		Sites: []SiteSpec{{ID: "S1", Preset: quarry.PresetQuarry}},
		Agents: []AgentSpec{
			{Name: "colonist-1", Pos: [3]int{4, 0, 0}, Speed: 1},
			{Name: "colonist-2", Pos: [3]int{-4, 0, 2}, Speed: 0.8},
			{Name: "colonist-3", Pos: [3]int{0, 0, 6}, Speed: 1.2},
		},
		Storages: []StorageSpec{
			{Type: modelpkg.StoragePlatform, Pos: [3]int{0, 0, 3}, SiteID: "S1", Slots: 8},
			{Type: modelpkg.StorageStockpile, Pos: [3]int{10, 0, 0}, Priority: 1, Slots: 40},
			{Type: modelpkg.StorageShelf, Pos: [3]int{12, 0, 4}, Slots: 6},
		},
	}
}

func (c *Config) Normalize() {
	for i := range c.Sites {
		s := &c.Sites[i]
		s.ID = strings.TrimSpace(s.ID)
		s.Preset = strings.ToUpper(strings.TrimSpace(s.Preset))
		if s.Preset == "" {
			s.Preset = quarry.PresetQuarry
		}
	}
	for i := range c.Agents {
		a := &c.Agents[i]
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			a.Name = fmt.Sprintf("colonist-%d", i+1)
		}
		if a.Speed <= 0 {
			a.Speed = 1
		}
	}
	for i := range c.Storages {
		s := &c.Storages[i]
		s.Type = strings.ToUpper(strings.TrimSpace(s.Type))
		if s.Slots <= 0 {
			s.Slots = 1
		}
	}
}

func (c Config) Validate() error {
	if len(c.Sites) == 0 {
		return fmt.Errorf("no sites")
	}
	seen := map[string]bool{}
	for _, s := range c.Sites {
		if s.ID == "" {
			return fmt.Errorf("site id is required")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate site %s", s.ID)
		}
		seen[s.ID] = true
	}
	for _, st := range c.Storages {
		switch st.Type {
		case modelpkg.StoragePlatform, modelpkg.StorageStockpile, modelpkg.StorageShelf:
		default:
			return fmt.Errorf("unknown storage type %q", st.Type)
		}
		if st.SiteID != "" && !seen[st.SiteID] {
			return fmt.Errorf("storage references unknown site %s", st.SiteID)
		}
	}
	return nil
}

// Apply places the layout into a fresh world.
func (c Config) Apply(w *world.World) error {
	for _, s := range c.Sites {
		spec := world.SiteSpec{ID: s.ID, Preset: s.Preset, Pos: vec(s.Pos), RockTypes: s.RockTypes}
		if s.WorkCell != nil {
			cell := vec(*s.WorkCell)
			spec.WorkCell = &cell
		}
		site, err := w.AddSite(spec)
		if err != nil {
			return err
		}
		if s.AutoHaul != nil {
			site.SetAutoHaul(*s.AutoHaul)
		}
	}
	for _, st := range c.Storages {
		if _, err := w.AddStorage(world.StorageSpec{
			Type:     st.Type,
			Pos:      vec(st.Pos),
			SiteID:   st.SiteID,
			Priority: st.Priority,
			Accepts:  st.Accepts,
			Slots:    st.Slots,
		}); err != nil {
			return err
		}
	}
	for _, a := range c.Agents {
		w.AddAgent(a.Name, vec(a.Pos), a.Player, a.Speed)
	}
	return nil
}

func vec(p [3]int) world.Vec3i { return world.Vec3i{X: p[0], Y: p[1], Z: p[2]} }
