package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Thing categories.
const (
	CategoryItem     = "ITEM"
	CategoryBuilding = "BUILDING"
	CategoryFilth    = "FILTH"
)

// Naming conventions for rock-derived products.
const (
	ChunkPrefix  = "Chunk"
	BlocksPrefix = "Blocks"

	TagStoneChunks = "StoneChunks"
)

type Catalog struct {
	Palette []string
	Index   map[string]uint16
	Defs    map[string]ThingDef
	Digest  string
}

type ThingDef struct {
	ID       string `json:"id"`
	Category string `json:"category"`

	MarketValue  float64 `json:"market_value"`
	StackLimit   int     `json:"stack_limit"`
	UseHitPoints bool    `json:"use_hit_points,omitempty"`
	MaxHitPoints int     `json:"max_hit_points,omitempty"`
	HasQuality   bool    `json:"has_quality,omitempty"`
	Haulable     bool    `json:"designate_haulable,omitempty"`

	Tags []string `json:"tags,omitempty"`

	DeepCommonality float64 `json:"deep_commonality,omitempty"`
	Scatterable     bool    `json:"scatterable,omitempty"`
	DestroyOnDrop   bool    `json:"destroy_on_drop,omitempty"`
	MadeFromStuff   bool    `json:"made_from_stuff,omitempty"`
	Rottable        bool    `json:"rottable,omitempty"`

	Mineable *MineableProps `json:"mineable,omitempty"`
}

type MineableProps struct {
	ResourceRock       bool    `json:"resource_rock"`
	Yields             string  `json:"yields"`
	ScatterCommonality float64 `json:"scatter_commonality"`
}

func (d ThingDef) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (d ThingDef) IsChunk() bool { return d.HasTag(TagStoneChunks) }

const thingsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "category"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "category": {"enum": ["ITEM", "BUILDING", "FILTH"]},
      "market_value": {"type": "number", "minimum": 0},
      "stack_limit": {"type": "integer", "minimum": 0},
      "max_hit_points": {"type": "integer", "minimum": 0},
      "deep_commonality": {"type": "number", "minimum": 0},
      "tags": {"type": "array", "items": {"type": "string"}},
      "mineable": {
        "type": "object",
        "required": ["resource_rock", "yields"],
        "properties": {
          "resource_rock": {"type": "boolean"},
          "yields": {"type": "string"},
          "scatter_commonality": {"type": "number", "minimum": 0}
        }
      }
    }
  }
}`

var compiledSchema *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	s, err := jsonschema.CompileString("things.schema.json", thingsSchema)
	if err != nil {
		return nil, err
	}
	compiledSchema = s
	return s, nil
}

// Load reads <configDir>/things.json.
func Load(configDir string) (*Catalog, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, "things.json"))
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse validates raw things.json bytes and builds the catalog.
func Parse(raw []byte) (*Catalog, error) {
	s, err := schema()
	if err != nil {
		return nil, fmt.Errorf("things schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("things.json: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("things.json: %w", err)
	}

	var defs []ThingDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("things.json: %w", err)
	}
	c, err := New(defs)
	if err != nil {
		return nil, fmt.Errorf("things.json: %w", err)
	}
	c.Digest = sha256Hex(raw)
	return c, nil
}

// New builds a catalog from in-memory definitions.
func New(defs []ThingDef) (*Catalog, error) {
	c := &Catalog{Defs: make(map[string]ThingDef, len(defs))}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("empty id")
		}
		if _, dup := c.Defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate id %q", d.ID)
		}
		if d.StackLimit <= 0 {
			d.StackLimit = 1
		}
		c.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(c.Defs))
	for id := range c.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	c.Palette = ids
	c.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		c.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	c.Digest = sha256Hex(palJSON)
	return c, nil
}

// FindByName resolves a kind identifier.
func (c *Catalog) FindByName(name string) (ThingDef, bool) {
	if c == nil {
		return ThingDef{}, false
	}
	d, ok := c.Defs[name]
	return d, ok
}

// All returns every definition in palette order.
func (c *Catalog) All() []ThingDef {
	out := make([]ThingDef, 0, len(c.Palette))
	for _, id := range c.Palette {
		out = append(out, c.Defs[id])
	}
	return out
}

// Suggest returns up to max known ids closest to name by edit distance.
func (c *Catalog) Suggest(name string, max int) []string {
	if c == nil || max <= 0 {
		return nil
	}
	type cand struct {
		id   string
		dist int
	}
	needle := strings.ToLower(name)
	cands := make([]cand, 0, len(c.Palette))
	for _, id := range c.Palette {
		cands = append(cands, cand{id: id, dist: levenshtein.ComputeDistance(needle, strings.ToLower(id))})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	limit := len(name)/2 + 2
	var out []string
	for _, cd := range cands {
		if len(out) == max || cd.dist > limit {
			break
		}
		out = append(out, cd.id)
	}
	return out
}

// ChunkFor returns the chunk kind produced by the named rock.
func (c *Catalog) ChunkFor(rock string) (ThingDef, bool) {
	return c.FindByName(ChunkPrefix + rock)
}

// BlocksFor returns the block kind cut from the named rock.
func (c *Catalog) BlocksFor(rock string) (ThingDef, bool) {
	return c.FindByName(BlocksPrefix + rock)
}

// IsQuarryRock reports whether rock has both a chunk and a blocks product.
func (c *Catalog) IsQuarryRock(rock string) bool {
	_, chunk := c.ChunkFor(rock)
	_, blocks := c.BlocksFor(rock)
	return chunk && blocks
}

// QuarryRocks lists every rock name with a chunk and a blocks product.
func (c *Catalog) QuarryRocks() []string {
	var out []string
	for _, id := range c.Palette {
		if !strings.HasPrefix(id, ChunkPrefix) {
			continue
		}
		rock := strings.TrimPrefix(id, ChunkPrefix)
		if rock != "" && c.IsQuarryRock(rock) {
			out = append(out, rock)
		}
	}
	return out
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
