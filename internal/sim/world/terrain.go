package world

import (
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	modelpkg "quarrysim.ai/internal/sim/world/kernel/model"
)

// Terrain maps ground cells to rock types with layered simplex noise.
type Terrain struct {
	noise opensimplex.Noise
	rocks []string
}

func NewTerrain(seed int64, rocks []string) *Terrain {
	return &Terrain{
		noise: opensimplex.NewNormalized(seed),
		rocks: append([]string(nil), rocks...),
	}
}

// RockAt is the rock under the ground cell (x, z), or "" without rocks.
func (t *Terrain) RockAt(x, z int) string {
	if len(t.rocks) == 0 {
		return ""
	}
	v := octaveNoise(t.noise, float64(x), float64(z), 3, 0.08, 0.5)
	i := int(v * float64(len(t.rocks)))
	if i >= len(t.rocks) {
		i = len(t.rocks) - 1
	}
	if i < 0 {
		i = 0
	}
	return t.rocks[i]
}

// Composition lists the rocks found in the square footprint around center,
// most common first.
func (t *Terrain) Composition(center modelpkg.Vec3i, radius int) []string {
	counts := map[string]int{}
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			if r := t.RockAt(center.X+dx, center.Z+dz); r != "" {
				counts[r]++
			}
		}
	}
	out := make([]string, 0, len(counts))
	for r := range counts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
