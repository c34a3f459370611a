// World generation using layered simplex noise.
// Generates elevation, moisture, and temperature maps, then derives biomes,
// sub-biomes, and per-tile resource yields.
package world

import (
	"math"
	"math/rand"
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// ResourceWeight adds weight to a resource on tiles whose biome contains
// BiomeContains (case-insensitive).
type ResourceWeight struct {
	BiomeContains string  `json:"biome_contains"`
	ResourceID    string  `json:"resource_id"`
	Weight        float64 `json:"weight"` // 0–5
}

// GenConfig holds world generation parameters.
type GenConfig struct {
	Radius     int     // Hex range of the generated hexagon
	HexRadius  float64 // Center-to-corner distance in world units
	Seed       int64   // Random seed (0 = random)
	SeaLevel   float64 // Elevation threshold for water (0.0–1.0)
	HillLevel  float64 // Elevation threshold for hills (0.0–1.0)
	NoiseScale float64 // Frequency of the resource distribution noise
	Resources  []string
	Profile    []ResourceWeight
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:     8,
		HexRadius:  0.5,
		Seed:       0,
		SeaLevel:   0.28,
		HillLevel:  0.68,
		NoiseScale: 0.1,
		Resources:  []string{"food", "wood", "stone", "metal", "knowledge"},
		Profile:    DefaultProfile(),
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Radius = 3
	cfg.Seed = 42
	return cfg
}

// DefaultProfile maps biomes to the resources they tend to carry.
func DefaultProfile() []ResourceWeight {
	return []ResourceWeight{
		{BiomeContains: "plains", ResourceID: "food", Weight: 2},
		{BiomeContains: "grass", ResourceID: "food", Weight: 1.5},
		{BiomeContains: "swamp", ResourceID: "food", Weight: 0.5},
		{BiomeContains: "forest", ResourceID: "wood", Weight: 2.5},
		{BiomeContains: "forest", ResourceID: "food", Weight: 0.5},
		{BiomeContains: "hill", ResourceID: "stone", Weight: 2},
		{BiomeContains: "hill", ResourceID: "metal", Weight: 1},
		{BiomeContains: "tundra", ResourceID: "stone", Weight: 0.8},
		{BiomeContains: "desert", ResourceID: "stone", Weight: 1},
		{BiomeContains: "desert", ResourceID: "knowledge", Weight: 0.3},
		{BiomeContains: "ocean", ResourceID: "food", Weight: 1},
	}
}

// Generate creates a complete world map with biomes and resources.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	// Three noise generators for independent layers.
	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)

	m := NewMap(cfg.HexRadius)
	R := cfg.Radius

	for r := -R; r <= R; r++ {
		qMin := max(-R, -r-R)
		qMax := min(R, -r+R)
		for q := qMin; q <= qMax; q++ {
			t := NewTile(HexCoord{Q: q, R: r}, cfg.HexRadius)

			// Sample noise in unit-hex space so frequencies do not depend
			// on hexRadius.
			x := float64(q) + float64(r)*0.5
			y := float64(r) * Sqrt3 / 2

			elev := octaveNoise(elevNoise, x, y, 4, 0.12, 0.5)
			moist := octaveNoise(moistNoise, x, y, 3, 0.09, 0.5)
			temp := octaveNoise(tempNoise, x, y, 3, 0.07, 0.5)

			// Continental shaping: ocean toward the rim.
			if R > 0 {
				dist := math.Sqrt(x*x+y*y) / float64(R)
				falloff := 1.0 - math.Pow(dist, 3.5)
				if falloff < 0 {
					falloff = 0
				}
				elev *= falloff
			}

			// Colder at altitude.
			temp = clamp01(temp*0.8 + (1.0-elev)*0.2)

			t.Temperature = temp
			t.Moisture = clamp01(moist)
			t.Biome, t.SubBiome = deriveBiome(elev, t.Moisture, temp, cfg)

			m.Insert(t)
		}
	}

	Distribute(m, cfg, seed)
	return m
}

// deriveBiome determines biome and sub-biome labels from environmental parameters.
func deriveBiome(elev, moist, temp float64, cfg GenConfig) (biome, subBiome string) {
	if elev < cfg.SeaLevel*0.6 {
		return "Ocean", "deep water"
	}
	if elev < cfg.SeaLevel {
		return "Ocean", "shallow water"
	}

	switch {
	case temp < 0.25:
		biome = "Tundra"
	case moist < 0.3 && temp > 0.55:
		biome = "Desert"
	case moist > 0.7 && elev < 0.45:
		biome = "Swamp"
	case moist > 0.5:
		biome = "Forest"
	default:
		biome = "Plains"
	}

	var mods []string
	if elev > cfg.HillLevel {
		mods = append(mods, "hill")
	}
	if biome == "Forest" {
		mods = append(mods, "forest")
	}
	return biome, strings.Join(mods, " ")
}

// Distribute assigns resource stacks to every tile from the biome profile,
// modulated by simplex noise. Existing stacks are replaced.
func Distribute(m *Map, cfg GenConfig, seed int64) {
	noise := opensimplex.NewNormalized(seed + 1337)
	scale := cfg.NoiseScale
	if scale <= 0 {
		scale = 0.1
	}

	for _, t := range m.Tiles() {
		t.Resources = t.Resources[:0]
		for _, res := range cfg.Resources {
			w := biomeWeight(cfg.Profile, t.Biome+" "+t.SubBiome, res)
			if w <= 0 {
				continue
			}
			n := noise.Eval2(t.Position.X*scale, t.Position.Z*scale) // 0..1
			amount := int(math.Round(w * (0.2 + n)))
			if amount > 0 {
				t.Resources = append(t.Resources, ResourceStack{ResourceID: res, Amount: amount})
			}
		}
	}
}

func biomeWeight(profile []ResourceWeight, biome, resourceID string) float64 {
	b := strings.ToLower(strings.TrimSpace(biome))
	if b == "" {
		return 0
	}
	total := 0.0
	for _, w := range profile {
		if w.ResourceID != resourceID || w.BiomeContains == "" {
			continue
		}
		if strings.Contains(b, strings.ToLower(w.BiomeContains)) {
			total += w.Weight
		}
	}
	return total
}

// octaveNoise generates fractal noise by layering multiple frequencies.
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

func clamp01(v float64) float64 {
	return math.Min(1, clampMin(v, 0))
}
