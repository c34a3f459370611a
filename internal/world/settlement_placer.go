// Settlement placement: the spacing rule, site scoring and procedural names.
package world

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
)

// DefaultMinSpacing is the minimum plane distance between two settlements.
const DefaultMinSpacing = 2.0

// TooClose reports whether pos is closer than minSpacing to any of the
// existing positions. It returns the index of the first offender and its
// distance.
func TooClose(pos Point, existing []Point, minSpacing float64) (idx int, dist float64, blocked bool) {
	for i, p := range existing {
		d := pos.DistanceTo(p)
		if d < minSpacing {
			return i, d, true
		}
	}
	return -1, 0, false
}

// Site is a candidate settlement location.
type Site struct {
	Coord HexCoord
	Score float64 // Desirability score
	Name  string
}

// SuggestSites scores every land tile for settlement desirability and
// returns up to count sites that respect minSpacing, best first.
func SuggestSites(m *Map, count int, minSpacing float64, seed int64) []Site {
	rng := rand.New(rand.NewSource(seed + 200))

	type scored struct {
		tile  *Tile
		score float64
	}
	var candidates []scored
	for _, t := range m.Tiles() {
		if t.IsWater() {
			continue
		}
		if s := siteScore(m, t); s > 0 {
			candidates = append(candidates, scored{t, s})
		}
	}

	// Stable so equal scores keep map order and the result stays seeded.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var sites []Site
	var taken []Point
	for _, c := range candidates {
		if len(sites) >= count {
			break
		}
		if _, _, blocked := TooClose(c.tile.Position, taken, minSpacing); blocked {
			continue
		}
		taken = append(taken, c.tile.Position)
		sites = append(sites, Site{Coord: c.tile.Coord, Score: c.score})
	}

	names := GenerateNames(rng, len(sites))
	for i := range sites {
		sites[i].Name = names[i]
	}
	return sites
}

// siteScore evaluates how desirable a tile is for a settlement.
// Prefers fertile plains next to water with varied surroundings.
func siteScore(m *Map, t *Tile) float64 {
	score := 0.0

	switch strings.ToLower(t.Biome) {
	case "plains":
		score += 3.0
	case "forest":
		score += 1.5
	case "desert", "swamp", "tundra":
		score += 0.5
	default:
		score += 1.0
	}
	if strings.Contains(strings.ToLower(t.SubBiome), "hill") {
		score -= 0.7
	}

	// Bonus for nearby biome diversity and water access.
	biomes := make(map[string]bool)
	water := false
	for _, nc := range t.Coord.Neighbors() {
		n := m.Get(nc)
		if n == nil {
			continue
		}
		if n.IsWater() {
			water = true
			continue
		}
		biomes[n.Biome] = true
	}
	score += float64(len(biomes)) * 0.3
	if water {
		score += 0.5
	}

	total := 0
	for _, s := range t.Resources {
		total += s.Amount
	}
	score += math.Log1p(float64(total)) * 0.2

	return score
}

// GenerateNames produces procedural settlement names by combining syllables.
// Once every combination is taken, names repeat with a numeric suffix
// ("Ironford 2").
func GenerateNames(rng *rand.Rand, count int) []string {
	prefixes := []string{
		"Iron", "Green", "Ash", "Stone", "Mill", "Cross", "Black",
		"Silver", "Red", "White", "Dark", "Bright", "High", "Low",
		"Old", "New", "Far", "Deep", "Long", "Broad", "Gold", "Frost",
		"Storm", "Thorn", "Elm", "Oak", "Pine", "Copper", "River",
	}
	suffixes := []string{
		"haven", "ford", "hollow", "wick", "bridge", "gate", "keep",
		"stead", "wood", "field", "dale", "crest", "vale", "port",
		"town", "bury", "marsh", "well", "brook", "cliff", "moor",
		"ridge", "watch", "fall", "rest", "point", "reach", "helm",
	}

	combos := len(prefixes) * len(suffixes)
	used := make(map[string]bool)
	names := make([]string, 0, max(count, 0))

	for len(names) < count {
		name := prefixes[rng.Intn(len(prefixes))] + suffixes[rng.Intn(len(suffixes))]
		if round := len(names) / combos; round > 0 {
			name = fmt.Sprintf("%s %d", name, round+1)
		}
		if !used[name] {
			used[name] = true
			names = append(names, name)
		}
	}

	return names
}
