package world

import (
	"fmt"
	"strconv"
	"strings"
)

// Unclaimed is the owner id of a tile no settlement has claimed.
const Unclaimed = -1

// ResourceStack is a resource id with an integer amount per day. On a tile
// it is the potential yield; on a settlement it is accumulated stock.
type ResourceStack struct {
	ResourceID string `json:"resource_id"`
	Amount     int    `json:"amount"`
}

// Building is the occupant of a tile. Its definition data is captured by
// value when the building is placed.
type Building struct {
	DefID      string          `json:"def_id"`
	YieldBonus []ResourceStack `json:"yield_bonus,omitempty"`
}

// Bonus returns the per-day yield bonus the building grants for a resource.
func (b *Building) Bonus(resourceID string) int {
	if b == nil {
		return 0
	}
	total := 0
	for _, s := range b.YieldBonus {
		if s.ResourceID == resourceID {
			total += s.Amount
		}
	}
	return total
}

// Tile is a single hex on the world map.
type Tile struct {
	Coord    HexCoord `json:"coord"`
	Position Point    `json:"position"`

	Biome       string  `json:"biome"`
	SubBiome    string  `json:"sub_biome"`   // free-text modifier: "hill", "forest", "deep water"
	Temperature float64 `json:"temperature"` // 0.0 (frozen) to 1.0 (hot)
	Moisture    float64 `json:"moisture"`    // 0.0 (arid) to 1.0 (wet)

	Resources []ResourceStack `json:"resources"`

	OwnerSettlementID int       `json:"owner_settlement_id"`
	Worked            bool      `json:"worked"`
	Building          *Building `json:"building,omitempty"`
}

// NewTile creates an unclaimed tile at coord, positioned for hexRadius.
func NewTile(coord HexCoord, hexRadius float64) *Tile {
	return &Tile{
		Coord:             coord,
		Position:          AxialToPlane(coord, hexRadius),
		Biome:             "Plains",
		Temperature:       0.5,
		Moisture:          0.5,
		OwnerSettlementID: Unclaimed,
	}
}

// Yield returns the tile's amount per day for a resource.
func (t *Tile) Yield(resourceID string) int {
	for _, s := range t.Resources {
		if s.ResourceID == resourceID {
			return s.Amount
		}
	}
	return 0
}

// Claimed reports whether any settlement owns the tile.
func (t *Tile) Claimed() bool {
	return t.OwnerSettlementID != Unclaimed
}

// IsWater reports whether the sub-biome marks the tile as water.
func (t *Tile) IsWater() bool {
	sb := strings.ToLower(t.SubBiome)
	return strings.Contains(sb, "water") || strings.Contains(sb, "ocean")
}

func (t *Tile) String() string {
	return fmt.Sprintf("Tile%s[%s/%s]", t.Coord, t.Biome, t.SubBiome)
}

// FormatPairs encodes stacks as "id:amount" strings, the exchange format
// used by save files.
func FormatPairs(stacks []ResourceStack) []string {
	out := make([]string, 0, len(stacks))
	for _, s := range stacks {
		out = append(out, s.ResourceID+":"+strconv.Itoa(s.Amount))
	}
	return out
}

// ParsePairs decodes "id:amount" strings. Malformed entries are skipped and
// unparseable amounts read as 0; negative amounts are clamped to 0.
func ParsePairs(pairs []string) []ResourceStack {
	out := make([]ResourceStack, 0, len(pairs))
	for _, p := range pairs {
		id, amt, found := strings.Cut(p, ":")
		if !found || id == "" || strings.Contains(amt, ":") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(amt))
		if err != nil {
			n = 0
		}
		out = append(out, ResourceStack{ResourceID: id, Amount: clampMin(n, 0)})
	}
	return out
}
