package world

import (
	"fmt"
	"math"
)

// Map is the tile index: the single source of truth for which tile sits at
// an axial coordinate. Tiles are also kept in insertion order so iteration
// is deterministic.
type Map struct {
	Hexes     map[HexCoord]*Tile `json:"-"`
	HexRadius float64            `json:"hex_radius"`

	order []*Tile
}

// NewMap creates an empty index for tiles laid out at hexRadius.
func NewMap(hexRadius float64) *Map {
	return &Map{
		Hexes:     make(map[HexCoord]*Tile),
		HexRadius: hexRadius,
	}
}

// Get returns the tile at the given coordinate, or nil if there is none.
func (m *Map) Get(coord HexCoord) *Tile {
	return m.Hexes[coord]
}

// Insert adds a tile. The first insertion for a coordinate wins: a
// duplicate is not stored and Insert returns false.
func (m *Map) Insert(t *Tile) bool {
	if t == nil {
		return false
	}
	if _, exists := m.Hexes[t.Coord]; exists {
		return false
	}
	m.Hexes[t.Coord] = t
	m.order = append(m.order, t)
	return true
}

// Rebuild replaces the whole tile set, as after regeneration. It returns
// the number of duplicate coordinates that were dropped.
func (m *Map) Rebuild(tiles []*Tile) int {
	m.Hexes = make(map[HexCoord]*Tile, len(tiles))
	m.order = make([]*Tile, 0, len(tiles))
	dropped := 0
	for _, t := range tiles {
		if !m.Insert(t) {
			dropped++
		}
	}
	return dropped
}

// Tiles returns all tiles in insertion order. The slice must not be
// modified by the caller.
func (m *Map) Tiles() []*Tile {
	return m.order
}

// HexCount returns the total number of tiles in the map.
func (m *Map) HexCount() int {
	return len(m.order)
}

// Nearest returns the tile whose center is closest to p on the plane, or
// nil for an empty map. Off-grid points fall back to a scan where ties go
// to the earlier-inserted tile.
func (m *Map) Nearest(p Point) *Tile {
	if len(m.order) == 0 {
		return nil
	}

	// The containing hex is almost always the answer; only fall back to a
	// scan when the point lies off the grid.
	if t := m.Get(PlaneToAxial(p, m.HexRadius)); t != nil {
		return t
	}

	var best *Tile
	bestDist := math.Inf(1)
	for _, t := range m.order {
		dx := t.Position.X - p.X
		dz := t.Position.Z - p.Z
		if d := dx*dx + dz*dz; d < bestDist {
			best = t
			bestDist = d
		}
	}
	return best
}

// BiomeCounts returns a summary of biome distribution.
func (m *Map) BiomeCounts() map[string]int {
	counts := make(map[string]int)
	for _, t := range m.order {
		counts[t.Biome]++
	}
	return counts
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(hexRadius=%.2f, hexes=%d)", m.HexRadius, m.HexCount())
}
