// Package social provides settlements and their territory.
package social

import (
	"sort"

	"github.com/talgya/hexsettle/internal/world"
)

// DefaultClaimRadius is how far, in hexes, a new settlement claims.
const DefaultClaimRadius = 2

// Settlement represents a population center on the hex grid.
type Settlement struct {
	ID       int         `json:"id"`
	Name     string      `json:"name"`
	Position world.Point `json:"position"`

	// Demographics
	Population    int `json:"population"`
	GrowthCounter int `json:"growth_counter"` // surplus food accumulated toward the next birth

	// Economy. Stockpile amounts are never negative.
	Stockpile   map[string]int `json:"stockpile"`
	DeltaPerDay map[string]int `json:"delta_per_day"`

	// Territory
	ClaimRadius int `json:"claim_radius"`

	tiles []*world.Tile // tiles within ClaimRadius of the center tile
}

// NewSettlement creates an empty settlement at pos.
func NewSettlement(id int, name string, pos world.Point) *Settlement {
	return &Settlement{
		ID:          id,
		Name:        name,
		Position:    pos,
		Stockpile:   make(map[string]int),
		DeltaPerDay: make(map[string]int),
		ClaimRadius: DefaultClaimRadius,
	}
}

// EnsureKeys makes sure every listed resource has a stockpile and delta
// entry, so reports show zeros instead of gaps.
func (s *Settlement) EnsureKeys(resourceIDs []string) {
	for _, id := range resourceIDs {
		if _, ok := s.Stockpile[id]; !ok {
			s.Stockpile[id] = 0
		}
		if _, ok := s.DeltaPerDay[id]; !ok {
			s.DeltaPerDay[id] = 0
		}
	}
}

// Get returns the stock of a resource.
func (s *Settlement) Get(resourceID string) int {
	return s.Stockpile[resourceID]
}

// Set overwrites the stock of a resource, clamped at 0.
func (s *Settlement) Set(resourceID string, value int) {
	if resourceID == "" {
		return
	}
	s.Stockpile[resourceID] = max(value, 0)
}

// Add changes the stock of a resource by delta. A negative delta larger
// than the stock empties it.
func (s *Settlement) Add(resourceID string, delta int) {
	s.Set(resourceID, s.Get(resourceID)+delta)
}

// Spend removes amount if the full amount is available and reports
// whether it did.
func (s *Settlement) Spend(resourceID string, amount int) bool {
	if amount <= 0 {
		return true
	}
	cur := s.Get(resourceID)
	if cur < amount {
		return false
	}
	s.Stockpile[resourceID] = cur - amount
	return true
}

// SpendAll removes every cost or none of them.
func (s *Settlement) SpendAll(costs []world.ResourceStack) bool {
	for _, c := range costs {
		if c.Amount > 0 && s.Get(c.ResourceID) < c.Amount {
			return false
		}
	}
	for _, c := range costs {
		s.Spend(c.ResourceID, c.Amount)
	}
	return true
}

// AddDelta changes the recurring per-day delta of a resource.
func (s *Settlement) AddDelta(resourceID string, delta int) {
	if resourceID == "" {
		return
	}
	s.DeltaPerDay[resourceID] += delta
}

// Tiles returns the cached tiles within the claim radius, in hex range order.
func (s *Settlement) Tiles() []*world.Tile {
	return s.tiles
}

// RebuildTiles refreshes the tile cache from the index. Call after
// placement or when ownership changes. Slices returned by earlier Tiles
// calls are left untouched.
func (s *Settlement) RebuildTiles(m *world.Map) {
	s.tiles = nil
	center := m.Nearest(s.Position)
	if center == nil {
		return
	}
	world.ForEachInRange(center.Coord, s.ClaimRadius, func(c world.HexCoord) {
		if t := m.Get(c); t != nil {
			s.tiles = append(s.tiles, t)
		}
	})
}

// StockEntries returns the stockpile sorted by resource id.
func (s *Settlement) StockEntries() []world.ResourceStack {
	ids := make([]string, 0, len(s.Stockpile))
	for id := range s.Stockpile {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]world.ResourceStack, 0, len(ids))
	for _, id := range ids {
		out = append(out, world.ResourceStack{ResourceID: id, Amount: s.Stockpile[id]})
	}
	return out
}
