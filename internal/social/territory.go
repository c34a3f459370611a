package social

import "github.com/talgya/hexsettle/internal/world"

// Claimer assigns tile ownership over a settlement's claim radius.
// Overlapping claims are not contested: the last claim wins.
type Claimer struct {
	Index *world.Map
}

// Center returns the tile nearest to the settlement, or nil when the index
// is empty.
func (c Claimer) Center(s *Settlement) *world.Tile {
	return c.Index.Nearest(s.Position)
}

// Claim marks every indexed tile within ClaimRadius of the settlement's
// center tile as owned by it, overwriting any previous owner. It returns
// the number of tiles claimed.
func (c Claimer) Claim(s *Settlement) int {
	center := c.Center(s)
	if center == nil {
		return 0
	}
	n := 0
	world.ForEachInRange(center.Coord, s.ClaimRadius, func(hc world.HexCoord) {
		if t := c.Index.Get(hc); t != nil {
			t.OwnerSettlementID = s.ID
			n++
		}
	})
	return n
}

// CanClaim reports whether coord is an indexed tile inside the
// settlement's claim radius.
func (c Claimer) CanClaim(s *Settlement, coord world.HexCoord) bool {
	center := c.Center(s)
	if center == nil || c.Index.Get(coord) == nil {
		return false
	}
	return world.Distance(center.Coord, coord) <= s.ClaimRadius
}

// Release returns every tile owned by settlementID to unclaimed and
// clears the worked flag. It returns the number of tiles released.
func (c Claimer) Release(settlementID int) int {
	n := 0
	for _, t := range c.Index.Tiles() {
		if t.OwnerSettlementID == settlementID {
			t.OwnerSettlementID = world.Unclaimed
			t.Worked = false
			n++
		}
	}
	return n
}
