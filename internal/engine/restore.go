package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/hexsettle/internal/defs"
	"github.com/talgya/hexsettle/internal/social"
	"github.com/talgya/hexsettle/internal/units"
	"github.com/talgya/hexsettle/internal/world"
)

func newBuilding(defID string, bonus []defs.Amount) *world.Building {
	b := &world.Building{DefID: defID}
	for _, a := range bonus {
		b.YieldBonus = append(b.YieldBonus, world.ResourceStack{ResourceID: a.ResourceID, Amount: a.Amount})
	}
	return b
}

// RestoreTile inserts a saved tile. A non-empty buildingID is resolved
// against the registry; unknown buildings are dropped. It returns false if
// a tile already exists at the coordinate.
func (s *Simulation) RestoreTile(t *world.Tile, buildingID string) bool {
	t.Building = nil
	if buildingID != "" {
		if def, ok := s.Defs.FindBuilding(buildingID); ok {
			t.Building = newBuilding(def.ID, def.YieldBonus)
		} else {
			slog.Warn("dropping unknown building", "coord", t.Coord.String(), "building", buildingID)
		}
	}
	return s.WorldMap.Insert(t)
}

// RestoreSettlement adds a saved settlement as is. Tile ownership is taken
// from the restored tiles, so no claim is made. Stock of unknown resources
// is dropped.
func (s *Simulation) RestoreSettlement(sett *social.Settlement) error {
	if _, ok := s.SettlementIndex[sett.ID]; ok {
		return fmt.Errorf("restore settlement %d: duplicate id", sett.ID)
	}
	for id := range sett.Stockpile {
		if _, ok := s.Defs.FindResource(id); !ok {
			delete(sett.Stockpile, id)
		}
	}
	sett.EnsureKeys(s.Defs.ResourceIDs())
	s.addSettlement(sett)
	sett.RebuildTiles(s.WorldMap)
	return nil
}

// RestoreUnit spawns a saved unit on the tile nearest to pos. An unknown
// definition id yields a unit with default movement. Upkeep is not charged
// again: the home settlement's saved deltas already carry it.
func (s *Simulation) RestoreUnit(defID string, pos world.Point, homeID int) (*units.Unit, error) {
	tile := s.WorldMap.Nearest(pos)
	if tile == nil {
		return nil, ErrNoTiles
	}
	def, ok := s.Defs.FindUnit(defID)
	if !ok {
		def = defs.UnitDef{ID: defID}
	}
	u := s.Units.Spawn(def, tile)
	if s.Settlement(homeID) != nil {
		u.HomeID = homeID
	}
	s.updateStats()
	return u, nil
}

// RestoreDay sets the clock's day counter.
func (s *Simulation) RestoreDay(day uint64) {
	s.Clock.Restore(day)
}
