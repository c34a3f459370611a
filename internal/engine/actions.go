// Outer-layer actions: placement, orders, building, and reconstruction
// from saved state. None of these may be called from a day listener.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/hexsettle/internal/defs"
	"github.com/talgya/hexsettle/internal/pathfind"
	"github.com/talgya/hexsettle/internal/social"
	"github.com/talgya/hexsettle/internal/units"
	"github.com/talgya/hexsettle/internal/world"
)

var (
	ErrNoTiles           = errors.New("world has no tiles")
	ErrTooClose          = errors.New("too close to another settlement")
	ErrUnknownSettlement = errors.New("unknown settlement")
	ErrUnknownUnit       = errors.New("unknown unit")
	ErrUnknownTile       = errors.New("unknown tile")
	ErrUnknownDef        = errors.New("unknown definition")
	ErrNoPath            = errors.New("no path")
	ErrCannotWork        = errors.New("unit cannot work tiles")
	ErrNotOwned          = errors.New("tile is not owned by a settlement")
	ErrOccupied          = errors.New("tile already has a building")
	ErrBiomeRule         = errors.New("biome does not allow this building")
	ErrInsufficient      = errors.New("insufficient resources")
)

// Settlement returns the settlement with the given id, or nil.
func (s *Simulation) Settlement(id int) *social.Settlement {
	return s.SettlementIndex[id]
}

// PlaceSettlement founds a settlement on the tile nearest to at. It claims
// territory, refreshes tile caches and, if configured, spawns a worker.
func (s *Simulation) PlaceSettlement(name string, at world.Point) (*social.Settlement, error) {
	tile := s.WorldMap.Nearest(at)
	if tile == nil {
		return nil, ErrNoTiles
	}

	existing := make([]world.Point, len(s.Settlements))
	for i, sett := range s.Settlements {
		existing[i] = sett.Position
	}
	if i, d, blocked := world.TooClose(tile.Position, existing, s.Config.MinSpacing); blocked {
		return nil, fmt.Errorf("%w: %q at distance %.1f < %.1f", ErrTooClose, s.Settlements[i].Name, d, s.Config.MinSpacing)
	}

	id := s.nextSettlementID
	if name == "" {
		name = fmt.Sprintf("Settlement %d", id)
	}
	sett := social.NewSettlement(id, name, tile.Position)
	sett.Population = s.Config.StartingPopulation
	sett.EnsureKeys(s.Defs.ResourceIDs())
	for _, a := range s.Config.StartingStock {
		sett.Add(a.ResourceID, a.Amount)
	}
	s.addSettlement(sett)
	s.Claim(id)

	s.addEvent(s.Day(), "settlement", fmt.Sprintf("%s founded at %s", name, tile.Coord))
	slog.Info("settlement placed", "id", id, "name", name, "coord", tile.Coord.String())

	if s.Config.SpawnWorker && s.Config.WorkerDef != "" {
		if _, err := s.SpawnUnit(s.Config.WorkerDef, tile.Position); err != nil {
			slog.Warn("worker spawn failed", "settlement", name, "error", err)
		}
	}
	return sett, nil
}

func (s *Simulation) addSettlement(sett *social.Settlement) {
	s.Settlements = append(s.Settlements, sett)
	s.SettlementIndex[sett.ID] = sett
	if sett.ID >= s.nextSettlementID {
		s.nextSettlementID = sett.ID + 1
	}
	s.updateStats()
}

// RemoveSettlement deletes a settlement. Its tiles keep their owner id;
// call ReleaseTerritory first to revert them.
func (s *Simulation) RemoveSettlement(id int) error {
	if _, ok := s.SettlementIndex[id]; !ok {
		return ErrUnknownSettlement
	}
	delete(s.SettlementIndex, id)
	for i, sett := range s.Settlements {
		if sett.ID == id {
			s.Settlements = append(s.Settlements[:i], s.Settlements[i+1:]...)
			break
		}
	}
	s.updateStats()
	return nil
}

// ReleaseTerritory returns a settlement's tiles to unclaimed.
func (s *Simulation) ReleaseTerritory(id int) int {
	n := s.Claimer.Release(id)
	s.rebuildCaches()
	return n
}

// Claim claims the settlement's territory and refreshes every settlement's
// tile cache, since the claim may have taken tiles from a neighbor.
func (s *Simulation) Claim(id int) (int, error) {
	sett := s.Settlement(id)
	if sett == nil {
		return 0, ErrUnknownSettlement
	}
	n := s.Claimer.Claim(sett)
	s.rebuildCaches()
	return n, nil
}

// CanClaim reports whether coord lies within the settlement's claim radius.
func (s *Simulation) CanClaim(id int, coord world.HexCoord) bool {
	sett := s.Settlement(id)
	if sett == nil {
		return false
	}
	return s.Claimer.CanClaim(sett, coord)
}

func (s *Simulation) rebuildCaches() {
	for _, sett := range s.Settlements {
		sett.RebuildTiles(s.WorldMap)
	}
	s.updateStats()
}

// SpawnUnit creates a unit of defID on the tile nearest to at. The
// settlement owning that tile becomes its home and takes on its food
// upkeep as a daily delta.
func (s *Simulation) SpawnUnit(defID string, at world.Point) (*units.Unit, error) {
	def, ok := s.Defs.FindUnit(defID)
	if !ok {
		return nil, fmt.Errorf("%w: unit %q", ErrUnknownDef, defID)
	}
	tile := s.WorldMap.Nearest(at)
	if tile == nil {
		return nil, ErrNoTiles
	}
	u := s.Units.Spawn(def, tile)
	if home := s.Settlement(tile.OwnerSettlementID); home != nil {
		u.HomeID = home.ID
		if def.UpkeepPerDay > 0 {
			home.AddDelta(defs.Food, -def.UpkeepPerDay)
		}
	}
	s.updateStats()
	return u, nil
}

// RemoveUnit deletes a unit and lifts its upkeep from its home settlement.
func (s *Simulation) RemoveUnit(id int) error {
	u := s.Units.Get(id)
	if u == nil {
		return ErrUnknownUnit
	}
	if home := s.Settlement(u.HomeID); home != nil && u.Def.UpkeepPerDay > 0 {
		home.AddDelta(defs.Food, u.Def.UpkeepPerDay)
	}
	s.Units.Remove(id)
	s.updateStats()
	return nil
}

// FindPath plans a route between two coordinates.
func (s *Simulation) FindPath(from, to world.HexCoord) *pathfind.Path {
	return s.Paths.FindPath(s.WorldMap.Get(from), s.WorldMap.Get(to))
}

// OrderMove plans a path for the unit to goal and replaces its current
// path with it.
func (s *Simulation) OrderMove(unitID int, goal world.HexCoord) (*pathfind.Path, error) {
	u := s.Units.Get(unitID)
	if u == nil {
		return nil, ErrUnknownUnit
	}
	target := s.WorldMap.Get(goal)
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTile, goal)
	}
	path := s.Paths.FindPath(u.Tile, target)
	if path == nil {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoPath, u.Tile.Coord, goal)
	}
	u.SetPath(path.Tiles)
	return path, nil
}

// AssignWork sends the unit to coord. The tile becomes worked on the day
// the unit stands on it.
func (s *Simulation) AssignWork(unitID int, coord world.HexCoord) error {
	u := s.Units.Get(unitID)
	if u == nil {
		return ErrUnknownUnit
	}
	if !u.Def.CanWorkTiles {
		return fmt.Errorf("%w: %s", ErrCannotWork, u.Def.ID)
	}
	target := s.WorldMap.Get(coord)
	if target == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTile, coord)
	}

	u.WorkTarget = target
	if u.Tile != target {
		path := s.Paths.FindPath(u.Tile, target)
		if path == nil {
			u.WorkTarget = nil
			return fmt.Errorf("%w: %s to %s", ErrNoPath, u.Tile.Coord, coord)
		}
		u.SetPath(path.Tiles)
	}
	return nil
}

// PlaceBuilding builds defID on coord, paid for by the tile's owner. Upkeep
// is added to the owner's daily deltas.
func (s *Simulation) PlaceBuilding(defID string, coord world.HexCoord) error {
	def, ok := s.Defs.FindBuilding(defID)
	if !ok {
		return fmt.Errorf("%w: building %q", ErrUnknownDef, defID)
	}
	tile := s.WorldMap.Get(coord)
	if tile == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTile, coord)
	}
	owner := s.Settlement(tile.OwnerSettlementID)
	if owner == nil {
		return ErrNotOwned
	}
	if tile.Building != nil {
		return fmt.Errorf("%w: %s", ErrOccupied, tile.Building.DefID)
	}
	if def.LandOnly && tile.IsWater() {
		return fmt.Errorf("%w: %s needs land", ErrBiomeRule, def.ID)
	}
	if !biomeAllows(def.RequiredBiomeContains, tile) {
		return fmt.Errorf("%w: %s needs %s", ErrBiomeRule, def.ID, def.RequiredBiomeContains)
	}

	cost := make([]world.ResourceStack, len(def.BuildCost))
	for i, a := range def.BuildCost {
		cost[i] = world.ResourceStack{ResourceID: a.ResourceID, Amount: a.Amount}
	}
	if !owner.SpendAll(cost) {
		return fmt.Errorf("%w: %s costs %s", ErrInsufficient, def.ID, strings.Join(world.FormatPairs(cost), ", "))
	}

	tile.Building = newBuilding(def.ID, def.YieldBonus)
	for _, a := range def.Upkeep {
		owner.AddDelta(a.ResourceID, -a.Amount)
	}
	s.addEvent(s.Day(), "building", fmt.Sprintf("%s built %s at %s", owner.Name, def.DisplayName, coord))
	return nil
}

func biomeAllows(required string, t *world.Tile) bool {
	if required == "" {
		return true
	}
	req := strings.ToLower(required)
	return strings.Contains(strings.ToLower(t.Biome), req) ||
		strings.Contains(strings.ToLower(t.SubBiome), req)
}
