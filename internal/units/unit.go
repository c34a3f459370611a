// Package units provides movable units and their daily path following.
package units

import (
	"github.com/talgya/hexsettle/internal/defs"
	"github.com/talgya/hexsettle/internal/world"
)

// DefaultMovePoints is the daily budget of a unit whose definition
// carries none.
const DefaultMovePoints = 3

// Unit is a movable entity standing on a tile.
type Unit struct {
	ID   int          `json:"id"`
	Def  defs.UnitDef `json:"def"`
	Tile *world.Tile  `json:"-"` // never nil once spawned

	Path      []*world.Tile `json:"-"`
	MovesLeft int           `json:"moves_left"`

	// HomeID is the settlement paying the unit's upkeep, or world.Unclaimed.
	HomeID int `json:"home_id"`

	// Work order: once the unit stands on WorkTarget, the tile is marked
	// worked and the order clears.
	WorkTarget *world.Tile `json:"-"`

	cursor int
}

// New spawns a unit of def on tile.
func New(id int, def defs.UnitDef, tile *world.Tile) *Unit {
	u := &Unit{ID: id, Def: def, Tile: tile, HomeID: world.Unclaimed}
	u.MovesLeft = u.MovePoints()
	return u
}

// MovePoints returns the unit's daily movement budget.
func (u *Unit) MovePoints() int {
	if u.Def.MovePoints <= 0 {
		return DefaultMovePoints
	}
	return u.Def.MovePoints
}

// SetPath replaces the current path. Any unconsumed remainder is dropped.
func (u *Unit) SetPath(path []*world.Tile) {
	u.Path = path
	u.cursor = 0
}

// Remaining returns the unconsumed steps of the path.
func (u *Unit) Remaining() []*world.Tile {
	if u.cursor >= len(u.Path) {
		return nil
	}
	return u.Path[u.cursor:]
}

// Moving reports whether the unit has path steps left.
func (u *Unit) Moving() bool {
	return u.cursor < len(u.Path)
}

// OnDay resets the movement budget and walks the path. Steps onto the
// current tile are skipped for free; every other step costs exactly one
// point whatever the terrain. It returns the number of tiles entered.
func (u *Unit) OnDay() int {
	u.MovesLeft = u.MovePoints()
	moved := 0
	for u.MovesLeft > 0 && u.cursor < len(u.Path) {
		next := u.Path[u.cursor]
		u.cursor++
		if next == u.Tile {
			continue
		}
		u.MovesLeft--
		u.Tile = next
		moved++
	}
	return moved
}

// CheckWork marks the work target worked if the unit has reached it and
// reports whether it did.
func (u *Unit) CheckWork() bool {
	if u.WorkTarget == nil || u.Tile != u.WorkTarget {
		return false
	}
	u.WorkTarget.Worked = true
	u.WorkTarget = nil
	return true
}
