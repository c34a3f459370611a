// Package pathfind implements A* search over world tiles.
//
// The heuristic is straight-line plane distance, which assumes a uniform
// step cost of 1. Real step costs can exceed 1 (hills, forest, water), so
// the search is not guaranteed to return the cheapest path. This is an
// accepted approximation.
package pathfind

import (
	"container/heap"
	"math"
	"strings"

	"github.com/talgya/hexsettle/internal/world"
)

// WaterCost is the step cost into water. It is large but finite so a path
// through water is still found when nothing else connects.
const WaterCost = 9999.0

// NeighborFunc returns the tiles reachable in one step from t.
type NeighborFunc func(t *world.Tile) []*world.Tile

// Path is a found route, start and goal included.
type Path struct {
	Tiles []*world.Tile
	Cost  float64
}

// Coords returns the path as axial coordinates.
func (p *Path) Coords() []world.HexCoord {
	if p == nil {
		return nil
	}
	out := make([]world.HexCoord, len(p.Tiles))
	for i, t := range p.Tiles {
		out[i] = t.Coord
	}
	return out
}

// Config holds pathfinder tuning.
type Config struct {
	// NeighborRange is the plane distance within which tiles count as
	// neighbors. Tolerance is added to absorb float error.
	NeighborRange float64
	Tolerance     float64
}

// DefaultConfig matches a world generated at hexRadius 0.5.
func DefaultConfig() Config {
	return Config{
		NeighborRange: 1.5,
		Tolerance:     0.05,
	}
}

// Pathfinder finds routes between tiles.
type Pathfinder struct {
	neighbors NeighborFunc
}

// New creates a pathfinder using the given neighbor query.
func New(neighbors NeighborFunc) *Pathfinder {
	return &Pathfinder{neighbors: neighbors}
}

// NewForMap creates a pathfinder whose neighbors are the tiles of m within
// cfg.NeighborRange of each other on the plane.
func NewForMap(m *world.Map, cfg Config) *Pathfinder {
	return New(ProximityNeighbors(m, cfg.NeighborRange+cfg.Tolerance))
}

// ProximityNeighbors returns a NeighborFunc yielding every indexed tile
// whose center lies within maxDist of t's center. Tiles are enumerated
// through the index over a bounding hex range, in Range order.
func ProximityNeighbors(m *world.Map, maxDist float64) NeighborFunc {
	return func(t *world.Tile) []*world.Tile {
		// Two hex centers d steps apart are at least 1.5·hexRadius·d apart.
		reach := 1
		if m.HexRadius > 0 {
			reach = int(math.Floor(maxDist / (1.5 * m.HexRadius)))
		}
		var out []*world.Tile
		world.ForEachInRange(t.Coord, reach, func(c world.HexCoord) {
			if c == t.Coord {
				return
			}
			n := m.Get(c)
			if n == nil || n == t {
				return
			}
			if t.Position.DistanceTo(n.Position) <= maxDist {
				out = append(out, n)
			}
		})
		return out
	}
}

// AdjacentNeighbors returns a NeighborFunc yielding the strict hex
// neighbors of t present in m.
func AdjacentNeighbors(m *world.Map) NeighborFunc {
	return func(t *world.Tile) []*world.Tile {
		var out []*world.Tile
		for _, c := range t.Coord.Neighbors() {
			if n := m.Get(c); n != nil {
				out = append(out, n)
			}
		}
		return out
	}
}

// FindPath searches for a route from start to goal. It returns nil when
// either tile is nil or the goal is unreachable.
func (p *Pathfinder) FindPath(start, goal *world.Tile) *Path {
	if start == nil || goal == nil {
		return nil
	}

	open := &openSet{}
	inOpen := make(map[*world.Tile]*node)
	cameFrom := make(map[*world.Tile]*world.Tile)
	g := map[*world.Tile]float64{start: 0}
	var seq uint64

	first := &node{tile: start, f: Heuristic(start, goal), seq: seq}
	heap.Push(open, first)
	inOpen[start] = first

	for open.Len() > 0 {
		current := heap.Pop(open).(*node).tile
		delete(inOpen, current)

		if current == goal {
			return &Path{Tiles: reconstruct(cameFrom, current), Cost: g[current]}
		}

		for _, nb := range p.neighbors(current) {
			tentative := g[current] + StepCost(current, nb)
			if known, ok := g[nb]; ok && tentative >= known {
				continue
			}
			cameFrom[nb] = current
			g[nb] = tentative
			f := tentative + Heuristic(nb, goal)

			if n, ok := inOpen[nb]; ok {
				n.f = f
				heap.Fix(open, n.index)
				continue
			}
			seq++
			n := &node{tile: nb, f: f, seq: seq}
			heap.Push(open, n)
			inOpen[nb] = n
		}
	}

	return nil
}

// Heuristic is the straight-line plane distance between two tiles.
func Heuristic(a, b *world.Tile) float64 {
	return a.Position.DistanceTo(b.Position)
}

// StepCost is the cost of stepping from a into b. Only the destination's
// sub-biome matters: base 1, +1 for hill, +1 for forest, WaterCost for
// water or ocean.
func StepCost(_, b *world.Tile) float64 {
	c := 1.0
	if b.SubBiome == "" {
		return c
	}
	sb := strings.ToLower(b.SubBiome)
	if strings.Contains(sb, "hill") {
		c++
	}
	if strings.Contains(sb, "forest") {
		c++
	}
	if strings.Contains(sb, "water") || strings.Contains(sb, "ocean") {
		c = WaterCost
	}
	return c
}

// Cost sums StepCost along an explicit tile sequence.
func Cost(tiles []*world.Tile) float64 {
	total := 0.0
	for i := 1; i < len(tiles); i++ {
		total += StepCost(tiles[i-1], tiles[i])
	}
	return total
}

func reconstruct(cameFrom map[*world.Tile]*world.Tile, cur *world.Tile) []*world.Tile {
	path := []*world.Tile{cur}
	for {
		prev, ok := cameFrom[cur]
		if !ok {
			break
		}
		path = append(path, prev)
		cur = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
