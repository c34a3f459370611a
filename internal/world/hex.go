// Package world provides the hex grid, tiles, and spatial data structures.
// Uses pointy-top axial coordinates (q, r) for the hex grid.
package world

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Sqrt3 is used by every axial <-> plane conversion.
var Sqrt3 = math.Sqrt(3)

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// Add returns the component-wise sum of two coordinates.
func (h HexCoord) Add(o HexCoord) HexCoord {
	return HexCoord{Q: h.Q + o.Q, R: h.R + o.R}
}

func (h HexCoord) String() string {
	return fmt.Sprintf("(%d,%d)", h.Q, h.R)
}

// Point is a position on the ground plane. Y is up and not stored.
type Point struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// DistanceTo returns the straight-line plane distance between two points.
func (p Point) DistanceTo(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Z-o.Z)
}

// HexNeighborDirections defines the six neighbor offsets in axial coordinates,
// clockwise from East.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},  // E
	{Q: 1, R: -1}, // NE
	{Q: 0, R: -1}, // NW
	{Q: -1, R: 0}, // W
	{Q: -1, R: 1}, // SW
	{Q: 0, R: 1},  // SE
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = h.Add(dir)
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := a.Q - b.Q
	dr := a.R - b.R
	ds := -(dq + dr)
	return (abs(dq) + abs(dr) + abs(ds)) / 2
}

// AxialToPlane converts an axial coordinate to its center on the ground plane.
// hexRadius is the center-to-corner distance.
func AxialToPlane(c HexCoord, hexRadius float64) Point {
	return Point{
		X: hexRadius * Sqrt3 * (float64(c.Q) + float64(c.R)/2),
		Z: hexRadius * 1.5 * float64(c.R),
	}
}

// PlaneToAxialRaw inverts AxialToPlane, returning fractional axial
// coordinates before rounding.
func PlaneToAxialRaw(p Point, hexRadius float64) (q, r float64) {
	q = (Sqrt3/3*p.X - p.Z/3) / hexRadius
	r = (2.0 / 3 * p.Z) / hexRadius
	return q, r
}

// AxialRound converts fractional axial coordinates to the containing hex
// using cube rounding. The component with the largest rounding error is
// recomputed from the other two so that q+r+s stays 0.
func AxialRound(q, r float64) HexCoord {
	s := -q - r

	rq := math.Round(q)
	rr := math.Round(r)
	rs := math.Round(s)

	qDiff := math.Abs(rq - q)
	rDiff := math.Abs(rr - r)
	sDiff := math.Abs(rs - s)

	if qDiff > rDiff && qDiff > sDiff {
		rq = -rr - rs
	} else if rDiff > sDiff {
		rr = -rq - rs
	}

	return HexCoord{Q: int(rq), R: int(rr)}
}

// PlaneToAxial returns the hex containing a plane point.
func PlaneToAxial(p Point, hexRadius float64) HexCoord {
	return AxialRound(PlaneToAxialRaw(p, hexRadius))
}

// Range returns every coordinate within hex distance radius of center.
// Order is dq ascending, then dr ascending.
func Range(center HexCoord, radius int) []HexCoord {
	if radius < 0 {
		return nil
	}
	out := make([]HexCoord, 0, 3*radius*(radius+1)+1)
	ForEachInRange(center, radius, func(c HexCoord) {
		out = append(out, c)
	})
	return out
}

// ForEachInRange calls fn for every coordinate within hex distance radius
// of center, in the same order as Range.
func ForEachInRange(center HexCoord, radius int, fn func(HexCoord)) {
	for dq := -radius; dq <= radius; dq++ {
		rMin := max(-radius, -dq-radius)
		rMax := min(radius, -dq+radius)
		for dr := rMin; dr <= rMax; dr++ {
			fn(HexCoord{Q: center.Q + dq, R: center.R + dr})
		}
	}
}

func abs[T constraints.Signed](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// clampMin returns v, or lo if v is below it.
func clampMin[T constraints.Integer | constraints.Float](v, lo T) T {
	if v < lo {
		return lo
	}
	return v
}
