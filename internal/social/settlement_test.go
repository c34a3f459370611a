package social

import (
	"testing"

	"github.com/talgya/hexsettle/internal/world"
)

func testMap(radius int) *world.Map {
	m := world.NewMap(0.5)
	for _, c := range world.Range(world.HexCoord{}, radius) {
		m.Insert(world.NewTile(c, 0.5))
	}
	return m
}

func TestStockpileNeverNegative(t *testing.T) {
	s := NewSettlement(1, "Ashford", world.Point{})
	s.Add("food", 5)
	s.Add("food", -8)
	if got := s.Get("food"); got != 0 {
		t.Fatalf("expected food clamped to 0, got %d", got)
	}
	s.Set("wood", -3)
	if got := s.Get("wood"); got != 0 {
		t.Fatalf("expected wood clamped to 0, got %d", got)
	}
	s.Set("", 4)
	if _, ok := s.Stockpile[""]; ok {
		t.Fatalf("expected empty resource id to be ignored")
	}
}

func TestSpend(t *testing.T) {
	s := NewSettlement(1, "Ashford", world.Point{})
	s.Set("wood", 10)
	if !s.Spend("wood", 4) || s.Get("wood") != 6 {
		t.Fatalf("expected spend to succeed leaving 6, got %d", s.Get("wood"))
	}
	if s.Spend("wood", 7) {
		t.Fatalf("expected overdraft spend to fail")
	}
	if s.Get("wood") != 6 {
		t.Fatalf("expected failed spend to leave stock untouched, got %d", s.Get("wood"))
	}

	s.Set("stone", 1)
	costs := []world.ResourceStack{{ResourceID: "wood", Amount: 5}, {ResourceID: "stone", Amount: 2}}
	if s.SpendAll(costs) {
		t.Fatalf("expected SpendAll to fail on missing stone")
	}
	if s.Get("wood") != 6 || s.Get("stone") != 1 {
		t.Fatalf("expected SpendAll to be all-or-nothing")
	}
	s.Set("stone", 2)
	if !s.SpendAll(costs) || s.Get("wood") != 1 || s.Get("stone") != 0 {
		t.Fatalf("expected SpendAll to pay both costs")
	}
}

func TestClaimOverwritesAndIsIdempotent(t *testing.T) {
	m := testMap(4)
	c := Claimer{Index: m}

	a := NewSettlement(1, "A", m.Get(world.HexCoord{Q: -1}).Position)
	b := NewSettlement(2, "B", m.Get(world.HexCoord{Q: 1}).Position)

	if n := c.Claim(a); n != 19 {
		t.Fatalf("expected 19 tiles claimed, got %d", n)
	}
	snapshot := ownership(m)
	c.Claim(a)
	if !equalOwnership(snapshot, ownership(m)) {
		t.Fatalf("expected repeated claim to be idempotent")
	}

	c.Claim(b)
	if got := m.Get(world.HexCoord{}).OwnerSettlementID; got != 2 {
		t.Fatalf("expected contested tile to go to last claimant, got %d", got)
	}
	if got := m.Get(world.HexCoord{Q: -3}).OwnerSettlementID; got != 1 {
		t.Fatalf("expected uncontested tile to stay with A, got %d", got)
	}
}

func TestClaimRimAndEmpty(t *testing.T) {
	empty := Claimer{Index: world.NewMap(0.5)}
	if n := empty.Claim(NewSettlement(1, "Nowhere", world.Point{})); n != 0 {
		t.Fatalf("expected no-op claim on empty map, got %d", n)
	}

	m := testMap(2)
	c := Claimer{Index: m}
	s := NewSettlement(3, "Rim", m.Get(world.HexCoord{Q: 2, R: 0}).Position)
	s.ClaimRadius = 1
	if n := c.Claim(s); n != 4 {
		t.Fatalf("expected 4 tiles claimed at the rim, got %d", n)
	}
}

func TestCanClaimAndRelease(t *testing.T) {
	m := testMap(3)
	c := Claimer{Index: m}
	s := NewSettlement(5, "Oakdale", world.Point{})

	if !c.CanClaim(s, world.HexCoord{Q: 2, R: -1}) {
		t.Fatalf("expected (2,-1) to be claimable")
	}
	if c.CanClaim(s, world.HexCoord{Q: 3, R: 0}) {
		t.Fatalf("expected (3,0) to be outside the radius")
	}
	if c.CanClaim(s, world.HexCoord{Q: 9, R: 9}) {
		t.Fatalf("expected unknown coordinate to be unclaimable")
	}

	c.Claim(s)
	m.Get(world.HexCoord{}).Worked = true
	if n := c.Release(5); n != 19 {
		t.Fatalf("expected 19 tiles released, got %d", n)
	}
	if m.Get(world.HexCoord{}).Claimed() || m.Get(world.HexCoord{}).Worked {
		t.Fatalf("expected released tile to be unclaimed and idle")
	}
}

func TestRebuildTiles(t *testing.T) {
	m := testMap(3)
	s := NewSettlement(1, "Cache", m.Get(world.HexCoord{Q: 1, R: -1}).Position)
	s.ClaimRadius = 1
	s.RebuildTiles(m)

	tiles := s.Tiles()
	if len(tiles) != 7 {
		t.Fatalf("expected 7 cached tiles, got %d", len(tiles))
	}
	if tiles[0].Coord != (world.HexCoord{Q: 0, R: -1}) {
		t.Fatalf("expected range order starting at (0,-1), got %v", tiles[0].Coord)
	}

	// A rebuild around another center leaves the earlier slice alone.
	s.Position = m.Get(world.HexCoord{}).Position
	s.RebuildTiles(m)
	if got := s.Tiles()[0].Coord; got != (world.HexCoord{Q: -1, R: 0}) {
		t.Fatalf("expected rebuilt range to start at (-1,0), got %v", got)
	}
	if tiles[0].Coord != (world.HexCoord{Q: 0, R: -1}) {
		t.Fatalf("expected earlier Tiles result unchanged, got %v", tiles[0].Coord)
	}
}

func ownership(m *world.Map) map[world.HexCoord]int {
	out := make(map[world.HexCoord]int)
	for _, t := range m.Tiles() {
		out[t.Coord] = t.OwnerSettlementID
	}
	return out
}

func equalOwnership(a, b map[world.HexCoord]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
