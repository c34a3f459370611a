package persistence

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/talgya/hexsettle/internal/defs"
	"github.com/talgya/hexsettle/internal/engine"
	"github.com/talgya/hexsettle/internal/world"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open("file::memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newSim(m *world.Map) *engine.Simulation {
	return engine.NewSimulation(m, defs.DefaultRegistry(), engine.NewClock(time.Second), engine.DefaultConfig())
}

// populated builds a small generated world with one settlement, a
// building, a worked tile and a few days elapsed.
func populated(t *testing.T) *engine.Simulation {
	t.Helper()
	sim := newSim(world.Generate(world.SmallTestConfig()))
	var land *world.Tile
	for _, tile := range sim.WorldMap.Tiles() {
		if !tile.IsWater() && world.Distance(tile.Coord, world.HexCoord{}) <= 1 {
			land = tile
			break
		}
	}
	if land == nil {
		land = sim.WorldMap.Get(world.HexCoord{})
		land.SubBiome = ""
	}
	s, err := sim.PlaceSettlement("Saveholm", land.Position)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	land.Worked = true
	s.Set(defs.Wood, 30)
	if err := sim.PlaceBuilding("camp", land.Coord); err != nil {
		t.Fatalf("build: %v", err)
	}
	s.AddDelta(defs.Knowledge, 2)
	for i := 0; i < 3; i++ {
		sim.Clock.Advance(sim.Clock.Interval())
	}
	return sim
}

func TestSaveAndLoadWorld(t *testing.T) {
	db := openMemory(t)
	src := populated(t)

	if err := db.SaveWorldState(src); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ok, err := db.HasWorld(); err != nil || !ok {
		t.Fatalf("expected saved world, got %v %v", ok, err)
	}

	radius, err := db.LoadHexRadius()
	if err != nil {
		t.Fatalf("hex radius: %v", err)
	}
	dst := newSim(world.NewMap(radius))
	if err := db.LoadWorld(dst); err != nil {
		t.Fatalf("load: %v", err)
	}

	if dst.Day() != src.Day() {
		t.Fatalf("expected day %d, got %d", src.Day(), dst.Day())
	}
	if dst.WorldMap.HexCount() != src.WorldMap.HexCount() {
		t.Fatalf("expected %d tiles, got %d", src.WorldMap.HexCount(), dst.WorldMap.HexCount())
	}
	for _, want := range src.WorldMap.Tiles() {
		got := dst.WorldMap.Get(want.Coord)
		if got == nil {
			t.Fatalf("missing tile %s", want.Coord)
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("tile %s differs (-want +got):\n%s", want.Coord, diff)
		}
	}

	if len(dst.Settlements) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(dst.Settlements))
	}
	ws, gs := src.Settlements[0], dst.Settlements[0]
	if diff := cmp.Diff(ws.Stockpile, gs.Stockpile); diff != "" {
		t.Fatalf("stockpile differs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ws.DeltaPerDay, gs.DeltaPerDay); diff != "" {
		t.Fatalf("deltas differ (-want +got):\n%s", diff)
	}
	if gs.Population != ws.Population || gs.Name != ws.Name || gs.GrowthCounter != ws.GrowthCounter {
		t.Fatalf("settlement differs: want %+v, got %+v", ws, gs)
	}
	if len(gs.Tiles()) != len(ws.Tiles()) {
		t.Fatalf("expected tile cache rebuilt")
	}

	if dst.Units.Len() != src.Units.Len() {
		t.Fatalf("expected %d units, got %d", src.Units.Len(), dst.Units.Len())
	}
	if dst.Units.All()[0].Tile.Coord != src.Units.All()[0].Tile.Coord {
		t.Fatalf("unit restored on the wrong tile")
	}
	if got, want := dst.Units.All()[0].HomeID, src.Units.All()[0].HomeID; got != want || want != ws.ID {
		t.Fatalf("expected home settlement %d, got %d", want, got)
	}
}

func TestWorldIDStable(t *testing.T) {
	db := openMemory(t)
	first, err := db.WorldID()
	if err != nil {
		t.Fatalf("world id: %v", err)
	}
	if _, err := uuid.Parse(first); err != nil {
		t.Fatalf("expected a uuid, got %q", first)
	}
	second, _ := db.WorldID()
	if first != second {
		t.Fatalf("expected stable world id, got %s then %s", first, second)
	}
}

func TestLoadEmpty(t *testing.T) {
	db := openMemory(t)
	if _, err := db.LoadHexRadius(); !errors.Is(err, ErrNoSave) {
		t.Fatalf("expected ErrNoSave, got %v", err)
	}
	if err := db.LoadWorld(newSim(world.NewMap(0.5))); !errors.Is(err, ErrNoSave) {
		t.Fatalf("expected ErrNoSave, got %v", err)
	}
}

func TestEventsSavedOnce(t *testing.T) {
	db := openMemory(t)
	sim := populated(t)
	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("second save: %v", err)
	}
	events, err := db.RecentEvents(100)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != len(sim.Events) {
		t.Fatalf("expected %d events, got %d", len(sim.Events), len(events))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	sim := populated(t)
	snap := NewSnapshot(sim, "test-world")

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Fatalf("snapshot differs (-want +got):\n%s", diff)
	}
	if got.Settlements[0].Name != "Saveholm" || len(got.Tiles) != sim.WorldMap.HexCount() {
		t.Fatalf("unexpected snapshot contents")
	}
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	if _, err := ReadSnapshot(bytes.NewReader([]byte("not lz4"))); err == nil {
		t.Fatalf("expected an error for garbage input")
	}
}
