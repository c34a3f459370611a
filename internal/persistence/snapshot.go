package persistence

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4"

	"github.com/talgya/hexsettle/internal/engine"
	"github.com/talgya/hexsettle/internal/world"
)

// Snapshot is a portable export of the world state.
type Snapshot struct {
	Version     int                `json:"version"`
	WorldID     string             `json:"world_id,omitempty"`
	Day         uint64             `json:"day"`
	Date        string             `json:"date"`
	HexRadius   float64            `json:"hex_radius"`
	Tiles       []TileRecord       `json:"tiles"`
	Settlements []SettlementRecord `json:"settlements"`
	Units       []UnitRecord       `json:"units"`
	Stats       engine.SimStats    `json:"stats"`
}

// TileRecord is the saved form of a tile.
type TileRecord struct {
	Coord       world.HexCoord `json:"coord"`
	Biome       string         `json:"biome"`
	SubBiome    string         `json:"sub_biome"`
	Temperature float64        `json:"temperature"`
	Moisture    float64        `json:"moisture"`
	Owner       int            `json:"owner"`
	Worked      bool           `json:"worked"`
	BuildingID  string         `json:"building_id,omitempty"`
	Resources   []string       `json:"resources"` // "resourceId:amount"
}

// SettlementRecord is the saved form of a settlement.
type SettlementRecord struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Population int         `json:"population"`
	Position   world.Point `json:"position"`
	Stock      []string    `json:"stock"` // "resourceId:amount"
}

// UnitRecord is the saved form of a unit.
type UnitRecord struct {
	DefID    string      `json:"def_id"`
	Position world.Point `json:"position"`
}

// NewSnapshot captures the current state of sim.
func NewSnapshot(sim *engine.Simulation, worldID string) *Snapshot {
	snap := &Snapshot{
		Version:   SaveVersion,
		WorldID:   worldID,
		Day:       sim.Day(),
		Date:      engine.SimTime(sim.Day()),
		HexRadius: sim.WorldMap.HexRadius,
		Stats:     sim.Stats,
	}
	for _, t := range sim.WorldMap.Tiles() {
		rec := TileRecord{
			Coord:       t.Coord,
			Biome:       t.Biome,
			SubBiome:    t.SubBiome,
			Temperature: t.Temperature,
			Moisture:    t.Moisture,
			Owner:       t.OwnerSettlementID,
			Worked:      t.Worked,
			Resources:   world.FormatPairs(t.Resources),
		}
		if t.Building != nil {
			rec.BuildingID = t.Building.DefID
		}
		snap.Tiles = append(snap.Tiles, rec)
	}
	for _, s := range sim.Settlements {
		snap.Settlements = append(snap.Settlements, SettlementRecord{
			ID:         s.ID,
			Name:       s.Name,
			Population: s.Population,
			Position:   s.Position,
			Stock:      world.FormatPairs(s.StockEntries()),
		})
	}
	for _, u := range sim.Units.All() {
		snap.Units = append(snap.Units, UnitRecord{DefID: u.Def.ID, Position: u.Tile.Position})
	}
	return snap
}

// WriteSnapshot writes snap as lz4-compressed JSON.
func WriteSnapshot(w io.Writer, snap *Snapshot) error {
	zw := lz4.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot reads a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(lz4.NewReader(r)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != SaveVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, SaveVersion)
	}
	return &snap, nil
}
