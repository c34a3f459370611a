// Package persistence provides SQLite-based world state storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hexsettle/internal/engine"
	"github.com/talgya/hexsettle/internal/social"
	"github.com/talgya/hexsettle/internal/units"
	"github.com/talgya/hexsettle/internal/world"
)

// SaveVersion is written to world_meta and checked on load.
const SaveVersion = 2

// Meta keys.
const (
	MetaWorldID   = "world_id"
	MetaDay       = "day"
	MetaVersion   = "save_version"
	MetaHexRadius = "hex_radius"
	MetaSeed      = "seed"
)

// ErrNoSave is returned by LoadWorld when the database holds no world.
var ErrNoSave = errors.New("no saved world")

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: an in-memory database is private to its connection.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tiles (
		q INTEGER NOT NULL,
		r INTEGER NOT NULL,
		biome TEXT NOT NULL,
		sub_biome TEXT NOT NULL,
		temperature REAL NOT NULL,
		moisture REAL NOT NULL,
		owner_settlement_id INTEGER NOT NULL,
		worked INTEGER NOT NULL,
		building_id TEXT NOT NULL,
		resources TEXT NOT NULL,
		PRIMARY KEY (q, r)
	);

	CREATE TABLE IF NOT EXISTS settlements (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		population INTEGER NOT NULL,
		pos_x REAL NOT NULL,
		pos_z REAL NOT NULL,
		claim_radius INTEGER NOT NULL,
		growth_counter INTEGER NOT NULL,
		stock TEXT NOT NULL,
		deltas_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS units (
		seq INTEGER PRIMARY KEY,
		def_id TEXT NOT NULL,
		pos_x REAL NOT NULL,
		pos_z REAL NOT NULL,
		home_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_day ON events(day);
	CREATE INDEX IF NOT EXISTS idx_tiles_owner ON tiles(owner_settlement_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type tileRow struct {
	Q                 int     `db:"q"`
	R                 int     `db:"r"`
	Biome             string  `db:"biome"`
	SubBiome          string  `db:"sub_biome"`
	Temperature       float64 `db:"temperature"`
	Moisture          float64 `db:"moisture"`
	OwnerSettlementID int     `db:"owner_settlement_id"`
	Worked            bool    `db:"worked"`
	BuildingID        string  `db:"building_id"`
	Resources         string  `db:"resources"`
}

type settlementRow struct {
	ID            int     `db:"id"`
	Name          string  `db:"name"`
	Population    int     `db:"population"`
	PosX          float64 `db:"pos_x"`
	PosZ          float64 `db:"pos_z"`
	ClaimRadius   int     `db:"claim_radius"`
	GrowthCounter int     `db:"growth_counter"`
	Stock         string  `db:"stock"`
	DeltasJSON    string  `db:"deltas_json"`
}

type unitRow struct {
	Seq    int     `db:"seq"`
	DefID  string  `db:"def_id"`
	PosX   float64 `db:"pos_x"`
	PosZ   float64 `db:"pos_z"`
	HomeID int     `db:"home_id"`
}

func joinPairs(stacks []world.ResourceStack) string {
	return strings.Join(world.FormatPairs(stacks), ",")
}

func splitPairs(s string) []world.ResourceStack {
	if s == "" {
		return nil
	}
	return world.ParsePairs(strings.Split(s, ","))
}

// SaveTiles writes all tiles to the database (full replace).
func (db *DB) SaveTiles(tiles []*world.Tile) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tiles"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO tiles
		(q, r, biome, sub_biome, temperature, moisture, owner_settlement_id,
		 worked, building_id, resources)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range tiles {
		buildingID := ""
		if t.Building != nil {
			buildingID = t.Building.DefID
		}
		_, err := stmt.Exec(
			t.Coord.Q, t.Coord.R, t.Biome, t.SubBiome, t.Temperature, t.Moisture,
			t.OwnerSettlementID, t.Worked, buildingID, joinPairs(t.Resources),
		)
		if err != nil {
			return fmt.Errorf("insert tile %s: %w", t.Coord, err)
		}
	}

	return tx.Commit()
}

// SaveSettlements writes all settlements to the database.
func (db *DB) SaveSettlements(settlements []*social.Settlement) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM settlements"); err != nil {
		return err
	}

	for _, s := range settlements {
		deltasJSON, _ := json.Marshal(s.DeltaPerDay)
		_, err := tx.Exec(`INSERT INTO settlements
			(id, name, population, pos_x, pos_z, claim_radius, growth_counter, stock, deltas_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.Name, s.Population, s.Position.X, s.Position.Z,
			s.ClaimRadius, s.GrowthCounter, joinPairs(s.StockEntries()), string(deltasJSON),
		)
		if err != nil {
			return fmt.Errorf("insert settlement %d: %w", s.ID, err)
		}
	}

	return tx.Commit()
}

// SaveUnits writes all units to the database. Only the definition,
// position and home settlement are kept; paths and work orders are not
// saved.
func (db *DB) SaveUnits(list []*units.Unit) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM units"); err != nil {
		return err
	}

	for i, u := range list {
		_, err := tx.Exec("INSERT INTO units (seq, def_id, pos_x, pos_z, home_id) VALUES (?, ?, ?, ?, ?)",
			i, u.Def.ID, u.Tile.Position.X, u.Tile.Position.Z, u.HomeID,
		)
		if err != nil {
			return fmt.Errorf("insert unit %d: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (day, description, category) VALUES (?, ?, ?)",
			e.Day, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// WorldID returns the id of the saved world, creating one if the database
// has none yet.
func (db *DB) WorldID() (string, error) {
	id, err := db.GetMeta(MetaWorldID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id = uuid.NewString()
	if err := db.SaveMeta(MetaWorldID, id); err != nil {
		return "", err
	}
	return id, nil
}

// HasWorld reports whether a world has been saved.
func (db *DB) HasWorld() (bool, error) {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM tiles"); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveWorldState performs a full save of all world state. Events saved by
// an earlier call are not written again.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	slog.Info("saving world state",
		"tiles", sim.WorldMap.HexCount(),
		"settlements", len(sim.Settlements),
		"units", sim.Units.Len(),
	)

	worldID, err := db.WorldID()
	if err != nil {
		return fmt.Errorf("world id: %w", err)
	}
	if err := db.SaveTiles(sim.WorldMap.Tiles()); err != nil {
		return fmt.Errorf("save tiles: %w", err)
	}
	if err := db.SaveSettlements(sim.Settlements); err != nil {
		return fmt.Errorf("save settlements: %w", err)
	}
	if err := db.SaveUnits(sim.Units.All()); err != nil {
		return fmt.Errorf("save units: %w", err)
	}
	if err := db.SaveEvents(db.unsavedEvents(sim)); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	meta := map[string]string{
		MetaDay:       strconv.FormatUint(sim.Day(), 10),
		MetaVersion:   strconv.Itoa(SaveVersion),
		MetaHexRadius: strconv.FormatFloat(sim.WorldMap.HexRadius, 'g', -1, 64),
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	slog.Info("world state saved", "world_id", worldID, "day", sim.Day())
	return nil
}

// unsavedEvents returns the events newer than the last saved day.
func (db *DB) unsavedEvents(sim *engine.Simulation) []engine.Event {
	var last sql.NullInt64
	if err := db.conn.Get(&last, "SELECT MAX(day) FROM events"); err != nil || !last.Valid {
		return sim.Events
	}
	var out []engine.Event
	for _, e := range sim.Events {
		if int64(e.Day) > last.Int64 {
			out = append(out, e)
		}
	}
	return out
}

// LoadHexRadius returns the saved hex radius, for building the empty map a
// world is restored into.
func (db *DB) LoadHexRadius() (float64, error) {
	v, err := db.GetMeta(MetaHexRadius)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoSave
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(v, 64)
}

// LoadWorld restores tiles, settlements, units and the day counter into
// sim, whose map should be empty.
func (db *DB) LoadWorld(sim *engine.Simulation) error {
	if v, err := db.GetMeta(MetaVersion); err == nil && v != strconv.Itoa(SaveVersion) {
		return fmt.Errorf("save version %s, want %d", v, SaveVersion)
	}

	var tiles []tileRow
	if err := db.conn.Select(&tiles, "SELECT * FROM tiles ORDER BY r, q"); err != nil {
		return fmt.Errorf("load tiles: %w", err)
	}
	if len(tiles) == 0 {
		return ErrNoSave
	}
	for _, row := range tiles {
		t := world.NewTile(world.HexCoord{Q: row.Q, R: row.R}, sim.WorldMap.HexRadius)
		t.Biome = row.Biome
		t.SubBiome = row.SubBiome
		t.Temperature = row.Temperature
		t.Moisture = row.Moisture
		t.OwnerSettlementID = row.OwnerSettlementID
		t.Worked = row.Worked
		t.Resources = splitPairs(row.Resources)
		if !sim.RestoreTile(t, row.BuildingID) {
			slog.Warn("duplicate tile in save", "coord", t.Coord.String())
		}
	}

	var setts []settlementRow
	if err := db.conn.Select(&setts, "SELECT * FROM settlements ORDER BY id"); err != nil {
		return fmt.Errorf("load settlements: %w", err)
	}
	for _, row := range setts {
		s := social.NewSettlement(row.ID, row.Name, world.Point{X: row.PosX, Z: row.PosZ})
		s.Population = max(row.Population, 0)
		s.ClaimRadius = row.ClaimRadius
		s.GrowthCounter = row.GrowthCounter
		for _, st := range splitPairs(row.Stock) {
			s.Add(st.ResourceID, st.Amount)
		}
		if row.DeltasJSON != "" {
			if err := json.Unmarshal([]byte(row.DeltasJSON), &s.DeltaPerDay); err != nil {
				return fmt.Errorf("settlement %d deltas: %w", row.ID, err)
			}
		}
		if err := sim.RestoreSettlement(s); err != nil {
			return err
		}
	}

	var us []unitRow
	if err := db.conn.Select(&us, "SELECT * FROM units ORDER BY seq"); err != nil {
		return fmt.Errorf("load units: %w", err)
	}
	for _, row := range us {
		if _, err := sim.RestoreUnit(row.DefID, world.Point{X: row.PosX, Z: row.PosZ}, row.HomeID); err != nil {
			return fmt.Errorf("restore unit %d: %w", row.Seq, err)
		}
	}

	if v, err := db.GetMeta(MetaDay); err == nil {
		day, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse day: %w", err)
		}
		sim.RestoreDay(day)
	}

	slog.Info("world state loaded",
		"tiles", sim.WorldMap.HexCount(),
		"settlements", len(sim.Settlements),
		"units", sim.Units.Len(),
		"day", sim.Day(),
	)
	return nil
}

// RecentEvents returns the most recent N events.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT day, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}
