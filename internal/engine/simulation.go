// Simulation ties the world, settlements and units together and runs the
// daily update on the clock.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/hexsettle/internal/defs"
	"github.com/talgya/hexsettle/internal/economy"
	"github.com/talgya/hexsettle/internal/pathfind"
	"github.com/talgya/hexsettle/internal/social"
	"github.com/talgya/hexsettle/internal/units"
	"github.com/talgya/hexsettle/internal/world"
)

// MaxEvents bounds the in-memory event log.
const MaxEvents = 1000

// Config holds simulation tuning.
type Config struct {
	MinSpacing         float64 // minimum plane distance between settlements
	StartingPopulation int
	StartingStock      []defs.Amount
	SpawnWorker        bool   // spawn a unit when a settlement is placed
	WorkerDef          string // unit definition id for that unit
	Economy            economy.Config
	Paths              pathfind.Config
}

// DefaultConfig returns the standard simulation tuning.
func DefaultConfig() Config {
	return Config{
		MinSpacing:         world.DefaultMinSpacing,
		StartingPopulation: 3,
		StartingStock:      []defs.Amount{{ResourceID: defs.Food, Amount: 20}, {ResourceID: defs.Wood, Amount: 10}},
		SpawnWorker:        true,
		WorkerDef:          "worker",
		Economy:            economy.DefaultConfig(),
		Paths:              pathfind.DefaultConfig(),
	}
}

// Event is a notable occurrence in the world.
type Event struct {
	Day         uint64 `json:"day"`
	Description string `json:"description"`
	Category    string `json:"category"` // "birth", "starvation", "work", "settlement", "unit", "building"
}

// SimStats tracks aggregate world statistics.
type SimStats struct {
	Settlements     int            `json:"settlements"`
	Units           int            `json:"units"`
	TotalPopulation int            `json:"total_population"`
	Births          int            `json:"births"`
	Starvations     int            `json:"starvations"`
	WorkedTiles     int            `json:"worked_tiles"`
	ClaimedTiles    int            `json:"claimed_tiles"`
	Stock           map[string]int `json:"stock"` // summed over settlements
}

// DayReport is the outcome of one day.
type DayReport struct {
	Day         uint64           `json:"day"`
	Date        string           `json:"date"`
	Settlements []economy.Report `json:"settlements"`
	UnitsMoved  int              `json:"units_moved"`
	WorkStarted []world.HexCoord `json:"work_started,omitempty"`
	Stats       SimStats         `json:"stats"`
}

// Simulation holds the complete world state and wires systems together.
type Simulation struct {
	Config   Config
	WorldMap *world.Map
	Defs     *defs.Registry
	Clock    *Clock
	Paths    *pathfind.Pathfinder
	Claimer  social.Claimer
	Economy  *economy.Engine

	Settlements     []*social.Settlement
	SettlementIndex map[int]*social.Settlement // ID → settlement
	Units           *units.Registry

	Events     []Event // most recent last, at most MaxEvents
	Stats      SimStats
	LastReport DayReport

	nextSettlementID int
	unsubscribe      func()
}

// NewSimulation creates a simulation over m and subscribes its day handler
// to clock. Call Close to unsubscribe.
func NewSimulation(m *world.Map, reg *defs.Registry, clock *Clock, cfg Config) *Simulation {
	sim := &Simulation{
		Config:           cfg,
		WorldMap:         m,
		Defs:             reg,
		Clock:            clock,
		Paths:            pathfind.NewForMap(m, cfg.Paths),
		Claimer:          social.Claimer{Index: m},
		Economy:          economy.New(cfg.Economy),
		SettlementIndex:  make(map[int]*social.Settlement),
		Units:            units.NewRegistry(),
		nextSettlementID: 1,
	}
	sim.unsubscribe = clock.Subscribe(sim)
	sim.updateStats()
	return sim
}

// Close detaches the simulation from its clock.
func (s *Simulation) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Day returns the current day number.
func (s *Simulation) Day() uint64 {
	return s.Clock.Day()
}

// OnDay runs one day: the economy for every settlement, then unit motion,
// then work-order arrival, then statistics.
func (s *Simulation) OnDay(day uint64) {
	report := DayReport{Day: day, Date: SimTime(day)}

	for _, sett := range s.Settlements {
		r := s.Economy.UpdateSettlement(sett)
		economy.ApplyDailyDeltas(sett)
		report.Settlements = append(report.Settlements, r)

		if r.Born {
			s.addEvent(day, "birth", fmt.Sprintf("%s grew to %d", sett.Name, sett.Population))
		}
		if r.Starved {
			s.addEvent(day, "starvation", fmt.Sprintf("%s is starving (population %d)", sett.Name, sett.Population))
		}
	}

	for _, u := range s.Units.All() {
		if u.OnDay() > 0 {
			report.UnitsMoved++
		}
	}

	for _, u := range s.Units.All() {
		if u.CheckWork() {
			report.WorkStarted = append(report.WorkStarted, u.Tile.Coord)
			s.addEvent(day, "work", fmt.Sprintf("%s %d started working %s", u.Def.ID, u.ID, u.Tile.Coord))
		}
	}

	s.updateStats()
	for _, r := range report.Settlements {
		if r.Born {
			s.Stats.Births++
		}
		if r.Starved {
			s.Stats.Starvations++
		}
	}
	report.Stats = s.Stats
	s.LastReport = report

	slog.Info("daily report",
		"day", day,
		"date", report.Date,
		"settlements", s.Stats.Settlements,
		"population", humanize.Comma(int64(s.Stats.TotalPopulation)),
		"units", s.Stats.Units,
		"units_moved", report.UnitsMoved,
		"worked_tiles", s.Stats.WorkedTiles,
		"food", humanize.Comma(int64(s.Stats.Stock[defs.Food])),
		"wood", humanize.Comma(int64(s.Stats.Stock[defs.Wood])),
		"stone", humanize.Comma(int64(s.Stats.Stock[defs.Stone])),
		"births", s.Stats.Births,
		"starvations", s.Stats.Starvations,
	)
}

func (s *Simulation) addEvent(day uint64, category, desc string) {
	s.Events = append(s.Events, Event{Day: day, Description: desc, Category: category})
	if len(s.Events) > MaxEvents {
		s.Events = s.Events[len(s.Events)-MaxEvents:]
	}
}

// RecentEvents returns up to n of the most recent events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	if n <= 0 || n > len(s.Events) {
		n = len(s.Events)
	}
	out := make([]Event, n)
	copy(out, s.Events[len(s.Events)-n:])
	return out
}

func (s *Simulation) updateStats() {
	births, starvations := s.Stats.Births, s.Stats.Starvations
	stats := SimStats{
		Settlements: len(s.Settlements),
		Units:       s.Units.Len(),
		Births:      births,
		Starvations: starvations,
		Stock:       make(map[string]int),
	}
	for _, sett := range s.Settlements {
		stats.TotalPopulation += sett.Population
		for id, v := range sett.Stockpile {
			stats.Stock[id] += v
		}
	}
	for _, t := range s.WorldMap.Tiles() {
		if t.Claimed() {
			stats.ClaimedTiles++
		}
		if t.Worked {
			stats.WorkedTiles++
		}
	}
	s.Stats = stats
}
