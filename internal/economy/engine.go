// Package economy runs the per-settlement daily update: food consumption,
// population growth and starvation, and worked-tile production.
package economy

import (
	"math"
	"sort"

	"github.com/talgya/hexsettle/internal/defs"
	"github.com/talgya/hexsettle/internal/social"
)

// Config holds economy tuning.
type Config struct {
	FoodResource     string  // empty disables the food phase
	FoodPerPopPerDay int     // food eaten per person per day
	GrowthThreshold  int     // surplus needed for one birth; <= 0 disables growth
	WorkedMultiplier float64 // applied to a worked tile's base yield
}

// DefaultConfig returns the standard economy tuning.
func DefaultConfig() Config {
	return Config{
		FoodResource:     defs.Food,
		FoodPerPopPerDay: 1,
		GrowthThreshold:  10,
		WorkedMultiplier: 1.5,
	}
}

// Report summarizes one settlement's day.
type Report struct {
	SettlementID int            `json:"settlement_id"`
	FoodNeed     int            `json:"food_need"`
	FoodEaten    int            `json:"food_eaten"`
	Born         bool           `json:"born"`
	Starved      bool           `json:"starved"`
	WorkedTiles  int            `json:"worked_tiles"` // tiles that contributed
	Produced     map[string]int `json:"produced"`
	Population   int            `json:"population"`
}

// Engine applies the daily economic update.
type Engine struct {
	Config Config
}

// New creates an engine with the given config.
func New(cfg Config) *Engine {
	return &Engine{Config: cfg}
}

// UpdateSettlement runs the food phase and then the production phase for
// one settlement.
func (e *Engine) UpdateSettlement(s *social.Settlement) Report {
	r := Report{SettlementID: s.ID, Produced: make(map[string]int)}
	e.feed(s, &r)
	e.produce(s, &r)
	r.Population = s.Population
	return r
}

func (e *Engine) feed(s *social.Settlement, r *Report) {
	food := e.Config.FoodResource
	if food == "" {
		return
	}

	need := s.Population * e.Config.FoodPerPopPerDay
	have := s.Get(food)
	r.FoodNeed = need

	if have >= need {
		s.Set(food, have-need)
		r.FoodEaten = need
		s.GrowthCounter += have - need
		if e.Config.GrowthThreshold > 0 && s.GrowthCounter >= e.Config.GrowthThreshold {
			s.Population++
			s.GrowthCounter = 0
			r.Born = true
		}
		return
	}

	// Not enough to go round: eat what there is and lose one person.
	s.Set(food, 0)
	r.FoodEaten = have
	if s.Population > 0 {
		s.Population--
	}
	s.GrowthCounter = 0
	r.Starved = true
}

// produce adds the yield of worked tiles, capped at one tile per person and
// taken in cache order.
func (e *Engine) produce(s *social.Settlement, r *Report) {
	budget := s.Population
	for _, t := range s.Tiles() {
		if budget <= 0 {
			break
		}
		if !t.Worked {
			continue
		}
		budget--
		r.WorkedTiles++

		for _, stack := range t.Resources {
			y := int(math.Round(float64(stack.Amount)*e.Config.WorkedMultiplier)) + t.Building.Bonus(stack.ResourceID)
			s.Add(stack.ResourceID, y)
			r.Produced[stack.ResourceID] += y
		}
	}
}

// ApplyDailyDeltas adds every per-day delta to the stockpile. Deltas are
// read into a sorted snapshot first so the stockpile can be written freely.
func ApplyDailyDeltas(s *social.Settlement) {
	type change struct {
		id    string
		delta int
	}
	pending := make([]change, 0, len(s.DeltaPerDay))
	for id, d := range s.DeltaPerDay {
		if d != 0 {
			pending = append(pending, change{id, d})
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].id < pending[j].id })

	for _, c := range pending {
		s.Add(c.id, c.delta)
	}
}
