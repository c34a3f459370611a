// Package defs holds the resource, building, and unit definitions the
// simulation consumes by value. How definitions are authored is up to the
// caller; DefaultRegistry provides a starter set.
package defs

// Amount is a resource id with a quantity, used for costs and bonuses.
type Amount struct {
	ResourceID string `json:"resource_id"`
	Amount     int    `json:"amount"`
}

// ResourceDef describes a stockpiled resource.
type ResourceDef struct {
	ID          string `json:"id"` // e.g. "food", "wood"
	DisplayName string `json:"display_name"`
}

// BuildingDef describes a building that can occupy a tile.
type BuildingDef struct {
	ID          string `json:"id"` // e.g. "camp", "lumber_hut"
	DisplayName string `json:"display_name"`

	BuildCost []Amount `json:"build_cost"`
	Upkeep    []Amount `json:"upkeep"`

	// Placement rules.
	RequiredBiomeContains string `json:"required_biome_contains"` // "Forest", "Hill", ...
	LandOnly              bool   `json:"land_only"`

	// Added per day to the tile's production when worked.
	YieldBonus []Amount `json:"yield_bonus"`
}

// UnitDef describes a unit type.
type UnitDef struct {
	ID           string `json:"id"` // "worker"
	DisplayName  string `json:"display_name"`
	MovePoints   int    `json:"move_points"`    // per day
	UpkeepPerDay int    `json:"upkeep_per_day"` // food, charged to the home settlement
	CanWorkTiles bool   `json:"can_work_tiles"`
}

// Registry looks definitions up by id.
type Registry struct {
	Resources []ResourceDef `json:"resources"`
	Buildings []BuildingDef `json:"buildings"`
	Units     []UnitDef     `json:"units"`
}

// FindResource returns the resource definition with the given id.
func (r *Registry) FindResource(id string) (ResourceDef, bool) {
	for _, d := range r.Resources {
		if d.ID == id {
			return d, true
		}
	}
	return ResourceDef{}, false
}

// FindBuilding returns the building definition with the given id.
func (r *Registry) FindBuilding(id string) (BuildingDef, bool) {
	for _, d := range r.Buildings {
		if d.ID == id {
			return d, true
		}
	}
	return BuildingDef{}, false
}

// FindUnit returns the unit definition with the given id.
func (r *Registry) FindUnit(id string) (UnitDef, bool) {
	for _, d := range r.Units {
		if d.ID == id {
			return d, true
		}
	}
	return UnitDef{}, false
}

// ResourceIDs returns every registered resource id in registry order.
func (r *Registry) ResourceIDs() []string {
	ids := make([]string, 0, len(r.Resources))
	for _, d := range r.Resources {
		ids = append(ids, d.ID)
	}
	return ids
}

// Common resource ids.
const (
	Food      = "food"
	Wood      = "wood"
	Stone     = "stone"
	Metal     = "metal"
	Knowledge = "knowledge"
)

// DefaultRegistry returns the starter definition set.
func DefaultRegistry() *Registry {
	return &Registry{
		Resources: []ResourceDef{
			{ID: Food, DisplayName: "Food"},
			{ID: Wood, DisplayName: "Wood"},
			{ID: Stone, DisplayName: "Stone"},
			{ID: Metal, DisplayName: "Metal"},
			{ID: Knowledge, DisplayName: "Knowledge"},
		},
		Buildings: []BuildingDef{
			{
				ID:          "camp",
				DisplayName: "Camp",
				BuildCost:   []Amount{{Wood, 5}},
				LandOnly:    true,
				YieldBonus:  []Amount{{Food, 1}},
			},
			{
				ID:                    "lumber_hut",
				DisplayName:           "Lumber Hut",
				BuildCost:             []Amount{{Wood, 10}},
				Upkeep:                []Amount{{Food, 1}},
				RequiredBiomeContains: "Forest",
				LandOnly:              true,
				YieldBonus:            []Amount{{Wood, 2}},
			},
			{
				ID:                    "quarry",
				DisplayName:           "Quarry",
				BuildCost:             []Amount{{Wood, 10}, {Stone, 5}},
				Upkeep:                []Amount{{Food, 1}},
				RequiredBiomeContains: "Hill",
				LandOnly:              true,
				YieldBonus:            []Amount{{Stone, 2}, {Metal, 1}},
			},
		},
		Units: []UnitDef{
			{ID: "worker", DisplayName: "Worker", MovePoints: 4, CanWorkTiles: true},
			{ID: "scout", DisplayName: "Scout", MovePoints: 6},
		},
	}
}
