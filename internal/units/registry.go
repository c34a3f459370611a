package units

import (
	"github.com/talgya/hexsettle/internal/defs"
	"github.com/talgya/hexsettle/internal/world"
)

// Registry holds the live units in spawn order.
type Registry struct {
	list   []*Unit
	byID   map[int]*Unit
	nextID int
}

// NewRegistry creates an empty registry. IDs start at 1.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[int]*Unit), nextID: 1}
}

// Spawn creates a unit of def on tile with the next free id.
func (r *Registry) Spawn(def defs.UnitDef, tile *world.Tile) *Unit {
	u := New(r.nextID, def, tile)
	r.nextID++
	r.list = append(r.list, u)
	r.byID[u.ID] = u
	return u
}

// Get returns the unit with the given id, or nil.
func (r *Registry) Get(id int) *Unit {
	return r.byID[id]
}

// Remove deletes a unit and reports whether it existed.
func (r *Registry) Remove(id int) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, u := range r.list {
		if u.ID == id {
			r.list = append(r.list[:i], r.list[i+1:]...)
			break
		}
	}
	return true
}

// All returns the units in spawn order. The slice must not be modified.
func (r *Registry) All() []*Unit {
	return r.list
}

// Len returns the number of live units.
func (r *Registry) Len() int {
	return len(r.list)
}
