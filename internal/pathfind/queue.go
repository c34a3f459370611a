package pathfind

import "github.com/talgya/hexsettle/internal/world"

// node is an open-set entry. seq is assigned when the tile enters the open
// set and is kept across in-place f updates, so equal f values pop in the
// order tiles were first opened.
type node struct {
	tile  *world.Tile
	f     float64
	seq   uint64
	index int
}

// openSet is a container/heap min-heap over (f, seq).
type openSet []*node

func (o openSet) Len() int { return len(o) }

func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	return o[i].seq < o[j].seq
}

func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}

func (o *openSet) Push(x any) {
	n := x.(*node)
	n.index = len(*o)
	*o = append(*o, n)
}

func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*o = old[:n-1]
	return item
}
