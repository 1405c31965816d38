package grid

import (
	"math"
	"sort"
)

// Cell is a discrete grid position within one grouping.
type Cell struct {
	X int32
	Y int32
}

// CellAt rounds tag-space coordinates to the nearest cell.
func CellAt(x, y float64) Cell {
	return Cell{X: int32(math.Round(x)), Y: int32(math.Round(y))}
}

// Index tracks which entities occupy which cells.
// Accessed only from the frame loop goroutine; no locks.
type Index struct {
	cells map[Cell]map[string]struct{} // cell → set of entity IDs
	at    map[string]Cell
}

func NewIndex() *Index {
	return &Index{
		cells: make(map[Cell]map[string]struct{}),
		at:    make(map[string]Cell),
	}
}

// Place puts id into cell, moving it out of its previous cell.
// Returns the previous cell and whether id was already placed.
func (g *Index) Place(id string, cell Cell) (Cell, bool) {
	old, had := g.at[id]
	if had && old == cell {
		return old, true
	}
	if had {
		g.removeFrom(id, old)
	}
	set := g.cells[cell]
	if set == nil {
		set = make(map[string]struct{})
		g.cells[cell] = set
	}
	set[id] = struct{}{}
	g.at[id] = cell
	return old, had
}

// Remove takes id out of the index. Returns its last cell.
func (g *Index) Remove(id string) (Cell, bool) {
	old, had := g.at[id]
	if !had {
		return Cell{}, false
	}
	g.removeFrom(id, old)
	delete(g.at, id)
	return old, true
}

func (g *Index) removeFrom(id string, cell Cell) {
	set := g.cells[cell]
	if set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(g.cells, cell)
		}
	}
}

// CellOf returns the cell id currently occupies.
func (g *Index) CellOf(id string) (Cell, bool) {
	c, ok := g.at[id]
	return c, ok
}

// At returns the IDs in cell, sorted.
func (g *Index) At(cell Cell) []string {
	set := g.cells[cell]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len is the number of placed entities.
func (g *Index) Len() int { return len(g.at) }

// StackOffsets returns the resting offset of each stacked element: element i
// sits on the summed heights of elements 0..i-1.
func StackOffsets(heights []float64) []float64 {
	out := make([]float64, len(heights))
	var acc float64
	for i, h := range heights {
		out[i] = acc
		acc += h
	}
	return out
}
