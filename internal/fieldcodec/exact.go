package fieldcodec

import (
	"unsafe"

	"github.com/hupe1980/hembs/internal/bitmap"
	"github.com/hupe1980/hembs/model"
)

// WildcardCell is the cell index of rules that match any protocol.
const WildcardCell = 256

// Exact indexes an 8-bit exact-or-wildcard field.
type Exact struct {
	layout *bitmap.Layout
	cells  [WildcardCell + 1]*bitmap.AggBitmap
	live   int
}

// NewExact creates an empty exact-match codec.
func NewExact(l *bitmap.Layout) *Exact {
	return &Exact{layout: l}
}

// Cell returns the cell a protocol spec registers in.
func (e *Exact) Cell(p model.Protocol) int {
	if p.Any {
		return WildcardCell
	}
	return int(p.Value)
}

// InsertCost returns the bytes Insert would newly allocate for p.
func (e *Exact) InsertCost(p model.Protocol) int64 {
	if e.cells[e.Cell(p)] == nil {
		return e.layout.BitmapBytes()
	}
	return 0
}

// Insert registers slot in the cell of p.
func (e *Exact) Insert(p model.Protocol, slot uint32) {
	c := e.Cell(p)
	if e.cells[c] == nil {
		e.cells[c] = bitmap.New(e.layout)
		e.live++
	}
	e.cells[c].Set(slot)
}

// Remove unregisters slot from the cell of p. Returns false if it was not registered.
func (e *Exact) Remove(p model.Protocol, slot uint32) bool {
	c := e.Cell(p)
	b := e.cells[c]
	if b == nil || !b.Clear(slot) {
		return false
	}
	if b.IsEmpty() {
		e.cells[c] = nil
		e.live--
	}
	return true
}

// Gather appends the bitmaps covering v to g.
func (e *Exact) Gather(v uint8, g bitmap.Group) bitmap.Group {
	if b := e.cells[v]; b != nil {
		g = append(g, b)
	}
	if b := e.cells[WildcardCell]; b != nil {
		g = append(g, b)
	}
	return g
}

// ForEachBitmap calls fn for every materialized cell bitmap.
func (e *Exact) ForEachBitmap(fn func(b *bitmap.AggBitmap)) {
	for _, b := range e.cells {
		if b != nil {
			fn(b)
		}
	}
}

// MemoryFootprint returns the bytes owned by the codec.
func (e *Exact) MemoryFootprint() int64 {
	return int64(unsafe.Sizeof(*e)) + int64(e.live)*e.layout.BitmapBytes()
}
