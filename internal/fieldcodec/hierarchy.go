package fieldcodec

import (
	"errors"
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/hupe1980/hembs/internal/bitmap"
	"github.com/hupe1980/hembs/model"
)

const portBits = 16

// ErrInvalidCellWidth is returned for a cell width that is not a power of two
// whose exponent divides 16.
var ErrInvalidCellWidth = errors.New("fieldcodec: cell width must be 2, 4, 16, 256 or 65536")

// Cell identifies one aligned sub-range of the port domain.
type Cell struct {
	Level int
	Index uint32
}

// Hierarchy indexes a 16-bit range field with a hierarchical, cell-width
// parameterized decomposition.
//
// Level l cells cover W^(l+1) consecutive ports aligned to their width, where W
// is the cell width. The top level is a single cell over the whole domain.
type Hierarchy struct {
	layout  *bitmap.Layout
	shift   uint
	levels  int
	offsets []int
	cells   []*bitmap.AggBitmap
	live    int
}

// NewHierarchy creates an empty range codec with base cells of cellWidth ports.
func NewHierarchy(l *bitmap.Layout, cellWidth int) (*Hierarchy, error) {
	if cellWidth < 2 || cellWidth > 1<<portBits || cellWidth&(cellWidth-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCellWidth, cellWidth)
	}

	shift := uint(bits.TrailingZeros(uint(cellWidth)))
	if portBits%shift != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCellWidth, cellWidth)
	}

	h := &Hierarchy{
		layout: l,
		shift:  shift,
		levels: portBits / int(shift),
	}

	h.offsets = make([]int, h.levels)
	total := 0
	for lv := 0; lv < h.levels; lv++ {
		h.offsets[lv] = total
		total += 1 << (portBits - int(shift)*(lv+1))
	}
	h.cells = make([]*bitmap.AggBitmap, total)

	return h, nil
}

// CellWidth returns the width of a base cell.
func (h *Hierarchy) CellWidth() int { return 1 << h.shift }

// Levels returns the number of hierarchy levels.
func (h *Hierarchy) Levels() int { return h.levels }

// Span returns the inclusive port interval covered by c.
func (h *Hierarchy) Span(c Cell) model.PortRange {
	w := uint32(1) << (h.shift * uint(c.Level+1))
	lo := c.Index * w
	return model.PortRange{Lo: uint16(lo), Hi: uint16(lo + w - 1)}
}

func (h *Hierarchy) id(c Cell) int {
	return h.offsets[c.Level] + int(c.Index)
}

// Widen aligns r outward to base cell boundaries.
func (h *Hierarchy) Widen(r model.PortRange) model.PortRange {
	mask := uint16(1)<<h.shift - 1
	return model.PortRange{Lo: r.Lo &^ mask, Hi: r.Hi | mask}
}

// Decompose appends the minimal aligned cover of the widened range r to dst.
// Cells are emitted in ascending port order. An inverted range yields no cells.
func (h *Hierarchy) Decompose(r model.PortRange, dst []Cell) []Cell {
	if r.Lo > r.Hi {
		return dst
	}

	w := h.Widen(r)
	pos, hi := uint32(w.Lo), uint32(w.Hi)

	for pos <= hi {
		lv := 0
		for lv+1 < h.levels {
			width := uint32(1) << (h.shift * uint(lv+2))
			if pos%width != 0 || pos+width-1 > hi {
				break
			}
			lv++
		}

		s := h.shift * uint(lv+1)
		dst = append(dst, Cell{Level: lv, Index: pos >> s})
		pos += 1 << s
	}

	return dst
}

// Chain appends the materialized cells on the ancestor chain of port to g,
// leaf level first.
func (h *Hierarchy) Chain(port uint16, g bitmap.Group) bitmap.Group {
	p := uint32(port)
	for lv := 0; lv < h.levels; lv++ {
		if b := h.cells[h.offsets[lv]+int(p>>(h.shift*uint(lv+1)))]; b != nil {
			g = append(g, b)
		}
	}
	return g
}

// InsertCost returns the bytes Insert would newly allocate for cells.
func (h *Hierarchy) InsertCost(cells []Cell) int64 {
	var cost int64
	for _, c := range cells {
		if h.cells[h.id(c)] == nil {
			cost += h.layout.BitmapBytes()
		}
	}
	return cost
}

// Insert registers slot in every cell of cells.
func (h *Hierarchy) Insert(cells []Cell, slot uint32) {
	for _, c := range cells {
		id := h.id(c)
		if h.cells[id] == nil {
			h.cells[id] = bitmap.New(h.layout)
			h.live++
		}
		h.cells[id].Set(slot)
	}
}

// Remove unregisters slot from every cell of cells and releases cells that
// became empty. Returns false if slot was missing from any of them.
func (h *Hierarchy) Remove(cells []Cell, slot uint32) bool {
	ok := true
	for _, c := range cells {
		id := h.id(c)
		b := h.cells[id]
		if b == nil || !b.Clear(slot) {
			ok = false
			continue
		}
		if b.IsEmpty() {
			h.cells[id] = nil
			h.live--
		}
	}
	return ok
}

// Bitmap returns the bitmap of c, or nil if the cell is not materialized.
func (h *Hierarchy) Bitmap(c Cell) *bitmap.AggBitmap {
	return h.cells[h.id(c)]
}

// ForEachBitmap calls fn for every materialized cell bitmap.
func (h *Hierarchy) ForEachBitmap(fn func(b *bitmap.AggBitmap)) {
	for _, b := range h.cells {
		if b != nil {
			fn(b)
		}
	}
}

// MemoryFootprint returns the bytes owned by the codec.
func (h *Hierarchy) MemoryFootprint() int64 {
	size := int64(unsafe.Sizeof(*h))
	size += int64(len(h.offsets)) * int64(unsafe.Sizeof(int(0)))
	size += int64(len(h.cells)) * int64(unsafe.Sizeof((*bitmap.AggBitmap)(nil)))
	size += int64(h.live) * h.layout.BitmapBytes()
	return size
}
