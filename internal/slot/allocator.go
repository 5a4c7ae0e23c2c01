// Package slot manages the bounded slot space of a classifier.
//
// Slots are the row identity of a live rule across every bitmap. The
// allocator hands out the lowest free slot first, so live rules stay packed
// into the low chunks of the bitmaps after churn.
package slot

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

var (
	// ErrExhausted is returned by Allocate when every slot is in use.
	ErrExhausted = errors.New("slot: no free slot")

	// ErrNotAllocated is returned when releasing a slot that is not in use.
	ErrNotAllocated = errors.New("slot: not allocated")
)

// Allocator is a free set over [0, capacity).
type Allocator struct {
	free     *roaring.Bitmap
	capacity uint32
}

// NewAllocator creates an allocator with every slot free.
func NewAllocator(capacity uint32) *Allocator {
	free := roaring.New()
	free.AddRange(0, uint64(capacity))
	free.RunOptimize()

	return &Allocator{
		free:     free,
		capacity: capacity,
	}
}

// Allocate returns the lowest free slot.
func (a *Allocator) Allocate() (uint32, error) {
	if a.free.IsEmpty() {
		return 0, ErrExhausted
	}

	s := a.free.Minimum()
	a.free.Remove(s)
	return s, nil
}

// Release returns s to the free set.
func (a *Allocator) Release(s uint32) error {
	if s >= a.capacity {
		return fmt.Errorf("%w: %d out of range", ErrNotAllocated, s)
	}
	if !a.free.CheckedAdd(s) {
		return fmt.Errorf("%w: %d", ErrNotAllocated, s)
	}
	if a.free.GetCardinality() == uint64(a.capacity) {
		a.free.RunOptimize()
	}
	return nil
}

// InUse reports whether s is allocated.
func (a *Allocator) InUse(s uint32) bool {
	return s < a.capacity && !a.free.Contains(s)
}

// Free returns the number of free slots.
func (a *Allocator) Free() int {
	return int(a.free.GetCardinality())
}

// Capacity returns the size of the slot space.
func (a *Allocator) Capacity() uint32 {
	return a.capacity
}

// MemoryFootprint returns the bytes held by the free set.
func (a *Allocator) MemoryFootprint() int64 {
	return int64(a.free.GetSizeInBytes())
}
