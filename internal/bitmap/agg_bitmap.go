package bitmap

import (
	"errors"
	"math/bits"
	"unsafe"
)

// WordBits is the number of bits per word.
const WordBits = 64

// ChunksPerAggWord is the number of chunks tracked per aggregate word.
const ChunksPerAggWord = 64

var (
	// ErrZeroCapacity is returned when a layout is requested for zero slots.
	ErrZeroCapacity = errors.New("bitmap: capacity must be positive")

	// ErrInvalidRatio is returned when the aggregate ratio is not a positive multiple of 64.
	ErrInvalidRatio = errors.New("bitmap: aggregate ratio must be a positive multiple of 64")
)

// Layout is the geometry shared by all bitmaps of one index.
//
// It is immutable after NewLayout and safe for concurrent use.
type Layout struct {
	capacity      uint32
	ratio         int
	numWords      int
	wordsPerChunk int
	numChunks     int
	numAggWords   int
	// tailMask masks off the chunk bits beyond numChunks in the last aggregate word.
	tailMask uint64
}

// NewLayout creates the geometry for capacity slots summarized in chunks of ratio slots.
func NewLayout(capacity uint32, ratio int) (*Layout, error) {
	if capacity == 0 {
		return nil, ErrZeroCapacity
	}
	if ratio <= 0 || ratio%WordBits != 0 {
		return nil, ErrInvalidRatio
	}

	wordsPerChunk := ratio / WordBits
	numWords := int((uint64(capacity) + WordBits - 1) / WordBits)
	// Round up to a chunk boundary so every chunk is whole.
	numChunks := (numWords + wordsPerChunk - 1) / wordsPerChunk
	numWords = numChunks * wordsPerChunk
	numAggWords := (numChunks + ChunksPerAggWord - 1) / ChunksPerAggWord

	tailMask := ^uint64(0)
	if rem := numChunks % ChunksPerAggWord; rem != 0 {
		tailMask = (uint64(1) << rem) - 1
	}

	return &Layout{
		capacity:      capacity,
		ratio:         ratio,
		numWords:      numWords,
		wordsPerChunk: wordsPerChunk,
		numChunks:     numChunks,
		numAggWords:   numAggWords,
		tailMask:      tailMask,
	}, nil
}

// Capacity returns the number of addressable slots.
func (l *Layout) Capacity() uint32 { return l.capacity }

// Ratio returns the number of slots summarized by one aggregate bit.
func (l *Layout) Ratio() int { return l.ratio }

// NumChunks returns the number of chunks.
func (l *Layout) NumChunks() int { return l.numChunks }

// NumWords returns the number of words per bitmap.
func (l *Layout) NumWords() int { return l.numWords }

// liveMask returns the mask of chunks that exist in aggregate word aw.
func (l *Layout) liveMask(aw int) uint64 {
	if aw == l.numAggWords-1 {
		return l.tailMask
	}
	return ^uint64(0)
}

// BitmapBytes returns the bytes owned by one bitmap of this layout.
func (l *Layout) BitmapBytes() int64 {
	return int64(unsafe.Sizeof(AggBitmap{})) + int64(l.numWords+l.numAggWords)*8
}

// AggBitmap is a fixed-capacity bitmap over slots with an aggregate summary.
//
// Key properties:
//   - Fixed universe (set by the Layout, never grows)
//   - Aggregate bit per chunk, maintained on every Set/Clear
//   - Cached cardinality for O(1) emptiness checks
//
// It is not safe for concurrent mutation. Concurrent readers are safe as
// long as no writer is active.
type AggBitmap struct {
	// words is the backing storage, numChunks × wordsPerChunk words.
	words []uint64

	// agg has one bit per chunk; bit c is set iff chunk c is non-zero.
	agg []uint64

	layout *Layout

	// cardinality is the number of set bits.
	cardinality int
}

// New creates an empty bitmap with the given layout.
func New(l *Layout) *AggBitmap {
	return &AggBitmap{
		words:  make([]uint64, l.numWords),
		agg:    make([]uint64, l.numAggWords),
		layout: l,
	}
}

// Layout returns the bitmap's layout.
func (b *AggBitmap) Layout() *Layout { return b.layout }

// Set sets the bit for slot. Returns true if the bit was newly set.
func (b *AggBitmap) Set(slot uint32) bool {
	if slot >= b.layout.capacity {
		return false
	}

	wordIdx := slot / WordBits
	mask := uint64(1) << (slot % WordBits)
	if b.words[wordIdx]&mask != 0 {
		return false
	}

	b.words[wordIdx] |= mask
	chunk := int(wordIdx) / b.layout.wordsPerChunk
	b.agg[chunk/ChunksPerAggWord] |= uint64(1) << (chunk % ChunksPerAggWord)
	b.cardinality++
	return true
}

// Clear clears the bit for slot. Returns true if the bit was set.
// The chunk's aggregate bit is cleared once the whole chunk is zero.
func (b *AggBitmap) Clear(slot uint32) bool {
	if slot >= b.layout.capacity {
		return false
	}

	wordIdx := slot / WordBits
	mask := uint64(1) << (slot % WordBits)
	if b.words[wordIdx]&mask == 0 {
		return false
	}

	b.words[wordIdx] &^= mask
	b.cardinality--

	chunk := int(wordIdx) / b.layout.wordsPerChunk
	if b.chunkEmpty(chunk) {
		b.agg[chunk/ChunksPerAggWord] &^= uint64(1) << (chunk % ChunksPerAggWord)
	}
	return true
}

func (b *AggBitmap) chunkEmpty(chunk int) bool {
	start := chunk * b.layout.wordsPerChunk
	for _, w := range b.words[start : start+b.layout.wordsPerChunk] {
		if w != 0 {
			return false
		}
	}
	return true
}

// Contains checks if the bit for slot is set. O(1).
func (b *AggBitmap) Contains(slot uint32) bool {
	if slot >= b.layout.capacity {
		return false
	}
	return b.words[slot/WordBits]&(uint64(1)<<(slot%WordBits)) != 0
}

// ChunkActive reports whether the aggregate bit of chunk is set.
func (b *AggBitmap) ChunkActive(chunk int) bool {
	if chunk < 0 || chunk >= b.layout.numChunks {
		return false
	}
	return b.agg[chunk/ChunksPerAggWord]&(uint64(1)<<(chunk%ChunksPerAggWord)) != 0
}

// IsEmpty returns true if no bits are set.
func (b *AggBitmap) IsEmpty() bool {
	return b.cardinality == 0
}

// Cardinality returns the number of set bits.
func (b *AggBitmap) Cardinality() int {
	return b.cardinality
}

// CopyFrom overwrites b with the contents of src. Both must share a layout.
func (b *AggBitmap) CopyFrom(src *AggBitmap) {
	copy(b.words, src.words)
	copy(b.agg, src.agg)
	b.cardinality = src.cardinality
}

// Clone creates an independent copy of the bitmap.
func (b *AggBitmap) Clone() *AggBitmap {
	c := New(b.layout)
	c.CopyFrom(b)
	return c
}

// ForEach iterates over all set bits in ascending order, calling fn for each.
// Returns early if fn returns false. Uses the aggregate to skip empty chunks.
func (b *AggBitmap) ForEach(fn func(slot uint32) bool) {
	wpc := b.layout.wordsPerChunk
	for aw, mask := range b.agg {
		for mask != 0 {
			chunk := aw*ChunksPerAggWord + bits.TrailingZeros64(mask)
			start := chunk * wpc
			for w := start; w < start+wpc; w++ {
				word := b.words[w]
				base := uint32(w * WordBits)
				for word != 0 {
					if !fn(base + uint32(bits.TrailingZeros64(word))) {
						return
					}
					word &= word - 1
				}
			}
			mask &= mask - 1
		}
	}
}

// ToSlice returns all set bits as a sorted slice.
func (b *AggBitmap) ToSlice(scratch []uint32) []uint32 {
	scratch = scratch[:0]
	b.ForEach(func(slot uint32) bool {
		scratch = append(scratch, slot)
		return true
	})
	return scratch
}

// CheckAggregates verifies the aggregate invariant and the cached cardinality.
// It is meant for tests and debugging and costs O(words).
func (b *AggBitmap) CheckAggregates() bool {
	count := 0
	for chunk := 0; chunk < b.layout.numChunks; chunk++ {
		empty := b.chunkEmpty(chunk)
		if empty == b.ChunkActive(chunk) {
			return false
		}
	}
	for _, w := range b.words {
		count += bits.OnesCount64(w)
	}
	return count == b.cardinality
}

// AllZero reports whether every word and aggregate word is zero.
func (b *AggBitmap) AllZero() bool {
	for _, w := range b.words {
		if w != 0 {
			return false
		}
	}
	for _, w := range b.agg {
		if w != 0 {
			return false
		}
	}
	return true
}

// MemoryFootprint returns the bytes owned by the bitmap.
func (b *AggBitmap) MemoryFootprint() int64 {
	return b.layout.BitmapBytes()
}
