// Package bitmap provides the fixed-capacity, aggregate-summarized bitmaps
// that back every (field, cell) of the classifier.
//
// # Design
//
// An AggBitmap is a dense bit-vector over rule slots plus an aggregate
// summary with one bit per chunk of slots. The chunk size (the aggregate
// ratio) is a multiple of 64, so a chunk is a whole number of words.
//
// Memory layout:
//
//	words:  ┌─────────────┬─────────────┬─────────────┬─────
//	        │  chunk 0    │  chunk 1    │  chunk 2    │ ...
//	        │  k × uint64 │  k × uint64 │  k × uint64 │
//	        └─────────────┴─────────────┴─────────────┴─────
//	agg:    bit c = 1  ⇔  chunk c has at least one bit set
//
// Invariant: every aggregate bit equals the OR of its chunk at all times.
// Set and Clear maintain it eagerly, so readers never observe a stale summary.
//
// # Reduction
//
// AndReduce intersects one group of bitmaps per field, where a group's union
// is that field's match set. A chunk is skipped as soon as one field's
// aggregate bit for it is zero; 64 chunks are decided at once by AND-ing
// aggregate words. Work counters are exact and deterministic.
//
// All bitmaps of one index share a Layout, which fixes the slot capacity for
// their whole lifetime: nothing in this package grows.
package bitmap
