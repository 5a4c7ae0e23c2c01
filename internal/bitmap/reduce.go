package bitmap

import (
	"math/bits"

	"github.com/hupe1980/hembs/model"
)

// Group is a set of bitmaps whose union is one field's match set.
// Nil members are ignored; an empty group matches nothing.
type Group []*AggBitmap

// aggWord returns the OR of the members' aggregate word aw.
func (g Group) aggWord(aw int) uint64 {
	var m uint64
	for _, b := range g {
		if b != nil {
			m |= b.agg[aw]
		}
	}
	return m
}

// word returns the OR of the members' word w.
func (g Group) word(w int) uint64 {
	var v uint64
	for _, b := range g {
		if b != nil {
			v |= b.words[w]
		}
	}
	return v
}

// AndReduce intersects the groups and calls fn for every slot present in all
// of them, in ascending order. Iteration stops early when fn returns false.
//
// A chunk is examined word by word only if every group's aggregate bit for it
// is set. c receives CheckNum, AndNum, AggBingo and AggFail; CmpNum is left to
// the caller.
func AndReduce(l *Layout, groups []Group, c *model.Counters, fn func(slot uint32) bool) {
	if len(groups) == 0 {
		return
	}

	wpc := l.wordsPerChunk
	for aw := 0; aw < l.numAggWords; aw++ {
		live := l.liveMask(aw)
		m := live
		for _, g := range groups {
			m &= g.aggWord(aw)
			if m == 0 {
				break
			}
		}

		c.CheckNum += uint64(bits.OnesCount64(live))
		c.AggBingo += uint64(bits.OnesCount64(live &^ m))

		for m != 0 {
			chunk := aw*ChunksPerAggWord + bits.TrailingZeros64(m)
			start := chunk * wpc
			hit := false

			for w := start; w < start+wpc; w++ {
				word := groups[0].word(w)
				for gi := 1; gi < len(groups) && word != 0; gi++ {
					word &= groups[gi].word(w)
					c.AndNum++
				}
				if word == 0 {
					continue
				}
				hit = true

				base := uint32(w * WordBits)
				for word != 0 {
					if !fn(base + uint32(bits.TrailingZeros64(word))) {
						return
					}
					word &= word - 1
				}
			}

			if !hit {
				c.AggFail++
			}
			m &= m - 1
		}
	}
}

// AndReduceUnpruned is the brute-force reference of AndReduce: it ANDs every
// word of every group without consulting the aggregates.
func AndReduceUnpruned(l *Layout, groups []Group, fn func(slot uint32) bool) {
	if len(groups) == 0 {
		return
	}

	for w := 0; w < l.numWords; w++ {
		word := groups[0].word(w)
		for _, g := range groups[1:] {
			word &= g.word(w)
		}

		base := uint32(w * WordBits)
		for word != 0 {
			if !fn(base + uint32(bits.TrailingZeros64(word))) {
				return
			}
			word &= word - 1
		}
	}
}
