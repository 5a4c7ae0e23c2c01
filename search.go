package hembs

import (
	"context"
	"slices"
	"time"

	"github.com/hupe1980/hembs/internal/bitmap"
	"github.com/hupe1980/hembs/model"
)

// Result is the outcome of a Search.
type Result struct {
	// Rule is the matched rule. Valid only if Found returns true.
	Rule Rule
	// Slot is the slot of the matched rule at search time.
	Slot Slot
	// Priority is the priority of the matched rule.
	Priority int64
	// Counters describe the work done by the search, match or not.
	Counters Counters

	found bool
}

// Found reports whether a rule matched. A search without a match is a valid
// result, not an error.
func (r Result) Found() bool { return r.found }

// RuleID returns the ID of the matched rule, or -1 if nothing matched.
func (r Result) RuleID() int64 {
	if !r.found {
		return -1
	}
	return int64(r.Rule.ID)
}

const numFields = 5

type searchScratch struct {
	groups     [numFields]bitmap.Group
	candidates []uint32
}

// Search returns the best-priority rule matching p.
//
// Per field, the bitmaps covering the packet value are gathered and the
// aggregate-pruned intersection yields candidate slots. Candidates are
// verified against the exact rule bounds in precedence order; the first that
// verifies is returned.
func (c *Classifier) Search(p Packet) (res Result, err error) {
	if !c.initialized {
		return Result{}, ErrNotInitialized
	}

	start := time.Now()
	defer func() {
		c.opts.metricsCollector.RecordSearch(time.Since(start), res.Counters, res.found, err)
		if err != nil {
			c.opts.logger.LogSearch(context.Background(), p, err)
		}
	}()

	srcAddr, dstAddr := p.SrcIP.Unmap(), p.DstIP.Unmap()
	if !srcAddr.Is4() || !dstAddr.Is4() {
		return Result{}, ErrInvalidPacket
	}
	src, dst := model.AddrUint32(srcAddr), model.AddrUint32(dstAddr)

	sc := c.scratch.Get().(*searchScratch)
	defer c.scratch.Put(sc)

	g := &sc.groups
	g[0] = append(g[0][:0], c.srcIP.Query(src))
	g[1] = append(g[1][:0], c.dstIP.Query(dst))
	g[2] = c.srcPort.Chain(p.SrcPort, g[2][:0])
	g[3] = c.dstPort.Chain(p.DstPort, g[3][:0])
	g[4] = c.proto.Gather(p.Proto, g[4][:0])

	cands := sc.candidates[:0]
	bitmap.AndReduce(c.layout, g[:], &res.Counters, func(s uint32) bool {
		cands = append(cands, s)
		return true
	})
	sc.candidates = cands

	best, ok := c.resolve(cands, src, dst, p, &res.Counters)
	if !ok {
		return res, nil
	}

	e := &c.entries[best]
	res.Rule = e.rule
	res.Slot = Slot(best)
	res.Priority = e.priority
	res.found = true

	return res, nil
}

// resolve verifies candidates in precedence order and returns the first that
// matches. Each verification counts as one comparison.
func (c *Classifier) resolve(cands []uint32, src, dst uint32, p Packet, counters *Counters) (uint32, bool) {
	if len(cands) > 1 {
		slices.SortFunc(cands, c.compare)
	}
	for _, s := range cands {
		counters.CmpNum++
		if c.entries[s].bounds.Matches(src, dst, p.SrcPort, p.DstPort, p.Proto) {
			return s, true
		}
	}
	return 0, false
}
