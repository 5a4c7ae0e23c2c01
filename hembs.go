package hembs

import (
	"context"
	"fmt"
	"iter"
	"math"
	"slices"
	"sync"
	"time"
	"unsafe"

	"github.com/hupe1980/hembs/internal/bitmap"
	"github.com/hupe1980/hembs/internal/fieldcodec"
	"github.com/hupe1980/hembs/internal/resource"
	"github.com/hupe1980/hembs/internal/slot"
	"github.com/hupe1980/hembs/model"
)

const noSlot = math.MaxUint32

// entry is the side record of a live slot.
type entry struct {
	rule     Rule
	bounds   model.Bounds
	priority int64
	seq      uint64
	spec     int8
	// prev and next link live duplicates of the same rule, oldest first.
	prev, next uint32
	live       bool
}

const indexEntryBytes = int64(unsafe.Sizeof(Rule{}) + unsafe.Sizeof(uint32(0)))

// Classifier is a fixed-capacity multi-field packet classifier.
//
// The zero value is uninitialized; call Init (or use New) before any other
// operation. Searches may run concurrently with each other, but Insert and
// Delete must not run concurrently with any other method. The Classifier
// takes no locks itself.
type Classifier struct {
	opts   options
	layout *bitmap.Layout
	slots  *slot.Allocator
	rc     *resource.Controller

	srcIP   *fieldcodec.PrefixTrie
	dstIP   *fieldcodec.PrefixTrie
	srcPort *fieldcodec.Hierarchy
	dstPort *fieldcodec.Hierarchy
	proto   *fieldcodec.Exact

	entries []entry
	// index maps a rule to the slot of its newest live copy.
	index map[Rule]uint32
	seq   uint64
	live  int

	scratch sync.Pool

	initialized bool
}

// New creates and initializes a classifier for up to capacity live rules.
func New(capacity uint32, optFns ...Option) (*Classifier, error) {
	c := &Classifier{}
	if err := c.Init(capacity, optFns...); err != nil {
		return nil, err
	}
	return c, nil
}

// Init pre-sizes every structure for capacity live rules.
// Capacity never grows after Init.
func (c *Classifier) Init(capacity uint32, optFns ...Option) error {
	if c.initialized {
		return ErrAlreadyInitialized
	}

	opts := applyOptions(optFns)
	if opts.precedence != PrecedenceSpecificity && opts.precedence != PrecedencePriority {
		return &InvalidConfigError{Param: "precedence", Value: opts.precedence}
	}
	if opts.tieBreak != TieBreakEarliest && opts.tieBreak != TieBreakLatest {
		return &InvalidConfigError{Param: "tie_break", Value: opts.tieBreak}
	}
	if opts.memoryLimit < 0 {
		return &InvalidConfigError{Param: "memory_limit", Value: opts.memoryLimit}
	}

	layout, err := bitmap.NewLayout(capacity, opts.aggregateRatio)
	if err != nil {
		return translateError(err)
	}
	srcPort, err := fieldcodec.NewHierarchy(layout, opts.cellWidth)
	if err != nil {
		return translateError(err)
	}
	dstPort, err := fieldcodec.NewHierarchy(layout, opts.cellWidth)
	if err != nil {
		return translateError(err)
	}

	c.opts = opts
	c.layout = layout
	c.slots = slot.NewAllocator(capacity)
	c.srcIP = fieldcodec.NewPrefixTrie(layout)
	c.dstIP = fieldcodec.NewPrefixTrie(layout)
	c.srcPort = srcPort
	c.dstPort = dstPort
	c.proto = fieldcodec.NewExact(layout)
	c.entries = make([]entry, capacity)
	c.index = make(map[Rule]uint32)
	c.scratch.New = func() any { return &searchScratch{} }

	c.rc = resource.NewController(resource.Config{MemoryLimitBytes: opts.memoryLimit})
	if err := c.rc.AcquireMemory(c.footprint()); err != nil {
		*c = Classifier{}
		return &InvalidConfigError{Param: "memory_limit", Value: opts.memoryLimit, cause: translateError(err)}
	}

	c.initialized = true
	c.opts.logger.LogInit(context.Background(), capacity, opts.cellWidth, opts.aggregateRatio, c.MemoryFootprintBytes())

	return nil
}

// Capacity returns the maximum number of live rules, or 0 before Init.
func (c *Classifier) Capacity() uint32 {
	if !c.initialized {
		return 0
	}
	return c.layout.Capacity()
}

// Len returns the number of live rules.
func (c *Classifier) Len() int {
	return c.live
}

func validate(r Rule) error {
	if !r.SrcIP.IsValid() || !r.SrcIP.Addr().Is4() {
		return &MalformedRuleError{Field: "src_ip", Reason: fmt.Sprintf("not an IPv4 prefix: %v", r.SrcIP)}
	}
	if !r.DstIP.IsValid() || !r.DstIP.Addr().Is4() {
		return &MalformedRuleError{Field: "dst_ip", Reason: fmt.Sprintf("not an IPv4 prefix: %v", r.DstIP)}
	}
	if r.SrcPort.Lo > r.SrcPort.Hi {
		return &MalformedRuleError{Field: "src_port", Reason: fmt.Sprintf("inverted range %v", r.SrcPort)}
	}
	if r.DstPort.Lo > r.DstPort.Hi {
		return &MalformedRuleError{Field: "dst_port", Reason: fmt.Sprintf("inverted range %v", r.DstPort)}
	}
	return nil
}

// normalize masks host bits so equal prefixes compare equal.
func normalize(r Rule) Rule {
	r.SrcIP = r.SrcIP.Masked()
	r.DstIP = r.DstIP.Masked()
	return r
}

// Insert adds r with the next insertion-order priority.
func (c *Classifier) Insert(r Rule) (Slot, error) {
	if !c.initialized {
		return 0, ErrNotInitialized
	}
	return c.insert(r, int64(c.seq))
}

// InsertWithPriority adds r with an explicit priority. Lower values win
// within the same precedence class; rules with equal priority are ordered by
// the TieBreak policy.
func (c *Classifier) InsertWithPriority(r Rule, priority int64) (Slot, error) {
	if !c.initialized {
		return 0, ErrNotInitialized
	}
	return c.insert(r, priority)
}

func (c *Classifier) insert(r Rule, priority int64) (s Slot, err error) {
	start := time.Now()
	defer func() {
		c.opts.metricsCollector.RecordInsert(time.Since(start), err)
		c.opts.logger.LogInsert(context.Background(), r.ID, s, err)
	}()

	if err := validate(r); err != nil {
		return 0, err
	}
	r = normalize(r)

	sportCells := c.srcPort.Decompose(r.SrcPort, nil)
	dportCells := c.dstPort.Decompose(r.DstPort, nil)

	id, err := c.slots.Allocate()
	if err != nil {
		return 0, translateError(err)
	}

	src, srcLen := model.AddrUint32(r.SrcIP.Addr()), r.SrcIP.Bits()
	dst, dstLen := model.AddrUint32(r.DstIP.Addr()), r.DstIP.Bits()

	cost := c.srcIP.InsertCost(src, srcLen) +
		c.dstIP.InsertCost(dst, dstLen) +
		c.srcPort.InsertCost(sportCells) +
		c.dstPort.InsertCost(dportCells) +
		c.proto.InsertCost(r.Proto)
	head, dup := c.index[r]
	if !dup {
		cost += indexEntryBytes
	}
	if err := c.rc.AcquireMemory(cost); err != nil {
		_ = c.slots.Release(id)
		return 0, translateError(err)
	}

	c.srcIP.Insert(src, srcLen, id)
	c.dstIP.Insert(dst, dstLen, id)
	c.srcPort.Insert(sportCells, id)
	c.dstPort.Insert(dportCells, id)
	c.proto.Insert(r.Proto, id)

	e := entry{
		rule:     r,
		bounds:   model.CompileBounds(r),
		priority: priority,
		seq:      c.seq,
		spec:     int8(r.Specificity()),
		prev:     noSlot,
		next:     noSlot,
		live:     true,
	}
	if dup {
		e.prev = head
		c.entries[head].next = id
	}
	c.entries[id] = e
	c.index[r] = id

	c.seq++
	c.live++

	return Slot(id), nil
}

// Delete removes a live rule equal to r, ID included. When several equal
// rules are live, the most recently inserted one is removed.
func (c *Classifier) Delete(r Rule) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if validate(r) != nil {
		return ErrNotFound
	}
	id, ok := c.index[normalize(r)]
	if !ok {
		c.opts.metricsCollector.RecordDelete(0, ErrNotFound)
		c.opts.logger.LogDelete(context.Background(), r.ID, 0, ErrNotFound)
		return ErrNotFound
	}
	return c.remove(id)
}

// DeleteSlot removes the rule held by slot s.
func (c *Classifier) DeleteSlot(s Slot) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if uint32(s) >= c.layout.Capacity() || !c.entries[s].live {
		return fmt.Errorf("%w: slot %d", ErrNotFound, s)
	}
	return c.remove(uint32(s))
}

func (c *Classifier) remove(id uint32) (err error) {
	start := time.Now()
	e := c.entries[id]
	defer func() {
		c.opts.metricsCollector.RecordDelete(time.Since(start), err)
		c.opts.logger.LogDelete(context.Background(), e.rule.ID, Slot(id), err)
	}()

	r := e.rule
	before := c.dynamicBytes()

	c.srcIP.Remove(model.AddrUint32(r.SrcIP.Addr()), r.SrcIP.Bits(), id)
	c.dstIP.Remove(model.AddrUint32(r.DstIP.Addr()), r.DstIP.Bits(), id)
	c.srcPort.Remove(c.srcPort.Decompose(r.SrcPort, nil), id)
	c.dstPort.Remove(c.dstPort.Decompose(r.DstPort, nil), id)
	c.proto.Remove(r.Proto, id)

	if e.prev != noSlot {
		c.entries[e.prev].next = e.next
	}
	switch {
	case e.next != noSlot:
		c.entries[e.next].prev = e.prev
	case e.prev != noSlot:
		c.index[r] = e.prev
	default:
		delete(c.index, r)
	}

	c.entries[id] = entry{}
	c.live--

	if err := c.slots.Release(id); err != nil {
		return translateError(err)
	}

	c.rc.ReleaseMemory(before - c.dynamicBytes())
	return nil
}

// Lookup returns the rule held by slot s.
func (c *Classifier) Lookup(s Slot) (Rule, bool) {
	if !c.initialized || uint32(s) >= c.layout.Capacity() || !c.entries[s].live {
		return Rule{}, false
	}
	return c.entries[s].rule, true
}

// Priority returns the priority of the rule held by slot s.
func (c *Classifier) Priority(s Slot) (int64, bool) {
	if !c.initialized || uint32(s) >= c.layout.Capacity() || !c.entries[s].live {
		return 0, false
	}
	return c.entries[s].priority, true
}

// compare orders slots by precedence: specificity (if enabled), priority,
// then the tie-break policy.
func (c *Classifier) compare(a, b uint32) int {
	ea, eb := &c.entries[a], &c.entries[b]
	if c.opts.precedence == PrecedenceSpecificity && ea.spec != eb.spec {
		if ea.spec > eb.spec {
			return -1
		}
		return 1
	}
	if ea.priority != eb.priority {
		if ea.priority < eb.priority {
			return -1
		}
		return 1
	}
	switch {
	case ea.seq == eb.seq:
		return 0
	case (ea.seq < eb.seq) == (c.opts.tieBreak == TieBreakEarliest):
		return -1
	default:
		return 1
	}
}

// Rules returns an iterator over the live rules in match precedence order.
func (c *Classifier) Rules() iter.Seq2[Slot, Rule] {
	return func(yield func(Slot, Rule) bool) {
		if !c.initialized {
			return
		}
		ids := make([]uint32, 0, c.live)
		for i := range c.entries {
			if c.entries[i].live {
				ids = append(ids, uint32(i))
			}
		}
		slices.SortFunc(ids, c.compare)
		for _, id := range ids {
			if !yield(Slot(id), c.entries[id].rule) {
				return
			}
		}
	}
}

// dynamicBytes is the part of the footprint that grows with inserted rules
// and is charged against the memory limit.
func (c *Classifier) dynamicBytes() int64 {
	return c.srcIP.MemoryFootprint() +
		c.dstIP.MemoryFootprint() +
		c.srcPort.MemoryFootprint() +
		c.dstPort.MemoryFootprint() +
		c.proto.MemoryFootprint() +
		int64(len(c.index))*indexEntryBytes
}

// MemoryFootprintBytes returns the bytes owned by every structure of the
// classifier, or 0 before Init.
func (c *Classifier) MemoryFootprintBytes() int64 {
	if !c.initialized {
		return 0
	}
	return c.footprint()
}

func (c *Classifier) footprint() int64 {
	return int64(unsafe.Sizeof(Classifier{})) +
		int64(unsafe.Sizeof(bitmap.Layout{})) +
		c.slots.MemoryFootprint() +
		int64(len(c.entries))*int64(unsafe.Sizeof(entry{})) +
		c.dynamicBytes()
}

// MemoryUsage returns the bytes charged against the memory limit.
func (c *Classifier) MemoryUsage() int64 {
	return c.rc.MemoryUsage()
}
