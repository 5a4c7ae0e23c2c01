package testutil

import (
	"math/rand"
	"net/netip"
	"slices"
	"sync"

	"github.com/hupe1980/hembs/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint32 returns a pseudo-random uint32.
func (r *RNG) Uint32() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint32()
}

var prefixLengths = []int{0, 8, 16, 24, 32}

func (r *RNG) prefix() netip.Prefix {
	var bits int
	if r.rand.Intn(3) == 0 {
		bits = r.rand.Intn(33)
	} else {
		bits = prefixLengths[r.rand.Intn(len(prefixLengths))]
	}
	// Few distinct networks so that prefixes nest and collide.
	addr := model.AddrFromUint32(uint32(r.rand.Intn(4))<<30 | uint32(r.rand.Intn(16))<<24 | r.rand.Uint32()&0xffffff)
	return netip.PrefixFrom(addr, bits).Masked()
}

var wellKnownPorts = []uint16{20, 21, 22, 25, 53, 80, 123, 443, 1521, 3306, 8080}

func (r *RNG) portRange() model.PortRange {
	switch r.rand.Intn(5) {
	case 0, 1:
		return model.AnyPort
	case 2:
		return model.Port(wellKnownPorts[r.rand.Intn(len(wellKnownPorts))])
	case 3:
		return model.PortRange{Lo: 1024, Hi: 65535}
	default:
		a, b := uint16(r.rand.Intn(65536)), uint16(r.rand.Intn(65536))
		if a > b {
			a, b = b, a
		}
		return model.PortRange{Lo: a, Hi: b}
	}
}

func (r *RNG) protocol() model.Protocol {
	switch r.rand.Intn(4) {
	case 0:
		return model.AnyProto
	case 1:
		return model.Proto(model.ProtoUDP)
	default:
		return model.Proto(model.ProtoTCP)
	}
}

// Rule returns a random rule with the given ID.
func (r *RNG) Rule(id uint32) model.Rule {
	r.mu.Lock()
	defer r.mu.Unlock()

	return model.Rule{
		ID:      id,
		SrcIP:   r.prefix(),
		DstIP:   r.prefix(),
		SrcPort: r.portRange(),
		DstPort: r.portRange(),
		Proto:   r.protocol(),
	}
}

// Rules returns n random rules with IDs 0..n-1.
func (r *RNG) Rules(n int) []model.Rule {
	rules := make([]model.Rule, n)
	for i := range rules {
		rules[i] = r.Rule(uint32(i))
	}
	return rules
}

// Packet returns a packet with uniformly random fields.
func (r *RNG) Packet() model.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()

	protos := []uint8{model.ProtoTCP, model.ProtoUDP, model.ProtoICMP}
	return model.Packet{
		SrcIP:   model.AddrFromUint32(r.rand.Uint32()),
		DstIP:   model.AddrFromUint32(r.rand.Uint32()),
		SrcPort: uint16(r.rand.Intn(65536)),
		DstPort: uint16(r.rand.Intn(65536)),
		Proto:   protos[r.rand.Intn(len(protos))],
	}
}

// PacketFor returns a random packet that matches rule.
func (r *RNG) PacketFor(rule model.Rule) model.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()

	inPrefix := func(p netip.Prefix) netip.Addr {
		lo, hi := model.PrefixInterval(p)
		return model.AddrFromUint32(lo + uint32(r.rand.Int63n(int64(hi-lo)+1)))
	}
	inRange := func(pr model.PortRange) uint16 {
		return pr.Lo + uint16(r.rand.Intn(int(pr.Hi-pr.Lo)+1))
	}

	proto := rule.Proto.Value
	if rule.Proto.Any {
		proto = uint8(r.rand.Intn(256))
	}

	return model.Packet{
		SrcIP:   inPrefix(rule.SrcIP),
		DstIP:   inPrefix(rule.DstIP),
		SrcPort: inRange(rule.SrcPort),
		DstPort: inRange(rule.DstPort),
		Proto:   proto,
	}
}

// Shuffle pseudo-randomizes the order of rules.
func (r *RNG) Shuffle(rules []model.Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(len(rules), func(i, j int) { rules[i], rules[j] = rules[j], rules[i] })
}

type oracleEntry struct {
	rule     model.Rule
	priority int64
	seq      uint64
}

// Oracle is a linear-scan classifier. With Specificity set, rules with more
// non-wildcard fields win first. Then lower priority wins; equal priorities
// are broken by insertion order, earliest first unless Latest is set.
type Oracle struct {
	Specificity bool
	Latest      bool

	entries []oracleEntry
	seq     uint64
}

// NewOracle creates an empty oracle.
func NewOracle() *Oracle {
	return &Oracle{}
}

// Insert adds rule with the given priority.
func (o *Oracle) Insert(rule model.Rule, priority int64) {
	o.entries = append(o.entries, oracleEntry{rule: rule, priority: priority, seq: o.seq})
	o.seq++
}

// Delete removes the most recently inserted copy of rule.
func (o *Oracle) Delete(rule model.Rule) bool {
	for i := len(o.entries) - 1; i >= 0; i-- {
		if o.entries[i].rule == rule {
			o.entries = slices.Delete(o.entries, i, i+1)
			return true
		}
	}
	return false
}

// Len returns the number of rules.
func (o *Oracle) Len() int {
	return len(o.entries)
}

// Search returns the best matching rule and its priority.
func (o *Oracle) Search(p model.Packet) (model.Rule, int64, bool) {
	best := -1
	for i, e := range o.entries {
		if !e.rule.Matches(p) {
			continue
		}
		if best < 0 || o.better(e, o.entries[best]) {
			best = i
		}
	}
	if best < 0 {
		return model.Rule{}, 0, false
	}
	return o.entries[best].rule, o.entries[best].priority, true
}

func (o *Oracle) better(a, b oracleEntry) bool {
	if o.Specificity {
		if sa, sb := a.rule.Specificity(), b.rule.Specificity(); sa != sb {
			return sa > sb
		}
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if o.Latest {
		return a.seq > b.seq
	}
	return a.seq < b.seq
}
