package model

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

// Slot is a dense, classifier-local identifier for a live rule.
// It is transient: a slot is recycled once its rule is deleted.
type Slot uint32

// PortRange is an inclusive port interval [Lo, Hi].
type PortRange struct {
	Lo uint16
	Hi uint16
}

// AnyPort covers the whole port domain.
var AnyPort = PortRange{Lo: 0, Hi: 65535}

// Port returns the single-port range [p, p].
func Port(p uint16) PortRange {
	return PortRange{Lo: p, Hi: p}
}

// Contains reports whether p lies in the range.
func (r PortRange) Contains(p uint16) bool {
	return r.Lo <= p && p <= r.Hi
}

// IsAny reports whether the range covers the whole port domain.
func (r PortRange) IsAny() bool {
	return r.Lo == 0 && r.Hi == 65535
}

// String returns a string representation of the PortRange.
func (r PortRange) String() string {
	return fmt.Sprintf("%d : %d", r.Lo, r.Hi)
}

// Protocol is an exact protocol number or a wildcard.
type Protocol struct {
	Value uint8
	Any   bool
}

// Common protocol numbers.
const (
	ProtoICMP uint8 = 1
	ProtoTCP  uint8 = 6
	ProtoUDP  uint8 = 17
)

// AnyProto matches every protocol.
var AnyProto = Protocol{Any: true}

// Proto returns the exact protocol v.
func Proto(v uint8) Protocol {
	return Protocol{Value: v}
}

// Matches reports whether the protocol covers v.
func (p Protocol) Matches(v uint8) bool {
	return p.Any || p.Value == v
}

// String returns a string representation of the Protocol.
func (p Protocol) String() string {
	if p.Any {
		return "0x00/0x00"
	}
	return fmt.Sprintf("0x%02x/0xff", p.Value)
}

// Rule is a five-field ACL rule.
//
// ID is opaque to the classifier and reported back on a match. Priority is not
// part of the rule: it is the insertion order unless the caller supplies one.
type Rule struct {
	ID      uint32
	SrcIP   netip.Prefix
	DstIP   netip.Prefix
	SrcPort PortRange
	DstPort PortRange
	Proto   Protocol
}

// AnyPrefix is the IPv4 default route 0.0.0.0/0.
var AnyPrefix = netip.PrefixFrom(netip.IPv4Unspecified(), 0)

// Matches reports whether every field of r covers the corresponding value of p.
func (r Rule) Matches(p Packet) bool {
	return r.SrcIP.Contains(p.SrcIP) &&
		r.DstIP.Contains(p.DstIP) &&
		r.SrcPort.Contains(p.SrcPort) &&
		r.DstPort.Contains(p.DstPort) &&
		r.Proto.Matches(p.Proto)
}

// Specificity returns the number of fields that are not full wildcards.
func (r Rule) Specificity() int {
	n := 0
	if r.SrcIP.Bits() > 0 {
		n++
	}
	if r.DstIP.Bits() > 0 {
		n++
	}
	if !r.SrcPort.IsAny() {
		n++
	}
	if !r.DstPort.IsAny() {
		n++
	}
	if !r.Proto.Any {
		n++
	}
	return n
}

// String returns the rule in ClassBench notation.
func (r Rule) String() string {
	return fmt.Sprintf("@%s\t%s\t%s\t%s\t%s", r.SrcIP, r.DstIP, r.SrcPort, r.DstPort, r.Proto)
}

// Packet is the header five-tuple a rule set is queried with.
type Packet struct {
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
	Proto   uint8
}

// String returns a string representation of the Packet.
func (p Packet) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d proto %d", p.SrcIP, p.SrcPort, p.DstIP, p.DstPort, p.Proto)
}

// Bounds is the compiled, integer form of a rule used for verification.
type Bounds struct {
	SrcLo, SrcHi uint32
	DstLo, DstHi uint32
	SrcPort      PortRange
	DstPort      PortRange
	Proto        Protocol
}

// CompileBounds converts the rule's prefixes into inclusive address intervals.
// Both prefixes must be valid IPv4 prefixes.
func CompileBounds(r Rule) Bounds {
	srcLo, srcHi := PrefixInterval(r.SrcIP)
	dstLo, dstHi := PrefixInterval(r.DstIP)
	return Bounds{
		SrcLo:   srcLo,
		SrcHi:   srcHi,
		DstLo:   dstLo,
		DstHi:   dstHi,
		SrcPort: r.SrcPort,
		DstPort: r.DstPort,
		Proto:   r.Proto,
	}
}

// Matches compares the raw packet fields against the compiled bounds.
func (b *Bounds) Matches(src, dst uint32, sport, dport uint16, proto uint8) bool {
	return b.SrcLo <= src && src <= b.SrcHi &&
		b.DstLo <= dst && dst <= b.DstHi &&
		b.SrcPort.Contains(sport) &&
		b.DstPort.Contains(dport) &&
		b.Proto.Matches(proto)
}

// PrefixInterval returns the first and last address of an IPv4 prefix.
func PrefixInterval(p netip.Prefix) (lo, hi uint32) {
	r := netipx.RangeOfPrefix(p.Masked())
	return AddrUint32(r.From()), AddrUint32(r.To())
}

// AddrUint32 returns the big-endian integer form of an IPv4 address.
func AddrUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

// AddrFromUint32 is the inverse of AddrUint32.
func AddrFromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

// Counters are the per-search work counters of the classifier.
// They are exact and deterministic for an identical structure and query.
type Counters struct {
	// CheckNum is the number of chunks whose aggregate was examined.
	CheckNum uint64
	// AndNum is the number of word-level AND operations executed.
	AndNum uint64
	// CmpNum is the number of rule-level verification comparisons.
	CmpNum uint64
	// AggBingo is the number of chunks pruned by the aggregate.
	AggBingo uint64
	// AggFail is the number of chunks the aggregate let through whose full AND was empty.
	AggFail uint64
}

// Add accumulates o into c.
func (c *Counters) Add(o Counters) {
	c.CheckNum += o.CheckNum
	c.AndNum += o.AndNum
	c.CmpNum += o.CmpNum
	c.AggBingo += o.AggBingo
	c.AggFail += o.AggFail
}
