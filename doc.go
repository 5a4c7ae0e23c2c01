// Package hembs provides a fixed-capacity multi-field packet classifier for
// IPv4 access control lists.
//
// A Classifier holds up to a fixed number of five-field rules (source and
// destination prefix, source and destination port range, protocol) and
// returns, for a packet, the best-priority rule whose fields all cover the
// packet. Rules are inserted and deleted at runtime without rebuilding.
//
// # Quick Start
//
//	c, _ := hembs.New(1024)
//
//	c.Insert(hembs.Rule{
//	    ID:      1,
//	    SrcIP:   netip.MustParsePrefix("10.0.0.0/8"),
//	    DstIP:   hembs.AnyPrefix,
//	    SrcPort: hembs.AnyPort,
//	    DstPort: model.Port(80),
//	    Proto:   model.Proto(model.ProtoTCP),
//	})
//
//	res, _ := c.Search(hembs.Packet{
//	    SrcIP:   netip.MustParseAddr("10.0.0.5"),
//	    DstIP:   netip.MustParseAddr("192.168.1.1"),
//	    DstPort: 80,
//	    Proto:   model.ProtoTCP,
//	})
//	if res.Found() {
//	    fmt.Println(res.RuleID(), res.Counters.AndNum)
//	}
//
// # Structure
//
// Each rule occupies a slot. Every field keeps one bitmap per cell, with one
// bit per slot:
//
//   - prefixes: a binary trie whose marked nodes hold the union of the rules
//     of the node and its less specific ancestors
//   - port ranges: aligned cells of a hierarchy with a configurable base cell
//     width (WithCellWidth); a range is registered in its minimal cover
//   - protocol: one cell per value plus a wildcard cell
//
// Every bitmap carries an aggregate bit per chunk of slots (WithAggregateRatio).
// A search intersects the fields' bitmaps and skips every chunk for which some
// field's aggregate is zero. Port cells may cover more than the rule's range,
// so candidates are verified against the exact rule before one is returned.
//
// # Precedence
//
// By default a rule with more non-wildcard fields beats a less specific one
// (PrecedenceSpecificity). Within the same specificity, lower priority values
// win: Insert assigns the insertion sequence and InsertWithPriority takes an
// explicit value. Equal values are ordered by WithTieBreak, earliest insertion
// first by default. PrecedencePriority drops the specificity rank, which is
// what ClassBench rule sets expect.
//
// # Concurrency
//
// The Classifier performs no locking. Concurrent Search calls are safe while
// no Insert or Delete runs; mutations need exclusive access, for example
// under a sync.RWMutex owned by the caller.
package hembs
