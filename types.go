package hembs

import "github.com/hupe1980/hembs/model"

type (
	// Rule is a five-field ACL rule.
	Rule = model.Rule
	// PortRange is an inclusive port interval.
	PortRange = model.PortRange
	// Protocol is an exact protocol number or a wildcard.
	Protocol = model.Protocol
	// Packet is the header five-tuple a rule set is queried with.
	Packet = model.Packet
	// Slot is the classifier-local row identity of a live rule.
	Slot = model.Slot
	// Counters are the per-search work counters.
	Counters = model.Counters
)

// Convenience re-exports.
var (
	AnyPort   = model.AnyPort
	AnyProto  = model.AnyProto
	AnyPrefix = model.AnyPrefix
)
