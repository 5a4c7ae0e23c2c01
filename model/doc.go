// Package model defines the core types shared by the classifier and its
// collaborators.
//
// # Rule Types
//
//   - Rule: five-field ACL rule (source/destination IPv4 prefix,
//     source/destination port range, protocol)
//   - PortRange: inclusive [Lo, Hi] port interval
//   - Protocol: exact protocol number or wildcard
//
// # Query Types
//
//   - Packet: the header five-tuple a rule is matched against
//   - Slot: dense, classifier-local row identity of a live rule
//   - Counters: per-search work counters
//
// A Rule is matched against a Packet with Rule.Matches, which is the exact
// (linear) definition of a match. Indexes may over-approximate, but must
// agree with Matches after verification.
package model
