// Package testutil provides testing utilities for hembs.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random rules and packets, and a
// linear-scan reference classifier used as ground truth.
//
// # Random Generation
//
//	rng := testutil.NewRNG(seed)
//	rules := rng.Rules(1000)          // ClassBench-shaped rules
//	p := rng.PacketFor(rules[3])      // a packet inside a rule
//	q := rng.Packet()                 // a uniformly random packet
//
// # Ground Truth
//
//	oracle := testutil.NewOracle()
//	oracle.Insert(rule, priority)
//	want, ok := oracle.Search(p)
package testutil
