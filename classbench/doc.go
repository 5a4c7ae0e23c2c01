// Package classbench reads and writes ClassBench rule sets and packet traces.
//
// A rule line holds five fields, optionally followed by flags that are
// ignored:
//
//	@192.168.0.0/16	10.0.0.0/8	0 : 65535	80 : 80	0x06/0xFF
//
// The protocol mask is 0xFF for an exact protocol and 0x00 for a wildcard.
// Line order defines priority; the 0-based ordinal becomes Rule.ID.
//
// A trace line holds the packet header in decimal, optionally followed by
// further columns whose last one is the expected rule id:
//
//	3232235777	167772161	1024	80	6	0	12
package classbench
