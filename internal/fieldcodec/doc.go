// Package fieldcodec maps rule field specifications and packet field values
// to cells, and keeps one bitmap per materialized cell.
//
// # Codecs
//
//	Exact:      protocol value → one cell per value, plus a wildcard cell
//	PrefixTrie: IPv4 prefix   → the trie node that terminates the prefix
//	Hierarchy:  port range    → aligned cells across hierarchy levels
//
// A query gathers, per field, a bitmap.Group whose union is the set of rules
// covering the value:
//
//	Exact:      {cell[v], cell[wildcard]}
//	PrefixTrie: {longest matching marked node}   (node bitmaps hold ancestor unions)
//	Hierarchy:  {chain cell at level 0, ..., chain cell at top level}
//
// # Memory
//
// Bitmaps have the full capacity length of the index Layout from the moment
// they exist. Cells are materialized on first registration and released once
// their bitmap is empty again, so an index whose rules were all removed owns
// exactly what it owned after construction.
//
// # Thread Safety
//
// Codecs are not safe for concurrent mutation. Gather methods only read and
// may run concurrently with each other.
package fieldcodec
