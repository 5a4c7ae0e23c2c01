package fieldcodec

import (
	"unsafe"

	"github.com/hupe1980/hembs/internal/bitmap"
)

const addrBits = 32

type trieNode struct {
	children [2]*trieNode
	// bm is the union of rules whose prefix terminates at this node or at a
	// marked ancestor. Non-nil iff the node is marked or the root.
	bm  *bitmap.AggBitmap
	own int
}

func (n *trieNode) leaf() bool {
	return n.children[0] == nil && n.children[1] == nil
}

// PrefixTrie indexes an IPv4 prefix field as a binary trie keyed by address
// bits. A lookup returns the bitmap of the longest matching marked node.
type PrefixTrie struct {
	layout *bitmap.Layout
	root   *trieNode
	nodes  int
	marked int
}

// NewPrefixTrie creates a trie holding only the /0 root.
func NewPrefixTrie(l *bitmap.Layout) *PrefixTrie {
	return &PrefixTrie{
		layout: l,
		root:   &trieNode{bm: bitmap.New(l)},
		nodes:  1,
		marked: 1,
	}
}

func bitAt(addr uint32, depth int) int {
	return int(addr>>(addrBits-1-depth)) & 1
}

// InsertCost returns the bytes Insert would newly allocate for addr/length.
func (t *PrefixTrie) InsertCost(addr uint32, length int) int64 {
	nodeSize := int64(unsafe.Sizeof(trieNode{}))

	n := t.root
	for d := 0; d < length; d++ {
		n = n.children[bitAt(addr, d)]
		if n == nil {
			return int64(length-d)*nodeSize + t.layout.BitmapBytes()
		}
	}
	if n.bm == nil {
		return t.layout.BitmapBytes()
	}
	return 0
}

// Insert registers slot for the prefix addr/length. The node's bitmap and the
// bitmaps of all marked descendants receive the slot before Insert returns.
func (t *PrefixTrie) Insert(addr uint32, length int, slot uint32) {
	n := t.root
	anc := t.root.bm

	for d := 0; d < length; d++ {
		b := bitAt(addr, d)
		if n.children[b] == nil {
			n.children[b] = &trieNode{}
			t.nodes++
		}
		n = n.children[b]
		if n.bm != nil && d+1 < length {
			anc = n.bm
		}
	}

	if n.bm == nil {
		n.bm = anc.Clone()
		t.marked++
	}
	n.own++

	setSubtree(n, slot)
}

func setSubtree(n *trieNode, slot uint32) {
	if n.bm != nil {
		n.bm.Set(slot)
	}
	for _, c := range n.children {
		if c != nil {
			setSubtree(c, slot)
		}
	}
}

func clearSubtree(n *trieNode, slot uint32) {
	if n.bm != nil {
		n.bm.Clear(slot)
	}
	for _, c := range n.children {
		if c != nil {
			clearSubtree(c, slot)
		}
	}
}

// Remove unregisters slot for the prefix addr/length, unmarking the node when
// its last rule leaves and pruning branches that carry no rules.
// Returns false if no rule terminates at addr/length.
func (t *PrefixTrie) Remove(addr uint32, length int, slot uint32) bool {
	var path [addrBits + 1]*trieNode
	path[0] = t.root

	n := t.root
	for d := 0; d < length; d++ {
		n = n.children[bitAt(addr, d)]
		if n == nil {
			return false
		}
		path[d+1] = n
	}
	if n.own == 0 || !n.bm.Contains(slot) {
		return false
	}

	clearSubtree(n, slot)
	n.own--

	if n.own > 0 || n == t.root {
		return true
	}
	n.bm = nil
	t.marked--

	for d := length; d > 0; d-- {
		c := path[d]
		if c.bm != nil || !c.leaf() {
			break
		}
		path[d-1].children[bitAt(addr, d-1)] = nil
		t.nodes--
	}

	return true
}

// Query returns the bitmap of the longest marked prefix containing addr.
// The result is never nil.
func (t *PrefixTrie) Query(addr uint32) *bitmap.AggBitmap {
	n := t.root
	best := n.bm
	for d := 0; d < addrBits; d++ {
		n = n.children[bitAt(addr, d)]
		if n == nil {
			break
		}
		if n.bm != nil {
			best = n.bm
		}
	}
	return best
}

// Nodes returns the number of trie nodes, including the root.
func (t *PrefixTrie) Nodes() int { return t.nodes }

// ForEachBitmap calls fn for every marked node's bitmap, root first.
func (t *PrefixTrie) ForEachBitmap(fn func(b *bitmap.AggBitmap)) {
	var walk func(n *trieNode)
	walk = func(n *trieNode) {
		if n.bm != nil {
			fn(n.bm)
		}
		for _, c := range n.children {
			if c != nil {
				walk(c)
			}
		}
	}
	walk(t.root)
}

// MemoryFootprint returns the bytes owned by the trie.
func (t *PrefixTrie) MemoryFootprint() int64 {
	return int64(unsafe.Sizeof(*t)) +
		int64(t.nodes)*int64(unsafe.Sizeof(trieNode{})) +
		int64(t.marked)*t.layout.BitmapBytes()
}
