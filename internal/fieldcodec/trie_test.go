package fieldcodec

import (
	"net/netip"
	"testing"

	"github.com/hupe1980/hembs/internal/bitmap"
	"github.com/hupe1980/hembs/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prefix(t *testing.T, s string) (uint32, int) {
	t.Helper()
	p := netip.MustParsePrefix(s)
	return model.AddrUint32(p.Masked().Addr()), p.Bits()
}

func addr(s string) uint32 {
	return model.AddrUint32(netip.MustParseAddr(s))
}

func TestPrefixTrie_LongestMatchUnion(t *testing.T) {
	tr := NewPrefixTrie(testLayout(t))

	a, n := prefix(t, "0.0.0.0/0")
	tr.Insert(a, n, 0)
	a, n = prefix(t, "10.0.0.0/24")
	tr.Insert(a, n, 2)
	// Inserted after its descendant: the /24 must still inherit it.
	a, n = prefix(t, "10.0.0.0/8")
	tr.Insert(a, n, 1)

	tests := []struct {
		addr string
		want []uint32
	}{
		{"10.0.0.5", []uint32{0, 1, 2}},
		{"10.1.0.5", []uint32{0, 1}},
		{"192.168.0.1", []uint32{0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.Query(addr(tt.addr)).ToSlice(nil), tt.addr)
	}
}

func TestPrefixTrie_RemovePrunes(t *testing.T) {
	l := testLayout(t)
	tr := NewPrefixTrie(l)
	baseNodes := tr.Nodes()
	baseline := tr.MemoryFootprint()

	a8, n8 := prefix(t, "10.0.0.0/8")
	a24, n24 := prefix(t, "10.0.0.0/24")
	a32, n32 := prefix(t, "10.0.0.7/32")

	assert.Equal(t, int64(8)*int64(32)+l.BitmapBytes(), tr.InsertCost(a8, n8))
	tr.Insert(a8, n8, 1)
	tr.Insert(a24, n24, 2)
	tr.Insert(a24, n24, 3)
	tr.Insert(a32, n32, 4)
	assert.Zero(t, tr.InsertCost(a24, n24))

	assert.False(t, tr.Remove(a24, n24, 9), "slot not registered")
	require.True(t, tr.Remove(a8, n8, 1))
	assert.Equal(t, []uint32{2, 3, 4}, tr.Query(addr("10.0.0.7")).ToSlice(nil))

	require.True(t, tr.Remove(a24, n24, 2))
	assert.Equal(t, []uint32{3}, tr.Query(addr("10.0.0.8")).ToSlice(nil))

	require.True(t, tr.Remove(a24, n24, 3))
	require.True(t, tr.Remove(a32, n32, 4))
	assert.False(t, tr.Remove(a32, n32, 4))

	assert.Equal(t, baseNodes, tr.Nodes())
	assert.Equal(t, baseline, tr.MemoryFootprint())
	tr.ForEachBitmap(func(b *bitmap.AggBitmap) {
		assert.True(t, b.AllZero())
	})
}

func TestPrefixTrie_QueryNeverNil(t *testing.T) {
	tr := NewPrefixTrie(testLayout(t))
	b := tr.Query(addr("1.2.3.4"))
	require.NotNil(t, b)
	assert.True(t, b.IsEmpty())
}
