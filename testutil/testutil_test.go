package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(42).Rules(50)
	b := NewRNG(42).Rules(50)
	assert.Equal(t, a, b)

	rng := NewRNG(42)
	first := rng.Rule(0)
	rng.Reset()
	assert.Equal(t, first, rng.Rule(0))
	assert.Equal(t, int64(42), rng.Seed())
}

func TestRNG_PacketForMatches(t *testing.T) {
	rng := NewRNG(1)
	for _, r := range rng.Rules(500) {
		require.True(t, r.SrcPort.Lo <= r.SrcPort.Hi)
		p := rng.PacketFor(r)
		assert.True(t, r.Matches(p), "rule %v packet %v", r, p)
	}
}

func TestOracle(t *testing.T) {
	rng := NewRNG(3)
	rules := rng.Rules(3)
	for i := range rules {
		rules[i].SrcIP = rules[0].SrcIP
		rules[i].DstIP = rules[0].DstIP
		rules[i].SrcPort = rules[0].SrcPort
		rules[i].DstPort = rules[0].DstPort
		rules[i].Proto = rules[0].Proto
	}

	o := NewOracle()
	o.Insert(rules[0], 5)
	o.Insert(rules[1], 5)
	o.Insert(rules[2], 9)

	p := rng.PacketFor(rules[0])
	got, prio, ok := o.Search(p)
	require.True(t, ok)
	assert.Equal(t, rules[0].ID, got.ID)
	assert.Equal(t, int64(5), prio)

	o.Latest = true
	got, _, _ = o.Search(p)
	assert.Equal(t, rules[1].ID, got.ID)

	assert.True(t, o.Delete(rules[1]))
	assert.False(t, o.Delete(rules[1]))
	got, _, _ = o.Search(p)
	assert.Equal(t, rules[0].ID, got.ID)
	assert.Equal(t, 2, o.Len())
}
