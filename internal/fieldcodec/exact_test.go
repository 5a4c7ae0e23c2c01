package fieldcodec

import (
	"testing"

	"github.com/hupe1980/hembs/internal/bitmap"
	"github.com/hupe1980/hembs/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExact_Gather(t *testing.T) {
	l := testLayout(t)
	e := NewExact(l)

	assert.Equal(t, WildcardCell, e.Cell(model.AnyProto))
	assert.Equal(t, 6, e.Cell(model.Proto(model.ProtoTCP)))

	e.Insert(model.Proto(model.ProtoTCP), 1)
	e.Insert(model.AnyProto, 2)

	tests := []struct {
		proto uint8
		want  int
	}{
		{model.ProtoTCP, 2},
		{model.ProtoUDP, 1},
	}
	for _, tt := range tests {
		var g bitmap.Group
		g = e.Gather(tt.proto, g)
		assert.Len(t, g, tt.want, "proto %d", tt.proto)
	}

	var g bitmap.Group
	g = e.Gather(model.ProtoTCP, g)
	require.Len(t, g, 2)
	assert.True(t, g[0].Contains(1))
	assert.True(t, g[1].Contains(2))
}

func TestExact_RemoveRestoresFootprint(t *testing.T) {
	l := testLayout(t)
	e := NewExact(l)
	baseline := e.MemoryFootprint()

	p := model.Proto(model.ProtoUDP)
	assert.Equal(t, l.BitmapBytes(), e.InsertCost(p))
	e.Insert(p, 3)
	assert.Zero(t, e.InsertCost(p))
	e.Insert(p, 4)

	assert.True(t, e.Remove(p, 3))
	assert.False(t, e.Remove(p, 3))
	assert.False(t, e.Remove(model.AnyProto, 4))
	assert.Greater(t, e.MemoryFootprint(), baseline)

	assert.True(t, e.Remove(p, 4))
	assert.Equal(t, baseline, e.MemoryFootprint())
	e.ForEachBitmap(func(*bitmap.AggBitmap) {
		t.Fatal("no cell should remain materialized")
	})
}
