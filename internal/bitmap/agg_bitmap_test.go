package bitmap

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/hupe1980/hembs/model"
)

func mustLayout(t testing.TB, capacity uint32, ratio int) *Layout {
	t.Helper()
	l, err := NewLayout(capacity, ratio)
	if err != nil {
		t.Fatalf("NewLayout(%d, %d): %v", capacity, ratio, err)
	}
	return l
}

func TestNewLayout(t *testing.T) {
	tests := []struct {
		name      string
		capacity  uint32
		ratio     int
		wantErr   error
		numWords  int
		numChunks int
	}{
		{"single word", 10, 64, nil, 1, 1},
		{"exact words", 128, 64, nil, 2, 2},
		{"chunk rounding", 130, 128, nil, 4, 2},
		{"many chunks", 64 * 65, 64, nil, 65, 65},
		{"zero capacity", 0, 64, ErrZeroCapacity, 0, 0},
		{"ratio not word aligned", 100, 32, ErrInvalidRatio, 0, 0},
		{"negative ratio", 100, -64, ErrInvalidRatio, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLayout(tt.capacity, tt.ratio)
			if err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if l.NumWords() != tt.numWords {
				t.Errorf("NumWords = %d, want %d", l.NumWords(), tt.numWords)
			}
			if l.NumChunks() != tt.numChunks {
				t.Errorf("NumChunks = %d, want %d", l.NumChunks(), tt.numChunks)
			}
		})
	}
}

func TestAggBitmap_Basic(t *testing.T) {
	b := New(mustLayout(t, 1000, 128))

	if !b.Set(100) {
		t.Error("Set should return true for new bit")
	}
	if b.Set(100) {
		t.Error("Set should return false for existing bit")
	}
	if b.Set(1000) {
		t.Error("Set should ignore slots beyond capacity")
	}

	if !b.Contains(100) {
		t.Error("Contains should return true for set bit")
	}
	if b.Contains(200) {
		t.Error("Contains should return false for unset bit")
	}
	if !b.ChunkActive(0) {
		t.Error("chunk 0 should be active")
	}
	if b.ChunkActive(1) {
		t.Error("chunk 1 should be inactive")
	}
	if c := b.Cardinality(); c != 1 {
		t.Errorf("Cardinality = %d, want 1", c)
	}

	if !b.Clear(100) {
		t.Error("Clear should return true for set bit")
	}
	if b.Clear(100) {
		t.Error("Clear should return false for unset bit")
	}
	if !b.IsEmpty() || !b.AllZero() {
		t.Error("bitmap should be all zero after Clear")
	}
}

func TestAggBitmap_AggregateTracksChunk(t *testing.T) {
	b := New(mustLayout(t, 512, 128))

	// Two bits in the same chunk: the aggregate must survive the first Clear.
	b.Set(130)
	b.Set(250)
	b.Clear(130)
	if !b.ChunkActive(1) {
		t.Fatal("chunk 1 cleared while slot 250 is still set")
	}
	b.Clear(250)
	if b.ChunkActive(1) {
		t.Fatal("chunk 1 still active after its last bit was cleared")
	}
	if !b.CheckAggregates() {
		t.Fatal("aggregate invariant violated")
	}
}

func TestAggBitmap_ForEach(t *testing.T) {
	b := New(mustLayout(t, 5000, 64))
	want := []uint32{0, 5, 63, 64, 1000, 4095, 4999}
	for _, s := range want {
		b.Set(s)
	}

	got := b.ToSlice(nil)
	if !slices.Equal(got, want) {
		t.Errorf("ToSlice = %v, want %v", got, want)
	}

	var first []uint32
	b.ForEach(func(s uint32) bool {
		first = append(first, s)
		return len(first) < 3
	})
	if !slices.Equal(first, want[:3]) {
		t.Errorf("early stop collected %v, want %v", first, want[:3])
	}
}

func TestAggBitmap_CloneIsIndependent(t *testing.T) {
	b := New(mustLayout(t, 300, 64))
	b.Set(7)
	c := b.Clone()
	c.Set(200)

	if b.Contains(200) {
		t.Error("Clone shares storage with the original")
	}
	if !c.Contains(7) || c.Cardinality() != 2 {
		t.Error("Clone lost bits of the original")
	}
}

func collect(l *Layout, groups []Group) ([]uint32, model.Counters) {
	var c model.Counters
	var out []uint32
	AndReduce(l, groups, &c, func(s uint32) bool {
		out = append(out, s)
		return true
	})
	return out, c
}

func collectUnpruned(l *Layout, groups []Group) []uint32 {
	var out []uint32
	AndReduceUnpruned(l, groups, func(s uint32) bool {
		out = append(out, s)
		return true
	})
	return out
}

func TestAndReduce_Counters(t *testing.T) {
	// 4 chunks of 64 slots.
	l := mustLayout(t, 256, 64)
	a, b := New(l), New(l)

	a.Set(3)   // chunk 0: a only          -> pruned
	a.Set(70)  // chunk 1: a and b, disjoint -> aggregate fail
	b.Set(71)  //
	a.Set(130) // chunk 2: common bit      -> hit
	b.Set(130) //
	b.Set(200) // chunk 3: b only          -> pruned

	got, c := collect(l, []Group{{a}, {b}})

	if !slices.Equal(got, []uint32{130}) {
		t.Fatalf("candidates = %v, want [130]", got)
	}
	want := model.Counters{CheckNum: 4, AndNum: 2, AggBingo: 2, AggFail: 1}
	if c != want {
		t.Errorf("counters = %+v, want %+v", c, want)
	}
}

func TestAndReduce_GroupUnion(t *testing.T) {
	l := mustLayout(t, 256, 128)
	x1, x2, y := New(l), New(l), New(l)
	x1.Set(10)
	x2.Set(150)
	y.Set(10)
	y.Set(150)
	y.Set(20)

	got, _ := collect(l, []Group{{x1, nil, x2}, {y}})
	if !slices.Equal(got, []uint32{10, 150}) {
		t.Errorf("candidates = %v, want [10 150]", got)
	}

	got, c := collect(l, []Group{{x1}, {}})
	if len(got) != 0 {
		t.Errorf("empty group must match nothing, got %v", got)
	}
	if c.AggBingo != c.CheckNum {
		t.Errorf("all chunks must be pruned by an empty group: %+v", c)
	}
}

func TestAndReduce_MatchesUnpruned(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, ratio := range []int{64, 128, 256, 1024} {
		for _, capacity := range []uint32{1, 63, 64, 700, 4096, 10000} {
			l := mustLayout(t, capacity, ratio)

			for round := 0; round < 5; round++ {
				groups := make([]Group, 1+rng.Intn(4))
				for gi := range groups {
					members := 1 + rng.Intn(3)
					for m := 0; m < members; m++ {
						b := New(l)
						density := rng.Intn(int(capacity)/8 + 2)
						for i := 0; i < density; i++ {
							b.Set(uint32(rng.Intn(int(capacity))))
						}
						// Clear some bits again to exercise aggregate maintenance.
						for i := 0; i < density/3; i++ {
							b.Clear(uint32(rng.Intn(int(capacity))))
						}
						if !b.CheckAggregates() {
							t.Fatalf("ratio=%d capacity=%d: aggregate invariant violated", ratio, capacity)
						}
						groups[gi] = append(groups[gi], b)
					}
				}

				pruned, c1 := collect(l, groups)
				brute := collectUnpruned(l, groups)
				if !slices.Equal(pruned, brute) {
					t.Fatalf("ratio=%d capacity=%d: pruned %v != unpruned %v", ratio, capacity, pruned, brute)
				}

				_, c2 := collect(l, groups)
				if c1 != c2 {
					t.Fatalf("counters not deterministic: %+v vs %+v", c1, c2)
				}
				if c1.CheckNum != uint64(l.NumChunks()) {
					t.Fatalf("CheckNum = %d, want %d", c1.CheckNum, l.NumChunks())
				}
			}
		}
	}
}

func BenchmarkAndReduce(b *testing.B) {
	l := mustLayout(b, 10000, 64)
	rng := rand.New(rand.NewSource(1))
	groups := make([]Group, 5)
	for gi := range groups {
		bm := New(l)
		for i := 0; i < 2000; i++ {
			bm.Set(uint32(rng.Intn(10000)))
		}
		groups[gi] = Group{bm}
	}

	var c model.Counters
	b.ReportAllocs()
	for b.Loop() {
		AndReduce(l, groups, &c, func(uint32) bool { return true })
	}
}
