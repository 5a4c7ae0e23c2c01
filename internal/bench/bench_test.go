package bench

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/hupe1980/hembs"
	"github.com/hupe1980/hembs/classbench"
	"github.com/hupe1980/hembs/model"
	"github.com/hupe1980/hembs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRules(t *testing.T, n int) []model.Rule {
	t.Helper()
	rng := testutil.NewRNG(11)
	return rng.Rules(n)
}

func TestRun(t *testing.T) {
	rules := testRules(t, 200)
	queries := classbench.HeaderTrace(rules, 3, 1000)

	rep, err := Run(context.Background(), Config{
		Rules:      rules,
		Queries:    queries,
		Precedence: hembs.PrecedencePriority,
		Workers:    4,
		Update:     true,
		Seed:       5,
	})
	require.NoError(t, err)

	assert.Equal(t, 200, rep.Rules)
	assert.Equal(t, 1000, rep.Packets)
	assert.Equal(t, 1000, rep.Matched, "header traces are drawn from inside rules")
	assert.Zero(t, rep.Mismatched)
	assert.Equal(t, 200, rep.Updates)
	assert.Equal(t, 200, rep.Reinserts+rep.Deletes)
	assert.Zero(t, rep.UpdateErrors)
	assert.Positive(t, rep.MemoryBytes)

	// 200 slots at ratio 64 are 4 chunks.
	assert.Equal(t, uint64(4*1000), rep.Counters.CheckNum)
	assert.GreaterOrEqual(t, rep.Counters.CmpNum, uint64(rep.Matched))
}

func TestRun_WorkersAgree(t *testing.T) {
	rules := testRules(t, 150)
	queries := classbench.RandomTrace(8, 500)
	queries = append(queries, classbench.HeaderTrace(rules, 8, 500)...)

	one, err := Run(context.Background(), Config{Rules: rules, Queries: queries})
	require.NoError(t, err)
	many, err := Run(context.Background(), Config{Rules: rules, Queries: queries, Workers: 7})
	require.NoError(t, err)

	assert.Equal(t, one.Counters, many.Counters)
	assert.Equal(t, one.Matched, many.Matched)
}

func TestRun_ChurnLeavesReinsertedRules(t *testing.T) {
	rules := testRules(t, 100)

	h, err := NewHarness(Config{Rules: rules, Update: true, Seed: 21, UpdateRate: 1e6})
	require.NoError(t, err)

	rep, err := h.Run(context.Background())
	require.NoError(t, err)

	want := 0
	for _, reinsert := range Flips(21, len(rules)) {
		if reinsert {
			want++
		}
	}
	assert.Equal(t, want, rep.Reinserts)
	assert.Equal(t, want, h.Classifier().Len())
	assert.Positive(t, rep.MemoryAfterUpdate)
}

func TestRun_Mismatch(t *testing.T) {
	rules := testRules(t, 10)
	q := classbench.HeaderTrace(rules, 1, 1)[0]
	q.Expected = 1 << 40

	rep, err := Run(context.Background(), Config{Rules: rules, Queries: []classbench.Query{q}})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Mismatched)
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrNoRules)

	_, err = Run(context.Background(), Config{Rules: testRules(t, 4), CellWidth: 3})
	assert.ErrorIs(t, err, hembs.ErrInvalidConfig)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, Config{Rules: testRules(t, 4), Queries: classbench.RandomTrace(1, 10), Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFlips_Deterministic(t *testing.T) {
	assert.Equal(t, Flips(3, 64), Flips(3, 64))
	assert.NotEqual(t, Flips(3, 64), Flips(4, 64))
}

func TestLogLevel(t *testing.T) {
	for _, v := range []int{1, 2, 3} {
		_, err := LogLevel(v)
		assert.NoError(t, err)
	}
	_, err := LogLevel(0)
	assert.Error(t, err)
	_, err = LogLevel(4)
	assert.Error(t, err)
}

func TestReport_Output(t *testing.T) {
	rep := &Report{
		CellWidth:      16,
		AggregateRatio: 64,
		Rules:          2,
		Packets:        4,
		Updates:        2,
		MemoryBytes:    2048,
		Counters:       model.Counters{CheckNum: 8, AndNum: 6, CmpNum: 4, AggBingo: 2},
	}

	var buf bytes.Buffer
	require.NoError(t, rep.WriteSummary(&buf))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "HEM-AFBS-a5-CW16-k64 : constructionTime= "))
	assert.Contains(t, out, "avgMemorySize= 1024.000 B/'")
	assert.Contains(t, out, "avgCheckNum= 2.000, avgANDNum= 1.500, avgCMPNum= 1.000")
	assert.Contains(t, out, "avgAggBingo= 0.500, avgAggFail= 0.000")

	buf.Reset()
	rep.WriteTable(&buf)
	assert.Contains(t, buf.String(), "avg check")
	assert.Contains(t, buf.String(), "update (us/op)")
}
