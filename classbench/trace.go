package classbench

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/hupe1980/hembs/model"
)

// NoExpectation marks a query without an expected rule id.
const NoExpectation int64 = -1

// Query is one packet of a trace.
type Query struct {
	Packet model.Packet
	// Expected is the rule id the trace claims to match, or NoExpectation.
	Expected int64
}

// ReadTrace parses a packet trace.
func ReadTrace(r io.Reader) ([]Query, error) {
	var queries []Query

	sc := newScanner(r)
	line := 0
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		q, err := parseQuery(f)
		if err != nil {
			err.Line = line
			return nil, err
		}
		queries = append(queries, q)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return queries, nil
}

func parseQuery(f []string) (Query, *ParseError) {
	if len(f) < 5 {
		return Query{}, &ParseError{Err: fmt.Errorf("want at least 5 fields, got %d", len(f))}
	}

	var vals [5]uint64
	names := [5]string{"source address", "destination address", "source port", "destination port", "protocol"}
	bits := [5]int{32, 32, 16, 16, 8}
	for i := range vals {
		v, err := strconv.ParseUint(f[i], 10, bits[i])
		if err != nil {
			return Query{}, &ParseError{Field: names[i], Err: err}
		}
		vals[i] = v
	}

	q := Query{
		Packet: model.Packet{
			SrcIP:   model.AddrFromUint32(uint32(vals[0])),
			DstIP:   model.AddrFromUint32(uint32(vals[1])),
			SrcPort: uint16(vals[2]),
			DstPort: uint16(vals[3]),
			Proto:   uint8(vals[4]),
		},
		Expected: NoExpectation,
	}
	if len(f) > 5 {
		id, err := strconv.ParseInt(f[len(f)-1], 10, 64)
		if err != nil {
			return Query{}, &ParseError{Field: "rule id", Err: err}
		}
		q.Expected = id
	}
	return q, nil
}

// WriteTrace writes queries in trace notation. Queries with an expectation
// get a trailing rule id column.
func WriteTrace(w io.Writer, queries []Query) error {
	bw := bufio.NewWriter(w)
	for _, q := range queries {
		p := q.Packet
		_, err := fmt.Fprintf(bw, "%d\t%d\t%d\t%d\t%d",
			model.AddrUint32(p.SrcIP), model.AddrUint32(p.DstIP), p.SrcPort, p.DstPort, p.Proto)
		if err != nil {
			return err
		}
		if q.Expected != NoExpectation {
			if _, err := fmt.Fprintf(bw, "\t%d", q.Expected); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// RandomTrace returns n queries with uniformly random header fields.
// The same seed yields the same trace.
func RandomTrace(seed uint64, n int) []Query {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	queries := make([]Query, n)
	for i := range queries {
		queries[i] = Query{
			Packet: model.Packet{
				SrcIP:   model.AddrFromUint32(rng.Uint32()),
				DstIP:   model.AddrFromUint32(rng.Uint32()),
				SrcPort: uint16(rng.UintN(1 << 16)),
				DstPort: uint16(rng.UintN(1 << 16)),
				Proto:   uint8(rng.UintN(1 << 8)),
			},
			Expected: NoExpectation,
		}
	}
	return queries
}

// HeaderTrace returns n queries each drawn from inside a random rule of
// rules, the way ClassBench's trace generator biases traffic toward the rule
// set. A query's Expected is left at NoExpectation since a more specific or
// earlier rule may also cover it.
func HeaderTrace(rules []model.Rule, seed uint64, n int) []Query {
	if len(rules) == 0 {
		return RandomTrace(seed, n)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	within := func(lo, hi uint32) uint32 {
		return lo + uint32(rng.Uint64N(uint64(hi-lo)+1))
	}

	queries := make([]Query, n)
	for i := range queries {
		r := rules[rng.IntN(len(rules))]
		sLo, sHi := model.PrefixInterval(r.SrcIP)
		dLo, dHi := model.PrefixInterval(r.DstIP)

		proto := uint8(rng.UintN(1 << 8))
		if !r.Proto.Any {
			proto = r.Proto.Value
		}

		queries[i] = Query{
			Packet: model.Packet{
				SrcIP:   model.AddrFromUint32(within(sLo, sHi)),
				DstIP:   model.AddrFromUint32(within(dLo, dHi)),
				SrcPort: uint16(within(uint32(r.SrcPort.Lo), uint32(r.SrcPort.Hi))),
				DstPort: uint16(within(uint32(r.DstPort.Lo), uint32(r.DstPort.Hi))),
				Proto:   proto,
			},
			Expected: NoExpectation,
		}
	}
	return queries
}
