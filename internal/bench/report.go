package bench

import (
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/hembs/model"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/sys/cpu"
)

// Report holds the results of a run. Counter fields are sums over all
// searched packets.
type Report struct {
	CellWidth      int
	AggregateRatio int
	Rules          int
	Packets        int
	Workers        int

	Construction time.Duration
	Search       time.Duration
	Update       time.Duration
	Updates      int
	Reinserts    int
	Deletes      int
	UpdateErrors int

	MemoryBytes       int64
	MemoryAfterUpdate int64

	Counters   model.Counters
	Matched    int
	Mismatched int
}

func perOp(total time.Duration, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(total.Nanoseconds()) / 1e3 / float64(n)
}

func perPacket(sum uint64, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// AvgSearchMicros returns the mean wall time per packet in microseconds.
// With several workers this is throughput-based, not latency.
func (r *Report) AvgSearchMicros() float64 { return perOp(r.Search, r.Packets) }

// AvgUpdateMicros returns the mean time per churn operation in microseconds.
func (r *Report) AvgUpdateMicros() float64 { return perOp(r.Update, r.Updates) }

// AvgCounters returns the per-packet means of the search counters in the
// order check, and, cmp, agg bingo, agg fail.
func (r *Report) AvgCounters() [5]float64 {
	c := r.Counters
	return [5]float64{
		perPacket(c.CheckNum, r.Packets),
		perPacket(c.AndNum, r.Packets),
		perPacket(c.CmpNum, r.Packets),
		perPacket(c.AggBingo, r.Packets),
		perPacket(c.AggFail, r.Packets),
	}
}

// WriteSummary writes the three-line HEM-AFBS summary. The attribute count is
// always five.
func (r *Report) WriteSummary(w io.Writer) error {
	avg := r.AvgCounters()
	perRule := 0.0
	if r.Rules > 0 {
		perRule = float64(r.MemoryBytes) / float64(r.Rules)
	}
	_, err := fmt.Fprintf(w,
		"HEM-AFBS-a%d-CW%d-k%d : constructionTime= %.3f ms, searchTime= %.3f us, updateTime= %.3f us\n"+
			"memorySize= %.3f MB, avgMemorySize= %.3f B/', avgCheckNum= %.3f, avgANDNum= %.3f, avgCMPNum= %.3f\n"+
			"avgAggBingo= %.3f, avgAggFail= %.3f\n\n",
		5, r.CellWidth, r.AggregateRatio,
		float64(r.Construction.Nanoseconds())/1e6, r.AvgSearchMicros(), r.AvgUpdateMicros(),
		float64(r.MemoryBytes)/1024/1024, perRule, avg[0], avg[1], avg[2],
		avg[3], avg[4],
	)
	return err
}

func cpuFeatures() string {
	var f []string
	switch runtime.GOARCH {
	case "amd64":
		if cpu.X86.HasPOPCNT {
			f = append(f, "popcnt")
		}
		if cpu.X86.HasAVX2 {
			f = append(f, "avx2")
		}
		if cpu.X86.HasAVX512F {
			f = append(f, "avx512f")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			f = append(f, "asimd")
		}
		if cpu.ARM64.HasSVE {
			f = append(f, "sve")
		}
	}
	if len(f) == 0 {
		return runtime.GOARCH
	}
	return runtime.GOARCH + " (" + strings.Join(f, ", ") + ")"
}

func f3(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

// WriteTable writes the report as an aligned two-column table.
func (r *Report) WriteTable(w io.Writer) {
	avg := r.AvgCounters()
	rows := [][]string{
		{"cpu", cpuFeatures()},
		{"rules", strconv.Itoa(r.Rules)},
		{"packets", strconv.Itoa(r.Packets)},
		{"workers", strconv.Itoa(r.Workers)},
		{"cell width", strconv.Itoa(r.CellWidth)},
		{"aggregate ratio", strconv.Itoa(r.AggregateRatio)},
		{"construction (ms)", f3(float64(r.Construction.Nanoseconds()) / 1e6)},
		{"search (us/pkt)", f3(r.AvgSearchMicros())},
		{"memory (bytes)", strconv.FormatInt(r.MemoryBytes, 10)},
		{"matched", strconv.Itoa(r.Matched)},
		{"mismatched", strconv.Itoa(r.Mismatched)},
		{"avg check", f3(avg[0])},
		{"avg and", f3(avg[1])},
		{"avg cmp", f3(avg[2])},
		{"avg agg bingo", f3(avg[3])},
		{"avg agg fail", f3(avg[4])},
	}
	if r.Updates > 0 {
		rows = append(rows,
			[]string{"update (us/op)", f3(r.AvgUpdateMicros())},
			[]string{"reinserts / deletes", fmt.Sprintf("%d / %d", r.Reinserts, r.Deletes)},
			[]string{"rejected updates", strconv.Itoa(r.UpdateErrors)},
			[]string{"memory after update", strconv.FormatInt(r.MemoryAfterUpdate, 10)},
		)
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"METRIC", "VALUE"})
	table.AppendBulk(rows)
	table.Render()
}
