package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/hembs"
	"github.com/hupe1980/hembs/blobstore/fetch"
	"github.com/hupe1980/hembs/classbench"
	"github.com/hupe1980/hembs/internal/bench"
	"github.com/hupe1980/hembs/pcaptrace"
	"github.com/hupe1980/hembs/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	flagRuleset        = "ruleset"
	flagPacket         = "packet"
	flagLog            = "log"
	flagUpdate         = "update"
	flagConfig         = "config"
	flagCellWidth      = "cell-width"
	flagAggregateRatio = "aggregate-ratio"
	flagPrecedence     = "precedence"
	flagPackets        = "packets"
	flagSeed           = "seed"
	flagWorkers        = "workers"
	flagUpdateRate     = "update-rate"
	flagMetricsAddr    = "metrics-addr"
	flagTable          = "table"
)

// settings is the resolved configuration of a run: flags, then environment
// (HEMBS_*), then the config file.
type settings struct {
	Ruleset        string
	Packet         string
	Log            int
	Update         bool
	CellWidth      int
	AggregateRatio int
	Precedence     string
	Packets        int
	Seed           uint64
	Workers        int
	UpdateRate     float64
	MetricsAddr    string
	Table          bool
}

func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("HEMBS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	if cfg := v.GetString(flagConfig); cfg != "" {
		v.SetConfigFile(cfg)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfg, err)
		}
	}
	return v, nil
}

func loadSettings(flags *pflag.FlagSet) (settings, error) {
	v, err := newViper(flags)
	if err != nil {
		return settings{}, err
	}

	s := settings{
		Ruleset:        v.GetString(flagRuleset),
		Packet:         v.GetString(flagPacket),
		Log:            v.GetInt(flagLog),
		Update:         v.GetBool(flagUpdate),
		CellWidth:      v.GetInt(flagCellWidth),
		AggregateRatio: v.GetInt(flagAggregateRatio),
		Precedence:     v.GetString(flagPrecedence),
		Packets:        v.GetInt(flagPackets),
		Seed:           v.GetUint64(flagSeed),
		Workers:        v.GetInt(flagWorkers),
		UpdateRate:     v.GetFloat64(flagUpdateRate),
		MetricsAddr:    v.GetString(flagMetricsAddr),
		Table:          v.GetBool(flagTable),
	}

	if s.Ruleset == "" {
		return settings{}, errors.New(`required flag "ruleset" not set`)
	}
	if s.Log != 0 {
		if _, err := bench.LogLevel(s.Log); err != nil {
			return settings{}, err
		}
	}
	if s.Packets < 0 {
		return settings{}, fmt.Errorf("invalid --%s %d", flagPackets, s.Packets)
	}
	return s, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hembs",
		Short:         "Benchmark the HEM-AFBS packet classifier on a ClassBench rule set",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), s)
		},
	}

	f := cmd.Flags()
	f.StringP(flagRuleset, "r", "", "rule set file or URI (file, s3://, minio://)")
	f.StringP(flagPacket, "p", "", "packet trace file or URI; .pcap is decoded as a capture (random packets if unset)")
	f.IntP(flagLog, "l", 0, "enable logging at level 1-3")
	f.BoolP(flagUpdate, "u", false, "run the randomized update benchmark")
	f.String(flagConfig, "", "YAML config file")
	f.Int(flagCellWidth, hembs.DefaultCellWidth, "port hierarchy base cell width (2, 4, 16, 256, 65536)")
	f.Int(flagAggregateRatio, hembs.DefaultAggregateRatio, "slots per aggregate bit (multiple of 64)")
	f.String(flagPrecedence, hembs.PrecedencePriority.String(), "rule ranking: priority or specificity")
	f.Int(flagPackets, 1_000_000, "number of random packets when no trace is given")
	f.Uint64(flagSeed, 1, "seed of random packets and update coin flips")
	f.Int(flagWorkers, 1, "parallel search workers")
	f.Float64(flagUpdateRate, 0, "maximum updates per second (0 is unlimited)")
	f.String(flagMetricsAddr, "", "serve Prometheus metrics on this address during the run")
	f.Bool(flagTable, false, "also print the report as a table")

	cmd.AddCommand(newGenCmd())
	return cmd
}

func newLogger(level int, w io.Writer) *hembs.Logger {
	if level == 0 {
		return hembs.NoopLogger()
	}
	lvl, _ := bench.LogLevel(level)
	return hembs.NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func isPcap(location string) bool {
	for _, suffix := range []string{".zst", ".zstd", ".lz4"} {
		location = strings.TrimSuffix(location, suffix)
	}
	return strings.HasSuffix(location, ".pcap")
}

func readRules(ctx context.Context, location string) ([]hembs.Rule, error) {
	rc, err := fetch.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return classbench.ReadRules(rc)
}

func readQueries(ctx context.Context, location string, logger *hembs.Logger) ([]classbench.Query, error) {
	rc, err := fetch.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if !isPcap(location) {
		return classbench.ReadTrace(rc)
	}
	qs, stats, err := pcaptrace.Read(rc)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "capture decoded", "records", stats.Packets, "skipped", stats.Skipped)
	return qs, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *hembs.Logger) (func(context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return srv.Shutdown, nil
}

func run(ctx context.Context, stdout, stderr io.Writer, s settings) error {
	logger := newLogger(s.Log, stderr)

	precedence, err := hembs.ParsePrecedence(s.Precedence)
	if err != nil {
		return err
	}

	rules, err := readRules(ctx, s.Ruleset)
	if err != nil {
		return fmt.Errorf("read rules: %w", err)
	}
	fmt.Fprintf(stdout, "read rules file (%s %d)\n", s.Ruleset, len(rules))

	var queries []classbench.Query
	if s.Packet != "" {
		if queries, err = readQueries(ctx, s.Packet, logger); err != nil {
			return fmt.Errorf("read packets: %w", err)
		}
		fmt.Fprintf(stdout, "read_messages (%s %d)\n", s.Packet, len(queries))
	} else {
		queries = classbench.RandomTrace(s.Seed, s.Packets)
	}
	if s.Log != 0 {
		fmt.Fprintf(stdout, "Enable log:    level %d\n", s.Log)
	}
	if s.Update {
		fmt.Fprintln(stdout, "Enable update")
	}

	cfg := bench.Config{
		Rules:          rules,
		Queries:        queries,
		CellWidth:      s.CellWidth,
		AggregateRatio: s.AggregateRatio,
		Precedence:     precedence,
		Workers:        s.Workers,
		Update:         s.Update,
		UpdateRate:     s.UpdateRate,
		Seed:           s.Seed,
		Logger:         logger,
	}

	var shutdown func(context.Context) error
	var h *bench.Harness
	if s.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		col, err := telemetry.New(reg)
		if err != nil {
			return err
		}
		cfg.Metrics = col

		if h, err = bench.NewHarness(cfg); err != nil {
			return err
		}
		if err := telemetry.RegisterFootprint(reg, h.MemoryFootprintBytes); err != nil {
			return err
		}
		if shutdown, err = serveMetrics(s.MetricsAddr, reg, logger); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	} else if h, err = bench.NewHarness(cfg); err != nil {
		return err
	}

	rep, err := h.Run(ctx)
	if err != nil {
		return err
	}

	if err := rep.WriteSummary(stdout); err != nil {
		return err
	}
	if s.Table {
		rep.WriteTable(stdout)
	}
	return nil
}

