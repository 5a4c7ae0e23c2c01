package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hupe1980/hembs"
	"github.com/hupe1980/hembs/classbench"
	"github.com/hupe1980/hembs/internal/resource"
	"github.com/hupe1980/hembs/model"
	"golang.org/x/sync/errgroup"
)

// ErrNoRules is returned by Run for an empty rule set.
var ErrNoRules = errors.New("bench: empty rule set")

// Config describes one benchmark run.
type Config struct {
	Rules   []model.Rule
	Queries []classbench.Query

	// CellWidth and AggregateRatio are passed to the classifier. Zero
	// selects the classifier default.
	CellWidth      int
	AggregateRatio int
	Precedence     hembs.Precedence

	// Workers is the number of parallel search workers. Zero means one.
	Workers int
	// Update enables the churn phase.
	Update bool
	// UpdateRate caps churn operations per second. Zero means unlimited.
	UpdateRate float64
	// Seed drives the churn coin flips.
	Seed uint64

	Metrics hembs.MetricsCollector
	Logger  *hembs.Logger
}

func (c *Config) defaults() {
	if c.CellWidth == 0 {
		c.CellWidth = hembs.DefaultCellWidth
	}
	if c.AggregateRatio == 0 {
		c.AggregateRatio = hembs.DefaultAggregateRatio
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Logger == nil {
		c.Logger = hembs.NoopLogger()
	}
}

// Harness holds the classifier under test.
type Harness struct {
	cfg  Config
	ctrl *resource.Controller

	mu sync.RWMutex
	c  *hembs.Classifier

	// live tracks which rules are currently inserted, by rule index.
	live []bool
}

// NewHarness validates cfg and builds an empty classifier sized to the rule
// set.
func NewHarness(cfg Config) (*Harness, error) {
	if len(cfg.Rules) == 0 {
		return nil, ErrNoRules
	}
	cfg.defaults()

	opts := []hembs.Option{
		hembs.WithCellWidth(cfg.CellWidth),
		hembs.WithAggregateRatio(cfg.AggregateRatio),
		hembs.WithPrecedence(cfg.Precedence),
		hembs.WithLogger(cfg.Logger),
	}
	if cfg.Metrics != nil {
		opts = append(opts, hembs.WithMetricsCollector(cfg.Metrics))
	}

	c, err := hembs.New(uint32(len(cfg.Rules)), opts...)
	if err != nil {
		return nil, err
	}

	return &Harness{
		cfg: cfg,
		ctrl: resource.NewController(resource.Config{
			MaxWorkers:    int64(cfg.Workers),
			UpdatesPerSec: cfg.UpdateRate,
		}),
		c:    c,
		live: make([]bool, len(cfg.Rules)),
	}, nil
}

// Classifier returns the classifier under test. Callers must not mutate it
// while a phase runs.
func (h *Harness) Classifier() *hembs.Classifier {
	return h.c
}

// MemoryFootprintBytes reads the classifier footprint under the read lock.
func (h *Harness) MemoryFootprintBytes() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.c.MemoryFootprintBytes()
}

// Run executes all phases and returns the report.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	h, err := NewHarness(cfg)
	if err != nil {
		return nil, err
	}
	return h.Run(ctx)
}

// Run executes construction, search and, if enabled, churn.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		CellWidth:      h.cfg.CellWidth,
		AggregateRatio: h.cfg.AggregateRatio,
		Rules:          len(h.cfg.Rules),
		Packets:        len(h.cfg.Queries),
		Workers:        h.cfg.Workers,
	}

	if err := h.construct(ctx, rep); err != nil {
		return nil, err
	}
	rep.MemoryBytes = h.MemoryFootprintBytes()

	if err := h.search(ctx, rep); err != nil {
		return nil, err
	}

	if h.cfg.Update {
		if err := h.churn(ctx, rep); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

func (h *Harness) construct(ctx context.Context, rep *Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	for i, r := range h.cfg.Rules {
		if _, err := h.c.Insert(r); err != nil {
			return fmt.Errorf("bench: insert rule %d: %w", i, err)
		}
		h.live[i] = true
	}
	rep.Construction = time.Since(start)

	h.cfg.Logger.InfoContext(ctx, "rule set loaded",
		"rules", len(h.cfg.Rules),
		"duration", rep.Construction,
	)
	return nil
}

type shardResult struct {
	counters   model.Counters
	matched    int
	mismatched int
}

func (h *Harness) search(ctx context.Context, rep *Report) error {
	qs := h.cfg.Queries
	if len(qs) == 0 {
		return nil
	}

	workers := min(h.cfg.Workers, len(qs))
	shards := make([]shardResult, workers)
	chunk := (len(qs) + workers - 1) / workers

	h.mu.RLock()
	defer h.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := range workers {
		lo, hi := w*chunk, min((w+1)*chunk, len(qs))
		g.Go(func() error {
			if err := h.ctrl.AcquireWorker(gctx); err != nil {
				return err
			}
			defer h.ctrl.ReleaseWorker()
			return h.searchShard(gctx, qs[lo:hi], &shards[w])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	rep.Search = time.Since(start)

	for _, s := range shards {
		rep.Counters.Add(s.counters)
		rep.Matched += s.matched
		rep.Mismatched += s.mismatched
	}

	h.cfg.Logger.InfoContext(ctx, "trace classified",
		"packets", len(qs),
		"matched", rep.Matched,
		"duration", rep.Search,
	)
	return nil
}

func (h *Harness) searchShard(ctx context.Context, qs []classbench.Query, out *shardResult) error {
	for i, q := range qs {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		res, err := h.c.Search(q.Packet)
		if err != nil {
			return fmt.Errorf("bench: search %v: %w", q.Packet, err)
		}
		out.counters.Add(res.Counters)
		if res.Found() {
			out.matched++
		}
		if q.Expected != classbench.NoExpectation && q.Expected != res.RuleID() {
			out.mismatched++
			h.cfg.Logger.DebugContext(ctx, "unexpected match",
				"packet", q.Packet.String(),
				"expected", q.Expected,
				"got", res.RuleID(),
			)
		}
	}
	return nil
}

// logLevel maps the 1-3 verbosity scale of the CLI to slog levels.
func logLevel(v int) slog.Level {
	switch {
	case v >= 3:
		return slog.LevelDebug
	case v == 2:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// LogLevel returns the slog level of a 1-3 verbosity value.
func LogLevel(v int) (slog.Level, error) {
	if v < 1 || v > 3 {
		return 0, fmt.Errorf("bench: unknown log level %d", v)
	}
	return logLevel(v), nil
}
