package hembs

import "log/slog"

const (
	// DefaultCellWidth is the base cell width of the port hierarchy.
	DefaultCellWidth = 16

	// DefaultAggregateRatio is the number of slots summarized by one aggregate bit.
	DefaultAggregateRatio = 64
)

// TieBreak orders matching rules that carry the same priority value.
type TieBreak int

const (
	// TieBreakEarliest prefers the rule inserted first.
	TieBreakEarliest TieBreak = iota
	// TieBreakLatest prefers the rule inserted last.
	TieBreakLatest
)

// String returns the policy name.
func (t TieBreak) String() string {
	switch t {
	case TieBreakEarliest:
		return "earliest"
	case TieBreakLatest:
		return "latest"
	default:
		return "unknown"
	}
}

// Precedence selects how matching rules are ranked.
type Precedence int

const (
	// PrecedenceSpecificity ranks rules with more non-wildcard fields first,
	// then by priority.
	PrecedenceSpecificity Precedence = iota
	// PrecedencePriority ranks rules by priority only, as ClassBench rule
	// sets expect.
	PrecedencePriority
)

// String returns the policy name.
func (p Precedence) String() string {
	switch p {
	case PrecedenceSpecificity:
		return "specificity"
	case PrecedencePriority:
		return "priority"
	default:
		return "unknown"
	}
}

// ParsePrecedence returns the Precedence named s.
func ParsePrecedence(s string) (Precedence, error) {
	switch s {
	case "specificity":
		return PrecedenceSpecificity, nil
	case "priority":
		return PrecedencePriority, nil
	default:
		return 0, &InvalidConfigError{Param: "precedence", Value: s}
	}
}

type options struct {
	precedence       Precedence
	cellWidth        int
	aggregateRatio   int
	tieBreak         TieBreak
	memoryLimit      int64
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Classifier at Init.
type Option func(*options)

// WithCellWidth sets the base cell width of the port range hierarchy.
// Valid widths are 2, 4, 16, 256 and 65536.
//
// Narrow cells register wide ranges in more cells but overcover less;
// 65536 degenerates to a single cell and leaves all port filtering to
// verification.
func WithCellWidth(w int) Option {
	return func(o *options) {
		o.cellWidth = w
	}
}

// WithAggregateRatio sets the number of slots summarized by one aggregate bit.
// It must be a positive multiple of 64.
func WithAggregateRatio(ratio int) Option {
	return func(o *options) {
		o.aggregateRatio = ratio
	}
}

// WithPrecedence sets how matching rules are ranked.
func WithPrecedence(p Precedence) Option {
	return func(o *options) {
		o.precedence = p
	}
}

// WithTieBreak sets the order among matching rules with equal priority.
func WithTieBreak(t TieBreak) Option {
	return func(o *options) {
		o.tieBreak = t
	}
}

// WithMemoryLimit caps the bytes the classifier may own.
// The baseline is reserved at Init; each insert reserves the bitmaps and trie
// nodes it would allocate and fails with ErrMemoryLimitExceeded, leaving the
// classifier unchanged, when they do not fit. Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &hembs.BasicMetricsCollector{}
//	c, _ := hembs.New(1024, hembs.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := hembs.NewJSONLogger(slog.LevelInfo)
//	c, _ := hembs.New(1024, hembs.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		precedence:       PrecedenceSpecificity,
		cellWidth:        DefaultCellWidth,
		aggregateRatio:   DefaultAggregateRatio,
		tieBreak:         TieBreakEarliest,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
